package main

import (
	"context"

	"cxema-backend/internal/app"
	"cxema-backend/internal/backup"
	"cxema-backend/internal/config"
	"cxema-backend/internal/database"
	"cxema-backend/internal/tokens"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Config load failed")
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database open failed")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("Database migration failed")
	}

	tokenStore, err := tokens.NewFromURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connect failed")
	}
	if err := tokenStore.Redis.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("Redis ping failed")
	}

	fiberApp, backupService, err := app.CreateApp(cfg, app.Deps{DB: db, Tokens: tokenStore})
	if err != nil {
		log.Fatal().Err(err).Msg("App create failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go backup.NewScheduler(backupService).Run(ctx)

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Str("sheets_mode", cfg.SheetsMode).Msg("Server starting")
	if err := fiberApp.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
