package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env         string
	Port        string
	DatabaseURL string
	RedisURL    string
	CORSOrigins []string

	BackupDir string

	SheetsMode          string // "mock" (local JSON files) or "real" (Google Sheets API)
	SheetsMockDir       string
	GoogleClientID      string
	GoogleClientSecret  string
	GoogleOAuthRedirect string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "28011"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL")
	if dbURL == "" {
		dbURL = "data/app.db"
	}

	redisURL := viper.GetString("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	backupDir := viper.GetString("BACKUP_DIR")
	if backupDir == "" {
		backupDir = "data/backups"
	}

	sheetsMode := strings.ToLower(viper.GetString("SHEETS_MODE"))
	if sheetsMode == "" {
		sheetsMode = "mock"
	}
	mockDir := viper.GetString("SHEETS_MOCK_DIR")
	if mockDir == "" {
		mockDir = "data/mock_sheets"
	}
	redirect := viper.GetString("GOOGLE_OAUTH_REDIRECT_URI")
	if redirect == "" {
		redirect = "http://localhost:" + port + "/api/google/auth/callback"
	}

	return &Config{
		Env:                 env,
		Port:                port,
		DatabaseURL:         dbURL,
		RedisURL:            redisURL,
		CORSOrigins:         splitCSV(viper.GetString("CORS_ORIGINS")),
		BackupDir:           backupDir,
		SheetsMode:          sheetsMode,
		SheetsMockDir:       mockDir,
		GoogleClientID:      viper.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:  viper.GetString("GOOGLE_CLIENT_SECRET"),
		GoogleOAuthRedirect: redirect,
	}, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
