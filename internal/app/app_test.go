package app

import (
	"net/http/httptest"
	"testing"

	"cxema-backend/internal/config"
	"cxema-backend/internal/database"
	"cxema-backend/internal/sheets"
	"cxema-backend/internal/tokens"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupApp(t *testing.T, cfg *config.Config) *Deps {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return &Deps{DB: db, Tokens: &tokens.Store{Redis: rdb}}
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Env:           "test",
		Port:          "0",
		BackupDir:     t.TempDir(),
		SheetsMode:    "mock",
		SheetsMockDir: t.TempDir(),
	}
}

func TestCreateAppServesRoutes(t *testing.T) {
	cfg := testConfig(t)
	deps := setupApp(t, cfg)

	fiberApp, backupService, err := CreateApp(cfg, *deps)
	require.NoError(t, err)
	require.NotNil(t, backupService)

	resp, err := fiberApp.Test(httptest.NewRequest("GET", "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = fiberApp.Test(httptest.NewRequest("GET", "/api/projects", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = fiberApp.Test(httptest.NewRequest("GET", "/api/settings", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestCreateAppRejectsUnknownSheetsMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.SheetsMode = "sideways"
	deps := setupApp(t, cfg)

	_, _, err := CreateApp(cfg, *deps)
	assert.ErrorIs(t, err, sheets.ErrModeInvalid)
}
