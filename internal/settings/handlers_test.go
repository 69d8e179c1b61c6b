package settings

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"cxema-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupSettingsApp(t *testing.T) (*fiber.App, *Service) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.AppSettings{}))

	svc := &Service{DB: db}
	h := &Handlers{Service: svc}
	app := fiber.New()
	app.Get("/api/settings", h.Get)
	app.Patch("/api/settings", h.Update)
	return app, svc
}

func patchSettings(t *testing.T, app *fiber.App, payload string) (int, map[string]interface{}) {
	req := httptest.NewRequest("PATCH", "/api/settings", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	return resp.StatusCode, out
}

func TestGetSeedsDefaults(t *testing.T) {
	app, _ := setupSettingsApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/settings", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	data := out["data"].(map[string]interface{})
	assert.Equal(t, "OPERATIONAL", data["usn_mode"])
	assert.Equal(t, 6.0, data["usn_rate_percent"])
	assert.Equal(t, "WEEKLY", data["backup_frequency"])
}

func TestUpdatePartialPatch(t *testing.T) {
	app, _ := setupSettingsApp(t)

	code, out := patchSettings(t, app, `{"usn_mode":"LEGAL"}`)
	assert.Equal(t, fiber.StatusOK, code)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, "LEGAL", data["usn_mode"])
	// Untouched fields keep their values.
	assert.Equal(t, 6.0, data["usn_rate_percent"])

	code, out = patchSettings(t, app, `{"usn_rate_percent":15,"backup_frequency":"OFF"}`)
	assert.Equal(t, fiber.StatusOK, code)
	data = out["data"].(map[string]interface{})
	assert.Equal(t, "LEGAL", data["usn_mode"])
	assert.Equal(t, 15.0, data["usn_rate_percent"])
	assert.Equal(t, "OFF", data["backup_frequency"])
}

func TestUpdateRejectsInvalidMode(t *testing.T) {
	app, _ := setupSettingsApp(t)

	code, out := patchSettings(t, app, `{"usn_mode":"WHATEVER"}`)
	assert.Equal(t, 422, code)
	assert.Equal(t, "USN_MODE_INVALID", out["error"].(map[string]interface{})["message"])
}

func TestUpdateRejectsInvalidFrequency(t *testing.T) {
	app, _ := setupSettingsApp(t)

	code, out := patchSettings(t, app, `{"backup_frequency":"HOURLY"}`)
	assert.Equal(t, 422, code)
	assert.Equal(t, "BACKUP_FREQUENCY_INVALID", out["error"].(map[string]interface{})["message"])

	// A failed patch leaves the row untouched.
	resp, err := app.Test(httptest.NewRequest("GET", "/api/settings", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	var getOut map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &getOut))
	assert.Equal(t, "WEEKLY", getOut["data"].(map[string]interface{})["backup_frequency"])
}
