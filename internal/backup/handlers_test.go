package backup

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBackupApp(t *testing.T) (*fiber.App, *Service) {
	svc := setupBackupTest(t)
	h := &Handlers{Service: svc}

	app := fiber.New()
	api := app.Group("/api/backup")
	api.Get("/export", h.Export)
	api.Get("/copies", h.Copies)
	api.Get("/copies/:copy_name/projects", h.CopyProjects)
	api.Post("/restore", h.Restore)
	api.Post("/import", h.Import)
	return app, svc
}

func doJSON(t *testing.T, app *fiber.App, method, path string) (int, map[string]interface{}) {
	resp, err := app.Test(httptest.NewRequest(method, path, nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	return resp.StatusCode, out
}

func TestExportEndpointStreamsZip(t *testing.T) {
	app, svc := setupBackupApp(t)
	seedDataset(t, svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/backup/export", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "cxema-backup-")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "PK", string(raw[:2]))
}

func TestCopiesEndpointEnvelope(t *testing.T) {
	app, svc := setupBackupApp(t)
	seedDataset(t, svc)
	_, _, err := svc.Export(context.Background())
	require.NoError(t, err)

	code, out := doJSON(t, app, "GET", "/api/backup/copies")
	assert.Equal(t, 200, code)
	assert.Equal(t, "success", out["status"])
	data := out["data"].(map[string]interface{})
	assert.Equal(t, 4.0, data["retention_months"])
	assert.Len(t, data["copies"], 1)
	assert.NotNil(t, data["latest"])
}

func TestRestoreEndpointErrors(t *testing.T) {
	app, _ := setupBackupApp(t)

	code, out := doJSON(t, app, "POST", "/api/backup/restore?copy_name=latest")
	assert.Equal(t, 404, code)
	errObj := out["error"].(map[string]interface{})
	assert.Equal(t, "BACKUP_COPY_NOT_FOUND", errObj["message"])

	code, out = doJSON(t, app, "POST", "/api/backup/restore?copy_name=..%2Fx.zip")
	assert.Equal(t, 422, code)
	errObj = out["error"].(map[string]interface{})
	assert.Equal(t, "BACKUP_COPY_INVALID", errObj["message"])

	code, out = doJSON(t, app, "POST", "/api/backup/import")
	assert.Equal(t, 400, code)
	errObj = out["error"].(map[string]interface{})
	assert.Equal(t, "BACKUP_FILE_REQUIRED", errObj["message"])
}

func TestRestoreEndpointPartialDryRun(t *testing.T) {
	app, svc := setupBackupApp(t)
	p1, _ := seedDataset(t, svc)
	_, _, err := svc.Export(context.Background())
	require.NoError(t, err)

	code, out := doJSON(t, app, "POST",
		"/api/backup/restore?mode=partial&dry_run=true&project_ids="+fmtInt(p1))
	assert.Equal(t, 200, code)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, true, data["dry_run"])
	counts := data["counts"].(map[string]interface{})
	assert.Equal(t, 1.0, counts["projects"])
}
