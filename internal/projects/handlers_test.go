package projects

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"cxema-backend/internal/finance"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupProjectsApp(t *testing.T) (*fiber.App, *Service) {
	svc := setupProjectsTest(t)
	h := &Handlers{Service: svc, Finance: &finance.Service{DB: svc.DB}}

	app := fiber.New()
	api := app.Group("/api/projects")
	api.Get("/:project_id/computed", h.Computed)
	api.Get("/:project_id/estimate/data", h.EstimateData)
	api.Get("/:project_id", h.Get)
	api.Post("/:project_id/items", h.CreateItem)
	return app, svc
}

func getJSON(t *testing.T, app *fiber.App, path string) (int, map[string]interface{}) {
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	return resp.StatusCode, out
}

func TestGetProjectNotFoundEnvelope(t *testing.T) {
	app, _ := setupProjectsApp(t)

	code, out := getJSON(t, app, "/api/projects/404")
	assert.Equal(t, 404, code)
	assert.Equal(t, "error", out["status"])
	errObj := out["error"].(map[string]interface{})
	assert.Equal(t, "PROJECT_NOT_FOUND", errObj["message"])
	assert.Equal(t, 404.0, errObj["statusCode"])
}

func TestCreateItemNegativeBaseTotalReturns422(t *testing.T) {
	app, svc := setupProjectsApp(t)
	p := createTestProject(t, svc)
	groups, err := svc.ListGroups(context.Background(), p.ID)
	require.NoError(t, err)

	payload := fmt.Sprintf(`{"group_id":%d,"title":"Сцена","mode":"SINGLE_TOTAL","base_total":-5000}`, groups[0].ID)
	req := httptest.NewRequest("POST", fmt.Sprintf("/api/projects/%d/items", p.ID), strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 422, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	errObj := out["error"].(map[string]interface{})
	assert.Equal(t, "BASE_TOTAL_NEGATIVE", errObj["message"])
}

func TestComputedEndpointFeeScopeParams(t *testing.T) {
	app, svc := setupProjectsApp(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, ProjectWrite{Title: "Шоу"})
	require.NoError(t, err)
	price := 100000.0
	_, err = svc.Update(ctx, p.ID, ProjectPatch{ProjectPriceTotal: &price})
	require.NoError(t, err)
	groups, _ := svc.ListGroups(ctx, p.ID)
	_, err = svc.CreateItem(ctx, p.ID, itemWrite(groups[0].ID, "Сцена")) // base 1000
	require.NoError(t, err)

	// Default: project-wide fee on revenue, 10% of 100000.
	code, out := getJSON(t, app, fmt.Sprintf("/api/projects/%d/computed", p.ID))
	assert.Equal(t, 200, code)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, 10000.0, data["agency_fee"])

	// Group-scoped only: 10% of the group total.
	code, out = getJSON(t, app, fmt.Sprintf(
		"/api/projects/%d/computed?fee_project_wide=false&fee_group_ids=%d", p.ID, groups[0].ID))
	assert.Equal(t, 200, code)
	data = out["data"].(map[string]interface{})
	assert.Equal(t, 100.0, data["agency_fee"])
}

func TestEstimateDataEndpoint(t *testing.T) {
	app, svc := setupProjectsApp(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, ProjectWrite{Title: "Конференция"})
	require.NoError(t, err)
	groups, _ := svc.ListGroups(ctx, p.ID)

	in := itemWrite(groups[0].ID, "Аренда зала")
	in.BaseTotal = 40000
	in.ExtraProfitEnabled = true
	in.ExtraProfitAmount = 2000
	parent, err := svc.CreateItem(ctx, p.ID, in)
	require.NoError(t, err)

	// Sub-item: out of the estimate by construction.
	subIn := itemWrite(groups[0].ID, "Уборка")
	subIn.ParentItemID = &parent.ID
	_, err = svc.CreateItem(ctx, p.ID, subIn)
	require.NoError(t, err)

	_, err = svc.CreatePlan(ctx, p.ID, PaymentWrite{PayDate: farFuture, Amount: 50000})
	require.NoError(t, err)

	code, out := getJSON(t, app, fmt.Sprintf("/api/projects/%d/estimate/data", p.ID))
	assert.Equal(t, 200, code)
	data := out["data"].(map[string]interface{})

	expenses := data["expenses"].([]interface{})
	require.Len(t, expenses, 1)
	row := expenses[0].(map[string]interface{})
	assert.Equal(t, "Аренда зала", row["title"])
	assert.Equal(t, 42000.0, row["row_total"])

	totals := data["totals"].(map[string]interface{})
	assert.Equal(t, 42000.0, totals["expenses_total"])
	assert.Equal(t, 50000.0, totals["payments_plan_total"])
	assert.Equal(t, 8000.0, totals["balance"])
}
