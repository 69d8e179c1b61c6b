package projects

import (
	"strconv"
	"strings"

	"cxema-backend/internal/finance"
	"cxema-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
	Finance *finance.Service
}

// statusByError maps sentinel conditions to HTTP statuses.
var statusByError = map[string]int{
	"PROJECT_NOT_FOUND":      404,
	"GROUP_NOT_FOUND":        404,
	"ITEM_NOT_FOUND":         404,
	"ADJUSTMENT_NOT_FOUND":   404,
	"PAYMENT_PLAN_NOT_FOUND": 404,
	"PAYMENT_FACT_NOT_FOUND": 404,

	"GROUP_NAME_EMPTY":                       422,
	"ITEM_MODE_INVALID":                      422,
	"QTY_PRICE_REQUIRES_QTY_AND_UNIT_PRICE":  422,
	"DATE_INVALID":                           422,
	"PARENT_ITEM_SELF_REF":                   422,
	"PARENT_ITEM_NOT_FOUND":                  422,
	"PARENT_ITEM_GROUP_MISMATCH":             422,
	"PARENT_ITEM_MUST_BE_TOP_LEVEL":          422,
	"ITEM_WITH_SUBITEMS_CANNOT_BE_SUBITEM":   422,
	"ITEM_WITH_SUBITEMS_CANNOT_CHANGE_GROUP": 422,
	"ADJUSTMENT_TYPE_INVALID":                422,
	"QTY_NEGATIVE":                           422,
	"UNIT_PRICE_NEGATIVE":                    422,
	"BASE_TOTAL_NEGATIVE":                    422,
	"EXTRA_PROFIT_NEGATIVE":                  422,
	"AMOUNT_NEGATIVE":                        422,
}

func fail(c *fiber.Ctx, err error) error {
	if code, ok := statusByError[err.Error()]; ok {
		return response.Error(c, err.Error(), code, nil)
	}
	return response.Error(c, "Internal Server Error", 500, nil)
}

func paramID(c *fiber.Ctx, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// List GET /api/projects
func (h *Handlers) List(c *fiber.Ctx) error {
	out, err := h.Service.List(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Projects retrieved", out, nil)
}

// Create POST /api/projects
func (h *Handlers) Create(c *fiber.Ctx) error {
	var body ProjectWrite
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if strings.TrimSpace(body.Title) == "" {
		return response.Error(c, "title is required", 400, nil)
	}
	out, err := h.Service.Create(c.Context(), body)
	if err != nil {
		return fail(c, err)
	}
	return response.SuccessCreated(c, "Project created", out, nil)
}

// Get GET /api/projects/:project_id
func (h *Handlers) Get(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	out, err := h.Service.Get(c.Context(), projectID)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Project retrieved", out, nil)
}

// Update PATCH /api/projects/:project_id
func (h *Handlers) Update(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	var body ProjectPatch
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	out, err := h.Service.Update(c.Context(), projectID, body)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Project updated", out, nil)
}

// Delete DELETE /api/projects/:project_id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	if err := h.Service.Delete(c.Context(), projectID); err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Project deleted", fiber.Map{"deleted": true}, nil)
}

// Computed GET /api/projects/:project_id/computed
// Fee scope comes from the client per request: fee_project_wide (default
// true) and fee_group_ids (CSV of group ids).
func (h *Handlers) Computed(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}

	scope := finance.DefaultFeeScope
	if raw := c.Query("fee_project_wide"); raw != "" {
		scope.ProjectWide = raw == "true" || raw == "1"
	}
	if raw := c.Query("fee_group_ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return response.Error(c, "Invalid fee_group_ids", 400, nil)
			}
			scope.GroupIDs = append(scope.GroupIDs, id)
		}
	}

	out, err := h.Finance.Computed(c.Context(), projectID, scope)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Project financials computed", out, nil)
}

// EstimateData GET /api/projects/:project_id/estimate/data
func (h *Handlers) EstimateData(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	out, err := h.Service.EstimateData(c.Context(), projectID)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Estimate data retrieved", out, nil)
}

// ListGroups GET /api/projects/:project_id/groups
func (h *Handlers) ListGroups(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	out, err := h.Service.ListGroups(c.Context(), projectID)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Groups retrieved", out, nil)
}

// CreateGroup POST /api/projects/:project_id/groups
func (h *Handlers) CreateGroup(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	var body GroupWrite
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	out, err := h.Service.CreateGroup(c.Context(), projectID, body)
	if err != nil {
		return fail(c, err)
	}
	return response.SuccessCreated(c, "Group created", out, nil)
}

// UpdateGroup PATCH /api/projects/:project_id/groups/:group_id
func (h *Handlers) UpdateGroup(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	groupID, ok := paramID(c, "group_id")
	if !ok {
		return response.Error(c, "Invalid group_id", 400, nil)
	}
	var body GroupPatch
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	out, err := h.Service.UpdateGroup(c.Context(), projectID, groupID, body)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Group updated", out, nil)
}

// DeleteGroup DELETE /api/projects/:project_id/groups/:group_id
func (h *Handlers) DeleteGroup(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	groupID, ok := paramID(c, "group_id")
	if !ok {
		return response.Error(c, "Invalid group_id", 400, nil)
	}
	if err := h.Service.DeleteGroup(c.Context(), projectID, groupID); err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Group deleted", fiber.Map{"deleted": true}, nil)
}

// ListItems GET /api/projects/:project_id/items
func (h *Handlers) ListItems(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	out, err := h.Service.ListItems(c.Context(), projectID)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Items retrieved", out, nil)
}

// CreateItem POST /api/projects/:project_id/items
func (h *Handlers) CreateItem(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	var body ItemWrite
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if strings.TrimSpace(body.Title) == "" {
		return response.Error(c, "title is required", 400, nil)
	}
	out, err := h.Service.CreateItem(c.Context(), projectID, body)
	if err != nil {
		return fail(c, err)
	}
	return response.SuccessCreated(c, "Item created", out, nil)
}

// UpdateItem PATCH /api/projects/:project_id/items/:item_id
func (h *Handlers) UpdateItem(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	itemID, ok := paramID(c, "item_id")
	if !ok {
		return response.Error(c, "Invalid item_id", 400, nil)
	}
	var body ItemWrite
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	out, err := h.Service.UpdateItem(c.Context(), projectID, itemID, body)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Item updated", out, nil)
}

// DeleteItem DELETE /api/projects/:project_id/items/:item_id
func (h *Handlers) DeleteItem(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	itemID, ok := paramID(c, "item_id")
	if !ok {
		return response.Error(c, "Invalid item_id", 400, nil)
	}
	if err := h.Service.DeleteItem(c.Context(), projectID, itemID); err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Item deleted", fiber.Map{"deleted": true}, nil)
}

// GetAdjustment GET /api/projects/:project_id/items/:item_id/adjustment
func (h *Handlers) GetAdjustment(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	itemID, ok := paramID(c, "item_id")
	if !ok {
		return response.Error(c, "Invalid item_id", 400, nil)
	}
	out, err := h.Service.GetAdjustment(c.Context(), projectID, itemID)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Adjustment retrieved", out, nil)
}

// UpsertAdjustment PUT /api/projects/:project_id/items/:item_id/adjustment
func (h *Handlers) UpsertAdjustment(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	itemID, ok := paramID(c, "item_id")
	if !ok {
		return response.Error(c, "Invalid item_id", 400, nil)
	}
	var body AdjustmentWrite
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	out, err := h.Service.UpsertAdjustment(c.Context(), projectID, itemID, body)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Adjustment saved", out, nil)
}

// DeleteAdjustment DELETE /api/projects/:project_id/items/:item_id/adjustment
func (h *Handlers) DeleteAdjustment(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	itemID, ok := paramID(c, "item_id")
	if !ok {
		return response.Error(c, "Invalid item_id", 400, nil)
	}
	if err := h.Service.DeleteAdjustment(c.Context(), projectID, itemID); err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Adjustment deleted", fiber.Map{"deleted": true}, nil)
}

// ListPlans GET /api/projects/:project_id/payments/plan
func (h *Handlers) ListPlans(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	out, err := h.Service.ListPlans(c.Context(), projectID)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Planned payments retrieved", out, nil)
}

// CreatePlan POST /api/projects/:project_id/payments/plan
func (h *Handlers) CreatePlan(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	var body PaymentWrite
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	out, err := h.Service.CreatePlan(c.Context(), projectID, body)
	if err != nil {
		return fail(c, err)
	}
	return response.SuccessCreated(c, "Payment recorded", out, nil)
}

// UpdatePlan PATCH /api/projects/:project_id/payments/plan/:pay_id
func (h *Handlers) UpdatePlan(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	payID, ok := paramID(c, "pay_id")
	if !ok {
		return response.Error(c, "Invalid pay_id", 400, nil)
	}
	var body PaymentPatch
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	out, err := h.Service.UpdatePlan(c.Context(), projectID, payID, body)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Payment updated", out, nil)
}

// DeletePlan DELETE /api/projects/:project_id/payments/plan/:pay_id
func (h *Handlers) DeletePlan(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	payID, ok := paramID(c, "pay_id")
	if !ok {
		return response.Error(c, "Invalid pay_id", 400, nil)
	}
	if err := h.Service.DeletePlan(c.Context(), projectID, payID); err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Payment deleted", fiber.Map{"deleted": true}, nil)
}

// ListFacts GET /api/projects/:project_id/payments/fact
func (h *Handlers) ListFacts(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	out, err := h.Service.ListFacts(c.Context(), projectID)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Received payments retrieved", out, nil)
}

// CreateFact POST /api/projects/:project_id/payments/fact
func (h *Handlers) CreateFact(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	var body PaymentWrite
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	out, err := h.Service.CreateFact(c.Context(), projectID, body)
	if err != nil {
		return fail(c, err)
	}
	return response.SuccessCreated(c, "Payment recorded", out, nil)
}

// UpdateFact PATCH /api/projects/:project_id/payments/fact/:fact_id
func (h *Handlers) UpdateFact(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	factID, err := strconv.ParseInt(c.Params("fact_id"), 10, 64)
	if err != nil {
		return response.Error(c, "Invalid fact_id", 400, nil)
	}
	var body PaymentPatch
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	out, err := h.Service.UpdateFact(c.Context(), projectID, factID, body)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Payment updated", out, nil)
}

// DeleteFact DELETE /api/projects/:project_id/payments/fact/:fact_id
func (h *Handlers) DeleteFact(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project_id", 400, nil)
	}
	factID, err := strconv.ParseInt(c.Params("fact_id"), 10, 64)
	if err != nil {
		return response.Error(c, "Invalid fact_id", 400, nil)
	}
	if err := h.Service.DeleteFact(c.Context(), projectID, factID); err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Payment deleted", fiber.Map{"deleted": true}, nil)
}
