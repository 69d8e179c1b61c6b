package settings

import (
	"cxema-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
}

// Get GET /api/settings
func (h *Handlers) Get(c *fiber.Ctx) error {
	row, err := h.Service.Get(c.Context())
	if err != nil {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Settings retrieved", row, nil)
}

// Update PATCH /api/settings
func (h *Handlers) Update(c *fiber.Ctx) error {
	var body Patch
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}

	row, err := h.Service.Update(c.Context(), body)
	if err != nil {
		statusMap := map[string]int{
			"USN_MODE_INVALID":         422,
			"BACKUP_FREQUENCY_INVALID": 422,
		}
		if code, ok := statusMap[err.Error()]; ok {
			return response.Error(c, err.Error(), code, nil)
		}
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Settings updated", row, nil)
}
