package finance

import (
	"cxema-backend/internal/pkg/parse"
	"cxema-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
}

// Snapshot GET /api/overview/snapshot?at=
func (h *Handlers) Snapshot(c *fiber.Ctx) error {
	at, ok := parse.Date(c.Query("at"))
	if !ok {
		return response.Error(c, "DATE_INVALID", 422, nil)
	}
	out, err := h.Service.Snapshot(c.Context(), at)
	if err != nil {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Overview snapshot computed", out, nil)
}
