package registry

import (
	"time"

	"cxema-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
}

// Export GET /api/exports/registry
func (h *Handlers) Export(c *fiber.Ctx) error {
	name, content, err := h.Service.Export(c.Context(), time.Now())
	if err != nil {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Send(content)
}
