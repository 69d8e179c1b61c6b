package discounts

import (
	"time"

	"cxema-backend/internal/pkg/parse"
	"cxema-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
}

// Summary GET /api/discounts/summary?as_of=
func (h *Handlers) Summary(c *fiber.Ctx) error {
	asOf := time.Now().UTC()
	if raw := c.Query("as_of"); raw != "" {
		parsed, ok := parse.Date(raw)
		if !ok {
			return response.Error(c, "DATE_INVALID", 422, nil)
		}
		asOf = parsed
	}
	out, err := h.Service.Summary(c.Context(), asOf)
	if err != nil {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Discount summary retrieved", out, nil)
}
