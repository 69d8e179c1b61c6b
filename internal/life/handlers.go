package life

import (
	"time"

	"cxema-backend/internal/finance"
	"cxema-backend/internal/pkg/parse"
	"cxema-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// defaultTargetAmount is the monthly spending target used when the query
// does not override it.
const defaultTargetAmount = 100000

type Handlers struct {
	Service *Service
}

var statusByError = map[string]int{
	"MONTH_INVALID":      422,
	"MONTH_OUT_OF_RANGE": 422,
}

func fail(c *fiber.Ctx, err error) error {
	if code, ok := statusByError[err.Error()]; ok {
		return response.Error(c, err.Error(), code, nil)
	}
	return response.Error(c, "Internal Server Error", 500, nil)
}

// Month GET /api/life/month?month=&target_amount=
//
// Without an explicit month the target defaults to the month after the
// current one, so the source month is the month now running.
func (h *Handlers) Month(c *fiber.Ctx) error {
	month := c.Query("month")
	if month == "" {
		month = finance.MonthNext(finance.MonthKey(time.Now().UTC()))
	}

	target := decimal.NewFromInt(defaultTargetAmount)
	if raw := c.Query("target_amount"); raw != "" {
		parsed, ok := parse.Number(raw)
		if !ok || parsed.Sign() < 0 {
			return response.Error(c, "TARGET_AMOUNT_INVALID", 422, nil)
		}
		target = parsed
	}

	out, err := h.Service.ForMonth(c.Context(), month, target)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Life allocation computed", out, nil)
}
