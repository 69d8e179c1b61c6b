package middleware

import (
	"cxema-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler turns errors that escape a handler into the standard error
// envelope instead of Fiber's plain-text default.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	return response.Error(c, message, code, nil)
}
