package sheets

import (
	"strconv"

	"cxema-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
	OAuth   *OAuthService
}

// statusByError maps sentinel conditions to HTTP statuses.
var statusByError = map[string]int{
	"PROJECT_NOT_FOUND": 404,

	"GOOGLE_AUTH_REQUIRED": 401,

	"SHEET_NOT_PUBLISHED":            409,
	"PREVIEW_TOKEN_INVALID":          409,
	"GOOGLE_OAUTH_STATE_INVALID":     409,
	"GOOGLE_AUTH_REAL_MODE_REQUIRED": 409,

	"SHEET_FORMAT_INVALID": 422,

	"SHEETS_MODE_INVALID":         500,
	"GOOGLE_OAUTH_NOT_CONFIGURED": 500,

	"EXTERNAL_UNAVAILABLE": 503,
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

// Status GET /api/projects/:project_id/sheets/status
func (h *Handlers) Status(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project id", 400, nil)
	}
	out, err := h.Service.ProjectStatus(c.Context(), projectID)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Sheet status retrieved", out, nil)
}

// Publish POST /api/projects/:project_id/sheets/publish
func (h *Handlers) Publish(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project id", 400, nil)
	}
	out, err := h.Service.Publish(c.Context(), projectID)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Sheet published", out, nil)
}

// ImportPreview POST /api/projects/:project_id/sheets/import/preview
func (h *Handlers) ImportPreview(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project id", 400, nil)
	}
	out, err := h.Service.ImportPreview(c.Context(), projectID)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Import previewed", out, nil)
}

// ImportApply POST /api/projects/:project_id/sheets/import/apply
func (h *Handlers) ImportApply(c *fiber.Ctx) error {
	projectID, ok := paramID(c, "project_id")
	if !ok {
		return response.Error(c, "Invalid project id", 400, nil)
	}
	var body struct {
		PreviewToken string `json:"preview_token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if body.PreviewToken == "" {
		return response.Error(c, "preview_token is required", 400, nil)
	}
	out, err := h.Service.ImportApply(c.Context(), projectID, body.PreviewToken)
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Import applied", out, nil)
}

// AuthStatus GET /api/google/auth/status
func (h *Handlers) AuthStatus(c *fiber.Ctx) error {
	out, err := h.OAuth.Status(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Auth status retrieved", out, nil)
}

// AuthStart GET /api/google/auth/start
func (h *Handlers) AuthStart(c *fiber.Ctx) error {
	url, err := h.OAuth.Start(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Auth flow started", fiber.Map{"auth_url": url}, nil)
}

// AuthCallback GET /api/google/auth/callback
//
// Google redirects the browser here, so the reply is a small HTML page
// rather than the JSON envelope.
func (h *Handlers) AuthCallback(c *fiber.Ctx) error {
	state := c.Query("state")
	code := c.Query("code")
	if code == "" || state == "" {
		return authPage(c, 400, "Не хватает параметров авторизации. Закройте окно и попробуйте снова.")
	}
	if err := h.OAuth.Callback(c.Context(), state, code); err != nil {
		status := 500
		if mapped, ok := statusByError[err.Error()]; ok {
			status = mapped
		}
		return authPage(c, status, "Авторизация не удалась: "+err.Error())
	}
	return authPage(c, 200, "Google подключён. Это окно можно закрыть.")
}

func authPage(c *fiber.Ctx, status int, message string) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).SendString(
		"<!doctype html><html><body style=\"font-family:sans-serif;padding:2rem\"><p>" +
			message + "</p></body></html>")
}
