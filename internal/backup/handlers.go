package backup

import (
	"io"
	"path/filepath"

	"cxema-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
}

// statusByError maps sentinel conditions to HTTP statuses.
var statusByError = map[string]int{
	"BACKUP_COPY_NOT_FOUND": 404,

	"BACKUP_FILE_REQUIRED": 400,

	"BACKUP_COPY_INVALID":              422,
	"BACKUP_FILE_INVALID_ZIP":          422,
	"BACKUP_FILE_INVALID_JSON":         422,
	"BACKUP_FILE_INVALID_FORMAT":       422,
	"BACKUP_ZIP_DATA_JSON_NOT_FOUND":   422,
	"SCHEMA_VERSION_UNSUPPORTED":       422,
	"RESTORE_MODE_INVALID":             422,
	"PROJECT_IDS_REQUIRED_FOR_PARTIAL": 422,
	"PROJECT_IDS_INVALID":              422,
	"PROJECT_IDS_EMPTY":                422,
}

func fail(c *fiber.Ctx, err error) error {
	if code, ok := statusByError[err.Error()]; ok {
		return response.Error(c, err.Error(), code, nil)
	}
	return response.Error(c, "Internal Server Error", 500, nil)
}

// Export GET /api/backup/export — creates a backup and streams it back.
func (h *Handlers) Export(c *fiber.Ctx) error {
	target, content, err := h.Service.Export(c.Context())
	if err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filepath.Base(target)+`"`)
	return c.Send(content)
}

// Copies GET /api/backup/copies
func (h *Handlers) Copies(c *fiber.Ctx) error {
	copies, err := h.Service.ListCopies()
	if err != nil {
		return fail(c, err)
	}
	var latest interface{}
	if len(copies) > 0 {
		latest = copies[0]
	}
	return response.Success(c, "Backup copies retrieved", fiber.Map{
		"retention_months": RetentionMonths,
		"copies":           copies,
		"latest":           latest,
	}, nil)
}

// CopyProjects GET /api/backup/copies/:copy_name/projects
func (h *Handlers) CopyProjects(c *fiber.Ctx) error {
	name, projects, err := h.Service.CopyProjects(c.Params("copy_name"))
	if err != nil {
		return fail(c, err)
	}
	return response.Success(c, "Backup copy projects retrieved", fiber.Map{
		"copy_name": name,
		"projects":  projects,
	}, nil)
}

func restoreOptions(c *fiber.Ctx) RestoreOptions {
	mode := c.Query("mode", "full")
	return RestoreOptions{
		Mode:       mode,
		DryRun:     c.QueryBool("dry_run", false),
		ProjectIDs: c.Query("project_ids"),
	}
}

// Restore POST /api/backup/restore?copy_name=&mode=&dry_run=&project_ids=
func (h *Handlers) Restore(c *fiber.Ctx) error {
	copyName := c.Query("copy_name", "latest")
	summary, err := h.Service.RestoreFromCopy(c.Context(), copyName, restoreOptions(c))
	if err != nil {
		return fail(c, err)
	}
	msg := "Restore applied"
	if summary.DryRun {
		msg = "Restore previewed"
	}
	return response.Success(c, msg, summary, nil)
}

// Import POST /api/backup/import — restore from an uploaded archive.
func (h *Handlers) Import(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return fail(c, ErrFileRequired)
	}
	f, err := header.Open()
	if err != nil {
		return fail(c, ErrFileInvalidFormat)
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return fail(c, ErrFileInvalidFormat)
	}

	summary, err := h.Service.RestoreUpload(c.Context(), raw, restoreOptions(c))
	if err != nil {
		return fail(c, err)
	}
	msg := "Import applied"
	if summary.DryRun {
		msg = "Import previewed"
	}
	return response.Success(c, msg, summary, nil)
}
