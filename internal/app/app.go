// Package app assembles the HTTP application: middleware chain, module
// services and the route table.
package app

import (
	"cxema-backend/internal/backup"
	"cxema-backend/internal/config"
	"cxema-backend/internal/discounts"
	"cxema-backend/internal/finance"
	"cxema-backend/internal/life"
	"cxema-backend/internal/middleware"
	"cxema-backend/internal/projects"
	"cxema-backend/internal/registry"
	"cxema-backend/internal/settings"
	"cxema-backend/internal/sheets"
	"cxema-backend/internal/tokens"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Deps are the external resources the app runs on. The caller owns their
// lifecycles.
type Deps struct {
	DB     *gorm.DB
	Tokens *tokens.Store
}

// CreateApp builds the Fiber app with all global middleware and route
// registration. It also returns the backup service so the caller can run
// the auto-backup scheduler on it.
func CreateApp(cfg *config.Config, deps Deps) (*fiber.App, *backup.Service, error) {
	fiberApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler,
	})

	fiberApp.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSOrigins}))
	fiberApp.Use(middleware.RequestID())
	fiberApp.Use(middleware.RouteLogger())

	fiberApp.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	db := deps.DB
	financeService := &finance.Service{DB: db}
	financeHandlers := &finance.Handlers{Service: financeService}

	projectsService := &projects.Service{DB: db}
	projectsHandlers := &projects.Handlers{Service: projectsService, Finance: financeService}

	lifeService := &life.Service{DB: db, Finance: financeService}
	lifeHandlers := &life.Handlers{Service: lifeService}

	settingsService := &settings.Service{DB: db}
	settingsHandlers := &settings.Handlers{Service: settingsService}

	backupService := &backup.Service{DB: db, Dir: cfg.BackupDir}
	backupHandlers := &backup.Handlers{Service: backupService}

	discountsService := &discounts.Service{DB: db}
	discountsHandlers := &discounts.Handlers{Service: discountsService}

	registryService := &registry.Service{DB: db, Finance: financeService}
	registryHandlers := &registry.Handlers{Service: registryService}

	sheetsMode, err := sheets.ParseMode(cfg.SheetsMode)
	if err != nil {
		return nil, nil, err
	}
	oauthConfig := sheets.NewOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleOAuthRedirect)
	var gateway sheets.Gateway
	if sheetsMode == "real" {
		gateway = sheets.NewGoogleGateway(db, oauthConfig)
	} else {
		gateway = sheets.NewMockGateway(cfg.SheetsMockDir)
	}
	sheetsService := &sheets.Service{
		DB:      db,
		Tokens:  deps.Tokens,
		Gateway: gateway,
		Mode:    sheetsMode,
	}
	oauthService := &sheets.OAuthService{
		DB:     db,
		Tokens: deps.Tokens,
		Config: oauthConfig,
		Mode:   sheetsMode,
	}
	sheetsHandlers := &sheets.Handlers{Service: sheetsService, OAuth: oauthService}

	api := fiberApp.Group("/api")

	api.Get("/projects", projectsHandlers.List)
	api.Post("/projects", projectsHandlers.Create)
	api.Get("/projects/:project_id", projectsHandlers.Get)
	api.Patch("/projects/:project_id", projectsHandlers.Update)
	api.Delete("/projects/:project_id", projectsHandlers.Delete)
	api.Get("/projects/:project_id/computed", projectsHandlers.Computed)
	api.Get("/projects/:project_id/estimate/data", projectsHandlers.EstimateData)

	api.Get("/projects/:project_id/groups", projectsHandlers.ListGroups)
	api.Post("/projects/:project_id/groups", projectsHandlers.CreateGroup)
	api.Patch("/projects/:project_id/groups/:group_id", projectsHandlers.UpdateGroup)
	api.Delete("/projects/:project_id/groups/:group_id", projectsHandlers.DeleteGroup)

	api.Get("/projects/:project_id/items", projectsHandlers.ListItems)
	api.Post("/projects/:project_id/items", projectsHandlers.CreateItem)
	api.Patch("/projects/:project_id/items/:item_id", projectsHandlers.UpdateItem)
	api.Delete("/projects/:project_id/items/:item_id", projectsHandlers.DeleteItem)

	api.Get("/projects/:project_id/items/:item_id/adjustment", projectsHandlers.GetAdjustment)
	api.Put("/projects/:project_id/items/:item_id/adjustment", projectsHandlers.UpsertAdjustment)
	api.Delete("/projects/:project_id/items/:item_id/adjustment", projectsHandlers.DeleteAdjustment)

	api.Get("/projects/:project_id/payments/plan", projectsHandlers.ListPlans)
	api.Post("/projects/:project_id/payments/plan", projectsHandlers.CreatePlan)
	api.Patch("/projects/:project_id/payments/plan/:pay_id", projectsHandlers.UpdatePlan)
	api.Delete("/projects/:project_id/payments/plan/:pay_id", projectsHandlers.DeletePlan)
	api.Get("/projects/:project_id/payments/fact", projectsHandlers.ListFacts)
	api.Post("/projects/:project_id/payments/fact", projectsHandlers.CreateFact)
	api.Patch("/projects/:project_id/payments/fact/:fact_id", projectsHandlers.UpdateFact)
	api.Delete("/projects/:project_id/payments/fact/:fact_id", projectsHandlers.DeleteFact)

	api.Get("/projects/:project_id/sheets/status", sheetsHandlers.Status)
	api.Post("/projects/:project_id/sheets/publish", sheetsHandlers.Publish)
	api.Post("/projects/:project_id/sheets/import/preview", sheetsHandlers.ImportPreview)
	api.Post("/projects/:project_id/sheets/import/apply", sheetsHandlers.ImportApply)

	api.Get("/overview/snapshot", financeHandlers.Snapshot)
	api.Get("/life/month", lifeHandlers.Month)

	api.Get("/settings", settingsHandlers.Get)
	api.Patch("/settings", settingsHandlers.Update)

	api.Get("/backup/export", backupHandlers.Export)
	api.Get("/backup/copies", backupHandlers.Copies)
	api.Get("/backup/copies/:copy_name/projects", backupHandlers.CopyProjects)
	api.Post("/backup/restore", backupHandlers.Restore)
	api.Post("/backup/import", backupHandlers.Import)

	api.Get("/discounts/summary", discountsHandlers.Summary)
	api.Get("/exports/registry", registryHandlers.Export)

	api.Get("/google/auth/status", sheetsHandlers.AuthStatus)
	api.Get("/google/auth/start", sheetsHandlers.AuthStart)
	api.Get("/google/auth/callback", sheetsHandlers.AuthCallback)

	return fiberApp, backupService, nil
}
