package sheets

import (
	"context"
	"errors"
	"time"

	"cxema-backend/internal/domain"
	"cxema-backend/internal/tokens"

	"gorm.io/gorm"
)

// Service is the spreadsheet sync engine: publish a project snapshot to the
// external sheet, then reconcile external edits back through a preview/apply
// two-phase protocol guarded by single-use tokens.
type Service struct {
	DB      *gorm.DB
	Tokens  *tokens.Store
	Gateway Gateway
	Mode    string // "mock" or "real"
}

// Status describes a project's sync state.
type Status struct {
	Mode            string     `json:"mode"`
	SpreadsheetID   *string    `json:"spreadsheet_id"`
	SheetTabName    *string    `json:"sheet_tab_name"`
	SheetURL        *string    `json:"sheet_url"`
	MockFilePath    *string    `json:"mock_file_path"`
	LastPublishedAt *time.Time `json:"last_published_at"`
	LastImportedAt  *time.Time `json:"last_imported_at"`
}

// PublishResult reports a completed publish.
type PublishResult struct {
	Status           string    `json:"status"`
	SpreadsheetID    string    `json:"spreadsheet_id"`
	SheetURL         string    `json:"sheet_url"`
	MockFilePath     *string   `json:"mock_file_path"`
	LastPublishedAt  time.Time `json:"last_published_at"`
	EstimateRows     int       `json:"estimate_rows"`
	PaymentsPlanRows int       `json:"payments_plan_rows"`
}

func (s *Service) getProject(ctx context.Context, projectID int64) (*domain.Project, error) {
	var p domain.Project
	err := s.DB.WithContext(ctx).First(&p, projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) getLink(ctx context.Context, projectID int64) (*domain.SheetLink, error) {
	var link domain.SheetLink
	err := s.DB.WithContext(ctx).Where("project_id = ?", projectID).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *Service) sheetURL(spreadsheetID string) string {
	if s.Mode == "real" {
		return "https://docs.google.com/spreadsheets/d/" + spreadsheetID
	}
	return "mock://" + spreadsheetID
}

func (s *Service) mockFilePath(spreadsheetID string) *string {
	if gw, ok := s.Gateway.(*MockGateway); ok {
		path := gw.File(spreadsheetID)
		return &path
	}
	return nil
}

// ProjectStatus reports the sync state of one project.
func (s *Service) ProjectStatus(ctx context.Context, projectID int64) (*Status, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}
	link, err := s.getLink(ctx, projectID)
	if err != nil {
		return nil, err
	}

	out := &Status{Mode: s.Mode}
	if link != nil {
		url := s.sheetURL(link.SpreadsheetID)
		out.SpreadsheetID = &link.SpreadsheetID
		out.SheetTabName = &link.SheetTabName
		out.SheetURL = &url
		out.MockFilePath = s.mockFilePath(link.SpreadsheetID)
		out.LastPublishedAt = link.LastPublishedAt
		out.LastImportedAt = link.LastImportedAt
	}
	return out, nil
}

// Publish writes the project's snapshot to the external sheet and records
// the link. Re-publishing overwrites the previous rows, keyed by stable ids.
func (s *Service) Publish(ctx context.Context, projectID int64) (*PublishResult, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	link, err := s.getLink(ctx, projectID)
	if err != nil {
		return nil, err
	}

	existingID := ""
	if link != nil {
		existingID = link.SpreadsheetID
	}
	spreadsheetID, err := s.Gateway.EnsureSpreadsheet(ctx, projectID, project.Title, existingID)
	if err != nil {
		return nil, err
	}

	snap, err := s.BuildSnapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	snap.Meta.LastPublishedAt = now.Format(time.RFC3339)

	if err := s.Gateway.WriteRows(ctx, spreadsheetID, defaultTabName, snap); err != nil {
		return nil, err
	}

	if link == nil {
		link = &domain.SheetLink{ProjectID: projectID}
	}
	link.SpreadsheetID = spreadsheetID
	link.SheetTabName = defaultTabName
	link.LastPublishedAt = &now
	if err := s.DB.WithContext(ctx).Save(link).Error; err != nil {
		return nil, err
	}

	return &PublishResult{
		Status:           "published",
		SpreadsheetID:    spreadsheetID,
		SheetURL:         s.sheetURL(spreadsheetID),
		MockFilePath:     s.mockFilePath(spreadsheetID),
		LastPublishedAt:  now,
		EstimateRows:     len(snap.EstimateRows),
		PaymentsPlanRows: len(snap.PaymentsPlan),
	}, nil
}
