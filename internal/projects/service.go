// Package projects owns the bookkeeping CRUD surface: projects, expense
// groups, expense items with one-level nesting, billing adjustments and
// client payments (plan/fact).
package projects

import (
	"context"
	"errors"
	"strings"
	"time"

	"cxema-backend/internal/domain"
	"cxema-backend/internal/pkg/parse"

	"gorm.io/gorm"
)

// defaultGroups are seeded into every new project.
var defaultGroups = []string{"Стройка", "Команда", "Дизайн"}

type Service struct {
	DB *gorm.DB
}

// ProjectWrite is the create payload.
type ProjectWrite struct {
	Title                    string   `json:"title"`
	ClientName               *string  `json:"client_name"`
	ClientEmail              *string  `json:"client_email"`
	ClientPhone              *string  `json:"client_phone"`
	GoogleDriveURL           *string  `json:"google_drive_url"`
	GoogleDriveFolder        *string  `json:"google_drive_folder"`
	ProjectPriceTotal        float64  `json:"project_price_total"`
	ExpectedFromClientTotal  float64  `json:"expected_from_client_total"`
	AgencyFeePercent         *float64 `json:"agency_fee_percent"`
	AgencyFeeIncludeEstimate *bool    `json:"agency_fee_include_in_estimate"`
	ClosedAt                 *string  `json:"closed_at"`
}

// ProjectPatch updates only the fields that are present.
type ProjectPatch struct {
	Title                    *string  `json:"title"`
	ClientName               *string  `json:"client_name"`
	ClientEmail              *string  `json:"client_email"`
	ClientPhone              *string  `json:"client_phone"`
	GoogleDriveURL           *string  `json:"google_drive_url"`
	GoogleDriveFolder        *string  `json:"google_drive_folder"`
	ProjectPriceTotal        *float64 `json:"project_price_total"`
	ExpectedFromClientTotal  *float64 `json:"expected_from_client_total"`
	AgencyFeePercent         *float64 `json:"agency_fee_percent"`
	AgencyFeeIncludeEstimate *bool    `json:"agency_fee_include_in_estimate"`
	ClosedAt                 *string  `json:"closed_at"`
}

func (s *Service) List(ctx context.Context) ([]domain.Project, error) {
	var out []domain.Project
	if err := s.DB.WithContext(ctx).Order("id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Create stores the project and seeds the default expense groups.
func (s *Service) Create(ctx context.Context, in ProjectWrite) (*domain.Project, error) {
	closedAt, err := parseOptionalDate(in.ClosedAt)
	if err != nil {
		return nil, err
	}

	p := domain.Project{
		Title:                    in.Title,
		ClientName:               in.ClientName,
		ClientEmail:              in.ClientEmail,
		ClientPhone:              in.ClientPhone,
		GoogleDriveURL:           in.GoogleDriveURL,
		GoogleDriveFolder:        in.GoogleDriveFolder,
		ProjectPriceTotal:        in.ProjectPriceTotal,
		ExpectedFromClientTotal:  in.ExpectedFromClientTotal,
		AgencyFeePercent:         10,
		AgencyFeeIncludeEstimate: true,
		ClosedAt:                 closedAt,
	}
	if in.AgencyFeePercent != nil {
		p.AgencyFeePercent = *in.AgencyFeePercent
	}
	if in.AgencyFeeIncludeEstimate != nil {
		p.AgencyFeeIncludeEstimate = *in.AgencyFeeIncludeEstimate
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		for idx, name := range defaultGroups {
			g := domain.ExpenseGroup{ProjectID: p.ID, Name: name, SortOrder: idx}
			if err := tx.Create(&g).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) Get(ctx context.Context, projectID int64) (*domain.Project, error) {
	var p domain.Project
	if err := s.DB.WithContext(ctx).First(&p, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Service) Update(ctx context.Context, projectID int64, in ProjectPatch) (*domain.Project, error) {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		p.Title = *in.Title
	}
	if in.ClientName != nil {
		p.ClientName = in.ClientName
	}
	if in.ClientEmail != nil {
		p.ClientEmail = in.ClientEmail
	}
	if in.ClientPhone != nil {
		p.ClientPhone = in.ClientPhone
	}
	if in.GoogleDriveURL != nil {
		p.GoogleDriveURL = in.GoogleDriveURL
	}
	if in.GoogleDriveFolder != nil {
		p.GoogleDriveFolder = in.GoogleDriveFolder
	}
	if in.ProjectPriceTotal != nil {
		p.ProjectPriceTotal = *in.ProjectPriceTotal
	}
	if in.ExpectedFromClientTotal != nil {
		p.ExpectedFromClientTotal = *in.ExpectedFromClientTotal
	}
	if in.AgencyFeePercent != nil {
		p.AgencyFeePercent = *in.AgencyFeePercent
	}
	if in.AgencyFeeIncludeEstimate != nil {
		p.AgencyFeeIncludeEstimate = *in.AgencyFeeIncludeEstimate
	}
	if in.ClosedAt != nil {
		closedAt, err := parseOptionalDate(in.ClosedAt)
		if err != nil {
			return nil, err
		}
		p.ClosedAt = closedAt
	}

	if err := s.DB.WithContext(ctx).Save(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the project and its whole subtree atomically.
func (s *Service) Delete(ctx context.Context, projectID int64) error {
	if _, err := s.Get(ctx, projectID); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var itemIDs []int64
		if err := tx.Model(&domain.ExpenseItem{}).
			Where("project_id = ?", projectID).Pluck("id", &itemIDs).Error; err != nil {
			return err
		}
		if len(itemIDs) > 0 {
			if err := tx.Where("expense_item_id IN ?", itemIDs).
				Delete(&domain.BillingAdjustment{}).Error; err != nil {
				return err
			}
		}
		for _, model := range []any{
			&domain.ExpenseItem{}, &domain.ExpenseGroup{},
			&domain.PaymentPlan{}, &domain.PaymentFact{}, &domain.SheetLink{},
		} {
			if err := tx.Where("project_id = ?", projectID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&domain.Project{}, projectID).Error
	})
}

// GroupWrite covers group create; GroupPatch partial updates.
type GroupWrite struct {
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

type GroupPatch struct {
	Name      *string `json:"name"`
	SortOrder *int    `json:"sort_order"`
}

func (s *Service) ListGroups(ctx context.Context, projectID int64) ([]domain.ExpenseGroup, error) {
	if _, err := s.Get(ctx, projectID); err != nil {
		return nil, err
	}
	var out []domain.ExpenseGroup
	if err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("sort_order ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) CreateGroup(ctx context.Context, projectID int64, in GroupWrite) (*domain.ExpenseGroup, error) {
	if _, err := s.Get(ctx, projectID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrGroupNameEmpty
	}
	g := domain.ExpenseGroup{ProjectID: projectID, Name: strings.TrimSpace(in.Name), SortOrder: in.SortOrder}
	if err := s.DB.WithContext(ctx).Create(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Service) getGroup(ctx context.Context, projectID, groupID int64) (*domain.ExpenseGroup, error) {
	var g domain.ExpenseGroup
	err := s.DB.WithContext(ctx).
		Where("id = ? AND project_id = ?", groupID, projectID).First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Service) UpdateGroup(ctx context.Context, projectID, groupID int64, in GroupPatch) (*domain.ExpenseGroup, error) {
	g, err := s.getGroup(ctx, projectID, groupID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrGroupNameEmpty
		}
		g.Name = name
	}
	if in.SortOrder != nil {
		g.SortOrder = *in.SortOrder
	}
	if err := s.DB.WithContext(ctx).Save(g).Error; err != nil {
		return nil, err
	}
	return g, nil
}

// DeleteGroup removes the group and cascades to its items and their
// adjustments in one transaction.
func (s *Service) DeleteGroup(ctx context.Context, projectID, groupID int64) error {
	if _, err := s.getGroup(ctx, projectID, groupID); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var itemIDs []int64
		if err := tx.Model(&domain.ExpenseItem{}).
			Where("group_id = ?", groupID).Pluck("id", &itemIDs).Error; err != nil {
			return err
		}
		if len(itemIDs) > 0 {
			if err := tx.Where("expense_item_id IN ?", itemIDs).
				Delete(&domain.BillingAdjustment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("group_id = ?", groupID).
				Delete(&domain.ExpenseItem{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&domain.ExpenseGroup{}, groupID).Error
	})
}

func parseOptionalDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	d, ok := parse.Date(*raw)
	if !ok {
		return nil, ErrDateInvalid
	}
	return &d, nil
}
