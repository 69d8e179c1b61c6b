package projects

import (
	"context"
	"errors"

	"cxema-backend/internal/domain"
	"cxema-backend/internal/pkg/stableid"

	"gorm.io/gorm"
)

// ItemWrite is the full replacement payload for item create and update.
// Omitted nullable fields (qty, unit_price_base, planned_pay_date, parent)
// clear to null; title, mode and the flags are always required on write.
type ItemWrite struct {
	GroupID      int64  `json:"group_id"`
	ParentItemID *int64 `json:"parent_item_id"`
	Title        string `json:"title"`
	Mode         string `json:"mode"`

	Qty           *float64 `json:"qty"`
	UnitPriceBase *float64 `json:"unit_price_base"`
	BaseTotal     float64  `json:"base_total"`

	ExtraProfitEnabled bool    `json:"extra_profit_enabled"`
	ExtraProfitAmount  float64 `json:"extra_profit_amount"`
	DiscountEnabled    bool    `json:"discount_enabled"`
	DiscountAmount     float64 `json:"discount_amount"`

	IncludeInEstimate bool    `json:"include_in_estimate"`
	PlannedPayDate    *string `json:"planned_pay_date"`
}

func (s *Service) ListItems(ctx context.Context, projectID int64) ([]domain.ExpenseItem, error) {
	if _, err := s.Get(ctx, projectID); err != nil {
		return nil, err
	}
	var out []domain.ExpenseItem
	if err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("group_id ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) getItem(ctx context.Context, projectID, itemID int64) (*domain.ExpenseItem, error) {
	var it domain.ExpenseItem
	err := s.DB.WithContext(ctx).
		Where("id = ? AND project_id = ?", itemID, projectID).First(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *Service) hasChildren(ctx context.Context, itemID int64) (bool, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&domain.ExpenseItem{}).
		Where("parent_item_id = ?", itemID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// validateParent enforces the one-level nesting rules. currentItemID is 0 on
// create.
func (s *Service) validateParent(ctx context.Context, projectID, groupID int64, parentItemID *int64, currentItemID int64) error {
	if parentItemID == nil {
		return nil
	}
	if currentItemID != 0 && *parentItemID == currentItemID {
		return ErrParentSelfRef
	}
	var parent domain.ExpenseItem
	err := s.DB.WithContext(ctx).
		Where("id = ? AND project_id = ?", *parentItemID, projectID).First(&parent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrParentNotFound
	}
	if err != nil {
		return err
	}
	if parent.GroupID != groupID {
		return ErrParentGroupMismatch
	}
	if parent.ParentItemID != nil {
		return ErrParentMustBeTopLevel
	}
	if currentItemID != 0 {
		children, err := s.hasChildren(ctx, currentItemID)
		if err != nil {
			return err
		}
		if children {
			return ErrItemWithSubitemsCannotBeSubitem
		}
	}
	return nil
}

// validateItemAmounts rejects negative money fields. Discount is exempt: a
// negative discount records a discount we received from a vendor.
func validateItemAmounts(in ItemWrite) error {
	if in.Qty != nil && *in.Qty < 0 {
		return ErrQtyNegative
	}
	if in.UnitPriceBase != nil && *in.UnitPriceBase < 0 {
		return ErrUnitPriceNegative
	}
	if in.BaseTotal < 0 {
		return ErrBaseTotalNegative
	}
	if in.ExtraProfitAmount < 0 {
		return ErrExtraProfitNegative
	}
	return nil
}

// refreshBase recomputes the derived base for QTY_PRICE items. qty=0 means
// "quantity not yet meaningful" and falls back to the unit price alone.
func refreshBase(it *domain.ExpenseItem) error {
	if it.Mode != domain.ModeQtyPrice {
		return nil
	}
	if it.Qty == nil || it.UnitPriceBase == nil {
		return ErrQtyPriceRequiresQtyAndUnit
	}
	if *it.Qty == 0 {
		it.BaseTotal = *it.UnitPriceBase
	} else {
		it.BaseTotal = *it.Qty * *it.UnitPriceBase
	}
	return nil
}

func (s *Service) CreateItem(ctx context.Context, projectID int64, in ItemWrite) (*domain.ExpenseItem, error) {
	if _, err := s.Get(ctx, projectID); err != nil {
		return nil, err
	}
	if _, err := s.getGroup(ctx, projectID, in.GroupID); err != nil {
		return nil, err
	}
	mode, ok := domain.ParseItemMode(in.Mode)
	if !ok {
		return nil, ErrItemModeInvalid
	}
	if err := validateItemAmounts(in); err != nil {
		return nil, err
	}
	if err := s.validateParent(ctx, projectID, in.GroupID, in.ParentItemID, 0); err != nil {
		return nil, err
	}
	plannedAt, err := parseOptionalDate(in.PlannedPayDate)
	if err != nil {
		return nil, err
	}

	it := domain.ExpenseItem{
		StableItemID:       stableid.NewItem(),
		ProjectID:          projectID,
		GroupID:            in.GroupID,
		ParentItemID:       in.ParentItemID,
		Title:              in.Title,
		Mode:               mode,
		Qty:                in.Qty,
		UnitPriceBase:      in.UnitPriceBase,
		BaseTotal:          in.BaseTotal,
		ExtraProfitEnabled: in.ExtraProfitEnabled,
		ExtraProfitAmount:  in.ExtraProfitAmount,
		DiscountEnabled:    in.DiscountEnabled,
		DiscountAmount:     in.DiscountAmount,
		IncludeInEstimate:  in.IncludeInEstimate,
		PlannedPayDate:     plannedAt,
	}
	// Sub-items stay out of the estimate regardless of the payload.
	if it.ParentItemID != nil {
		it.IncludeInEstimate = false
	}
	if err := refreshBase(&it); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Create(&it).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *Service) UpdateItem(ctx context.Context, projectID, itemID int64, in ItemWrite) (*domain.ExpenseItem, error) {
	it, err := s.getItem(ctx, projectID, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := s.getGroup(ctx, projectID, in.GroupID); err != nil {
		return nil, err
	}
	mode, ok := domain.ParseItemMode(in.Mode)
	if !ok {
		return nil, ErrItemModeInvalid
	}
	if err := validateItemAmounts(in); err != nil {
		return nil, err
	}

	children, err := s.hasChildren(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if children && in.GroupID != it.GroupID {
		return nil, ErrItemWithSubitemsCannotChangeGroup
	}
	if err := s.validateParent(ctx, projectID, in.GroupID, in.ParentItemID, itemID); err != nil {
		return nil, err
	}
	plannedAt, err := parseOptionalDate(in.PlannedPayDate)
	if err != nil {
		return nil, err
	}

	it.GroupID = in.GroupID
	it.ParentItemID = in.ParentItemID
	it.Title = in.Title
	it.Mode = mode
	it.Qty = in.Qty
	it.UnitPriceBase = in.UnitPriceBase
	it.BaseTotal = in.BaseTotal
	it.ExtraProfitEnabled = in.ExtraProfitEnabled
	it.ExtraProfitAmount = in.ExtraProfitAmount
	it.DiscountEnabled = in.DiscountEnabled
	it.DiscountAmount = in.DiscountAmount
	it.IncludeInEstimate = in.IncludeInEstimate
	it.PlannedPayDate = plannedAt
	if it.ParentItemID != nil {
		it.IncludeInEstimate = false
	}
	if err := refreshBase(it); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Save(it).Error; err != nil {
		return nil, err
	}
	return it, nil
}

// DeleteItem removes the item, its sub-items and their adjustments.
func (s *Service) DeleteItem(ctx context.Context, projectID, itemID int64) error {
	if _, err := s.getItem(ctx, projectID, itemID); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var childIDs []int64
		if err := tx.Model(&domain.ExpenseItem{}).
			Where("parent_item_id = ?", itemID).Pluck("id", &childIDs).Error; err != nil {
			return err
		}
		ids := append(childIDs, itemID)
		if err := tx.Where("expense_item_id IN ?", ids).
			Delete(&domain.BillingAdjustment{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&domain.ExpenseItem{}).Error
	})
}

// AdjustmentWrite is the PUT payload for a billing adjustment.
type AdjustmentWrite struct {
	UnitPriceFull     float64 `json:"unit_price_full"`
	UnitPriceBillable float64 `json:"unit_price_billable"`
	AdjustmentType    string  `json:"adjustment_type"`
	Reason            string  `json:"reason"`
}

func (s *Service) GetAdjustment(ctx context.Context, projectID, itemID int64) (*domain.BillingAdjustment, error) {
	if _, err := s.getItem(ctx, projectID, itemID); err != nil {
		return nil, err
	}
	var adj domain.BillingAdjustment
	err := s.DB.WithContext(ctx).
		Where("expense_item_id = ?", itemID).First(&adj).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAdjustmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &adj, nil
}

func (s *Service) UpsertAdjustment(ctx context.Context, projectID, itemID int64, in AdjustmentWrite) (*domain.BillingAdjustment, error) {
	if _, err := s.getItem(ctx, projectID, itemID); err != nil {
		return nil, err
	}
	adjType, ok := domain.ParseAdjustmentType(in.AdjustmentType)
	if !ok {
		return nil, ErrAdjustmentTypeInvalid
	}

	var adj domain.BillingAdjustment
	err := s.DB.WithContext(ctx).
		Where("expense_item_id = ?", itemID).First(&adj).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		adj = domain.BillingAdjustment{ExpenseItemID: itemID}
	} else if err != nil {
		return nil, err
	}

	adj.UnitPriceFull = in.UnitPriceFull
	adj.UnitPriceBillable = in.UnitPriceBillable
	adj.AdjustmentType = adjType
	adj.Reason = in.Reason
	if err := s.DB.WithContext(ctx).Save(&adj).Error; err != nil {
		return nil, err
	}
	return &adj, nil
}

func (s *Service) DeleteAdjustment(ctx context.Context, projectID, itemID int64) error {
	if _, err := s.getItem(ctx, projectID, itemID); err != nil {
		return err
	}
	res := s.DB.WithContext(ctx).
		Where("expense_item_id = ?", itemID).Delete(&domain.BillingAdjustment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAdjustmentNotFound
	}
	return nil
}
