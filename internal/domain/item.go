package domain

import (
	"time"
)

// ItemMode selects how an expense item's base amount is derived.
type ItemMode string

const (
	ModeSingleTotal ItemMode = "SINGLE_TOTAL"
	ModeQtyPrice    ItemMode = "QTY_PRICE"
)

// ParseItemMode validates a raw mode string.
func ParseItemMode(raw string) (ItemMode, bool) {
	switch ItemMode(raw) {
	case ModeSingleTotal, ModeQtyPrice:
		return ItemMode(raw), true
	}
	return "", false
}

// ExpenseItem is one expense line. ParentItemID, when set, makes it a
// sub-item of a top-level row in the same group; nesting is one level deep.
// StableItemID survives backup round-trips and keys spreadsheet sync rows.
type ExpenseItem struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	StableItemID string `gorm:"column:stable_item_id;size:64;index;uniqueIndex:uq_item_stable,composite:project" json:"stable_item_id"`
	ProjectID    int64  `gorm:"column:project_id;index;not null;uniqueIndex:uq_item_stable,composite:project" json:"project_id"`
	GroupID      int64  `gorm:"column:group_id;index;not null" json:"group_id"`
	ParentItemID *int64 `gorm:"column:parent_item_id" json:"parent_item_id"`

	Title string   `gorm:"column:title;size:255;not null" json:"title"`
	Mode  ItemMode `gorm:"column:mode;size:16;not null;default:SINGLE_TOTAL" json:"mode"`

	Qty           *float64 `gorm:"column:qty" json:"qty"`
	UnitPriceBase *float64 `gorm:"column:unit_price_base" json:"unit_price_base"`
	BaseTotal     float64  `gorm:"column:base_total;type:decimal(18,2);not null;default:0" json:"base_total"`

	ExtraProfitEnabled bool    `gorm:"column:extra_profit_enabled;not null;default:false" json:"extra_profit_enabled"`
	ExtraProfitAmount  float64 `gorm:"column:extra_profit_amount;type:decimal(18,2);not null;default:0" json:"extra_profit_amount"`

	// DiscountAmount is signed: positive = discount given to the client,
	// negative = discount received from a vendor.
	DiscountEnabled bool    `gorm:"column:discount_enabled;not null;default:false" json:"discount_enabled"`
	DiscountAmount  float64 `gorm:"column:discount_amount;type:decimal(18,2);not null;default:0" json:"discount_amount"`

	IncludeInEstimate bool       `gorm:"column:include_in_estimate;not null;default:true" json:"include_in_estimate"`
	PlannedPayDate    *time.Time `gorm:"column:planned_pay_date;type:date" json:"planned_pay_date"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (ExpenseItem) TableName() string {
	return "expense_items"
}
