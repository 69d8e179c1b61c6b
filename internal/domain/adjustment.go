package domain

// AdjustmentType classifies a billing correction.
type AdjustmentType string

const (
	AdjustmentDiscount       AdjustmentType = "DISCOUNT"
	AdjustmentCreditFromPrev AdjustmentType = "CREDIT_FROM_PREV"
	AdjustmentCarryToNext    AdjustmentType = "CARRY_TO_NEXT"
)

// ParseAdjustmentType validates a raw adjustment type string.
func ParseAdjustmentType(raw string) (AdjustmentType, bool) {
	switch AdjustmentType(raw) {
	case AdjustmentDiscount, AdjustmentCreditFromPrev, AdjustmentCarryToNext:
		return AdjustmentType(raw), true
	}
	return "", false
}

// BillingAdjustment reconciles what the client was actually billed against
// the item's sticker price. At most one per expense item; absence is a
// normal state, not an error.
type BillingAdjustment struct {
	ID            int64 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ExpenseItemID int64 `gorm:"column:expense_item_id;uniqueIndex;not null" json:"expense_item_id"`

	UnitPriceFull     float64        `gorm:"column:unit_price_full;type:decimal(18,2);not null;default:0" json:"unit_price_full"`
	UnitPriceBillable float64        `gorm:"column:unit_price_billable;type:decimal(18,2);not null;default:0" json:"unit_price_billable"`
	AdjustmentType    AdjustmentType `gorm:"column:adjustment_type;size:24;not null;default:DISCOUNT" json:"adjustment_type"`
	Reason            string         `gorm:"column:reason;size:512;not null;default:''" json:"reason"`
}

func (BillingAdjustment) TableName() string {
	return "client_billing_adjustments"
}
