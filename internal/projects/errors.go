package projects

import "errors"

var (
	ErrProjectNotFound = errors.New("PROJECT_NOT_FOUND")
	ErrGroupNotFound   = errors.New("GROUP_NOT_FOUND")
	ErrItemNotFound    = errors.New("ITEM_NOT_FOUND")

	ErrGroupNameEmpty = errors.New("GROUP_NAME_EMPTY")

	ErrItemModeInvalid            = errors.New("ITEM_MODE_INVALID")
	ErrQtyPriceRequiresQtyAndUnit = errors.New("QTY_PRICE_REQUIRES_QTY_AND_UNIT_PRICE")
	ErrDateInvalid                = errors.New("DATE_INVALID")

	ErrQtyNegative         = errors.New("QTY_NEGATIVE")
	ErrUnitPriceNegative   = errors.New("UNIT_PRICE_NEGATIVE")
	ErrBaseTotalNegative   = errors.New("BASE_TOTAL_NEGATIVE")
	ErrExtraProfitNegative = errors.New("EXTRA_PROFIT_NEGATIVE")
	ErrAmountNegative      = errors.New("AMOUNT_NEGATIVE")

	ErrParentSelfRef        = errors.New("PARENT_ITEM_SELF_REF")
	ErrParentNotFound       = errors.New("PARENT_ITEM_NOT_FOUND")
	ErrParentGroupMismatch  = errors.New("PARENT_ITEM_GROUP_MISMATCH")
	ErrParentMustBeTopLevel = errors.New("PARENT_ITEM_MUST_BE_TOP_LEVEL")

	ErrItemWithSubitemsCannotBeSubitem   = errors.New("ITEM_WITH_SUBITEMS_CANNOT_BE_SUBITEM")
	ErrItemWithSubitemsCannotChangeGroup = errors.New("ITEM_WITH_SUBITEMS_CANNOT_CHANGE_GROUP")

	ErrAdjustmentNotFound    = errors.New("ADJUSTMENT_NOT_FOUND")
	ErrAdjustmentTypeInvalid = errors.New("ADJUSTMENT_TYPE_INVALID")

	ErrPaymentPlanNotFound = errors.New("PAYMENT_PLAN_NOT_FOUND")
	ErrPaymentFactNotFound = errors.New("PAYMENT_FACT_NOT_FOUND")
)
