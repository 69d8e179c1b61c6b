package finance

import (
	"time"

	"cxema-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// EffectiveRow is a top-level expense line with its money fields resolved.
// Only top-level rows are accounting rows; sub-items never contribute to
// group totals on their own.
type EffectiveRow struct {
	Item           *domain.ExpenseItem
	Base           decimal.Decimal
	Extra          decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	PlannedPayDate *time.Time
}

// ItemBase resolves an item's base amount from its pricing mode. QTY_PRICE
// with qty=0 means "quantity not yet meaningful" and falls back to the unit
// price alone; missing qty/unit price falls back to the stored base_total.
func ItemBase(item *domain.ExpenseItem) decimal.Decimal {
	if item.Mode == domain.ModeQtyPrice && item.Qty != nil && item.UnitPriceBase != nil {
		qty := decimal.NewFromFloat(*item.Qty)
		unit := decimal.NewFromFloat(*item.UnitPriceBase)
		if qty.IsZero() {
			return unit
		}
		return qty.Mul(unit)
	}
	return decimal.NewFromFloat(item.BaseTotal)
}

// EffectiveRows collapses a project's items into top-level accounting rows.
// An item is top-level when it has no parent or its parent is absent from the
// working set. A parent with children is priced by them: its base is the sum
// of child bases and its extra profit the sum of enabled child extras, the
// parent's own amounts ignored. Discounts are a top-level-only concept. A
// parent without its own planned date inherits the latest child date.
func EffectiveRows(items []domain.ExpenseItem) []EffectiveRow {
	byID := make(map[int64]*domain.ExpenseItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	childrenByParent := make(map[int64][]*domain.ExpenseItem)
	var topLevel []*domain.ExpenseItem
	for i := range items {
		it := &items[i]
		if it.ParentItemID != nil {
			if _, ok := byID[*it.ParentItemID]; ok {
				childrenByParent[*it.ParentItemID] = append(childrenByParent[*it.ParentItemID], it)
				continue
			}
		}
		topLevel = append(topLevel, it)
	}

	rows := make([]EffectiveRow, 0, len(topLevel))
	for _, parent := range topLevel {
		children := childrenByParent[parent.ID]

		base := decimal.Zero
		extra := decimal.Zero
		if len(children) > 0 {
			for _, ch := range children {
				base = base.Add(ItemBase(ch))
				if ch.ExtraProfitEnabled {
					extra = extra.Add(decimal.NewFromFloat(ch.ExtraProfitAmount))
				}
			}
		} else {
			base = ItemBase(parent)
			if parent.ExtraProfitEnabled {
				extra = decimal.NewFromFloat(parent.ExtraProfitAmount)
			}
		}

		discount := decimal.Zero
		if parent.DiscountEnabled {
			discount = decimal.NewFromFloat(parent.DiscountAmount)
		}

		plannedDate := parent.PlannedPayDate
		if plannedDate == nil {
			for _, ch := range children {
				if ch.PlannedPayDate == nil {
					continue
				}
				if plannedDate == nil || ch.PlannedPayDate.After(*plannedDate) {
					plannedDate = ch.PlannedPayDate
				}
			}
		}

		rows = append(rows, EffectiveRow{
			Item:           parent,
			Base:           base,
			Extra:          extra,
			Discount:       discount,
			Total:          base.Add(extra).Sub(discount),
			PlannedPayDate: plannedDate,
		})
	}
	return rows
}

// GroupTotals sums top-level row totals per group.
func GroupTotals(rows []EffectiveRow) map[int64]decimal.Decimal {
	out := make(map[int64]decimal.Decimal)
	for _, row := range rows {
		gid := row.Item.GroupID
		out[gid] = out[gid].Add(row.Total)
	}
	return out
}

// ExpensesTotal sums top-level row totals across all groups.
func ExpensesTotal(rows []EffectiveRow) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Total)
	}
	return total
}
