package sheets

import (
	"context"
	"time"

	"cxema-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// Snapshot is the external representation of a project: one row per
// estimate item and per planned payment, each keyed by its stable id so a
// re-publish updates rows instead of duplicating them.
type Snapshot struct {
	Meta         SnapshotMeta  `json:"meta"`
	EstimateRows []SheetRow    `json:"estimate_rows"`
	PaymentsPlan []SheetPayRow `json:"payments_plan_rows"`
}

type SnapshotMeta struct {
	ProjectID       int64  `json:"project_id,omitempty"`
	ProjectTitle    string `json:"project_title,omitempty"`
	SheetTabName    string `json:"sheet_tab_name"`
	Mode            string `json:"mode,omitempty"`
	ExportedAt      string `json:"exported_at,omitempty"`
	LastPublishedAt string `json:"last_published_at,omitempty"`
	Instructions    string `json:"instructions,omitempty"`
}

// SheetRow mirrors one estimate line as the spreadsheet shows it. The
// editable fields are Qty, UnitPriceBillable, AdjustmentType and Reason;
// the rest is derived and republished read-only.
type SheetRow struct {
	ItemID            string  `json:"item_id"`
	Group             string  `json:"group"`
	Name              string  `json:"name"`
	Qty               float64 `json:"qty"`
	UnitPriceBillable float64 `json:"unit_price_billable"`
	AdjustmentType    string  `json:"adjustment_type"`
	Reason            string  `json:"reason"`
	TotalBillable     float64 `json:"total_billable"`
	UnitPriceFull     float64 `json:"unit_price_full"`
	TotalFull         float64 `json:"total_full"`
	Delta             float64 `json:"delta"`

	// Raw cell text, set only when the row came off a live spreadsheet
	// grid. Parsed (and validated) during import preview.
	rawQty               string
	rawUnitPriceBillable string
}

// SheetPayRow mirrors one planned payment. A row without a PayID is treated
// as a new payment on import.
type SheetPayRow struct {
	PayID  string  `json:"pay_id"`
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
	Note   string  `json:"note"`

	rawAmount string
}

// sheetValues is the spreadsheet-facing projection of one item plus its
// billing adjustment. For SINGLE_TOTAL items qty is pinned to 1 so the
// sheet's qty×price arithmetic still yields the right totals.
type sheetValues struct {
	Qty               float64
	UnitPriceFull     float64
	UnitPriceBillable float64
	AdjustmentType    string
	Reason            string
	TotalFull         float64
	TotalBillable     float64
	Delta             float64
}

func itemSheetValues(it *domain.ExpenseItem, adj *domain.BillingAdjustment) sheetValues {
	var qty, unitFull float64
	if it.Mode == domain.ModeQtyPrice {
		if it.Qty != nil {
			qty = *it.Qty
		}
		if adj != nil {
			unitFull = adj.UnitPriceFull
		} else if it.UnitPriceBase != nil {
			unitFull = *it.UnitPriceBase
		}
	} else {
		qty = 1
		if adj != nil {
			unitFull = adj.UnitPriceFull
		} else {
			unitFull = it.BaseTotal
		}
	}

	unitBillable := unitFull
	adjType := string(domain.AdjustmentDiscount)
	reason := ""
	if adj != nil {
		unitBillable = adj.UnitPriceBillable
		adjType = string(adj.AdjustmentType)
		reason = adj.Reason
	}

	totalFull := qty * unitFull
	totalBillable := qty * unitBillable
	return sheetValues{
		Qty:               qty,
		UnitPriceFull:     unitFull,
		UnitPriceBillable: unitBillable,
		AdjustmentType:    adjType,
		Reason:            reason,
		TotalFull:         totalFull,
		TotalBillable:     totalBillable,
		Delta:             totalFull - totalBillable,
	}
}

// BuildSnapshot assembles the publishable view of a project.
func (s *Service) BuildSnapshot(ctx context.Context, projectID int64) (*Snapshot, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var groups []domain.ExpenseGroup
	if err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("sort_order ASC, id ASC").Find(&groups).Error; err != nil {
		return nil, err
	}
	groupNames := make(map[int64]string, len(groups))
	for _, g := range groups {
		groupNames[g.ID] = g.Name
	}

	var items []domain.ExpenseItem
	if err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("group_id ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	adjustments, err := s.adjustmentsByItem(ctx, items)
	if err != nil {
		return nil, err
	}

	rows := []SheetRow{}
	for i := range items {
		it := &items[i]
		if !it.IncludeInEstimate {
			continue
		}
		vals := itemSheetValues(it, adjustments[it.ID])
		rows = append(rows, SheetRow{
			ItemID:            it.StableItemID,
			Group:             groupNames[it.GroupID],
			Name:              it.Title,
			Qty:               round2(vals.Qty),
			UnitPriceBillable: round2(vals.UnitPriceBillable),
			AdjustmentType:    vals.AdjustmentType,
			Reason:            vals.Reason,
			TotalBillable:     round2(vals.TotalBillable),
			UnitPriceFull:     round2(vals.UnitPriceFull),
			TotalFull:         round2(vals.TotalFull),
			Delta:             round2(vals.Delta),
		})
	}

	var plans []domain.PaymentPlan
	if err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("pay_date ASC, id ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	payRows := []SheetPayRow{}
	for _, p := range plans {
		payRows = append(payRows, SheetPayRow{
			PayID:  p.StablePayID,
			Date:   p.PayDate.Format("2006-01-02"),
			Amount: round2(p.Amount),
			Note:   p.Note,
		})
	}

	return &Snapshot{
		Meta: SnapshotMeta{
			ProjectID:    project.ID,
			ProjectTitle: project.Title,
			SheetTabName: defaultTabName,
			Mode:         s.Mode,
			ExportedAt:   time.Now().UTC().Format(time.RFC3339),
			Instructions: "editable: qty, unit_price_billable, adjustment_type, reason, payments date/amount/note",
		},
		EstimateRows: rows,
		PaymentsPlan: payRows,
	}, nil
}

func (s *Service) adjustmentsByItem(ctx context.Context, items []domain.ExpenseItem) (map[int64]*domain.BillingAdjustment, error) {
	out := map[int64]*domain.BillingAdjustment{}
	if len(items) == 0 {
		return out, nil
	}
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	var adjustments []domain.BillingAdjustment
	if err := s.DB.WithContext(ctx).
		Where("expense_item_id IN ?", ids).Find(&adjustments).Error; err != nil {
		return nil, err
	}
	for i := range adjustments {
		out[adjustments[i].ExpenseItemID] = &adjustments[i]
	}
	return out, nil
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
