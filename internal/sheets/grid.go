package sheets

import (
	"fmt"
	"strings"
)

const (
	estimateMarker = "== ESTIMATE =="
	paymentsMarker = "== PAYMENTS_PLAN =="
	gridWidth      = 11
)

// buildGrid lays a snapshot out as spreadsheet cells: a header block, the
// estimate table under its marker, then the payments table under its own.
// Total columns carry formulas so sheet-side edits recalculate live.
func buildGrid(snap *Snapshot, publishedAt string) [][]interface{} {
	rows := [][]interface{}{
		{"PROJECT_TITLE:", snap.Meta.ProjectTitle},
		{"LAST_PUBLISHED_AT:", publishedAt},
		{"INSTRUCTIONS:", "Редактируйте только qty/price/adjustment/reason и блок платежей."},
		{},
		{estimateMarker},
		{"item_id", "group", "name", "qty", "unit_price_billable", "adjustment_type",
			"reason", "total_billable", "unit_price_full", "total_full", "delta"},
	}

	// Sheet row numbers are 1-based; the first data row sits right under
	// the column header.
	rowNum := len(rows) + 1
	for _, r := range snap.EstimateRows {
		rows = append(rows, []interface{}{
			r.ItemID, r.Group, r.Name, r.Qty, r.UnitPriceBillable, r.AdjustmentType, r.Reason,
			fmt.Sprintf("=IFERROR(D%d*E%d,0)", rowNum, rowNum),
			r.UnitPriceFull,
			fmt.Sprintf("=IFERROR(D%d*I%d,0)", rowNum, rowNum),
			fmt.Sprintf("=IFERROR(J%d-H%d,0)", rowNum, rowNum),
		})
		rowNum++
	}

	rows = append(rows, []interface{}{}, []interface{}{})
	rows = append(rows, []interface{}{paymentsMarker})
	rows = append(rows, []interface{}{"pay_id", "date", "amount", "note"})
	for _, p := range snap.PaymentsPlan {
		rows = append(rows, []interface{}{p.PayID, p.Date, p.Amount, p.Note})
	}
	return rows
}

// parseGrid reads raw cell values back into a snapshot. Numeric cells stay
// raw strings here; validation happens during import preview so a bad cell
// becomes a row error instead of aborting the read.
func parseGrid(values [][]interface{}) (*Snapshot, error) {
	grid := make([][]string, len(values))
	for i, row := range values {
		out := make([]string, gridWidth)
		for j := 0; j < gridWidth && j < len(row); j++ {
			out[j] = cellString(row[j])
		}
		grid[i] = out
	}

	estimateAt, paymentsAt := -1, -1
	for i, row := range grid {
		switch row[0] {
		case estimateMarker:
			estimateAt = i
		case paymentsMarker:
			paymentsAt = i
		}
	}
	if estimateAt < 0 || paymentsAt < 0 || paymentsAt <= estimateAt {
		return nil, ErrSheetFormatInvalid
	}

	snap := &Snapshot{Meta: SnapshotMeta{SheetTabName: defaultTabName}}
	for i := estimateAt + 2; i < paymentsAt; i++ {
		row := grid[i]
		if emptyRow(row[:gridWidth]) || row[0] == "" {
			continue
		}
		snap.EstimateRows = append(snap.EstimateRows, SheetRow{
			ItemID:         row[0],
			Group:          row[1],
			Name:           row[2],
			AdjustmentType: row[5],
			Reason:         row[6],
		})
		// Editable numeric cells travel as raw strings for later parsing.
		last := len(snap.EstimateRows) - 1
		snap.EstimateRows[last].rawQty = row[3]
		snap.EstimateRows[last].rawUnitPriceBillable = row[4]
	}
	for i := paymentsAt + 2; i < len(grid); i++ {
		row := grid[i]
		if emptyRow(row[:4]) {
			continue
		}
		pay := SheetPayRow{PayID: row[0], Date: row[1], Note: row[3]}
		pay.rawAmount = row[2]
		snap.PaymentsPlan = append(snap.PaymentsPlan, pay)
	}
	return snap, nil
}

func cellString(v interface{}) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

func emptyRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
