package sheets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"cxema-backend/internal/domain"
	"cxema-backend/internal/pkg/parse"
	"cxema-backend/internal/pkg/stableid"
	"cxema-backend/internal/tokens"

	"gorm.io/gorm"
)

// FieldChange is one old→new value pair in a diff.
type FieldChange struct {
	From interface{} `json:"from"`
	To   interface{} `json:"to"`
}

// ItemDiff lists the changed fields of one estimate item.
type ItemDiff struct {
	ItemID  string                 `json:"item_id"`
	Title   string                 `json:"title"`
	Changes map[string]FieldChange `json:"changes"`
}

// PaymentDiff lists the changed fields of one planned payment.
type PaymentDiff struct {
	PayID   string                 `json:"pay_id"`
	Changes map[string]FieldChange `json:"changes"`
}

// NewPayment is an external payment row with no stable id: it does not
// exist locally yet and will be created on apply.
type NewPayment struct {
	PayDate string  `json:"pay_date"`
	Amount  float64 `json:"amount"`
	Note    string  `json:"note"`
}

// Preview is the operator-facing diff. Row errors don't abort the preview;
// the rows they describe are simply excluded from the apply set.
type Preview struct {
	ItemsUpdated    []ItemDiff    `json:"items_updated"`
	PaymentsUpdated []PaymentDiff `json:"payments_updated"`
	PaymentsNew     []NewPayment  `json:"payments_new"`
	Errors          []string      `json:"errors"`
}

// PreviewResult is the preview plus its single-use apply token.
type PreviewResult struct {
	PreviewToken string `json:"preview_token"`
	Preview
}

// ApplyResult reports what an apply actually wrote.
type ApplyResult struct {
	AppliedItems           int        `json:"applied_items"`
	AppliedPaymentsUpdated int        `json:"applied_payments_updated"`
	AppliedPaymentsNew     int        `json:"applied_payments_new"`
	Errors                 []string   `json:"errors"`
	ImportedAt             *time.Time `json:"imported_at"`
}

// The apply set: concrete writes resolved at preview time, so apply mutates
// exactly the rows the operator saw.
type itemOp struct {
	ItemID            int64   `json:"item_id"`
	Qty               float64 `json:"qty"`
	UnitPriceFull     float64 `json:"unit_price_full"`
	UnitPriceBillable float64 `json:"unit_price_billable"`
	AdjustmentType    string  `json:"adjustment_type"`
	Reason            string  `json:"reason"`
}

type payUpdateOp struct {
	PlanID  int64   `json:"plan_id"`
	PayDate string  `json:"pay_date"`
	Amount  float64 `json:"amount"`
	Note    string  `json:"note"`
}

type payNewOp struct {
	PayDate string  `json:"pay_date"`
	Amount  float64 `json:"amount"`
	Note    string  `json:"note"`
}

type applyOps struct {
	Items           []itemOp      `json:"items"`
	PaymentsUpdated []payUpdateOp `json:"payments_updated"`
	PaymentsNew     []payNewOp    `json:"payments_new"`
}

// storedPreview is what the token store keeps between preview and apply:
// the token itself, a hash of the live DB state the diff was computed
// against (drift detection), and the resolved ops.
type storedPreview struct {
	Token     string   `json:"token"`
	StateHash string   `json:"state_hash"`
	Preview   Preview  `json:"preview"`
	Ops       applyOps `json:"ops"`
}

// ImportPreview reads the external rows, diffs them against the live
// database by stable id and issues a single-use token for the apply step.
func (s *Service) ImportPreview(ctx context.Context, projectID int64) (*PreviewResult, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}
	link, err := s.getLink(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if link == nil || link.SpreadsheetID == "" {
		return nil, ErrSheetNotPublished
	}

	snap, err := s.Gateway.ReadRows(ctx, link.SpreadsheetID, link.SheetTabName)
	if err != nil {
		return nil, err
	}

	preview, ops, err := s.computePreview(ctx, projectID, snap)
	if err != nil {
		return nil, err
	}
	stateHash, err := s.liveStateHash(ctx, projectID, ops)
	if err != nil {
		return nil, err
	}

	token := tokens.NewToken()
	stored := storedPreview{Token: token, StateHash: stateHash, Preview: *preview, Ops: *ops}
	if err := s.Tokens.PutPreview(ctx, projectID, stored); err != nil {
		return nil, err
	}
	return &PreviewResult{PreviewToken: token, Preview: *preview}, nil
}

// ImportApply consumes the preview token and applies exactly the previewed
// ops in one transaction. A stale, reused, cross-project or drifted token
// is rejected without touching any data.
func (s *Service) ImportApply(ctx context.Context, projectID int64, previewToken string) (*ApplyResult, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}

	var stored storedPreview
	err := s.Tokens.TakePreview(ctx, projectID, &stored)
	if errors.Is(err, tokens.ErrNotFound) {
		return nil, ErrPreviewTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	if stored.Token != previewToken {
		return nil, ErrPreviewTokenInvalid
	}
	liveHash, err := s.liveStateHash(ctx, projectID, &stored.Ops)
	if err != nil {
		return nil, err
	}
	if liveHash != stored.StateHash {
		return nil, ErrPreviewTokenInvalid
	}

	result := &ApplyResult{Errors: stored.Preview.Errors}
	var importedAt *time.Time

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range stored.Ops.Items {
			var item domain.ExpenseItem
			if err := tx.First(&item, op.ItemID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return err
			}
			if item.Mode == domain.ModeQtyPrice {
				qty := op.Qty
				item.Qty = &qty
				if item.UnitPriceBase != nil {
					unit := *item.UnitPriceBase
					if qty == 0 {
						item.BaseTotal = unit
					} else {
						item.BaseTotal = qty * unit
					}
				}
				if err := tx.Save(&item).Error; err != nil {
					return err
				}
			}

			var adj domain.BillingAdjustment
			err := tx.Where("expense_item_id = ?", item.ID).First(&adj).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				adj = domain.BillingAdjustment{ExpenseItemID: item.ID}
			} else if err != nil {
				return err
			}
			adj.UnitPriceFull = op.UnitPriceFull
			adj.UnitPriceBillable = op.UnitPriceBillable
			adj.AdjustmentType = domain.AdjustmentType(op.AdjustmentType)
			adj.Reason = op.Reason
			if err := tx.Save(&adj).Error; err != nil {
				return err
			}
			result.AppliedItems++
		}

		for _, op := range stored.Ops.PaymentsUpdated {
			var plan domain.PaymentPlan
			if err := tx.First(&plan, op.PlanID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return err
			}
			payDate, ok := parse.Date(op.PayDate)
			if !ok {
				continue
			}
			plan.PayDate = payDate
			plan.Amount = op.Amount
			plan.Note = op.Note
			if err := tx.Save(&plan).Error; err != nil {
				return err
			}
			result.AppliedPaymentsUpdated++
		}

		for _, op := range stored.Ops.PaymentsNew {
			payDate, ok := parse.Date(op.PayDate)
			if !ok {
				continue
			}
			plan := domain.PaymentPlan{
				StablePayID: stableid.NewPay(),
				ProjectID:   projectID,
				PayDate:     payDate,
				Amount:      op.Amount,
				Note:        op.Note,
			}
			if err := tx.Create(&plan).Error; err != nil {
				return err
			}
			result.AppliedPaymentsNew++
		}

		if result.AppliedItems+result.AppliedPaymentsUpdated+result.AppliedPaymentsNew > 0 {
			now := time.Now().UTC()
			importedAt = &now
			var link domain.SheetLink
			if err := tx.Where("project_id = ?", projectID).First(&link).Error; err != nil {
				return err
			}
			link.LastImportedAt = importedAt
			if err := tx.Save(&link).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.ImportedAt = importedAt
	return result, nil
}

// computePreview diffs an external snapshot against the live database.
func (s *Service) computePreview(ctx context.Context, projectID int64, snap *Snapshot) (*Preview, *applyOps, error) {
	var items []domain.ExpenseItem
	if err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).Find(&items).Error; err != nil {
		return nil, nil, err
	}
	itemsByStableID := make(map[string]*domain.ExpenseItem, len(items))
	for i := range items {
		itemsByStableID[items[i].StableItemID] = &items[i]
	}
	adjustments, err := s.adjustmentsByItem(ctx, items)
	if err != nil {
		return nil, nil, err
	}

	var plans []domain.PaymentPlan
	if err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).Find(&plans).Error; err != nil {
		return nil, nil, err
	}
	plansByStableID := make(map[string]*domain.PaymentPlan, len(plans))
	for i := range plans {
		plansByStableID[plans[i].StablePayID] = &plans[i]
	}

	preview := &Preview{
		ItemsUpdated:    []ItemDiff{},
		PaymentsUpdated: []PaymentDiff{},
		PaymentsNew:     []NewPayment{},
		Errors:          []string{},
	}
	ops := &applyOps{}

	for idx, row := range snap.EstimateRows {
		label := fmt.Sprintf("ESTIMATE_ROW_%d", idx+1)
		key := strings.TrimSpace(row.ItemID)
		if key == "" {
			continue
		}
		item, ok := itemsByStableID[key]
		if !ok {
			preview.Errors = append(preview.Errors, label+": ITEM_NOT_FOUND:"+key)
			continue
		}
		current := itemSheetValues(item, adjustments[item.ID])

		qty, ok := cellFloat(row.rawQty, row.Qty)
		if !ok {
			preview.Errors = append(preview.Errors, label+": qty_INVALID")
			continue
		}
		if qty < 0 {
			preview.Errors = append(preview.Errors, label+": qty_NEGATIVE")
			continue
		}
		unitBillable, ok := cellFloat(row.rawUnitPriceBillable, row.UnitPriceBillable)
		if !ok {
			preview.Errors = append(preview.Errors, label+": unit_price_billable_INVALID")
			continue
		}
		if unitBillable < 0 {
			preview.Errors = append(preview.Errors, label+": unit_price_billable_NEGATIVE")
			continue
		}

		adjTypeRaw := strings.ToUpper(strings.TrimSpace(row.AdjustmentType))
		adjType := adjTypeRaw
		if adjTypeRaw == "" {
			// No type given: fine when the billable price still equals the
			// full price, ambiguous otherwise.
			if !floatEq(unitBillable, current.UnitPriceFull) {
				preview.Errors = append(preview.Errors, label+": ADJUSTMENT_TYPE_REQUIRED")
				continue
			}
			adjType = string(domain.AdjustmentDiscount)
		} else if _, ok := domain.ParseAdjustmentType(adjTypeRaw); !ok {
			preview.Errors = append(preview.Errors, label+": ADJUSTMENT_TYPE_INVALID")
			continue
		}
		reason := row.Reason

		changes := map[string]FieldChange{}
		if item.Mode == domain.ModeQtyPrice {
			if !floatEq(current.Qty, qty) {
				changes["qty"] = FieldChange{From: round2(current.Qty), To: round2(qty)}
			}
		} else if !floatEq(qty, 1) {
			preview.Errors = append(preview.Errors, label+": QTY_FOR_SINGLE_TOTAL_MUST_BE_1")
			continue
		}
		if !floatEq(current.UnitPriceBillable, unitBillable) {
			changes["unit_price_billable"] = FieldChange{
				From: round2(current.UnitPriceBillable), To: round2(unitBillable),
			}
		}
		if current.AdjustmentType != adjType {
			changes["adjustment_type"] = FieldChange{From: current.AdjustmentType, To: adjType}
		}
		if current.Reason != reason {
			changes["reason"] = FieldChange{From: current.Reason, To: reason}
		}

		if len(changes) > 0 {
			preview.ItemsUpdated = append(preview.ItemsUpdated, ItemDiff{
				ItemID: item.StableItemID, Title: item.Title, Changes: changes,
			})
			ops.Items = append(ops.Items, itemOp{
				ItemID:            item.ID,
				Qty:               qty,
				UnitPriceFull:     current.UnitPriceFull,
				UnitPriceBillable: unitBillable,
				AdjustmentType:    adjType,
				Reason:            reason,
			})
		}
	}

	for idx, row := range snap.PaymentsPlan {
		label := fmt.Sprintf("PAYMENT_ROW_%d", idx+1)
		payID := strings.TrimSpace(row.PayID)
		dateRaw := strings.TrimSpace(row.Date)

		amount, ok := cellFloat(row.rawAmount, row.Amount)
		if !ok {
			preview.Errors = append(preview.Errors, label+": amount_INVALID")
			continue
		}
		if amount < 0 {
			preview.Errors = append(preview.Errors, label+": amount_NEGATIVE")
			continue
		}
		note := row.Note

		if payID == "" && dateRaw == "" && amount == 0 && note == "" {
			continue
		}
		payDate, ok := parse.Date(dateRaw)
		if !ok {
			preview.Errors = append(preview.Errors, label+": DATE_INVALID")
			continue
		}
		dateISO := payDate.Format("2006-01-02")

		if payID == "" {
			preview.PaymentsNew = append(preview.PaymentsNew, NewPayment{
				PayDate: dateISO, Amount: round2(amount), Note: note,
			})
			ops.PaymentsNew = append(ops.PaymentsNew, payNewOp{
				PayDate: dateISO, Amount: amount, Note: note,
			})
			continue
		}

		plan, ok := plansByStableID[payID]
		if !ok {
			preview.Errors = append(preview.Errors, label+": PAY_ID_NOT_FOUND:"+payID)
			continue
		}
		changes := map[string]FieldChange{}
		if !plan.PayDate.Equal(payDate) {
			changes["pay_date"] = FieldChange{
				From: plan.PayDate.Format("2006-01-02"), To: dateISO,
			}
		}
		if !floatEq(plan.Amount, amount) {
			changes["amount"] = FieldChange{From: round2(plan.Amount), To: round2(amount)}
		}
		if plan.Note != note {
			changes["note"] = FieldChange{From: plan.Note, To: note}
		}
		if len(changes) > 0 {
			preview.PaymentsUpdated = append(preview.PaymentsUpdated, PaymentDiff{
				PayID: payID, Changes: changes,
			})
			ops.PaymentsUpdated = append(ops.PaymentsUpdated, payUpdateOp{
				PlanID: plan.ID, PayDate: dateISO, Amount: amount, Note: note,
			})
		}
	}

	return preview, ops, nil
}

// liveStateHash fingerprints the current DB values of every row an apply
// would touch. Recomputed at apply time: a mismatch means the data changed
// after the preview, so the preview no longer describes reality.
func (s *Service) liveStateHash(ctx context.Context, projectID int64, ops *applyOps) (string, error) {
	type state struct {
		ProjectID int64         `json:"project_id"`
		Items     []sheetValues `json:"items"`
		Plans     []SheetPayRow `json:"plans"`
	}
	snap := state{ProjectID: projectID}

	for _, op := range ops.Items {
		var item domain.ExpenseItem
		err := s.DB.WithContext(ctx).First(&item, op.ItemID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			snap.Items = append(snap.Items, sheetValues{})
			continue
		}
		if err != nil {
			return "", err
		}
		var adj domain.BillingAdjustment
		adjPtr := &adj
		err = s.DB.WithContext(ctx).Where("expense_item_id = ?", item.ID).First(&adj).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			adjPtr = nil
		} else if err != nil {
			return "", err
		}
		snap.Items = append(snap.Items, itemSheetValues(&item, adjPtr))
	}
	for _, op := range ops.PaymentsUpdated {
		var plan domain.PaymentPlan
		err := s.DB.WithContext(ctx).First(&plan, op.PlanID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			snap.Plans = append(snap.Plans, SheetPayRow{})
			continue
		}
		if err != nil {
			return "", err
		}
		snap.Plans = append(snap.Plans, SheetPayRow{
			PayID:  plan.StablePayID,
			Date:   plan.PayDate.Format("2006-01-02"),
			Amount: plan.Amount,
			Note:   plan.Note,
		})
	}

	b, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// cellFloat resolves an editable numeric cell: raw grid text wins when
// present (parsed leniently, comma decimals and spaces allowed), otherwise
// the typed value from the JSON snapshot is used as-is.
func cellFloat(raw string, typed float64) (float64, bool) {
	if raw == "" {
		return typed, true
	}
	d, ok := parse.Number(raw)
	if !ok {
		return 0, false
	}
	return d.InexactFloat64(), true
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}
