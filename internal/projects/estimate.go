package projects

import (
	"context"
	"time"

	"cxema-backend/internal/domain"
	"cxema-backend/internal/finance"

	"github.com/shopspring/decimal"
)

// EstimateRow is one printable estimate line.
type EstimateRow struct {
	ID          int64    `json:"id"`
	Group       string   `json:"group"`
	Title       string   `json:"title"`
	ParentTitle string   `json:"parent_title"`
	IsSubitem   bool     `json:"is_subitem"`
	Date        *string  `json:"date"`
	Qty         *float64 `json:"qty"`
	UnitPrice   *float64 `json:"unit_price"`
	Base        float64  `json:"base"`
	Extra       float64  `json:"extra"`
	Discount    float64  `json:"discount"`
	RowTotal    float64  `json:"row_total"`
}

// EstimatePaymentRow is one planned incoming payment line.
type EstimatePaymentRow struct {
	ID      int64   `json:"id"`
	PayDate string  `json:"pay_date"`
	Amount  float64 `json:"amount"`
	Note    string  `json:"note"`
}

// EstimateTotals close the document.
type EstimateTotals struct {
	ExpensesTotal     float64 `json:"expenses_total"`
	PaymentsPlanTotal float64 `json:"payments_plan_total"`
	Balance           float64 `json:"balance"`
}

// EstimateProject is the document header.
type EstimateProject struct {
	ID                int64   `json:"id"`
	Title             string  `json:"title"`
	Organization      string  `json:"organization"`
	Email             string  `json:"email"`
	Phone             string  `json:"phone"`
	ProjectPriceTotal float64 `json:"project_price_total"`
	GeneratedAt       string  `json:"generated_at"`
}

// Estimate is the client-facing estimate document data.
type Estimate struct {
	Project      EstimateProject      `json:"project"`
	Expenses     []EstimateRow        `json:"expenses"`
	PaymentsPlan []EstimatePaymentRow `json:"payments_plan"`
	Totals       EstimateTotals       `json:"totals"`
}

// EstimateData builds the estimate view: every item flagged into the
// estimate (sub-items normally excluded by the write path), with per-row
// base/extra/discount and plan payments.
func (s *Service) EstimateData(ctx context.Context, projectID int64) (*Estimate, error) {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var groups []domain.ExpenseGroup
	if err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("sort_order ASC, id ASC").Find(&groups).Error; err != nil {
		return nil, err
	}
	var items []domain.ExpenseItem
	if err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("group_id ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	var plans []domain.PaymentPlan
	if err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("pay_date ASC, id ASC").Find(&plans).Error; err != nil {
		return nil, err
	}

	groupNames := make(map[int64]string, len(groups))
	for _, g := range groups {
		groupNames[g.ID] = g.Name
	}
	itemByID := make(map[int64]*domain.ExpenseItem, len(items))
	for i := range items {
		itemByID[items[i].ID] = &items[i]
	}

	rows := []EstimateRow{}
	expensesTotal := decimal.Zero
	for i := range items {
		it := &items[i]
		if !it.IncludeInEstimate {
			continue
		}
		base := finance.ItemBase(it)
		extra := decimal.Zero
		if it.ExtraProfitEnabled {
			extra = decimal.NewFromFloat(it.ExtraProfitAmount)
		}
		discount := decimal.Zero
		if it.DiscountEnabled {
			discount = decimal.NewFromFloat(it.DiscountAmount)
		}
		rowTotal := base.Add(extra).Sub(discount)
		expensesTotal = expensesTotal.Add(rowTotal)

		parentTitle := ""
		isSubitem := false
		if it.ParentItemID != nil {
			if parent, ok := itemByID[*it.ParentItemID]; ok {
				parentTitle = parent.Title
				isSubitem = true
			}
		}
		var date *string
		if it.PlannedPayDate != nil {
			d := it.PlannedPayDate.Format("2006-01-02")
			date = &d
		}

		rows = append(rows, EstimateRow{
			ID:          it.ID,
			Group:       groupNames[it.GroupID],
			Title:       it.Title,
			ParentTitle: parentTitle,
			IsSubitem:   isSubitem,
			Date:        date,
			Qty:         it.Qty,
			UnitPrice:   it.UnitPriceBase,
			Base:        round2(base),
			Extra:       round2(extra),
			Discount:    round2(discount),
			RowTotal:    round2(rowTotal),
		})
	}

	payRows := []EstimatePaymentRow{}
	paymentsTotal := decimal.Zero
	for _, pay := range plans {
		paymentsTotal = paymentsTotal.Add(decimal.NewFromFloat(pay.Amount))
		payRows = append(payRows, EstimatePaymentRow{
			ID:      pay.ID,
			PayDate: pay.PayDate.Format("2006-01-02"),
			Amount:  pay.Amount,
			Note:    pay.Note,
		})
	}

	org, email, phone := "", "", ""
	if p.ClientName != nil {
		org = *p.ClientName
	}
	if p.ClientEmail != nil {
		email = *p.ClientEmail
	}
	if p.ClientPhone != nil {
		phone = *p.ClientPhone
	}

	return &Estimate{
		Project: EstimateProject{
			ID:                p.ID,
			Title:             p.Title,
			Organization:      org,
			Email:             email,
			Phone:             phone,
			ProjectPriceTotal: p.ProjectPriceTotal,
			GeneratedAt:       time.Now().UTC().Format(time.RFC3339),
		},
		Expenses:     rows,
		PaymentsPlan: payRows,
		Totals: EstimateTotals{
			ExpensesTotal:     round2(expensesTotal),
			PaymentsPlanTotal: round2(paymentsTotal),
			Balance:           round2(paymentsTotal.Sub(expensesTotal)),
		},
	}, nil
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
