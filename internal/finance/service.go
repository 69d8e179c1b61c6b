package finance

import (
	"context"
	"errors"
	"time"

	"cxema-backend/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

// Computed is the per-project financial view, evaluated against currently
// persisted item/payment state.
type Computed struct {
	ProjectID        int64   `json:"project_id"`
	ExpensesTotal    float64 `json:"expenses_total"`
	AgencyFee        float64 `json:"agency_fee"`
	ExtraProfitTotal float64 `json:"extra_profit_total"`
	DiscountTotal    float64 `json:"discount_total"`
	UsnTax           float64 `json:"usn_tax"`
	InPocket         float64 `json:"in_pocket"`
	Diff             float64 `json:"diff"`
}

// Computed assembles the per-project view: expenses, agency fee, extra
// profit, discount, USN tax, in-pocket and diff per the fee & tax model.
func (s *Service) Computed(ctx context.Context, projectID int64, scope FeeScope) (*Computed, error) {
	var project domain.Project
	if err := s.DB.WithContext(ctx).First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("PROJECT_NOT_FOUND")
		}
		return nil, err
	}

	var items []domain.ExpenseItem
	if err := s.DB.WithContext(ctx).Where("project_id = ?", projectID).Find(&items).Error; err != nil {
		return nil, err
	}

	rows := EffectiveRows(items)
	expenses := ExpensesTotal(rows)
	extra := decimal.Zero
	discount := decimal.Zero
	for _, row := range rows {
		extra = extra.Add(row.Extra)
		discount = discount.Add(row.Discount)
	}

	fee := TotalAgencyFee(&project, GroupTotals(rows), scope)

	settings, err := s.loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	received, err := s.receivedTotal(ctx, projectID)
	if err != nil {
		return nil, err
	}
	rate := decimal.NewFromFloat(settings.UsnRatePercent)
	tax := UsnTax(UsnBasis(settings.UsnMode, received, expenses, fee), rate)

	price := decimal.NewFromFloat(project.ProjectPriceTotal)
	inPocket := fee.Add(extra).Sub(discount)
	diff := price.Sub(expenses).Sub(fee).Sub(tax)

	return &Computed{
		ProjectID:        projectID,
		ExpensesTotal:    round2(expenses),
		AgencyFee:        round2(fee),
		ExtraProfitTotal: round2(extra),
		DiscountTotal:    round2(discount),
		UsnTax:           round2(tax),
		InPocket:         round2(inPocket),
		Diff:             round2(diff),
	}, nil
}

// loadSettings reads the singleton settings row, falling back to defaults
// when it has not been seeded yet.
func (s *Service) loadSettings(ctx context.Context) (*domain.AppSettings, error) {
	var row domain.AppSettings
	err := s.DB.WithContext(ctx).First(&row, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.AppSettings{
			ID:              1,
			UsnMode:         domain.UsnOperational,
			UsnRatePercent:  6,
			BackupFrequency: domain.BackupWeekly,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// receivedTotal is plan+fact combined, read as "received" for the LEGAL tax
// basis.
func (s *Service) receivedTotal(ctx context.Context, projectID int64) (decimal.Decimal, error) {
	var factSum, planSum float64
	if err := s.DB.WithContext(ctx).Model(&domain.PaymentFact{}).
		Where("project_id = ?", projectID).
		Select("COALESCE(SUM(amount), 0)").Scan(&factSum).Error; err != nil {
		return decimal.Zero, err
	}
	if err := s.DB.WithContext(ctx).Model(&domain.PaymentPlan{}).
		Where("project_id = ?", projectID).
		Select("COALESCE(SUM(amount), 0)").Scan(&planSum).Error; err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(factSum).Add(decimal.NewFromFloat(planSum)), nil
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// SnapshotProject is one active project's cumulative position as of a date.
type SnapshotProject struct {
	ProjectID       int64   `json:"project_id"`
	Title           string  `json:"title"`
	Organization    string  `json:"organization"`
	ReceivedToDate  float64 `json:"received_to_date"`
	SpentToDate     float64 `json:"spent_to_date"`
	BalanceToDate   float64 `json:"balance_to_date"`
	ExpectedTotal   float64 `json:"expected_total"`
	Remaining       float64 `json:"remaining"`
	AgencyFeeToDate float64 `json:"agency_fee_to_date"`
	ExtraToDate     float64 `json:"extra_profit_to_date"`
	InPocketToDate  float64 `json:"in_pocket_to_date"`
}

// SnapshotTotals aggregates the portfolio.
type SnapshotTotals struct {
	ActiveProjectsCount int     `json:"active_projects_count"`
	ReceivedTotal       float64 `json:"received_total"`
	SpentTotal          float64 `json:"spent_total"`
	BalanceTotal        float64 `json:"balance_total"`
	ExpectedTotal       float64 `json:"expected_total"`
	RemainingTotal      float64 `json:"remaining_total"`
	AgencyFeeToDate     float64 `json:"agency_fee_to_date"`
	ExtraToDate         float64 `json:"extra_profit_to_date"`
	InPocketToDate      float64 `json:"in_pocket_to_date"`
}

// MonthRange is the earliest..latest calendar month with any payment or item
// activity, for time-scrubber UIs.
type MonthRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Snapshot is the portfolio overview as of a date.
type Snapshot struct {
	At         string            `json:"at"`
	Totals     SnapshotTotals    `json:"totals"`
	Projects   []SnapshotProject `json:"projects"`
	MonthRange *MonthRange       `json:"month_range"`
}

// Snapshot builds the portfolio overview: every project active as of at,
// with cumulative numbers using only records dated on or before at. A project
// with zero items/payments yields all-zero fields, never an error.
func (s *Service) Snapshot(ctx context.Context, at time.Time) (*Snapshot, error) {
	var projects []domain.Project
	if err := s.DB.WithContext(ctx).Order("id ASC").Find(&projects).Error; err != nil {
		return nil, err
	}

	out := &Snapshot{At: at.Format("2006-01-02"), Projects: []SnapshotProject{}}
	totals := SnapshotTotals{}

	for i := range projects {
		p := &projects[i]
		if !p.ActiveAt(at) {
			continue
		}
		row, err := s.snapshotProject(ctx, p, at)
		if err != nil {
			return nil, err
		}
		out.Projects = append(out.Projects, *row)
		totals.ActiveProjectsCount++
		totals.ReceivedTotal += row.ReceivedToDate
		totals.SpentTotal += row.SpentToDate
		totals.BalanceTotal += row.BalanceToDate
		totals.ExpectedTotal += row.ExpectedTotal
		totals.RemainingTotal += row.Remaining
		totals.AgencyFeeToDate += row.AgencyFeeToDate
		totals.ExtraToDate += row.ExtraToDate
		totals.InPocketToDate += row.InPocketToDate
	}

	monthRange, err := s.monthRange(ctx)
	if err != nil {
		return nil, err
	}
	out.Totals = totals
	out.MonthRange = monthRange
	return out, nil
}

func (s *Service) snapshotProject(ctx context.Context, p *domain.Project, at time.Time) (*SnapshotProject, error) {
	var receivedF float64
	if err := s.DB.WithContext(ctx).Model(&domain.PaymentFact{}).
		Where("project_id = ? AND pay_date <= ?", p.ID, at).
		Select("COALESCE(SUM(amount), 0)").Scan(&receivedF).Error; err != nil {
		return nil, err
	}
	received := decimal.NewFromFloat(receivedF)

	var items []domain.ExpenseItem
	if err := s.DB.WithContext(ctx).Where("project_id = ?", p.ID).Find(&items).Error; err != nil {
		return nil, err
	}

	spent := decimal.Zero
	extra := decimal.Zero
	discount := decimal.Zero
	for _, row := range EffectiveRows(items) {
		due := row.PlannedPayDate
		if due != nil && due.After(at) {
			continue
		}
		spent = spent.Add(row.Base)
		extra = extra.Add(row.Extra)
		discount = discount.Add(row.Discount)
	}

	fee := AgencyFee(received, decimal.NewFromFloat(p.AgencyFeePercent))
	expected := decimal.NewFromFloat(p.ExpectedFromClientTotal)
	remaining := expected.Sub(received)
	if remaining.Sign() < 0 {
		remaining = decimal.Zero
	}

	org := ""
	if p.ClientName != nil {
		org = *p.ClientName
	}
	return &SnapshotProject{
		ProjectID:       p.ID,
		Title:           p.Title,
		Organization:    org,
		ReceivedToDate:  round2(received),
		SpentToDate:     round2(spent),
		BalanceToDate:   round2(received.Sub(spent)),
		ExpectedTotal:   round2(expected),
		Remaining:       round2(remaining),
		AgencyFeeToDate: round2(fee),
		ExtraToDate:     round2(extra),
		InPocketToDate:  round2(fee.Add(extra).Sub(discount)),
	}, nil
}

// monthRange scans payment and item dates for the earliest/latest month.
func (s *Service) monthRange(ctx context.Context) (*MonthRange, error) {
	var dates []time.Time

	appendDates := func(model any, column string) error {
		var out []time.Time
		if err := s.DB.WithContext(ctx).Model(model).
			Where(column+" IS NOT NULL").Pluck(column, &out).Error; err != nil {
			return err
		}
		dates = append(dates, out...)
		return nil
	}
	if err := appendDates(&domain.PaymentFact{}, "pay_date"); err != nil {
		return nil, err
	}
	if err := appendDates(&domain.PaymentPlan{}, "pay_date"); err != nil {
		return nil, err
	}
	if err := appendDates(&domain.ExpenseItem{}, "planned_pay_date"); err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, nil
	}

	min, max := dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(min) {
			min = d
		}
		if d.After(max) {
			max = d
		}
	}
	return &MonthRange{From: MonthKey(min), To: MonthKey(max)}, nil
}
