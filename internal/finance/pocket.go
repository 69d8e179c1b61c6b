package finance

import (
	"context"
	"sort"
	"time"

	"cxema-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// PocketMonth is the money that actually reached the pocket in one calendar
// month, split into its agency and extra-profit components.
type PocketMonth struct {
	Agency   decimal.Decimal
	Extra    decimal.Decimal
	InPocket decimal.Decimal
}

// PocketMonthly runs the project's cash waterfall up to asOf and returns
// per-month pocket inflows keyed by YYYY-MM. Payments fill the wallet;
// expenses are paid first, then agency claims (amount x fee rate), then
// extra-profit claims. Only months where agency or extra actually got paid
// appear in the result. This is the life engine's input.
func (s *Service) PocketMonthly(ctx context.Context, project *domain.Project, asOf time.Time) (map[string]PocketMonth, error) {
	eventsPay := map[time.Time]decimal.Decimal{}
	eventsExpense := map[time.Time]decimal.Decimal{}
	eventsAgency := map[time.Time]decimal.Decimal{}
	eventsExtra := map[time.Time]decimal.Decimal{}

	agencyRate := decimal.NewFromFloat(project.AgencyFeePercent).Div(hundred)

	addPayment := func(payDate time.Time, amount float64) {
		amt := decimal.NewFromFloat(amount)
		if amt.Sign() <= 0 {
			return
		}
		d := dateOnly(payDate)
		eventsPay[d] = eventsPay[d].Add(amt)
		eventsAgency[d] = eventsAgency[d].Add(amt.Mul(agencyRate))
	}

	var facts []domain.PaymentFact
	if err := s.DB.WithContext(ctx).
		Where("project_id = ? AND pay_date <= ?", project.ID, asOf).
		Find(&facts).Error; err != nil {
		return nil, err
	}
	for _, rec := range facts {
		addPayment(rec.PayDate, rec.Amount)
	}

	var plansDue []domain.PaymentPlan
	if err := s.DB.WithContext(ctx).
		Where("project_id = ? AND pay_date <= ?", project.ID, asOf).
		Find(&plansDue).Error; err != nil {
		return nil, err
	}
	for _, rec := range plansDue {
		addPayment(rec.PayDate, rec.Amount)
	}

	var items []domain.ExpenseItem
	if err := s.DB.WithContext(ctx).Where("project_id = ?", project.ID).Find(&items).Error; err != nil {
		return nil, err
	}
	projectCreated := dateOnly(project.CreatedAt)
	for _, row := range EffectiveRows(items) {
		due := projectCreated
		if row.PlannedPayDate != nil {
			due = dateOnly(*row.PlannedPayDate)
		}
		if due.After(asOf) {
			continue
		}
		if row.Base.Sign() > 0 {
			eventsExpense[due] = eventsExpense[due].Add(row.Base)
		}
		if row.Extra.Sign() > 0 {
			eventsExtra[due] = eventsExtra[due].Add(row.Extra)
		}
	}

	dateSet := map[time.Time]struct{}{}
	for d := range eventsPay {
		dateSet[d] = struct{}{}
	}
	for d := range eventsExpense {
		dateSet[d] = struct{}{}
	}
	for d := range eventsExtra {
		dateSet[d] = struct{}{}
	}
	if len(dateSet) == 0 {
		return map[string]PocketMonth{}, nil
	}
	allDates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		allDates = append(allDates, d)
	}
	sort.Slice(allDates, func(i, j int) bool { return allDates[i].Before(allDates[j]) })

	wallet := decimal.Zero
	pendingExpense := decimal.Zero
	pendingAgency := decimal.Zero
	pendingExtra := decimal.Zero
	out := map[string]PocketMonth{}

	for _, d := range allDates {
		wallet = wallet.Add(eventsPay[d])
		pendingExpense = pendingExpense.Add(eventsExpense[d])
		pendingAgency = pendingAgency.Add(eventsAgency[d])
		pendingExtra = pendingExtra.Add(eventsExtra[d])

		paidExpense := decimal.Min(wallet, pendingExpense)
		wallet = wallet.Sub(paidExpense)
		pendingExpense = pendingExpense.Sub(paidExpense)

		paidAgency := decimal.Min(wallet, pendingAgency)
		wallet = wallet.Sub(paidAgency)
		pendingAgency = pendingAgency.Sub(paidAgency)

		paidExtra := decimal.Min(wallet, pendingExtra)
		wallet = wallet.Sub(paidExtra)
		pendingExtra = pendingExtra.Sub(paidExtra)

		if paidAgency.Sign() > 0 || paidExtra.Sign() > 0 {
			key := MonthKey(d)
			month := out[key]
			month.Agency = month.Agency.Add(paidAgency)
			month.Extra = month.Extra.Add(paidExtra)
			month.InPocket = month.InPocket.Add(paidAgency).Add(paidExtra)
			out[key] = month
		}
	}
	return out, nil
}
