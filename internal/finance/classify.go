package finance

import "time"

// PaymentKind says which table a payment belongs in relative to "today".
type PaymentKind string

const (
	KindPlan PaymentKind = "PLAN"
	KindFact PaymentKind = "FACT"
)

// ClassifyPayment routes a payment by date: strictly future dates are plans,
// today and the past are facts. Invoked on every payment write so edits that
// cross the boundary move the record between tables.
func ClassifyPayment(payDate, today time.Time) PaymentKind {
	p := dateOnly(payDate)
	if p.After(dateOnly(today)) {
		return KindPlan
	}
	return KindFact
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
