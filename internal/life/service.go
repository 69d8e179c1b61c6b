// Package life implements the monthly "life income" allocation: deciding how
// much of a monthly spending target is covered by the portfolio's pocket
// inflows, drawing first from the source month's own inflow and then from
// carried-forward reserve.
package life

import (
	"context"
	"sort"

	"cxema-backend/internal/domain"
	"cxema-backend/internal/finance"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	DB      *gorm.DB
	Finance *finance.Service
}

// SourceRow is one project's draw from one savings bucket. Kind "current"
// means the selected source month's own inflow, "reserve" an earlier month's
// carry-over.
type SourceRow struct {
	ProjectID      int64   `json:"project_id"`
	Title          string  `json:"title"`
	Organization   string  `json:"organization"`
	SourceMonth    string  `json:"source_month"`
	SourceKind     string  `json:"source_kind"`
	OpeningBalance float64 `json:"opening_balance"`
	InflowInMonth  float64 `json:"inflow_in_source_month"`
	UsedForLife    float64 `json:"used_for_life"`
	ClosingBalance float64 `json:"closing_balance"`
}

// Allocation is the result for one target month.
type Allocation struct {
	TargetMonth  string      `json:"target_month"`
	MonthStart   string      `json:"month_start"`
	MonthEnd     string      `json:"month_end"`
	TargetAmount float64     `json:"target_amount"`
	LifeCovered  float64     `json:"life_covered"`
	LifeGap      float64     `json:"life_gap"`
	ReserveUsed  float64     `json:"reserve_used"`
	SavingsTotal float64     `json:"savings_total"`
	Projects     []SourceRow `json:"projects"`
}

type bucketKey struct {
	month     string
	projectID int64
}

// ForMonth allocates the life target for targetMonth (YYYY-MM). The source
// month is the month immediately before the target; the walk replays the
// whole inflow timeline so reserves carried into the source month are known.
// Projects are consumed in ascending id order within each bucket, current
// source-month bucket before reserve buckets (newest reserve first), so
// identical inputs always produce identical splits.
func (s *Service) ForMonth(ctx context.Context, targetMonth string, targetAmount decimal.Decimal) (*Allocation, error) {
	targetStart, err := finance.ParseMonthKey(targetMonth)
	if err != nil {
		return nil, err
	}
	if targetAmount.Sign() < 0 {
		targetAmount = decimal.Zero
	}

	sourceMonth := finance.MonthPrev(targetMonth)
	sourceStart, err := finance.ParseMonthKey(sourceMonth)
	if err != nil {
		return nil, err
	}
	asOf := finance.MonthEnd(sourceStart)

	var projects []domain.Project
	if err := s.DB.WithContext(ctx).Order("id ASC").Find(&projects).Error; err != nil {
		return nil, err
	}
	projectByID := make(map[int64]*domain.Project, len(projects))

	// Pocket inflow per month per project, up to the source month horizon.
	inflow := map[string]map[int64]decimal.Decimal{}
	for i := range projects {
		p := &projects[i]
		projectByID[p.ID] = p
		monthly, err := s.Finance.PocketMonthly(ctx, p, asOf)
		if err != nil {
			return nil, err
		}
		for month, comp := range monthly {
			if comp.InPocket.Sign() <= 0 {
				continue
			}
			if inflow[month] == nil {
				inflow[month] = map[int64]decimal.Decimal{}
			}
			inflow[month][p.ID] = inflow[month][p.ID].Add(comp.InPocket)
		}
	}

	out := &Allocation{
		TargetMonth:  targetMonth,
		MonthStart:   targetStart.Format("2006-01-02"),
		MonthEnd:     finance.MonthEnd(targetStart).Format("2006-01-02"),
		TargetAmount: round2(targetAmount),
		LifeGap:      round2(targetAmount),
		Projects:     []SourceRow{},
	}
	if len(inflow) == 0 {
		return out, nil
	}

	months := make([]string, 0, len(inflow))
	for m := range inflow {
		months = append(months, m)
	}
	sort.Strings(months)

	// Contiguous timeline from the first inflow month to the source month.
	timeline := []string{months[0]}
	for timeline[len(timeline)-1] < sourceMonth {
		timeline = append(timeline, finance.MonthNext(timeline[len(timeline)-1]))
	}

	savings := map[bucketKey]decimal.Decimal{}
	usedForSelected := map[bucketKey]decimal.Decimal{}
	openingBefore := map[bucketKey]decimal.Decimal{}
	covered := decimal.Zero
	reserveUsed := decimal.Zero

	for _, month := range timeline {
		for pid, amount := range inflow[month] {
			if amount.Sign() > 0 {
				key := bucketKey{month: month, projectID: pid}
				savings[key] = savings[key].Add(amount)
			}
		}

		isSelected := finance.MonthNext(month) == targetMonth
		if isSelected {
			for key, value := range savings {
				openingBefore[key] = value
			}
		}

		need := targetAmount
		for _, bucketMonth := range consumeOrder(savings, month) {
			if need.Sign() <= 0 {
				break
			}
			for _, pid := range bucketProjects(savings, bucketMonth) {
				if need.Sign() <= 0 {
					break
				}
				key := bucketKey{month: bucketMonth, projectID: pid}
				available := savings[key]
				if available.Sign() <= 0 {
					continue
				}
				take := decimal.Min(available, need)
				savings[key] = available.Sub(take)
				if savings[key].Sign() <= 0 {
					delete(savings, key)
				}
				need = need.Sub(take)
				if isSelected {
					usedForSelected[key] = usedForSelected[key].Add(take)
				}
			}
		}

		if isSelected {
			covered = targetAmount.Sub(decimal.Max(need, decimal.Zero))
			for key, value := range usedForSelected {
				if key.month != sourceMonth {
					reserveUsed = reserveUsed.Add(value)
				}
			}
			break
		}
	}

	savingsTotal := decimal.Zero
	for _, value := range savings {
		savingsTotal = savingsTotal.Add(value)
	}

	out.Projects = s.breakdown(projectByID, inflow, openingBefore, usedForSelected, savings, sourceMonth)
	out.LifeCovered = round2(decimal.Max(covered, decimal.Zero))
	out.LifeGap = round2(decimal.Max(targetAmount.Sub(covered), decimal.Zero))
	out.ReserveUsed = round2(reserveUsed)
	out.SavingsTotal = round2(savingsTotal)
	return out, nil
}

// consumeOrder is the current source month first, then reserve buckets
// newest-first.
func consumeOrder(savings map[bucketKey]decimal.Decimal, current string) []string {
	seen := map[string]bool{current: true}
	var reserves []string
	for key := range savings {
		if key.month < current && !seen[key.month] {
			seen[key.month] = true
			reserves = append(reserves, key.month)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(reserves)))
	return append([]string{current}, reserves...)
}

// bucketProjects lists a month bucket's project ids in ascending order.
func bucketProjects(savings map[bucketKey]decimal.Decimal, month string) []int64 {
	var out []int64
	for key := range savings {
		if key.month == month {
			out = append(out, key.projectID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Service) breakdown(
	projectByID map[int64]*domain.Project,
	inflow map[string]map[int64]decimal.Decimal,
	openingBefore, used, closing map[bucketKey]decimal.Decimal,
	sourceMonth string,
) []SourceRow {
	keys := map[bucketKey]bool{}
	for pid := range inflow[sourceMonth] {
		keys[bucketKey{month: sourceMonth, projectID: pid}] = true
	}
	for key := range openingBefore {
		keys[key] = true
	}
	for key := range used {
		keys[key] = true
	}

	ordered := make([]bucketKey, 0, len(keys))
	for key := range keys {
		ordered = append(ordered, key)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		// Current-month rows first, then reserves nearest month first.
		aCurrent := a.month == sourceMonth
		bCurrent := b.month == sourceMonth
		if aCurrent != bCurrent {
			return aCurrent
		}
		if a.month != b.month {
			return a.month > b.month
		}
		return a.projectID < b.projectID
	})

	rows := []SourceRow{}
	for _, key := range ordered {
		p := projectByID[key.projectID]
		if p == nil {
			continue
		}
		opening := openingBefore[key]
		usedAmount := used[key]
		closingAmount := closing[key]
		inflowAmount := decimal.Zero
		if byProject, ok := inflow[key.month]; ok {
			inflowAmount = byProject[key.projectID]
		}
		if opening.Sign() <= 0 && usedAmount.Sign() <= 0 && closingAmount.Sign() <= 0 && inflowAmount.Sign() <= 0 {
			continue
		}
		kind := "reserve"
		if key.month == sourceMonth {
			kind = "current"
		}
		org := ""
		if p.ClientName != nil {
			org = *p.ClientName
		}
		rows = append(rows, SourceRow{
			ProjectID:      key.projectID,
			Title:          p.Title,
			Organization:   org,
			SourceMonth:    key.month,
			SourceKind:     kind,
			OpeningBalance: round2(opening),
			InflowInMonth:  round2(inflowAmount),
			UsedForLife:    round2(usedAmount),
			ClosingBalance: round2(closingAmount),
		})
	}
	return rows
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
