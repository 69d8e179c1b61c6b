// Package discounts builds the counterparty discount report: every signed
// discount given or received across all projects, cut off at a reporting
// date and rolled up per client organization.
package discounts

import (
	"context"
	"sort"
	"strings"
	"time"

	"cxema-backend/internal/domain"
	"cxema-backend/internal/finance"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// noOrganization stands in for projects without a client name so they still
// group into one rollup bucket.
const noOrganization = "—"

type Service struct {
	DB *gorm.DB
}

// Entry is one discounted expense row.
type Entry struct {
	ProjectID      int64   `json:"project_id"`
	ProjectTitle   string  `json:"project_title"`
	Organization   *string `json:"organization"`
	ItemID         int64   `json:"item_id"`
	ItemTitle      string  `json:"item_title"`
	ItemDate       *string `json:"item_date"`
	DiscountAmount float64 `json:"discount_amount"`
}

// Counterparty is the per-organization rollup.
type Counterparty struct {
	Organization  string  `json:"organization"`
	DiscountTotal float64 `json:"discount_total"`
}

// Summary is the full report as of a date.
type Summary struct {
	AsOf           string         `json:"as_of"`
	TotalDiscount  float64        `json:"total_discount"`
	Entries        []Entry        `json:"entries"`
	Counterparties []Counterparty `json:"counterparties"`
}

// Summary collects every effective row with a non-zero discount whose
// planned date falls on or before asOf. Undated rows always count.
// Discounts are signed: positive is given to the client, negative received
// from a vendor, so totals can offset each other.
func (s *Service) Summary(ctx context.Context, asOf time.Time) (*Summary, error) {
	var projects []domain.Project
	if err := s.DB.WithContext(ctx).Order("id ASC").Find(&projects).Error; err != nil {
		return nil, err
	}

	entries := []Entry{}
	byOrg := map[string]decimal.Decimal{}
	total := decimal.Zero

	for i := range projects {
		project := &projects[i]

		var items []domain.ExpenseItem
		if err := s.DB.WithContext(ctx).
			Where("project_id = ?", project.ID).Find(&items).Error; err != nil {
			return nil, err
		}

		for _, row := range finance.EffectiveRows(items) {
			if row.PlannedPayDate != nil && row.PlannedPayDate.After(asOf) {
				continue
			}
			if row.Discount.IsZero() {
				continue
			}

			org := noOrganization
			if project.ClientName != nil {
				if trimmed := strings.TrimSpace(*project.ClientName); trimmed != "" {
					org = trimmed
				}
			}
			byOrg[org] = byOrg[org].Add(row.Discount)
			total = total.Add(row.Discount)

			var itemDate *string
			if row.PlannedPayDate != nil {
				iso := row.PlannedPayDate.Format("2006-01-02")
				itemDate = &iso
			}
			entries = append(entries, Entry{
				ProjectID:      project.ID,
				ProjectTitle:   project.Title,
				Organization:   project.ClientName,
				ItemID:         row.Item.ID,
				ItemTitle:      row.Item.Title,
				ItemDate:       itemDate,
				DiscountAmount: round2(row.Discount),
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if oa, ob := entryOrg(a), entryOrg(b); oa != ob {
			return oa < ob
		}
		if a.ProjectTitle != b.ProjectTitle {
			return a.ProjectTitle < b.ProjectTitle
		}
		if da, db := entryDate(a), entryDate(b); da != db {
			return da < db
		}
		return a.ItemID < b.ItemID
	})

	counterparties := make([]Counterparty, 0, len(byOrg))
	for org, sum := range byOrg {
		counterparties = append(counterparties, Counterparty{
			Organization: org, DiscountTotal: round2(sum),
		})
	}
	sort.Slice(counterparties, func(i, j int) bool {
		return counterparties[i].Organization < counterparties[j].Organization
	})

	return &Summary{
		AsOf:           asOf.Format("2006-01-02"),
		TotalDiscount:  round2(total),
		Entries:        entries,
		Counterparties: counterparties,
	}, nil
}

func entryOrg(e Entry) string {
	if e.Organization == nil {
		return noOrganization
	}
	if trimmed := strings.TrimSpace(*e.Organization); trimmed != "" {
		return trimmed
	}
	return noOrganization
}

func entryDate(e Entry) string {
	if e.ItemDate == nil {
		return ""
	}
	return *e.ItemDate
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
