// Package registry exports the whole bookkeeping state as one zip of CSV
// tables: an operations journal across all projects, a per-project summary
// and a per-organization rollup.
package registry

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"sort"
	"strconv"
	"strings"
	"time"

	"cxema-backend/internal/domain"
	"cxema-backend/internal/finance"

	"gorm.io/gorm"
)

const (
	archivePrefix = "cxema-registry-"
	stampLayout   = "20060102-150405"

	noOrganization = "—"
)

type Service struct {
	DB      *gorm.DB
	Finance *finance.Service
}

// opRow is one operations-journal line: an incoming payment (plan or fact)
// or an expense row, normalized to a common column set with its signed
// balance impact.
type opRow struct {
	date       string
	month      string
	project    string
	org        string
	category   string
	source     string
	group      string
	item       string
	parentItem string
	qty        string
	unitPrice  string
	base       string
	extra      string
	discount   string
	rowTotal   string
	impact     string
	inEstimate string
	note       string
}

func (r opRow) cells() []string {
	return []string{
		r.date, r.month, r.project, r.org, r.category, r.source, r.group,
		r.item, r.parentItem, r.qty, r.unitPrice, r.base, r.extra,
		r.discount, r.rowTotal, r.impact, r.inEstimate, r.note,
	}
}

// Export builds the registry archive. Returns the file name and zip bytes.
func (s *Service) Export(ctx context.Context, now time.Time) (string, []byte, error) {
	var projects []domain.Project
	if err := s.DB.WithContext(ctx).Order("id ASC").Find(&projects).Error; err != nil {
		return "", nil, err
	}
	projectByID := make(map[int64]*domain.Project, len(projects))
	for i := range projects {
		projectByID[projects[i].ID] = &projects[i]
	}

	opsCSV, err := s.operationsCSV(ctx, projectByID)
	if err != nil {
		return "", nil, err
	}
	projectsCSV, orgCSV, err := s.summaryCSVs(ctx, projects)
	if err != nil {
		return "", nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := []struct {
		name    string
		content []byte
	}{
		{"operations.csv", opsCSV},
		{"projects_summary.csv", projectsCSV},
		{"organizations_summary.csv", orgCSV},
	}
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			return "", nil, err
		}
		if _, err := w.Write(f.content); err != nil {
			return "", nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return "", nil, err
	}

	name := archivePrefix + now.UTC().Format(stampLayout) + ".zip"
	return name, buf.Bytes(), nil
}

func (s *Service) operationsCSV(ctx context.Context, projectByID map[int64]*domain.Project) ([]byte, error) {
	headers := []string{
		"Дата", "Период", "Проект", "Организация", "Категория", "Источник",
		"Группа", "Статья", "Родительская статья", "Шт", "Цена за ед",
		"База", "Доп прибыль", "Скидка", "Итог строки", "Влияние на баланс",
		"В смету", "Примечание",
	}

	var rows []opRow

	var facts []domain.PaymentFact
	if err := s.DB.WithContext(ctx).
		Order("project_id ASC, pay_date ASC, id ASC").Find(&facts).Error; err != nil {
		return nil, err
	}
	for _, rec := range facts {
		project := projectByID[rec.ProjectID]
		if project == nil {
			continue
		}
		rows = append(rows, paymentRow(project, "Оплата факт", rec.PayDate, rec.Amount, rec.Note))
	}

	var plans []domain.PaymentPlan
	if err := s.DB.WithContext(ctx).
		Order("project_id ASC, pay_date ASC, id ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	for _, rec := range plans {
		project := projectByID[rec.ProjectID]
		if project == nil {
			continue
		}
		rows = append(rows, paymentRow(project, "Оплата план", rec.PayDate, rec.Amount, rec.Note))
	}

	var groups []domain.ExpenseGroup
	if err := s.DB.WithContext(ctx).Find(&groups).Error; err != nil {
		return nil, err
	}
	groupNames := make(map[int64]string, len(groups))
	for _, g := range groups {
		groupNames[g.ID] = g.Name
	}

	var items []domain.ExpenseItem
	if err := s.DB.WithContext(ctx).
		Order("project_id ASC, group_id ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	itemTitles := make(map[int64]string, len(items))
	for _, it := range items {
		itemTitles[it.ID] = it.Title
	}

	for i := range items {
		item := &items[i]
		project := projectByID[item.ProjectID]
		if project == nil {
			continue
		}

		parentTitle := ""
		if item.ParentItemID != nil {
			parentTitle = itemTitles[*item.ParentItemID]
		}

		base := finance.ItemBase(item).InexactFloat64()
		extra := 0.0
		if item.ExtraProfitEnabled {
			extra = item.ExtraProfitAmount
		}
		discount := 0.0
		if item.DiscountEnabled {
			discount = item.DiscountAmount
		}
		rowTotal := base + extra - discount

		row := opRow{
			month:      monthText(item.PlannedPayDate),
			project:    project.Title,
			org:        orgName(project),
			category:   "Расход",
			source:     "Позиция",
			group:      groupNames[item.GroupID],
			item:       item.Title,
			parentItem: parentTitle,
			base:       money(base),
			rowTotal:   money(rowTotal),
			impact:     money(-rowTotal),
			inEstimate: boolText(item.IncludeInEstimate),
		}
		if item.PlannedPayDate != nil {
			row.date = item.PlannedPayDate.Format("2006-01-02")
		}
		if item.Qty != nil {
			row.qty = money(*item.Qty)
		}
		if item.UnitPriceBase != nil {
			row.unitPrice = money(*item.UnitPriceBase)
		}
		if extra != 0 {
			row.extra = money(extra)
		}
		if item.DiscountEnabled {
			row.discount = money(discount)
		}
		rows = append(rows, row)
	}

	// Undated rows sink to the end of the journal.
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if da, db := dateKey(a.date), dateKey(b.date); da != db {
			return da < db
		}
		if a.project != b.project {
			return a.project < b.project
		}
		if a.source != b.source {
			return a.source < b.source
		}
		return a.item < b.item
	})

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, r.cells())
	}
	return buildCSV(headers, cells), nil
}

func (s *Service) summaryCSVs(ctx context.Context, projects []domain.Project) ([]byte, []byte, error) {
	projectHeaders := []string{
		"Проект", "Организация", "Стоимость проекта", "Получено (факт+план)",
		"Потрачено (с УСН)", "Агентские", "Доп прибыль", "Скидка", "УСН",
		"В кармане", "Баланс", "Дата закрытия",
	}

	type orgAgg struct {
		projects int
		totals   [9]float64 // price, received, expenses, fee, extra, discount, usn, pocket, diff
	}
	byOrg := map[string]*orgAgg{}

	projectRows := make([][]string, 0, len(projects))
	for i := range projects {
		project := &projects[i]
		fin, err := s.Finance.Computed(ctx, project.ID, finance.DefaultFeeScope)
		if err != nil {
			return nil, nil, err
		}
		received, err := s.receivedTotal(ctx, project.ID)
		if err != nil {
			return nil, nil, err
		}

		closedAt := ""
		if project.ClosedAt != nil {
			closedAt = project.ClosedAt.Format("2006-01-02")
		}
		projectRows = append(projectRows, []string{
			project.Title,
			orgName(project),
			money(project.ProjectPriceTotal),
			money(received),
			money(fin.ExpensesTotal),
			money(fin.AgencyFee),
			money(fin.ExtraProfitTotal),
			money(fin.DiscountTotal),
			money(fin.UsnTax),
			money(fin.InPocket),
			money(fin.Diff),
			closedAt,
		})

		org := orgName(project)
		agg := byOrg[org]
		if agg == nil {
			agg = &orgAgg{}
			byOrg[org] = agg
		}
		agg.projects++
		for j, v := range []float64{
			project.ProjectPriceTotal, received, fin.ExpensesTotal,
			fin.AgencyFee, fin.ExtraProfitTotal, fin.DiscountTotal,
			fin.UsnTax, fin.InPocket, fin.Diff,
		} {
			agg.totals[j] += v
		}
	}

	orgHeaders := []string{
		"Организация", "Проектов", "Стоимость проектов", "Получено (факт+план)",
		"Потрачено (с УСН)", "Агентские", "Доп прибыль", "Скидка", "УСН",
		"В кармане", "Баланс",
	}
	orgNames := make([]string, 0, len(byOrg))
	for org := range byOrg {
		orgNames = append(orgNames, org)
	}
	sort.Slice(orgNames, func(i, j int) bool {
		return strings.ToLower(orgNames[i]) < strings.ToLower(orgNames[j])
	})
	orgRows := make([][]string, 0, len(orgNames))
	for _, org := range orgNames {
		agg := byOrg[org]
		row := []string{org, strconv.Itoa(agg.projects)}
		for _, v := range agg.totals {
			row = append(row, money(v))
		}
		orgRows = append(orgRows, row)
	}

	return buildCSV(projectHeaders, projectRows), buildCSV(orgHeaders, orgRows), nil
}

func (s *Service) receivedTotal(ctx context.Context, projectID int64) (float64, error) {
	var factSum, planSum float64
	if err := s.DB.WithContext(ctx).Model(&domain.PaymentFact{}).
		Where("project_id = ?", projectID).
		Select("COALESCE(SUM(amount), 0)").Scan(&factSum).Error; err != nil {
		return 0, err
	}
	if err := s.DB.WithContext(ctx).Model(&domain.PaymentPlan{}).
		Where("project_id = ?", projectID).
		Select("COALESCE(SUM(amount), 0)").Scan(&planSum).Error; err != nil {
		return 0, err
	}
	return factSum + planSum, nil
}

func paymentRow(project *domain.Project, source string, payDate time.Time, amount float64, note string) opRow {
	return opRow{
		date:     payDate.Format("2006-01-02"),
		month:    monthText(&payDate),
		project:  project.Title,
		org:      orgName(project),
		category: "Приход",
		source:   source,
		base:     money(amount),
		rowTotal: money(amount),
		impact:   money(amount),
		note:     note,
	}
}

func orgName(p *domain.Project) string {
	if p.ClientName != nil {
		if trimmed := strings.TrimSpace(*p.ClientName); trimmed != "" {
			return trimmed
		}
	}
	return noOrganization
}

func monthText(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01")
}

func boolText(v bool) string {
	if v {
		return "Да"
	}
	return "Нет"
}

func dateKey(date string) string {
	if date == "" {
		return "9999-99-99"
	}
	return date
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// buildCSV renders rows with a semicolon delimiter and a BOM so desktop
// spreadsheet apps pick the encoding up.
func buildCSV(headers []string, rows [][]string) []byte {
	var buf bytes.Buffer
	buf.WriteString("\ufeff")
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	_ = w.Write(headers)
	_ = w.WriteAll(rows)
	w.Flush()
	return buf.Bytes()
}
