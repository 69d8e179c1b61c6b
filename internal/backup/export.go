package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"cxema-backend/internal/domain"

	"gorm.io/gorm"
)

// Service exports and restores full-dataset archives stored under Dir.
type Service struct {
	DB  *gorm.DB
	Dir string
}

// RetentionMonths is how long on-disk copies are kept before pruning.
const RetentionMonths = 4

const archivePrefix = "cxema-backup-"
const stampLayout = "20060102-150405"

// BuildPayload snapshots every table into an archive payload, rows ordered
// by id so consecutive exports diff cleanly.
func (s *Service) BuildPayload(ctx context.Context) (*Payload, error) {
	out := &Payload{
		SchemaVersion: SchemaVersion,
		ExportedAt:    time.Now().UTC().Format(time.RFC3339),
	}

	var settings domain.AppSettings
	err := s.DB.WithContext(ctx).First(&settings, 1).Error
	if err == nil {
		out.AppSettings = settingsRecord(&settings)
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	var projects []domain.Project
	if err := s.DB.WithContext(ctx).Order("id ASC").Find(&projects).Error; err != nil {
		return nil, err
	}
	for i := range projects {
		out.Projects = append(out.Projects, projectRecord(&projects[i]))
	}

	var groups []domain.ExpenseGroup
	if err := s.DB.WithContext(ctx).Order("id ASC").Find(&groups).Error; err != nil {
		return nil, err
	}
	for i := range groups {
		out.ExpenseGroups = append(out.ExpenseGroups, groupRecord(&groups[i]))
	}

	var items []domain.ExpenseItem
	if err := s.DB.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	for i := range items {
		out.ExpenseItems = append(out.ExpenseItems, itemRecord(&items[i]))
	}

	var adjustments []domain.BillingAdjustment
	if err := s.DB.WithContext(ctx).Order("id ASC").Find(&adjustments).Error; err != nil {
		return nil, err
	}
	for i := range adjustments {
		out.Adjustments = append(out.Adjustments, adjustRecord(&adjustments[i]))
	}

	var plans []domain.PaymentPlan
	if err := s.DB.WithContext(ctx).Order("id ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	for i := range plans {
		out.PaymentsPlan = append(out.PaymentsPlan, planRecord(&plans[i]))
	}

	var facts []domain.PaymentFact
	if err := s.DB.WithContext(ctx).Order("id ASC").Find(&facts).Error; err != nil {
		return nil, err
	}
	for i := range facts {
		out.PaymentsFact = append(out.PaymentsFact, factRecord(&facts[i]))
	}

	var links []domain.SheetLink
	if err := s.DB.WithContext(ctx).Order("id ASC").Find(&links).Error; err != nil {
		return nil, err
	}
	for i := range links {
		out.SheetLinks = append(out.SheetLinks, linkRecord(&links[i]))
	}

	return out, nil
}

type manifestFile struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int    `json:"size"`
}

type manifest struct {
	Format        string         `json:"format"`
	SchemaVersion int            `json:"schema_version"`
	CreatedAt     string         `json:"created_at"`
	Files         []manifestFile `json:"files"`
	BackupName    string         `json:"backup_name"`
}

// BuildArchive packs a payload into the zip layout: data.json (the machine
// copy), manifest.json, and a readable CSV per table for opening outside
// the app.
func (s *Service) BuildArchive(p *Payload) (string, []byte, error) {
	stamp := time.Now().UTC().Format(stampLayout)
	name := archivePrefix + stamp + ".zip"

	dataBytes, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", nil, err
	}

	m := manifest{
		Format:        "cxema-backup-zip",
		SchemaVersion: p.SchemaVersion,
		CreatedAt:     p.ExportedAt,
		Files:         []manifestFile{{Name: "data.json", Type: "application/json", Size: len(dataBytes)}},
		BackupName:    name,
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := writeZipEntry(zw, "data.json", dataBytes); err != nil {
		return "", nil, err
	}
	for _, table := range readableTables(p) {
		content := buildCSV(table.headers, table.rows)
		m.Files = append(m.Files, manifestFile{Name: table.file, Type: "text/csv", Size: len(content)})
		if err := writeZipEntry(zw, table.file, content); err != nil {
			return "", nil, err
		}
	}
	manifestBytes, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", nil, err
	}
	if err := writeZipEntry(zw, "manifest.json", manifestBytes); err != nil {
		return "", nil, err
	}
	if err := zw.Close(); err != nil {
		return "", nil, err
	}
	return name, buf.Bytes(), nil
}

func writeZipEntry(zw *zip.Writer, name string, content []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(content)
	return err
}

// Export builds an archive, stores it under Dir, prunes expired copies and
// stamps last_backup_at. Returns the stored file path and content (the
// handler streams the content back as a download).
func (s *Service) Export(ctx context.Context) (string, []byte, error) {
	payload, err := s.BuildPayload(ctx)
	if err != nil {
		return "", nil, err
	}
	name, content, err := s.BuildArchive(payload)
	if err != nil {
		return "", nil, err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", nil, err
	}
	target := filepath.Join(s.Dir, name)
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return "", nil, err
	}
	if _, err := s.Prune(time.Now().UTC()); err != nil {
		return "", nil, err
	}
	now := time.Now().UTC()
	if err := s.DB.WithContext(ctx).Model(&domain.AppSettings{}).
		Where("id = ?", 1).Update("last_backup_at", now).Error; err != nil {
		return "", nil, err
	}
	return target, content, nil
}

type readableTable struct {
	file    string
	headers []string
	rows    [][]string
}

// Readable CSVs mirror data.json for a person with a spreadsheet, so the
// headers are in the operator's language.
func readableTables(p *Payload) []readableTable {
	settings := readableTable{
		file:    "readable_settings.csv",
		headers: []string{"УСН режим", "УСН ставка, %", "Частота бэкапа"},
	}
	if p.AppSettings != nil {
		settings.rows = append(settings.rows, []string{
			p.AppSettings.UsnMode,
			fmtFloat(p.AppSettings.UsnRatePercent),
			p.AppSettings.BackupFrequency,
		})
	}

	projects := readableTable{
		file: "readable_projects.csv",
		headers: []string{
			"ID", "Название", "Организация", "Email", "Телефон",
			"Стоимость проекта", "Ожидаем от клиента", "Агентские, %",
			"Дата закрытия", "Создан", "Обновлен",
		},
	}
	for _, row := range p.Projects {
		projects.rows = append(projects.rows, []string{
			fmtInt(row.ID), row.Title, strOrEmpty(row.ClientName),
			strOrEmpty(row.ClientEmail), strOrEmpty(row.ClientPhone),
			fmtFloat(row.ProjectPriceTotal), fmtFloat(row.ExpectedFromClientTotal),
			fmtFloat(row.AgencyFeePercent),
			strOrEmpty(row.ClosedAt), row.CreatedAt, row.UpdatedAt,
		})
	}

	groups := readableTable{
		file:    "readable_groups.csv",
		headers: []string{"ID", "ID проекта", "Название", "Порядок"},
	}
	for _, row := range p.ExpenseGroups {
		groups.rows = append(groups.rows, []string{
			fmtInt(row.ID), fmtInt(row.ProjectID), row.Name, strconv.Itoa(row.SortOrder),
		})
	}

	items := readableTable{
		file: "readable_items.csv",
		headers: []string{
			"ID", "ID проекта", "ID группы", "ID родителя", "Стабильный ID",
			"Статья", "Режим", "Дата оплаты", "Шт", "Цена за ед", "Сумма",
			"Доп прибыль вкл", "Доп прибыль", "Скидка вкл", "Скидка",
			"В смету", "Создан", "Обновлен",
		},
	}
	for _, row := range p.ExpenseItems {
		items.rows = append(items.rows, []string{
			fmtInt(row.ID), fmtInt(row.ProjectID), fmtInt(row.GroupID),
			intOrEmpty(row.ParentItemID), row.StableItemID,
			row.Title, row.Mode, strOrEmpty(row.PlannedPayDate),
			floatOrEmpty(row.Qty), floatOrEmpty(row.UnitPriceBase), fmtFloat(row.BaseTotal),
			fmtBool(row.ExtraProfitEnabled), fmtFloat(row.ExtraProfitAmount),
			fmtBool(row.DiscountEnabled), fmtFloat(row.DiscountAmount),
			fmtBool(row.IncludeInEstimate), row.CreatedAt, row.UpdatedAt,
		})
	}

	adjustments := readableTable{
		file: "readable_adjustments.csv",
		headers: []string{
			"ID", "ID расхода", "Тип", "Цена полная", "Цена клиенту", "Причина",
		},
	}
	for _, row := range p.Adjustments {
		adjustments.rows = append(adjustments.rows, []string{
			fmtInt(row.ID), fmtInt(row.ExpenseItemID), row.AdjustmentType,
			fmtFloat(row.UnitPriceFull), fmtFloat(row.UnitPriceBillable), row.Reason,
		})
	}

	plan := readableTable{
		file: "readable_payments_plan.csv",
		headers: []string{
			"ID", "ID проекта", "Стабильный ID", "Дата оплаты", "Сумма",
			"Примечание", "Создан", "Обновлен",
		},
	}
	for _, row := range p.PaymentsPlan {
		plan.rows = append(plan.rows, []string{
			fmtInt(row.ID), fmtInt(row.ProjectID), row.StablePayID,
			row.PayDate, fmtFloat(row.Amount), row.Note, row.CreatedAt, row.UpdatedAt,
		})
	}

	fact := readableTable{
		file: "readable_payments_fact.csv",
		headers: []string{
			"ID", "ID проекта", "Дата оплаты", "Сумма", "Примечание", "Создан",
		},
	}
	for _, row := range p.PaymentsFact {
		fact.rows = append(fact.rows, []string{
			fmtInt(row.ID), fmtInt(row.ProjectID),
			row.PayDate, fmtFloat(row.Amount), row.Note, row.CreatedAt,
		})
	}

	return []readableTable{settings, projects, groups, items, adjustments, plan, fact}
}

// buildCSV renders rows with a semicolon delimiter and a BOM so desktop
// spreadsheet apps detect UTF-8 and split columns out of the box.
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

func fmtInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fmtBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func strOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func intOrEmpty(v *int64) string {
	if v == nil {
		return ""
	}
	return fmtInt(*v)
}

func floatOrEmpty(v *float64) string {
	if v == nil {
		return ""
	}
	return fmtFloat(*v)
}
