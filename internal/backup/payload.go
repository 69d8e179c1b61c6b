package backup

import (
	"time"

	"cxema-backend/internal/domain"
)

// SchemaVersion is the current archive payload version. Archives with a
// higher version are rejected on restore.
const SchemaVersion = 1

// Payload is the full-dataset snapshot serialized into data.json. Dates are
// ISO strings so archives stay readable and diffable outside the app.
type Payload struct {
	SchemaVersion int             `json:"schema_version"`
	ExportedAt    string          `json:"exported_at"`
	AppSettings   *SettingsRecord `json:"app_settings"`
	Projects      []ProjectRecord `json:"projects"`
	ExpenseGroups []GroupRecord   `json:"expense_groups"`
	ExpenseItems  []ItemRecord    `json:"expense_items"`
	Adjustments   []AdjustRecord  `json:"billing_adjustments"`
	PaymentsPlan  []PlanRecord    `json:"payments_plan"`
	PaymentsFact  []FactRecord    `json:"payments_fact"`
	SheetLinks    []LinkRecord    `json:"google_sheet_links"`
}

type SettingsRecord struct {
	ID              int64   `json:"id"`
	UsnMode         string  `json:"usn_mode"`
	UsnRatePercent  float64 `json:"usn_rate_percent"`
	BackupFrequency string  `json:"backup_frequency"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

type ProjectRecord struct {
	ID                       int64   `json:"id"`
	Title                    string  `json:"title"`
	ClientName               *string `json:"client_name"`
	ClientEmail              *string `json:"client_email"`
	ClientPhone              *string `json:"client_phone"`
	GoogleDriveURL           *string `json:"google_drive_url"`
	GoogleDriveFolder        *string `json:"google_drive_folder"`
	ProjectPriceTotal        float64 `json:"project_price_total"`
	ExpectedFromClientTotal  float64 `json:"expected_from_client_total"`
	AgencyFeePercent         float64 `json:"agency_fee_percent"`
	AgencyFeeIncludeEstimate bool    `json:"agency_fee_include_in_estimate"`
	CreatedAt                string  `json:"created_at"`
	UpdatedAt                string  `json:"updated_at"`
	ClosedAt                 *string `json:"closed_at"`
}

type GroupRecord struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

type ItemRecord struct {
	ID                 int64    `json:"id"`
	StableItemID       string   `json:"stable_item_id"`
	ProjectID          int64    `json:"project_id"`
	GroupID            int64    `json:"group_id"`
	ParentItemID       *int64   `json:"parent_item_id"`
	Title              string   `json:"title"`
	Mode               string   `json:"mode"`
	Qty                *float64 `json:"qty"`
	UnitPriceBase      *float64 `json:"unit_price_base"`
	BaseTotal          float64  `json:"base_total"`
	ExtraProfitEnabled bool     `json:"extra_profit_enabled"`
	ExtraProfitAmount  float64  `json:"extra_profit_amount"`
	DiscountEnabled    bool     `json:"discount_enabled"`
	DiscountAmount     float64  `json:"discount_amount"`
	IncludeInEstimate  bool     `json:"include_in_estimate"`
	PlannedPayDate     *string  `json:"planned_pay_date"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

type AdjustRecord struct {
	ID                int64   `json:"id"`
	ExpenseItemID     int64   `json:"expense_item_id"`
	UnitPriceFull     float64 `json:"unit_price_full"`
	UnitPriceBillable float64 `json:"unit_price_billable"`
	AdjustmentType    string  `json:"adjustment_type"`
	Reason            string  `json:"reason"`
}

type PlanRecord struct {
	ID          int64   `json:"id"`
	StablePayID string  `json:"stable_pay_id"`
	ProjectID   int64   `json:"project_id"`
	PayDate     string  `json:"pay_date"`
	Amount      float64 `json:"amount"`
	Note        string  `json:"note"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type FactRecord struct {
	ID        int64   `json:"id"`
	ProjectID int64   `json:"project_id"`
	PayDate   string  `json:"pay_date"`
	Amount    float64 `json:"amount"`
	Note      string  `json:"note"`
	CreatedAt string  `json:"created_at"`
}

type LinkRecord struct {
	ID              int64   `json:"id"`
	ProjectID       int64   `json:"project_id"`
	SpreadsheetID   string  `json:"spreadsheet_id"`
	SheetTabName    string  `json:"sheet_tab_name"`
	LastPublishedAt *string `json:"last_published_at"`
	LastImportedAt  *string `json:"last_imported_at"`
}

const dateLayout = "2006-01-02"

func isoDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func isoDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := isoDate(*t)
	return &s
}

func isoDateTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func isoDateTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := isoDateTime(*t)
	return &s
}

func parseDate(s string) time.Time {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Now().UTC().Truncate(24 * time.Hour)
	}
	return t
}

func parseDatePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.ParseInLocation(dateLayout, *s, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

func parseDateTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Now().UTC()
	}
	return t.UTC()
}

func parseDateTimePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// FilterByProjects keeps only the subtree reachable from the selected
// projects: their groups, items in those groups, adjustments of those items,
// payments and sheet links of those projects. AppSettings passes through
// untouched; whether it applies is a restore-mode decision.
func FilterByProjects(p *Payload, selected map[int64]bool) *Payload {
	out := *p

	out.Projects = nil
	for _, row := range p.Projects {
		if selected[row.ID] {
			out.Projects = append(out.Projects, row)
		}
	}

	groupIDs := map[int64]bool{}
	out.ExpenseGroups = nil
	for _, row := range p.ExpenseGroups {
		if selected[row.ProjectID] {
			out.ExpenseGroups = append(out.ExpenseGroups, row)
			groupIDs[row.ID] = true
		}
	}

	itemIDs := map[int64]bool{}
	out.ExpenseItems = nil
	for _, row := range p.ExpenseItems {
		if selected[row.ProjectID] && groupIDs[row.GroupID] {
			out.ExpenseItems = append(out.ExpenseItems, row)
			itemIDs[row.ID] = true
		}
	}

	out.Adjustments = nil
	for _, row := range p.Adjustments {
		if itemIDs[row.ExpenseItemID] {
			out.Adjustments = append(out.Adjustments, row)
		}
	}

	out.PaymentsPlan = nil
	for _, row := range p.PaymentsPlan {
		if selected[row.ProjectID] {
			out.PaymentsPlan = append(out.PaymentsPlan, row)
		}
	}
	out.PaymentsFact = nil
	for _, row := range p.PaymentsFact {
		if selected[row.ProjectID] {
			out.PaymentsFact = append(out.PaymentsFact, row)
		}
	}
	out.SheetLinks = nil
	for _, row := range p.SheetLinks {
		if selected[row.ProjectID] {
			out.SheetLinks = append(out.SheetLinks, row)
		}
	}
	return &out
}

func settingsRecord(row *domain.AppSettings) *SettingsRecord {
	if row == nil {
		return nil
	}
	return &SettingsRecord{
		ID:              row.ID,
		UsnMode:         string(row.UsnMode),
		UsnRatePercent:  row.UsnRatePercent,
		BackupFrequency: string(row.BackupFrequency),
		CreatedAt:       isoDateTime(row.CreatedAt),
		UpdatedAt:       isoDateTime(row.UpdatedAt),
	}
}

func projectRecord(p *domain.Project) ProjectRecord {
	return ProjectRecord{
		ID:                       p.ID,
		Title:                    p.Title,
		ClientName:               p.ClientName,
		ClientEmail:              p.ClientEmail,
		ClientPhone:              p.ClientPhone,
		GoogleDriveURL:           p.GoogleDriveURL,
		GoogleDriveFolder:        p.GoogleDriveFolder,
		ProjectPriceTotal:        p.ProjectPriceTotal,
		ExpectedFromClientTotal:  p.ExpectedFromClientTotal,
		AgencyFeePercent:         p.AgencyFeePercent,
		AgencyFeeIncludeEstimate: p.AgencyFeeIncludeEstimate,
		CreatedAt:                isoDateTime(p.CreatedAt),
		UpdatedAt:                isoDateTime(p.UpdatedAt),
		ClosedAt:                 isoDatePtr(p.ClosedAt),
	}
}

func (r ProjectRecord) model() domain.Project {
	return domain.Project{
		ID:                       r.ID,
		Title:                    r.Title,
		ClientName:               r.ClientName,
		ClientEmail:              r.ClientEmail,
		ClientPhone:              r.ClientPhone,
		GoogleDriveURL:           r.GoogleDriveURL,
		GoogleDriveFolder:        r.GoogleDriveFolder,
		ProjectPriceTotal:        r.ProjectPriceTotal,
		ExpectedFromClientTotal:  r.ExpectedFromClientTotal,
		AgencyFeePercent:         r.AgencyFeePercent,
		AgencyFeeIncludeEstimate: r.AgencyFeeIncludeEstimate,
		CreatedAt:                parseDateTime(r.CreatedAt),
		UpdatedAt:                parseDateTime(r.UpdatedAt),
		ClosedAt:                 parseDatePtr(r.ClosedAt),
	}
}

func groupRecord(g *domain.ExpenseGroup) GroupRecord {
	return GroupRecord{
		ID:        g.ID,
		ProjectID: g.ProjectID,
		Name:      g.Name,
		SortOrder: g.SortOrder,
	}
}

func (r GroupRecord) model() domain.ExpenseGroup {
	return domain.ExpenseGroup{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		Name:      r.Name,
		SortOrder: r.SortOrder,
	}
}

func itemRecord(it *domain.ExpenseItem) ItemRecord {
	return ItemRecord{
		ID:                 it.ID,
		StableItemID:       it.StableItemID,
		ProjectID:          it.ProjectID,
		GroupID:            it.GroupID,
		ParentItemID:       it.ParentItemID,
		Title:              it.Title,
		Mode:               string(it.Mode),
		Qty:                it.Qty,
		UnitPriceBase:      it.UnitPriceBase,
		BaseTotal:          it.BaseTotal,
		ExtraProfitEnabled: it.ExtraProfitEnabled,
		ExtraProfitAmount:  it.ExtraProfitAmount,
		DiscountEnabled:    it.DiscountEnabled,
		DiscountAmount:     it.DiscountAmount,
		IncludeInEstimate:  it.IncludeInEstimate,
		PlannedPayDate:     isoDatePtr(it.PlannedPayDate),
		CreatedAt:          isoDateTime(it.CreatedAt),
		UpdatedAt:          isoDateTime(it.UpdatedAt),
	}
}

func (r ItemRecord) model() domain.ExpenseItem {
	mode, ok := domain.ParseItemMode(r.Mode)
	if !ok {
		mode = domain.ModeSingleTotal
	}
	return domain.ExpenseItem{
		ID:                 r.ID,
		StableItemID:       r.StableItemID,
		ProjectID:          r.ProjectID,
		GroupID:            r.GroupID,
		ParentItemID:       r.ParentItemID,
		Title:              r.Title,
		Mode:               mode,
		Qty:                r.Qty,
		UnitPriceBase:      r.UnitPriceBase,
		BaseTotal:          r.BaseTotal,
		ExtraProfitEnabled: r.ExtraProfitEnabled,
		ExtraProfitAmount:  r.ExtraProfitAmount,
		DiscountEnabled:    r.DiscountEnabled,
		DiscountAmount:     r.DiscountAmount,
		IncludeInEstimate:  r.IncludeInEstimate,
		PlannedPayDate:     parseDatePtr(r.PlannedPayDate),
		CreatedAt:          parseDateTime(r.CreatedAt),
		UpdatedAt:          parseDateTime(r.UpdatedAt),
	}
}

func adjustRecord(a *domain.BillingAdjustment) AdjustRecord {
	return AdjustRecord{
		ID:                a.ID,
		ExpenseItemID:     a.ExpenseItemID,
		UnitPriceFull:     a.UnitPriceFull,
		UnitPriceBillable: a.UnitPriceBillable,
		AdjustmentType:    string(a.AdjustmentType),
		Reason:            a.Reason,
	}
}

func (r AdjustRecord) model() domain.BillingAdjustment {
	typ, ok := domain.ParseAdjustmentType(r.AdjustmentType)
	if !ok {
		typ = domain.AdjustmentDiscount
	}
	return domain.BillingAdjustment{
		ID:                r.ID,
		ExpenseItemID:     r.ExpenseItemID,
		UnitPriceFull:     r.UnitPriceFull,
		UnitPriceBillable: r.UnitPriceBillable,
		AdjustmentType:    typ,
		Reason:            r.Reason,
	}
}

func planRecord(p *domain.PaymentPlan) PlanRecord {
	return PlanRecord{
		ID:          p.ID,
		StablePayID: p.StablePayID,
		ProjectID:   p.ProjectID,
		PayDate:     isoDate(p.PayDate),
		Amount:      p.Amount,
		Note:        p.Note,
		CreatedAt:   isoDateTime(p.CreatedAt),
		UpdatedAt:   isoDateTime(p.UpdatedAt),
	}
}

func (r PlanRecord) model() domain.PaymentPlan {
	return domain.PaymentPlan{
		ID:          r.ID,
		StablePayID: r.StablePayID,
		ProjectID:   r.ProjectID,
		PayDate:     parseDate(r.PayDate),
		Amount:      r.Amount,
		Note:        r.Note,
		CreatedAt:   parseDateTime(r.CreatedAt),
		UpdatedAt:   parseDateTime(r.UpdatedAt),
	}
}

func factRecord(f *domain.PaymentFact) FactRecord {
	return FactRecord{
		ID:        f.ID,
		ProjectID: f.ProjectID,
		PayDate:   isoDate(f.PayDate),
		Amount:    f.Amount,
		Note:      f.Note,
		CreatedAt: isoDateTime(f.CreatedAt),
	}
}

func (r FactRecord) model() domain.PaymentFact {
	return domain.PaymentFact{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		PayDate:   parseDate(r.PayDate),
		Amount:    r.Amount,
		Note:      r.Note,
		CreatedAt: parseDateTime(r.CreatedAt),
	}
}

func linkRecord(l *domain.SheetLink) LinkRecord {
	return LinkRecord{
		ID:              l.ID,
		ProjectID:       l.ProjectID,
		SpreadsheetID:   l.SpreadsheetID,
		SheetTabName:    l.SheetTabName,
		LastPublishedAt: isoDateTimePtr(l.LastPublishedAt),
		LastImportedAt:  isoDateTimePtr(l.LastImportedAt),
	}
}

func (r LinkRecord) model() domain.SheetLink {
	tab := r.SheetTabName
	if tab == "" {
		tab = "PROJECT"
	}
	return domain.SheetLink{
		ID:              r.ID,
		ProjectID:       r.ProjectID,
		SpreadsheetID:   r.SpreadsheetID,
		SheetTabName:    tab,
		LastPublishedAt: parseDateTimePtr(r.LastPublishedAt),
		LastImportedAt:  parseDateTimePtr(r.LastImportedAt),
	}
}
