package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"cxema-backend/internal/domain"

	"gorm.io/gorm"
)

// RestoreOptions control what a restore touches.
type RestoreOptions struct {
	Mode       string // "full" replaces AppSettings too, "partial" needs ProjectIDs
	DryRun     bool
	ProjectIDs string // CSV of project ids, partial mode only
}

// Counts summarizes how many rows a restore covers per table.
type Counts struct {
	Projects     int `json:"projects"`
	Groups       int `json:"groups"`
	Items        int `json:"items"`
	Adjustments  int `json:"adjustments"`
	PaymentsPlan int `json:"payments_plan"`
	PaymentsFact int `json:"payments_fact"`
	SheetLinks   int `json:"sheet_links"`
}

// RestoreSummary is returned by both the dry-run preview and the applied
// restore; the preview and the apply run the same selection, so the numbers
// a user confirmed are the numbers that land.
type RestoreSummary struct {
	CopyName      string   `json:"copy_name,omitempty"`
	Mode          string   `json:"mode"`
	DryRun        bool     `json:"dry_run"`
	Counts        Counts   `json:"counts"`
	ProjectTitles []string `json:"project_titles"`
	SchemaVersion int      `json:"schema_version"`
	Imported      bool     `json:"imported,omitempty"`
}

// ParsePayload decodes raw archive bytes: a zip is unwrapped to its
// data.json (any *.json as fallback), then the JSON document is decoded.
func ParsePayload(raw []byte) (*Payload, error) {
	if bytes.HasPrefix(raw, []byte("PK")) {
		zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
		if err != nil {
			return nil, ErrFileInvalidZip
		}
		var target *zip.File
		for _, f := range zr.File {
			if f.Name == "data.json" {
				target = f
				break
			}
			if target == nil && strings.HasSuffix(strings.ToLower(f.Name), ".json") {
				target = f
			}
		}
		if target == nil {
			return nil, ErrZipDataJSONNotFound
		}
		rc, err := target.Open()
		if err != nil {
			return nil, ErrFileInvalidZip
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			return nil, ErrFileInvalidZip
		}
		raw = buf.Bytes()
	}

	var shape map[string]json.RawMessage
	if err := json.Unmarshal(raw, &shape); err != nil {
		if _, ok := err.(*json.UnmarshalTypeError); ok {
			return nil, ErrFileInvalidFormat
		}
		return nil, ErrFileInvalidJSON
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrFileInvalidJSON
	}
	return &payload, nil
}

// RestoreFromCopy restores from a stored archive ("latest" picks the newest).
func (s *Service) RestoreFromCopy(ctx context.Context, copyName string, opts RestoreOptions) (*RestoreSummary, error) {
	target, err := s.resolveCopy(copyName)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(target)
	if err != nil {
		return nil, err
	}
	payload, err := ParsePayload(raw)
	if err != nil {
		return nil, err
	}
	summary, err := s.Restore(ctx, payload, opts)
	if err != nil {
		return nil, err
	}
	summary.CopyName = filepath.Base(target)
	return summary, nil
}

// RestoreUpload restores from uploaded archive bytes (zip or bare JSON).
func (s *Service) RestoreUpload(ctx context.Context, raw []byte, opts RestoreOptions) (*RestoreSummary, error) {
	payload, err := ParsePayload(raw)
	if err != nil {
		return nil, err
	}
	return s.Restore(ctx, payload, opts)
}

// Restore applies a payload. Partial mode first narrows the payload to the
// selected projects. Dry-run stops after summarizing. Apply deletes the
// targeted project subtrees and re-inserts the payload rows in one
// transaction; full mode replaces AppSettings as well. Subtree rows get
// fresh numeric ids on insert so a restore cannot collide with ids handed
// out after the archive was taken; item and plan identity travels through
// the stable ids instead.
func (s *Service) Restore(ctx context.Context, payload *Payload, opts RestoreOptions) (*RestoreSummary, error) {
	if payload.SchemaVersion > SchemaVersion {
		return nil, ErrSchemaVersionUnsupported
	}
	if opts.Mode != "full" && opts.Mode != "partial" {
		return nil, ErrRestoreModeInvalid
	}

	if opts.Mode == "partial" {
		selected, err := parseProjectIDs(opts.ProjectIDs)
		if err != nil {
			return nil, err
		}
		payload = FilterByProjects(payload, selected)
	}

	titles := make([]string, 0, len(payload.Projects))
	for _, p := range payload.Projects {
		titles = append(titles, p.Title)
	}
	summary := &RestoreSummary{
		Mode:   opts.Mode,
		DryRun: opts.DryRun,
		Counts: Counts{
			Projects:     len(payload.Projects),
			Groups:       len(payload.ExpenseGroups),
			Items:        len(payload.ExpenseItems),
			Adjustments:  len(payload.Adjustments),
			PaymentsPlan: len(payload.PaymentsPlan),
			PaymentsFact: len(payload.PaymentsFact),
			SheetLinks:   len(payload.SheetLinks),
		},
		ProjectTitles: titles,
		SchemaVersion: payload.SchemaVersion,
	}
	if opts.DryRun {
		return summary, nil
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]int64, 0, len(payload.Projects))
		for _, p := range payload.Projects {
			ids = append(ids, p.ID)
		}
		if err := deleteProjectSubtrees(tx, ids); err != nil {
			return err
		}
		if opts.Mode == "full" {
			if err := tx.Where("id = ?", 1).Delete(&domain.AppSettings{}).Error; err != nil {
				return err
			}
		}
		return insertPayload(tx, payload, opts.Mode == "full")
	})
	if err != nil {
		return nil, err
	}
	summary.Imported = true
	return summary, nil
}

func parseProjectIDs(raw string) (map[int64]bool, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrProjectIDsRequired
	}
	out := map[int64]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, ErrProjectIDsInvalid
		}
		out[id] = true
	}
	if len(out) == 0 {
		return nil, ErrProjectIDsEmpty
	}
	return out, nil
}

// deleteProjectSubtrees removes the given projects and everything hanging
// off them, children before parents.
func deleteProjectSubtrees(tx *gorm.DB, projectIDs []int64) error {
	if len(projectIDs) == 0 {
		return nil
	}

	var itemIDs []int64
	if err := tx.Model(&domain.ExpenseItem{}).
		Where("project_id IN ?", projectIDs).Pluck("id", &itemIDs).Error; err != nil {
		return err
	}
	if len(itemIDs) > 0 {
		if err := tx.Where("expense_item_id IN ?", itemIDs).
			Delete(&domain.BillingAdjustment{}).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("project_id IN ?", projectIDs).Delete(&domain.ExpenseItem{}).Error; err != nil {
		return err
	}
	if err := tx.Where("project_id IN ?", projectIDs).Delete(&domain.ExpenseGroup{}).Error; err != nil {
		return err
	}
	if err := tx.Where("project_id IN ?", projectIDs).Delete(&domain.PaymentPlan{}).Error; err != nil {
		return err
	}
	if err := tx.Where("project_id IN ?", projectIDs).Delete(&domain.PaymentFact{}).Error; err != nil {
		return err
	}
	if err := tx.Where("project_id IN ?", projectIDs).Delete(&domain.SheetLink{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", projectIDs).Delete(&domain.Project{}).Error
}

func insertPayload(tx *gorm.DB, payload *Payload, includeSettings bool) error {
	if includeSettings && payload.AppSettings != nil {
		rec := payload.AppSettings
		mode, ok := domain.ParseUsnMode(rec.UsnMode)
		if !ok {
			mode = domain.UsnOperational
		}
		freq, ok := domain.ParseBackupFrequency(rec.BackupFrequency)
		if !ok {
			freq = domain.BackupWeekly
		}
		row := domain.AppSettings{
			ID:              1,
			UsnMode:         mode,
			UsnRatePercent:  rec.UsnRatePercent,
			BackupFrequency: freq,
			CreatedAt:       parseDateTime(rec.CreatedAt),
			UpdatedAt:       parseDateTime(rec.UpdatedAt),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}

	// Projects keep their archived ids: the id is the selection handle for
	// partial restores and what every subtree row points at. Everything
	// below a project is re-keyed; the archived ids only serve to rebuild
	// the group/parent/adjustment references.
	for _, rec := range payload.Projects {
		row := rec.model()
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}

	groupIDs := make(map[int64]int64, len(payload.ExpenseGroups))
	for _, rec := range payload.ExpenseGroups {
		row := rec.model()
		row.ID = 0
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		groupIDs[rec.ID] = row.ID
	}

	// Parents first so children find their remapped parent id.
	ordered := make([]ItemRecord, 0, len(payload.ExpenseItems))
	for _, rec := range payload.ExpenseItems {
		if rec.ParentItemID == nil {
			ordered = append(ordered, rec)
		}
	}
	for _, rec := range payload.ExpenseItems {
		if rec.ParentItemID != nil {
			ordered = append(ordered, rec)
		}
	}
	itemIDs := make(map[int64]int64, len(payload.ExpenseItems))
	for _, rec := range ordered {
		row := rec.model()
		row.ID = 0
		if gid, ok := groupIDs[rec.GroupID]; ok {
			row.GroupID = gid
		}
		row.ParentItemID = nil
		if rec.ParentItemID != nil {
			if pid, ok := itemIDs[*rec.ParentItemID]; ok {
				mapped := pid
				row.ParentItemID = &mapped
			}
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		itemIDs[rec.ID] = row.ID
	}

	for _, rec := range payload.Adjustments {
		id, ok := itemIDs[rec.ExpenseItemID]
		if !ok {
			continue // item absent from the archive
		}
		row := rec.model()
		row.ID = 0
		row.ExpenseItemID = id
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	for _, rec := range payload.PaymentsPlan {
		row := rec.model()
		row.ID = 0
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	for _, rec := range payload.PaymentsFact {
		row := rec.model()
		row.ID = 0
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	for _, rec := range payload.SheetLinks {
		row := rec.model()
		row.ID = 0
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// CopyProject is a project entry inside a stored archive.
type CopyProject struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Organization string `json:"organization"`
}

// CopyProjects lists the projects contained in a stored archive, ordered by
// title for the restore picker.
func (s *Service) CopyProjects(copyName string) (string, []CopyProject, error) {
	target, err := s.resolveCopy(copyName)
	if err != nil {
		return "", nil, err
	}
	raw, err := os.ReadFile(target)
	if err != nil {
		return "", nil, err
	}
	payload, err := ParsePayload(raw)
	if err != nil {
		return "", nil, err
	}

	out := make([]CopyProject, 0, len(payload.Projects))
	for _, p := range payload.Projects {
		org := ""
		if p.ClientName != nil {
			org = *p.ClientName
		}
		out = append(out, CopyProject{ID: p.ID, Title: p.Title, Organization: org})
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
	})
	return filepath.Base(target), out, nil
}
