package domain

import (
	"time"

	"gorm.io/datatypes"
)

// SheetLink records a project's published spreadsheet. One per project;
// absence means the project is unpublished.
type SheetLink struct {
	ID              int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ProjectID       int64      `gorm:"column:project_id;uniqueIndex;not null" json:"project_id"`
	SpreadsheetID   string     `gorm:"column:spreadsheet_id;size:128;not null" json:"spreadsheet_id"`
	SheetTabName    string     `gorm:"column:sheet_tab_name;size:64;not null;default:PROJECT" json:"sheet_tab_name"`
	LastPublishedAt *time.Time `gorm:"column:last_published_at" json:"last_published_at"`
	LastImportedAt  *time.Time `gorm:"column:last_imported_at" json:"last_imported_at"`
}

func (SheetLink) TableName() string {
	return "google_sheet_links"
}

// GoogleCredential stores the OAuth token for the spreadsheet provider as
// raw JSON (singleton row, id=1). Absence means not connected.
type GoogleCredential struct {
	ID        int64          `gorm:"column:id;primaryKey" json:"id"`
	Token     datatypes.JSON `gorm:"column:token;not null" json:"-"`
	UpdatedAt time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (GoogleCredential) TableName() string {
	return "google_credentials"
}
