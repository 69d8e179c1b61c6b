package domain

import (
	"time"
)

// Project is the top-level bookkeeping unit. Never hard-deleted by the
// financial engines; closing is expressed through ClosedAt.
type Project struct {
	ID          int64   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title       string  `gorm:"column:title;size:255;not null" json:"title"`
	ClientName  *string `gorm:"column:client_name;size:255" json:"client_name"`
	ClientEmail *string `gorm:"column:client_email;size:255" json:"client_email"`
	ClientPhone *string `gorm:"column:client_phone;size:64" json:"client_phone"`

	GoogleDriveURL    *string `gorm:"column:google_drive_url;size:1024" json:"google_drive_url"`
	GoogleDriveFolder *string `gorm:"column:google_drive_folder;size:255" json:"google_drive_folder"`

	ProjectPriceTotal        float64 `gorm:"column:project_price_total;type:decimal(18,2);not null;default:0" json:"project_price_total"`
	ExpectedFromClientTotal  float64 `gorm:"column:expected_from_client_total;type:decimal(18,2);not null;default:0" json:"expected_from_client_total"`
	AgencyFeePercent         float64 `gorm:"column:agency_fee_percent;not null;default:10" json:"agency_fee_percent"`
	AgencyFeeIncludeEstimate bool    `gorm:"column:agency_fee_include_in_estimate;not null;default:true" json:"agency_fee_include_in_estimate"`

	CreatedAt time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at" json:"updated_at"`
	ClosedAt  *time.Time `gorm:"column:closed_at;type:date" json:"closed_at"`
}

func (Project) TableName() string {
	return "projects"
}

// ActiveAt reports whether the project counts toward a portfolio snapshot
// taken at the given date: already created, and not closed before it.
func (p *Project) ActiveAt(at time.Time) bool {
	if p.CreatedAt.After(at) {
		return false
	}
	if p.ClosedAt != nil && at.After(*p.ClosedAt) {
		return false
	}
	return true
}
