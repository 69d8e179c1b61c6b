package domain

import (
	"time"
)

// UsnMode selects the simplified-tax basis.
type UsnMode string

const (
	UsnLegal       UsnMode = "LEGAL"
	UsnOperational UsnMode = "OPERATIONAL"
)

// ParseUsnMode validates a raw USN mode string.
func ParseUsnMode(raw string) (UsnMode, bool) {
	switch UsnMode(raw) {
	case UsnLegal, UsnOperational:
		return UsnMode(raw), true
	}
	return "", false
}

// BackupFrequency controls the auto-backup scheduler.
type BackupFrequency string

const (
	BackupOff     BackupFrequency = "OFF"
	BackupDaily   BackupFrequency = "DAILY"
	BackupWeekly  BackupFrequency = "WEEKLY"
	BackupMonthly BackupFrequency = "MONTHLY"
)

// ParseBackupFrequency validates a raw frequency string.
func ParseBackupFrequency(raw string) (BackupFrequency, bool) {
	switch BackupFrequency(raw) {
	case BackupOff, BackupDaily, BackupWeekly, BackupMonthly:
		return BackupFrequency(raw), true
	}
	return "", false
}

// AppSettings is the global singleton row (id=1), seeded on first read.
type AppSettings struct {
	ID              int64           `gorm:"column:id;primaryKey" json:"id"`
	UsnMode         UsnMode         `gorm:"column:usn_mode;size:16;not null;default:OPERATIONAL" json:"usn_mode"`
	UsnRatePercent  float64         `gorm:"column:usn_rate_percent;not null;default:6" json:"usn_rate_percent"`
	BackupFrequency BackupFrequency `gorm:"column:backup_frequency;size:16;not null;default:WEEKLY" json:"backup_frequency"`
	LastBackupAt    *time.Time      `gorm:"column:last_backup_at" json:"last_backup_at"`
	CreatedAt       time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (AppSettings) TableName() string {
	return "app_settings"
}
