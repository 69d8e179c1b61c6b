// Package settings manages the single global settings row: USN tax mode and
// rate plus the auto-backup frequency.
package settings

import (
	"context"
	"errors"

	"cxema-backend/internal/domain"

	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

// Patch carries the optional fields of a settings update. Nil means "leave
// unchanged".
type Patch struct {
	UsnMode         *string  `json:"usn_mode"`
	UsnRatePercent  *float64 `json:"usn_rate_percent"`
	BackupFrequency *string  `json:"backup_frequency"`
}

// Get returns the settings row, seeding the defaults on first access.
func (s *Service) Get(ctx context.Context) (*domain.AppSettings, error) {
	var row domain.AppSettings
	err := s.DB.WithContext(ctx).First(&row, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = domain.AppSettings{
			ID:              1,
			UsnMode:         domain.UsnOperational,
			UsnRatePercent:  6,
			BackupFrequency: domain.BackupWeekly,
		}
		if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, err
		}
		return &row, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Update applies a partial patch and returns the updated row.
func (s *Service) Update(ctx context.Context, patch Patch) (*domain.AppSettings, error) {
	row, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	if patch.UsnMode != nil {
		mode, ok := domain.ParseUsnMode(*patch.UsnMode)
		if !ok {
			return nil, errors.New("USN_MODE_INVALID")
		}
		row.UsnMode = mode
	}
	if patch.UsnRatePercent != nil {
		row.UsnRatePercent = *patch.UsnRatePercent
	}
	if patch.BackupFrequency != nil {
		freq, ok := domain.ParseBackupFrequency(*patch.BackupFrequency)
		if !ok {
			return nil, errors.New("BACKUP_FREQUENCY_INVALID")
		}
		row.BackupFrequency = freq
	}

	if err := s.DB.WithContext(ctx).Save(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}
