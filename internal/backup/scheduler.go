package backup

import (
	"context"
	"time"

	"cxema-backend/internal/domain"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Scheduler creates backups automatically according to the configured
// frequency. It polls instead of computing the next fire time so frequency
// changes take effect within one interval.
type Scheduler struct {
	Service  *Service
	Interval time.Duration
}

// NewScheduler returns a scheduler with the default 5-minute poll.
func NewScheduler(svc *Service) *Scheduler {
	return &Scheduler{Service: svc, Interval: 5 * time.Minute}
}

// Run blocks until ctx is cancelled, executing one cycle per interval.
func (s *Scheduler) Run(ctx context.Context) {
	log.Info().Dur("interval", s.Interval).Msg("Auto backup scheduler started")
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		if err := s.RunCycle(ctx); err != nil {
			log.Error().Err(err).Msg("Auto backup cycle failed")
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("Auto backup scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunCycle prunes expired copies and, when a backup is due, creates one.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	now := time.Now().UTC()
	if _, err := s.Service.Prune(now); err != nil {
		return err
	}

	settings, err := s.loadSettings(ctx)
	if err != nil {
		return err
	}
	freq, ok := domain.ParseBackupFrequency(string(settings.BackupFrequency))
	if !ok {
		freq = domain.BackupWeekly
	}
	if !backupDue(now, settings.LastBackupAt, freq) {
		return nil
	}

	target, _, err := s.Service.Export(ctx)
	if err != nil {
		return err
	}
	log.Info().Str("path", target).Msg("Auto backup created")
	return nil
}

func (s *Scheduler) loadSettings(ctx context.Context) (*domain.AppSettings, error) {
	var row domain.AppSettings
	err := s.Service.DB.WithContext(ctx).First(&row, 1).Error
	if err == gorm.ErrRecordNotFound {
		row = domain.AppSettings{
			ID:              1,
			UsnMode:         domain.UsnOperational,
			UsnRatePercent:  6,
			BackupFrequency: domain.BackupWeekly,
		}
		if err := s.Service.DB.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, err
		}
		return &row, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// backupDue reports whether enough time has passed since the last backup
// for the given frequency. A missing last timestamp means a backup is due
// immediately (unless backups are off).
func backupDue(now time.Time, last *time.Time, freq domain.BackupFrequency) bool {
	if freq == domain.BackupOff {
		return false
	}
	if last == nil {
		return true
	}
	switch freq {
	case domain.BackupDaily:
		return !now.Before(last.Add(24 * time.Hour))
	case domain.BackupMonthly:
		return !now.Before(monthShift(*last, 1))
	default: // WEEKLY
		return !now.Before(last.Add(7 * 24 * time.Hour))
	}
}
