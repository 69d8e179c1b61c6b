package backup

import (
	"context"
	"testing"
	"time"

	"cxema-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupDue(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	cases := []struct {
		name string
		last *time.Time
		freq domain.BackupFrequency
		want bool
	}{
		{"off never fires", nil, domain.BackupOff, false},
		{"no previous backup fires", nil, domain.BackupWeekly, true},
		{"daily not yet", ago(23 * time.Hour), domain.BackupDaily, false},
		{"daily due", ago(24 * time.Hour), domain.BackupDaily, true},
		{"weekly not yet", ago(6 * 24 * time.Hour), domain.BackupWeekly, false},
		{"weekly due", ago(8 * 24 * time.Hour), domain.BackupWeekly, true},
		{"monthly not yet", ago(20 * 24 * time.Hour), domain.BackupMonthly, false},
		{"monthly due", ago(32 * 24 * time.Hour), domain.BackupMonthly, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, backupDue(now, tc.last, tc.freq))
		})
	}
}

func TestMonthShiftClampsDay(t *testing.T) {
	jan31 := time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC), monthShift(jan31, 1))
	assert.Equal(t, time.Date(2023, 12, 31, 10, 0, 0, 0, time.UTC), monthShift(jan31, -1))
	assert.Equal(t, time.Date(2023, 9, 30, 10, 0, 0, 0, time.UTC), monthShift(jan31, -4))
}

func TestRunCycleCreatesBackupWhenDue(t *testing.T) {
	s := setupBackupTest(t)
	seedDataset(t, s) // DAILY frequency, last_backup_at unset
	sched := NewScheduler(s)
	ctx := context.Background()

	require.NoError(t, sched.RunCycle(ctx))
	copies, err := s.ListCopies()
	require.NoError(t, err)
	require.Len(t, copies, 1)

	// The cycle stamped last_backup_at, so an immediate re-run is a no-op.
	require.NoError(t, sched.RunCycle(ctx))
	copies, err = s.ListCopies()
	require.NoError(t, err)
	assert.Len(t, copies, 1)
}

func TestRunCycleSeedsSettingsAndHonorsOff(t *testing.T) {
	s := setupBackupTest(t)
	sched := NewScheduler(s)
	ctx := context.Background()

	// Empty database: settings get seeded, WEEKLY default fires once.
	require.NoError(t, sched.RunCycle(ctx))
	copies, err := s.ListCopies()
	require.NoError(t, err)
	require.Len(t, copies, 1)

	require.NoError(t, s.DB.Model(&domain.AppSettings{}).Where("id = ?", 1).
		Updates(map[string]interface{}{"backup_frequency": domain.BackupOff, "last_backup_at": nil}).Error)
	require.NoError(t, sched.RunCycle(ctx))
	copies, err = s.ListCopies()
	require.NoError(t, err)
	assert.Len(t, copies, 1)
}
