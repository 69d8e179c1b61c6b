package life

import (
	"context"
	"testing"
	"time"

	"cxema-backend/internal/domain"
	"cxema-backend/internal/finance"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupLifeTest(t *testing.T) *Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Project{},
		&domain.ExpenseGroup{},
		&domain.ExpenseItem{},
		&domain.PaymentPlan{},
		&domain.PaymentFact{},
		&domain.AppSettings{},
	))
	return &Service{DB: db, Finance: &finance.Service{DB: db}}
}

func seedLifeProject(t *testing.T, db *gorm.DB, title string, feePct float64) *domain.Project {
	p := &domain.Project{Title: title, AgencyFeePercent: feePct}
	require.NoError(t, db.Create(p).Error)
	return p
}

func payFact(t *testing.T, db *gorm.DB, projectID int64, date time.Time, amount float64) {
	require.NoError(t, db.Create(&domain.PaymentFact{
		ProjectID: projectID, PayDate: date, Amount: amount,
	}).Error)
}

// Source month inflow 70000 against a 100000 target: 70000 covered from the
// current bucket, the remaining 30000 is a gap.
func TestForMonthPartialCoverage(t *testing.T) {
	s := setupLifeTest(t)
	p := seedLifeProject(t, s.DB, "A", 10)

	// 700000 paid in May at 10% fee puts 70000 in the pocket.
	payFact(t, s.DB, p.ID, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), 700000)

	got, err := s.ForMonth(context.Background(), "2024-06", decimal.NewFromInt(100000))
	require.NoError(t, err)

	assert.Equal(t, 70000.0, got.LifeCovered)
	assert.Equal(t, 30000.0, got.LifeGap)
	assert.Zero(t, got.ReserveUsed)
	assert.Zero(t, got.SavingsTotal)
	assert.Equal(t, got.TargetAmount, got.LifeCovered+got.LifeGap)

	require.Len(t, got.Projects, 1)
	row := got.Projects[0]
	assert.Equal(t, "2024-05", row.SourceMonth)
	assert.Equal(t, "current", row.SourceKind)
	assert.Equal(t, 70000.0, row.InflowInMonth)
	assert.Equal(t, 70000.0, row.UsedForLife)
	assert.Zero(t, row.ClosingBalance)
}

// A month whose inflow exceeds the target leaves a reserve that later months
// can draw after their own inflow runs out.
func TestForMonthDrawsReserveAfterCurrent(t *testing.T) {
	s := setupLifeTest(t)
	p := seedLifeProject(t, s.DB, "A", 10)

	payFact(t, s.DB, p.ID, time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC), 1500000) // April pocket 150000
	payFact(t, s.DB, p.ID, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), 700000) // May pocket 70000

	got, err := s.ForMonth(context.Background(), "2024-06", decimal.NewFromInt(100000))
	require.NoError(t, err)

	// April consumed 100000 of its own inflow, carrying 50000 forward. May
	// covers 70000 from current and 30000 from the April reserve.
	assert.Equal(t, 100000.0, got.LifeCovered)
	assert.Zero(t, got.LifeGap)
	assert.Equal(t, 30000.0, got.ReserveUsed)
	assert.Equal(t, 20000.0, got.SavingsTotal)

	require.Len(t, got.Projects, 2)
	assert.Equal(t, "current", got.Projects[0].SourceKind)
	assert.Equal(t, "2024-05", got.Projects[0].SourceMonth)
	assert.Equal(t, 70000.0, got.Projects[0].UsedForLife)
	assert.Equal(t, "reserve", got.Projects[1].SourceKind)
	assert.Equal(t, "2024-04", got.Projects[1].SourceMonth)
	assert.Equal(t, 30000.0, got.Projects[1].UsedForLife)
	assert.Equal(t, 20000.0, got.Projects[1].ClosingBalance)
}

// Within one bucket month, projects are consumed in ascending id order.
func TestForMonthProjectsConsumedInIDOrder(t *testing.T) {
	s := setupLifeTest(t)
	a := seedLifeProject(t, s.DB, "A", 10)
	b := seedLifeProject(t, s.DB, "B", 10)

	payFact(t, s.DB, a.ID, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), 400000) // pocket 40000
	payFact(t, s.DB, b.ID, time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC), 400000) // pocket 40000

	got, err := s.ForMonth(context.Background(), "2024-06", decimal.NewFromInt(50000))
	require.NoError(t, err)

	assert.Equal(t, 50000.0, got.LifeCovered)
	require.Len(t, got.Projects, 2)
	assert.Equal(t, a.ID, got.Projects[0].ProjectID)
	assert.Equal(t, 40000.0, got.Projects[0].UsedForLife)
	assert.Equal(t, b.ID, got.Projects[1].ProjectID)
	assert.Equal(t, 10000.0, got.Projects[1].UsedForLife)
	assert.Equal(t, 30000.0, got.Projects[1].ClosingBalance)
}

func TestForMonthZeroTargetDrawsNothing(t *testing.T) {
	s := setupLifeTest(t)
	p := seedLifeProject(t, s.DB, "A", 10)
	payFact(t, s.DB, p.ID, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), 700000)

	got, err := s.ForMonth(context.Background(), "2024-06", decimal.Zero)
	require.NoError(t, err)
	assert.Zero(t, got.LifeCovered)
	assert.Zero(t, got.LifeGap)
	assert.Zero(t, got.ReserveUsed)
	assert.Equal(t, 70000.0, got.SavingsTotal)
	require.Len(t, got.Projects, 1)
	assert.Zero(t, got.Projects[0].UsedForLife)
	assert.Equal(t, 70000.0, got.Projects[0].ClosingBalance)
}

func TestForMonthNoInflowsAtAll(t *testing.T) {
	s := setupLifeTest(t)
	seedLifeProject(t, s.DB, "A", 10)

	got, err := s.ForMonth(context.Background(), "2024-06", decimal.NewFromInt(100000))
	require.NoError(t, err)
	assert.Zero(t, got.LifeCovered)
	assert.Equal(t, 100000.0, got.LifeGap)
	assert.Empty(t, got.Projects)
}

func TestForMonthInvalidMonth(t *testing.T) {
	s := setupLifeTest(t)
	_, err := s.ForMonth(context.Background(), "2024-13", decimal.NewFromInt(100))
	require.Error(t, err)
	assert.Equal(t, "MONTH_INVALID", err.Error())
}

func TestForMonthDeterministic(t *testing.T) {
	s := setupLifeTest(t)
	a := seedLifeProject(t, s.DB, "A", 10)
	b := seedLifeProject(t, s.DB, "B", 10)
	payFact(t, s.DB, a.ID, time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC), 1200000)
	payFact(t, s.DB, b.ID, time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC), 800000)
	payFact(t, s.DB, a.ID, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), 300000)

	first, err := s.ForMonth(context.Background(), "2024-06", decimal.NewFromInt(90000))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.ForMonth(context.Background(), "2024-06", decimal.NewFromInt(90000))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
