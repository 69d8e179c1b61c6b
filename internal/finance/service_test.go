package finance

import (
	"context"
	"testing"
	"time"

	"cxema-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupFinanceTest(t *testing.T) *Service {
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
	return &Service{DB: db}
}

func seedProject(t *testing.T, db *gorm.DB, price, fee float64) *domain.Project {
	p := &domain.Project{
		Title:             "Test project",
		ProjectPriceTotal: price,
		AgencyFeePercent:  fee,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// End-to-end scenario: price=100000, base=40000, agency 10% project-wide,
// OPERATIONAL 6% => expenses=40000, fee=10000, basis=50000, tax=3000,
// diff=47000.
func TestComputedEndToEnd(t *testing.T) {
	s := setupFinanceTest(t)
	p := seedProject(t, s.DB, 100000, 10)

	group := &domain.ExpenseGroup{ProjectID: p.ID, Name: "Main"}
	require.NoError(t, s.DB.Create(group).Error)
	require.NoError(t, s.DB.Create(&domain.ExpenseItem{
		StableItemID: "item_a", ProjectID: p.ID, GroupID: group.ID,
		Mode: domain.ModeSingleTotal, BaseTotal: 40000,
	}).Error)

	got, err := s.Computed(context.Background(), p.ID, DefaultFeeScope)
	require.NoError(t, err)
	assert.Equal(t, 40000.0, got.ExpensesTotal)
	assert.Equal(t, 10000.0, got.AgencyFee)
	assert.Equal(t, 3000.0, got.UsnTax)
	assert.Equal(t, 47000.0, got.Diff)
	assert.Equal(t, 10000.0, got.InPocket)
}

func TestComputedVendorDiscountScenario(t *testing.T) {
	s := setupFinanceTest(t)
	p := seedProject(t, s.DB, 0, 0)

	group := &domain.ExpenseGroup{ProjectID: p.ID, Name: "Main"}
	require.NoError(t, s.DB.Create(group).Error)
	require.NoError(t, s.DB.Create(&domain.ExpenseItem{
		StableItemID: "item_a", ProjectID: p.ID, GroupID: group.ID,
		Mode: domain.ModeSingleTotal, BaseTotal: 40000,
		DiscountEnabled: true, DiscountAmount: -5000,
	}).Error)

	got, err := s.Computed(context.Background(), p.ID, DefaultFeeScope)
	require.NoError(t, err)
	assert.Equal(t, 45000.0, got.ExpensesTotal)
	assert.Equal(t, -5000.0, got.DiscountTotal)
	// in_pocket includes -(-5000) = +5000
	assert.Equal(t, 5000.0, got.InPocket)
}

func TestComputedLegalBasisUsesReceived(t *testing.T) {
	s := setupFinanceTest(t)
	require.NoError(t, s.DB.Create(&domain.AppSettings{
		ID: 1, UsnMode: domain.UsnLegal, UsnRatePercent: 6, BackupFrequency: domain.BackupWeekly,
	}).Error)
	p := seedProject(t, s.DB, 100000, 0)

	require.NoError(t, s.DB.Create(&domain.PaymentFact{
		ProjectID: p.ID, PayDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Amount: 30000,
	}).Error)
	require.NoError(t, s.DB.Create(&domain.PaymentPlan{
		StablePayID: "pay_a", ProjectID: p.ID,
		PayDate: time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC), Amount: 20000,
	}).Error)

	got, err := s.Computed(context.Background(), p.ID, DefaultFeeScope)
	require.NoError(t, err)
	// LEGAL: basis = plan+fact received = 50000, tax = 3000
	assert.Equal(t, 3000.0, got.UsnTax)
}

func TestComputedGroupScopedFee(t *testing.T) {
	s := setupFinanceTest(t)
	p := seedProject(t, s.DB, 100000, 10)

	g1 := &domain.ExpenseGroup{ProjectID: p.ID, Name: "A"}
	g2 := &domain.ExpenseGroup{ProjectID: p.ID, Name: "B"}
	require.NoError(t, s.DB.Create(g1).Error)
	require.NoError(t, s.DB.Create(g2).Error)
	require.NoError(t, s.DB.Create(&domain.ExpenseItem{
		StableItemID: "item_a", ProjectID: p.ID, GroupID: g1.ID,
		Mode: domain.ModeSingleTotal, BaseTotal: 20000,
	}).Error)
	require.NoError(t, s.DB.Create(&domain.ExpenseItem{
		StableItemID: "item_b", ProjectID: p.ID, GroupID: g2.ID,
		Mode: domain.ModeSingleTotal, BaseTotal: 5000,
	}).Error)

	got, err := s.Computed(context.Background(), p.ID, FeeScope{GroupIDs: []int64{g1.ID}})
	require.NoError(t, err)
	// Fee on group A total only: 10% of 20000.
	assert.Equal(t, 2000.0, got.AgencyFee)
}

func TestComputedProjectNotFound(t *testing.T) {
	s := setupFinanceTest(t)
	_, err := s.Computed(context.Background(), 404, DefaultFeeScope)
	require.Error(t, err)
	assert.Equal(t, "PROJECT_NOT_FOUND", err.Error())
}

func TestSnapshotEmptyProjectAllZeros(t *testing.T) {
	s := setupFinanceTest(t)
	seedProject(t, s.DB, 0, 0)

	at := time.Now().UTC().AddDate(0, 0, 1)
	snap, err := s.Snapshot(context.Background(), at)
	require.NoError(t, err)
	require.Len(t, snap.Projects, 1)
	row := snap.Projects[0]
	assert.Zero(t, row.ReceivedToDate)
	assert.Zero(t, row.SpentToDate)
	assert.Zero(t, row.BalanceToDate)
	assert.Zero(t, row.InPocketToDate)
	assert.Nil(t, snap.MonthRange)
}

func TestSnapshotActiveFiltersAndToDateSums(t *testing.T) {
	s := setupFinanceTest(t)
	p := seedProject(t, s.DB, 100000, 10)

	closed := time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)
	closedProject := &domain.Project{Title: "Closed", ClosedAt: &closed}
	require.NoError(t, s.DB.Create(closedProject).Error)

	at := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.DB.Create(&domain.PaymentFact{
		ProjectID: p.ID, PayDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Amount: 50000,
	}).Error)
	// After the as-of date: excluded.
	require.NoError(t, s.DB.Create(&domain.PaymentFact{
		ProjectID: p.ID, PayDate: time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), Amount: 99999,
	}).Error)

	snap, err := s.Snapshot(context.Background(), at)
	require.NoError(t, err)
	require.Len(t, snap.Projects, 1)
	assert.Equal(t, p.ID, snap.Projects[0].ProjectID)
	assert.Equal(t, 50000.0, snap.Projects[0].ReceivedToDate)
	assert.Equal(t, 5000.0, snap.Projects[0].AgencyFeeToDate)
	require.NotNil(t, snap.MonthRange)
	assert.Equal(t, "2024-06", snap.MonthRange.From)
	assert.Equal(t, "2024-08", snap.MonthRange.To)
}

func TestPocketMonthlyWaterfall(t *testing.T) {
	s := setupFinanceTest(t)
	p := seedProject(t, s.DB, 0, 10)

	group := &domain.ExpenseGroup{ProjectID: p.ID, Name: "Main"}
	require.NoError(t, s.DB.Create(group).Error)

	// May: client pays 100000; expenses of 40000 due the same day.
	// Wallet covers expenses first, then the 10000 agency claim.
	pay := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.DB.Create(&domain.PaymentFact{ProjectID: p.ID, PayDate: pay, Amount: 100000}).Error)
	require.NoError(t, s.DB.Create(&domain.ExpenseItem{
		StableItemID: "item_a", ProjectID: p.ID, GroupID: group.ID,
		Mode: domain.ModeSingleTotal, BaseTotal: 40000, PlannedPayDate: &pay,
	}).Error)

	asOf := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	months, err := s.PocketMonthly(context.Background(), p, asOf)
	require.NoError(t, err)
	require.Contains(t, months, "2024-05")
	assert.Equal(t, "10000", months["2024-05"].Agency.String())
	assert.Equal(t, "10000", months["2024-05"].InPocket.String())
}

func TestPocketMonthlyExpensesStarveClaims(t *testing.T) {
	s := setupFinanceTest(t)
	p := seedProject(t, s.DB, 0, 10)

	group := &domain.ExpenseGroup{ProjectID: p.ID, Name: "Main"}
	require.NoError(t, s.DB.Create(group).Error)

	// Payment barely covers expenses; nothing reaches the pocket.
	pay := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.DB.Create(&domain.PaymentFact{ProjectID: p.ID, PayDate: pay, Amount: 40000}).Error)
	require.NoError(t, s.DB.Create(&domain.ExpenseItem{
		StableItemID: "item_a", ProjectID: p.ID, GroupID: group.ID,
		Mode: domain.ModeSingleTotal, BaseTotal: 40000, PlannedPayDate: &pay,
	}).Error)

	months, err := s.PocketMonthly(context.Background(), p, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, months)
}
