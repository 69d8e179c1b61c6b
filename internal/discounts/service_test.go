package discounts

import (
	"context"
	"testing"
	"time"

	"cxema-backend/internal/domain"
	"cxema-backend/internal/pkg/stableid"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDiscountsTest(t *testing.T) *Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Project{},
		&domain.ExpenseGroup{},
		&domain.ExpenseItem{},
	))
	return &Service{DB: db}
}

func createProject(t *testing.T, s *Service, title string, client *string) *domain.Project {
	p := domain.Project{Title: title, ClientName: client}
	require.NoError(t, s.DB.Create(&p).Error)
	g := domain.ExpenseGroup{ProjectID: p.ID, Name: "Основное"}
	require.NoError(t, s.DB.Create(&g).Error)
	return &p
}

func createDiscountedItem(t *testing.T, s *Service, projectID int64, title string, discount float64, date *time.Time) *domain.ExpenseItem {
	var g domain.ExpenseGroup
	require.NoError(t, s.DB.Where("project_id = ?", projectID).First(&g).Error)
	item := domain.ExpenseItem{
		StableItemID:    stableid.NewItem(),
		ProjectID:       projectID,
		GroupID:         g.ID,
		Title:           title,
		Mode:            domain.ModeSingleTotal,
		BaseTotal:       10000,
		DiscountEnabled: discount != 0,
		DiscountAmount:  discount,
		PlannedPayDate:  date,
	}
	require.NoError(t, s.DB.Create(&item).Error)
	return &item
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func strPtr(s string) *string { return &s }

func TestSummaryCutsOffByDateAndKeepsUndated(t *testing.T) {
	s := setupDiscountsTest(t)
	p := createProject(t, s, "Фестиваль", strPtr("Ромашка"))

	createDiscountedItem(t, s, p.ID, "Сцена", 1000, datePtr(2025, 3, 1))
	createDiscountedItem(t, s, p.ID, "Свет", 500, datePtr(2025, 6, 1))
	createDiscountedItem(t, s, p.ID, "Звук", 200, nil)
	createDiscountedItem(t, s, p.ID, "Без скидки", 0, datePtr(2025, 1, 1))

	out, err := s.Summary(context.Background(), time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2025-04-01", out.AsOf)
	require.Len(t, out.Entries, 2)
	assert.Equal(t, 1200.0, out.TotalDiscount)

	// Undated sorts ahead of dated entries within the same project.
	assert.Equal(t, "Звук", out.Entries[0].ItemTitle)
	assert.Equal(t, "Сцена", out.Entries[1].ItemTitle)
	assert.Equal(t, "2025-03-01", *out.Entries[1].ItemDate)
}

func TestSummarySignedTotalsOffset(t *testing.T) {
	s := setupDiscountsTest(t)
	p := createProject(t, s, "Конференция", strPtr("Ромашка"))

	createDiscountedItem(t, s, p.ID, "Клиенту", 1500, nil)
	createDiscountedItem(t, s, p.ID, "От подрядчика", -400, nil)

	out, err := s.Summary(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1100.0, out.TotalDiscount)
	require.Len(t, out.Counterparties, 1)
	assert.Equal(t, "Ромашка", out.Counterparties[0].Organization)
	assert.Equal(t, 1100.0, out.Counterparties[0].DiscountTotal)
}

func TestSummaryGroupsByOrganizationWithFallback(t *testing.T) {
	s := setupDiscountsTest(t)
	p1 := createProject(t, s, "А", strPtr("Ромашка"))
	p2 := createProject(t, s, "Б", nil)
	p3 := createProject(t, s, "В", strPtr("   "))

	createDiscountedItem(t, s, p1.ID, "x", 100, nil)
	createDiscountedItem(t, s, p2.ID, "y", 200, nil)
	createDiscountedItem(t, s, p3.ID, "z", 300, nil)

	out, err := s.Summary(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, out.Counterparties, 2)
	assert.Equal(t, "Ромашка", out.Counterparties[0].Organization)
	assert.Equal(t, "—", out.Counterparties[1].Organization)
	assert.Equal(t, 500.0, out.Counterparties[1].DiscountTotal)
}

func TestSummarySubItemDiscountIgnored(t *testing.T) {
	s := setupDiscountsTest(t)
	p := createProject(t, s, "Фестиваль", strPtr("Ромашка"))

	parent := createDiscountedItem(t, s, p.ID, "Родитель", 700, nil)
	var g domain.ExpenseGroup
	require.NoError(t, s.DB.Where("project_id = ?", p.ID).First(&g).Error)
	child := domain.ExpenseItem{
		StableItemID:    stableid.NewItem(),
		ProjectID:       p.ID,
		GroupID:         g.ID,
		ParentItemID:    &parent.ID,
		Title:           "Вложенная",
		Mode:            domain.ModeSingleTotal,
		BaseTotal:       5000,
		DiscountEnabled: true,
		DiscountAmount:  999,
	}
	require.NoError(t, s.DB.Create(&child).Error)

	out, err := s.Summary(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, out.Entries, 1)
	assert.Equal(t, parent.ID, out.Entries[0].ItemID)
	assert.Equal(t, 700.0, out.TotalDiscount)
}
