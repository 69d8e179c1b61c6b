package projects

import (
	"context"
	"testing"

	"cxema-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupProjectsTest(t *testing.T) *Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Project{},
		&domain.ExpenseGroup{},
		&domain.ExpenseItem{},
		&domain.BillingAdjustment{},
		&domain.PaymentPlan{},
		&domain.PaymentFact{},
		&domain.AppSettings{},
		&domain.SheetLink{},
	))
	return &Service{DB: db}
}

func createTestProject(t *testing.T, s *Service) *domain.Project {
	p, err := s.Create(context.Background(), ProjectWrite{Title: "Фестиваль"})
	require.NoError(t, err)
	return p
}

func itemWrite(groupID int64, title string) ItemWrite {
	return ItemWrite{
		GroupID:           groupID,
		Title:             title,
		Mode:              string(domain.ModeSingleTotal),
		BaseTotal:         1000,
		IncludeInEstimate: true,
	}
}

func TestCreateProjectSeedsDefaultGroups(t *testing.T) {
	s := setupProjectsTest(t)
	p := createTestProject(t, s)

	assert.Equal(t, float64(10), p.AgencyFeePercent)
	assert.True(t, p.AgencyFeeIncludeEstimate)

	groups, err := s.ListGroups(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "Стройка", groups[0].Name)
	assert.Equal(t, "Команда", groups[1].Name)
	assert.Equal(t, "Дизайн", groups[2].Name)
	assert.Equal(t, 0, groups[0].SortOrder)
	assert.Equal(t, 2, groups[2].SortOrder)
}

func TestProjectPatchKeepsUnsetFields(t *testing.T) {
	s := setupProjectsTest(t)
	p := createTestProject(t, s)

	price := 250000.0
	updated, err := s.Update(context.Background(), p.ID, ProjectPatch{ProjectPriceTotal: &price})
	require.NoError(t, err)
	assert.Equal(t, 250000.0, updated.ProjectPriceTotal)
	assert.Equal(t, "Фестиваль", updated.Title)

	closed := "2024-12-31"
	updated, err = s.Update(context.Background(), p.ID, ProjectPatch{ClosedAt: &closed})
	require.NoError(t, err)
	require.NotNil(t, updated.ClosedAt)
	assert.Equal(t, "2024-12-31", updated.ClosedAt.Format("2006-01-02"))
}

func TestProjectDeleteRemovesSubtree(t *testing.T) {
	s := setupProjectsTest(t)
	ctx := context.Background()
	p := createTestProject(t, s)
	groups, _ := s.ListGroups(ctx, p.ID)

	it, err := s.CreateItem(ctx, p.ID, itemWrite(groups[0].ID, "Сцена"))
	require.NoError(t, err)
	_, err = s.UpsertAdjustment(ctx, p.ID, it.ID, AdjustmentWrite{AdjustmentType: "DISCOUNT"})
	require.NoError(t, err)
	_, err = s.CreatePlan(ctx, p.ID, PaymentWrite{PayDate: "2099-01-01", Amount: 500})
	require.NoError(t, err)

	other := createTestProject(t, s)
	otherGroups, _ := s.ListGroups(ctx, other.ID)

	require.NoError(t, s.Delete(ctx, p.ID))

	_, err = s.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)
	var count int64
	s.DB.Model(&domain.ExpenseItem{}).Where("project_id = ?", p.ID).Count(&count)
	assert.Zero(t, count)
	s.DB.Model(&domain.PaymentPlan{}).Where("project_id = ?", p.ID).Count(&count)
	assert.Zero(t, count)

	// Neighbour untouched.
	stillThere, err := s.ListGroups(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, stillThere, len(otherGroups))
}

func TestGroupNameMustNotBeEmpty(t *testing.T) {
	s := setupProjectsTest(t)
	ctx := context.Background()
	p := createTestProject(t, s)

	_, err := s.CreateGroup(ctx, p.ID, GroupWrite{Name: "   "})
	assert.ErrorIs(t, err, ErrGroupNameEmpty)

	groups, _ := s.ListGroups(ctx, p.ID)
	empty := ""
	_, err = s.UpdateGroup(ctx, p.ID, groups[0].ID, GroupPatch{Name: &empty})
	assert.ErrorIs(t, err, ErrGroupNameEmpty)
}

func TestDeleteGroupCascadesItemsAndAdjustments(t *testing.T) {
	s := setupProjectsTest(t)
	ctx := context.Background()
	p := createTestProject(t, s)
	groups, _ := s.ListGroups(ctx, p.ID)

	it, err := s.CreateItem(ctx, p.ID, itemWrite(groups[0].ID, "Свет"))
	require.NoError(t, err)
	_, err = s.UpsertAdjustment(ctx, p.ID, it.ID, AdjustmentWrite{AdjustmentType: "DISCOUNT"})
	require.NoError(t, err)
	keep, err := s.CreateItem(ctx, p.ID, itemWrite(groups[1].ID, "Звук"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteGroup(ctx, p.ID, groups[0].ID))

	_, err = s.getItem(ctx, p.ID, it.ID)
	assert.ErrorIs(t, err, ErrItemNotFound)
	var adjCount int64
	s.DB.Model(&domain.BillingAdjustment{}).Where("expense_item_id = ?", it.ID).Count(&adjCount)
	assert.Zero(t, adjCount)

	_, err = s.getItem(ctx, p.ID, keep.ID)
	assert.NoError(t, err)
}

func TestItemQtyPriceDerivesBase(t *testing.T) {
	s := setupProjectsTest(t)
	ctx := context.Background()
	p := createTestProject(t, s)
	groups, _ := s.ListGroups(ctx, p.ID)

	qty, unit := 3.0, 150.0
	in := itemWrite(groups[0].ID, "Стулья")
	in.Mode = string(domain.ModeQtyPrice)
	in.Qty = &qty
	in.UnitPriceBase = &unit
	it, err := s.CreateItem(ctx, p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 450.0, it.BaseTotal)

	// qty=0 falls back to the unit price alone.
	zero := 0.0
	in.Qty = &zero
	it, err = s.UpdateItem(ctx, p.ID, it.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 150.0, it.BaseTotal)

	in.Qty = nil
	_, err = s.UpdateItem(ctx, p.ID, it.ID, in)
	assert.ErrorIs(t, err, ErrQtyPriceRequiresQtyAndUnit)
}

func TestItemModeInvalid(t *testing.T) {
	s := setupProjectsTest(t)
	ctx := context.Background()
	p := createTestProject(t, s)
	groups, _ := s.ListGroups(ctx, p.ID)

	in := itemWrite(groups[0].ID, "X")
	in.Mode = "PERCENTAGE"
	_, err := s.CreateItem(ctx, p.ID, in)
	assert.ErrorIs(t, err, ErrItemModeInvalid)
}

func TestItemWritesRejectNegativeMoneyFields(t *testing.T) {
	s := setupProjectsTest(t)
	ctx := context.Background()
	p := createTestProject(t, s)
	groups, err := s.ListGroups(ctx, p.ID)
	require.NoError(t, err)
	gid := groups[0].ID

	neg := -1.0
	in := itemWrite(gid, "Сцена")
	in.Mode = string(domain.ModeQtyPrice)
	in.Qty = &neg
	price := 100.0
	in.UnitPriceBase = &price
	_, err = s.CreateItem(ctx, p.ID, in)
	assert.ErrorIs(t, err, ErrQtyNegative)

	in = itemWrite(gid, "Сцена")
	in.Mode = string(domain.ModeQtyPrice)
	qty := 2.0
	in.Qty = &qty
	in.UnitPriceBase = &neg
	_, err = s.CreateItem(ctx, p.ID, in)
	assert.ErrorIs(t, err, ErrUnitPriceNegative)

	in = itemWrite(gid, "Сцена")
	in.BaseTotal = -5000
	_, err = s.CreateItem(ctx, p.ID, in)
	assert.ErrorIs(t, err, ErrBaseTotalNegative)

	in = itemWrite(gid, "Сцена")
	in.ExtraProfitAmount = -300
	_, err = s.CreateItem(ctx, p.ID, in)
	assert.ErrorIs(t, err, ErrExtraProfitNegative)

	// A negative discount is legitimate: it is a discount we received.
	in = itemWrite(gid, "Сцена")
	in.DiscountEnabled = true
	in.DiscountAmount = -5000
	created, err := s.CreateItem(ctx, p.ID, in)
	require.NoError(t, err)

	// Update runs the same checks.
	upd := itemWrite(gid, "Сцена")
	upd.BaseTotal = -1
	_, err = s.UpdateItem(ctx, p.ID, created.ID, upd)
	assert.ErrorIs(t, err, ErrBaseTotalNegative)
}

func TestParentValidationRules(t *testing.T) {
	s := setupProjectsTest(t)
	ctx := context.Background()
	p := createTestProject(t, s)
	groups, _ := s.ListGroups(ctx, p.ID)

	parent, err := s.CreateItem(ctx, p.ID, itemWrite(groups[0].ID, "Монтаж"))
	require.NoError(t, err)

	// Unknown parent.
	in := itemWrite(groups[0].ID, "Суб")
	missing := int64(9999)
	in.ParentItemID = &missing
	_, err = s.CreateItem(ctx, p.ID, in)
	assert.ErrorIs(t, err, ErrParentNotFound)

	// Parent lives in another group.
	in.ParentItemID = &parent.ID
	in.GroupID = groups[1].ID
	_, err = s.CreateItem(ctx, p.ID, in)
	assert.ErrorIs(t, err, ErrParentGroupMismatch)

	// Valid sub-item; forced out of the estimate.
	in.GroupID = groups[0].ID
	in.IncludeInEstimate = true
	sub, err := s.CreateItem(ctx, p.ID, in)
	require.NoError(t, err)
	assert.False(t, sub.IncludeInEstimate)

	// A sub-item cannot be a parent.
	nested := itemWrite(groups[0].ID, "Суб-суб")
	nested.ParentItemID = &sub.ID
	_, err = s.CreateItem(ctx, p.ID, nested)
	assert.ErrorIs(t, err, ErrParentMustBeTopLevel)

	// Self-reference on update.
	selfIn := itemWrite(groups[0].ID, "Монтаж")
	selfIn.ParentItemID = &parent.ID
	_, err = s.UpdateItem(ctx, p.ID, parent.ID, selfIn)
	assert.ErrorIs(t, err, ErrParentSelfRef)

	// An item that already has children cannot itself become a sub-item.
	other, err := s.CreateItem(ctx, p.ID, itemWrite(groups[0].ID, "Другая"))
	require.NoError(t, err)
	demote := itemWrite(groups[0].ID, "Монтаж")
	demote.ParentItemID = &other.ID
	_, err = s.UpdateItem(ctx, p.ID, parent.ID, demote)
	assert.ErrorIs(t, err, ErrItemWithSubitemsCannotBeSubitem)

	// ...and cannot change group while children exist.
	move := itemWrite(groups[1].ID, "Монтаж")
	_, err = s.UpdateItem(ctx, p.ID, parent.ID, move)
	assert.ErrorIs(t, err, ErrItemWithSubitemsCannotChangeGroup)
}

func TestDeleteItemRemovesSubitems(t *testing.T) {
	s := setupProjectsTest(t)
	ctx := context.Background()
	p := createTestProject(t, s)
	groups, _ := s.ListGroups(ctx, p.ID)

	parent, err := s.CreateItem(ctx, p.ID, itemWrite(groups[0].ID, "Декор"))
	require.NoError(t, err)
	subIn := itemWrite(groups[0].ID, "Цветы")
	subIn.ParentItemID = &parent.ID
	sub, err := s.CreateItem(ctx, p.ID, subIn)
	require.NoError(t, err)

	require.NoError(t, s.DeleteItem(ctx, p.ID, parent.ID))
	_, err = s.getItem(ctx, p.ID, sub.ID)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestAdjustmentLifecycle(t *testing.T) {
	s := setupProjectsTest(t)
	ctx := context.Background()
	p := createTestProject(t, s)
	groups, _ := s.ListGroups(ctx, p.ID)
	it, err := s.CreateItem(ctx, p.ID, itemWrite(groups[0].ID, "Кейтеринг"))
	require.NoError(t, err)

	// Absence is a state, not an error of the item.
	_, err = s.GetAdjustment(ctx, p.ID, it.ID)
	assert.ErrorIs(t, err, ErrAdjustmentNotFound)

	_, err = s.UpsertAdjustment(ctx, p.ID, it.ID, AdjustmentWrite{AdjustmentType: "SURCHARGE"})
	assert.ErrorIs(t, err, ErrAdjustmentTypeInvalid)

	adj, err := s.UpsertAdjustment(ctx, p.ID, it.ID, AdjustmentWrite{
		UnitPriceFull: 1000, UnitPriceBillable: 800,
		AdjustmentType: "DISCOUNT", Reason: "скидка постоянному клиенту",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AdjustmentDiscount, adj.AdjustmentType)

	// Upsert replaces in place, no second row.
	again, err := s.UpsertAdjustment(ctx, p.ID, it.ID, AdjustmentWrite{
		UnitPriceFull: 1000, UnitPriceBillable: 900,
		AdjustmentType: "CARRY_TO_NEXT",
	})
	require.NoError(t, err)
	assert.Equal(t, adj.ID, again.ID)
	assert.Equal(t, 900.0, again.UnitPriceBillable)

	require.NoError(t, s.DeleteAdjustment(ctx, p.ID, it.ID))
	assert.ErrorIs(t, s.DeleteAdjustment(ctx, p.ID, it.ID), ErrAdjustmentNotFound)
}
