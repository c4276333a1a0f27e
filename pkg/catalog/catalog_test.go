package catalog_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/apperr"
	"github.com/evansochadeka/BenFarm/pkg/catalog"
	"github.com/evansochadeka/BenFarm/pkg/ledger"
	"github.com/evansochadeka/BenFarm/pkg/models"
	"github.com/evansochadeka/BenFarm/pkg/testutil"
)

func newService(t *testing.T) (*catalog.Service, *ledger.Ledger, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	l := ledger.New(db, zap.NewNop())
	return catalog.NewService(db, l, zap.NewNop()), l, db
}

func TestCreateLogsOpeningStock(t *testing.T) {
	svc, l, db := newService(t)
	ctx := context.Background()
	seller := testutil.User(t, db, models.RoleAgrovet)

	item, err := svc.Create(ctx, seller.ID, catalog.ProductInput{
		ProductName: "  DAP Fertilizer ",
		Category:    "fertilizer",
		Quantity:    40,
		Price:       decimal.RequireFromString("3500"),
	})
	require.NoError(t, err)
	assert.Equal(t, "DAP Fertilizer", item.ProductName)
	assert.Equal(t, 10, item.ReorderLevel)
	assert.True(t, item.IsActive)

	logs, err := l.ListByProduct(ctx, item.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ReasonInitial, logs[0].Reason)
	assert.Equal(t, 0, logs[0].PreviousStock)
	assert.Equal(t, 40, logs[0].NewStock)
}

func TestCreateValidates(t *testing.T) {
	svc, _, db := newService(t)
	seller := testutil.User(t, db, models.RoleAgrovet)

	cases := map[string]catalog.ProductInput{
		"no name":        {Price: decimal.NewFromInt(1)},
		"zero price":     {ProductName: "x"},
		"negative stock": {ProductName: "x", Price: decimal.NewFromInt(1), Quantity: -1},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), seller.ID, in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestUpdateRejectsStockChangesAndForeignSellers(t *testing.T) {
	svc, _, db := newService(t)
	ctx := context.Background()
	seller := testutil.User(t, db, models.RoleAgrovet)
	other := testutil.User(t, db, models.RoleAgrovet)
	p := testutil.Product(t, db, seller.ID, 5, "100")

	qty := 50
	_, err := svc.Update(ctx, seller.ID, p.ID, catalog.ProductUpdate{Quantity: &qty})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	price := decimal.RequireFromString("120.5")
	_, err = svc.Update(ctx, other.ID, p.ID, catalog.ProductUpdate{Price: &price})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	updated, err := svc.Update(ctx, seller.ID, p.ID, catalog.ProductUpdate{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "120.50", updated.Price.StringFixed(2))
	assert.Equal(t, 5, updated.Quantity)
}

func TestRestockAddsStockAndLogs(t *testing.T) {
	svc, l, db := newService(t)
	ctx := context.Background()
	seller := testutil.User(t, db, models.RoleAgrovet)
	p := testutil.Product(t, db, seller.ID, 2, "100")

	item, err := svc.Restock(ctx, seller.ID, p.ID, 8, "delivery from supplier")
	require.NoError(t, err)
	assert.Equal(t, 10, item.Quantity)
	assert.Equal(t, 10, testutil.Stock(t, db, p.ID))

	logs, err := l.ListBySeller(ctx, seller.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ReasonRestock, logs[0].Reason)
	assert.Equal(t, 2, logs[0].PreviousStock)
	assert.Equal(t, 10, logs[0].NewStock)
	assert.Equal(t, "delivery from supplier", logs[0].Note)

	_, err = svc.Restock(ctx, seller.ID, p.ID, 0, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Restock(ctx, seller.ID, 9999, 1, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAdjustSetsAbsoluteStock(t *testing.T) {
	svc, l, db := newService(t)
	ctx := context.Background()
	seller := testutil.User(t, db, models.RoleAgrovet)
	p := testutil.Product(t, db, seller.ID, 12, "100")

	item, err := svc.Adjust(ctx, seller.ID, p.ID, 9, "stock take")
	require.NoError(t, err)
	assert.Equal(t, 9, item.Quantity)

	logs, err := l.ListByProduct(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, -3, logs[0].Delta)
	assert.Equal(t, models.ReasonAdjustment, logs[0].Reason)

	_, err = svc.Adjust(ctx, seller.ID, p.ID, -1, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestConcurrentRestocksAreAllApplied(t *testing.T) {
	svc, _, db := newService(t)
	ctx := context.Background()
	seller := testutil.User(t, db, models.RoleAgrovet)
	p := testutil.Product(t, db, seller.ID, 0, "100")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Restock(ctx, seller.ID, p.ID, 3, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 30, testutil.Stock(t, db, p.ID))
}

func TestDecrementStockNeverGoesNegative(t *testing.T) {
	_, _, db := newService(t)
	seller := testutil.User(t, db, models.RoleAgrovet)
	p := testutil.Product(t, db, seller.ID, 3, "10")

	require.NoError(t, catalog.DecrementStock(db, p.ID, 2))
	assert.ErrorIs(t, catalog.DecrementStock(db, p.ID, 2), catalog.ErrStockConflict)
	assert.Equal(t, 1, testutil.Stock(t, db, p.ID))
}

func TestStockMovementsRejectBadQuantities(t *testing.T) {
	svc, _, db := newService(t)
	ctx := context.Background()
	seller := testutil.User(t, db, models.RoleAgrovet)
	p := testutil.Product(t, db, seller.ID, 5, "10")

	for _, qty := range []int{0, -3, catalog.MaxMovement + 1} {
		assert.ErrorIs(t, catalog.DecrementStock(db, p.ID, qty), apperr.ErrValidation, qty)
		assert.ErrorIs(t, catalog.IncrementStock(db, p.ID, qty), apperr.ErrValidation, qty)
	}
	_, err := svc.Restock(ctx, seller.ID, p.ID, catalog.MaxMovement+1, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Adjust(ctx, seller.ID, p.ID, 5+catalog.MaxMovement+1, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.Equal(t, 5, testutil.Stock(t, db, p.ID))
	assert.Zero(t, testutil.Count(t, db, &models.InventoryLog{}, "product_id = ?", p.ID))
}

func TestCategoriesSkipSoldOutProducts(t *testing.T) {
	svc, _, db := newService(t)
	ctx := context.Background()
	seller := testutil.User(t, db, models.RoleAgrovet)
	testutil.Product(t, db, seller.ID, 4, "10", func(i *models.InventoryItem) { i.Category = "seeds" })
	testutil.Product(t, db, seller.ID, 0, "10", func(i *models.InventoryItem) { i.Category = "tools" })
	hidden := testutil.Product(t, db, seller.ID, 7, "10", func(i *models.InventoryItem) { i.Category = "feeds" })
	require.NoError(t, db.Model(hidden).UpdateColumn("is_active", false).Error)

	cats, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"seeds"}, cats)
}

func TestListPublicAndLowStock(t *testing.T) {
	svc, _, db := newService(t)
	ctx := context.Background()
	seller := testutil.User(t, db, models.RoleAgrovet)
	testutil.Product(t, db, seller.ID, 50, "10", func(i *models.InventoryItem) { i.ReorderLevel = 5 })
	low := testutil.Product(t, db, seller.ID, 3, "10", func(i *models.InventoryItem) {
		i.ReorderLevel = 5
		i.Category = "seeds"
	})
	empty := testutil.Product(t, db, seller.ID, 0, "10")
	hidden := testutil.Product(t, db, seller.ID, 9, "10")
	require.NoError(t, db.Model(hidden).UpdateColumn("is_active", false).Error)

	items, total, err := svc.ListPublic(ctx, catalog.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	items, _, err = svc.ListPublic(ctx, catalog.Filter{Category: "seeds"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, low.ID, items[0].ID)

	lowItems, err := svc.LowStock(ctx, seller.ID)
	require.NoError(t, err)
	ids := []uint{}
	for _, i := range lowItems {
		ids = append(ids, i.ID)
	}
	assert.ElementsMatch(t, []uint{low.ID, empty.ID}, ids)

	require.NoError(t, svc.Delete(ctx, seller.ID, low.ID))
	_, err = svc.Get(ctx, low.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
