package checkout_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/apperr"
	"github.com/evansochadeka/BenFarm/pkg/cart"
	"github.com/evansochadeka/BenFarm/pkg/catalog"
	"github.com/evansochadeka/BenFarm/pkg/checkout"
	"github.com/evansochadeka/BenFarm/pkg/config"
	"github.com/evansochadeka/BenFarm/pkg/ledger"
	"github.com/evansochadeka/BenFarm/pkg/models"
	"github.com/evansochadeka/BenFarm/pkg/notify"
	"github.com/evansochadeka/BenFarm/pkg/testutil"
)

type fixture struct {
	db     *gorm.DB
	store  *cart.MemoryStore
	svc    *checkout.Service
	seller *models.User
	buyer  *models.User
}

func defaultRates() config.FeeRates {
	return config.FeeRates{
		Rider:    decimal.RequireFromString("0.10"),
		Platform: decimal.RequireFromString("0.10"),
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	logger := zap.NewNop()
	store := cart.NewMemoryStore()
	svc := checkout.NewService(checkout.Deps{
		DB:     db,
		Carts:  store,
		Ledger: ledger.New(db, logger),
		Sender: notify.SyncSender{Notifier: notify.NewNotifier(db, logger)},
		Rates:  defaultRates(),
		Logger: logger,
	})
	return &fixture{
		db:     db,
		store:  store,
		svc:    svc,
		seller: testutil.User(t, db, models.RoleAgrovet),
		buyer:  testutil.User(t, db, models.RoleFarmer),
	}
}

func TestCheckoutDecrementsStockAndAddsFees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.Product(t, f.db, f.seller.ID, 5, "100")
	require.NoError(t, f.store.Set(ctx, f.buyer.ID, p.ID, 3))

	res, err := f.svc.Checkout(ctx, f.buyer.ID, "")
	require.NoError(t, err)

	assert.Equal(t, "300.00", res.Subtotal.StringFixed(2))
	assert.Equal(t, "30.00", res.RiderFee.StringFixed(2))
	assert.Equal(t, "30.00", res.PlatformFee.StringFixed(2))
	assert.Equal(t, "360.00", res.Total.StringFixed(2))
	assert.Equal(t, 2, testutil.Stock(t, f.db, p.ID))

	var order models.Order
	require.NoError(t, f.db.Preload("Items").First(&order, res.OrderID).Error)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, res.Reference, order.Reference)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.Equal(t, f.seller.ID, order.Items[0].SellerID)
	assert.Equal(t, "100.00", order.Items[0].UnitPrice.StringFixed(2))

	var logs []models.InventoryLog
	require.NoError(t, f.db.Where("product_id = ?", p.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ReasonOrder, logs[0].Reason)
	assert.Equal(t, 5, logs[0].PreviousStock)
	assert.Equal(t, 2, logs[0].NewStock)
	assert.Equal(t, -3, logs[0].Delta)
	assert.Equal(t, res.Reference, logs[0].Reference)

	items, err := f.store.Get(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, f.buyer.ID, "")
	assert.ErrorIs(t, err, checkout.ErrCartEmpty)

	p := testutil.Product(t, f.db, f.seller.ID, 5, "100")
	require.NoError(t, f.store.Set(ctx, f.buyer.ID, p.ID, 1))
	_, err = f.svc.Checkout(ctx, f.buyer.ID, "")
	require.NoError(t, err)

	// a second submission sees the cleared cart
	_, err = f.svc.Checkout(ctx, f.buyer.ID, "")
	assert.ErrorIs(t, err, checkout.ErrCartEmpty)
	assert.Equal(t, int64(1), testutil.Count(t, f.db, &models.Order{}))
}

func TestCheckoutShortfallLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.Product(t, f.db, f.seller.ID, 2, "100")
	require.NoError(t, f.store.Set(ctx, f.buyer.ID, p.ID, 5))

	_, err := f.svc.Checkout(ctx, f.buyer.ID, "")
	require.ErrorIs(t, err, checkout.ErrInsufficientStock)

	var sf *checkout.ShortfallError
	require.True(t, errors.As(err, &sf))
	require.Len(t, sf.Lines, 1)
	assert.Equal(t, p.ID, sf.Lines[0].ProductID)
	assert.Equal(t, 5, sf.Lines[0].Requested)
	assert.Equal(t, 2, sf.Lines[0].Available)

	assert.Equal(t, 2, testutil.Stock(t, f.db, p.ID))
	assert.Zero(t, testutil.Count(t, f.db, &models.Order{}))
	assert.Zero(t, testutil.Count(t, f.db, &models.OrderItem{}))
	assert.Zero(t, testutil.Count(t, f.db, &models.InventoryLog{}))

	items, err := f.store.Get(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, items[p.ID], "a rejected cart is kept")
}

func TestCheckoutIsAllOrNothingAcrossLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plenty := testutil.Product(t, f.db, f.seller.ID, 10, "50")
	scarce := testutil.Product(t, f.db, f.seller.ID, 1, "20")
	gone := testutil.Product(t, f.db, f.seller.ID, 10, "20")
	require.NoError(t, f.db.Model(gone).UpdateColumn("is_active", false).Error)

	_, err := f.svc.Place(ctx, f.buyer.ID, map[uint]int{plenty.ID: 2, scarce.ID: 3, gone.ID: 1}, "")
	var sf *checkout.ShortfallError
	require.True(t, errors.As(err, &sf))
	require.Len(t, sf.Lines, 2)
	assert.Equal(t, scarce.ID, sf.Lines[0].ProductID)
	assert.Equal(t, checkout.ReasonOutOfStock, sf.Lines[0].Reason)
	assert.Equal(t, gone.ID, sf.Lines[1].ProductID)
	assert.Equal(t, checkout.ReasonUnavailable, sf.Lines[1].Reason)

	assert.Equal(t, 10, testutil.Stock(t, f.db, plenty.ID))
	assert.Equal(t, 1, testutil.Stock(t, f.db, scarce.ID))
	assert.Zero(t, testutil.Count(t, f.db, &models.Order{}))
}

func TestCheckoutRejectsUnknownProductAndBadQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Place(ctx, f.buyer.ID, map[uint]int{999: 1}, "")
	assert.ErrorIs(t, err, checkout.ErrInsufficientStock)

	p := testutil.Product(t, f.db, f.seller.ID, 5, "10")
	_, err = f.svc.Place(ctx, f.buyer.ID, map[uint]int{p.ID: 0}, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.svc.Place(ctx, f.buyer.ID, map[uint]int{p.ID: -4}, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.svc.Place(ctx, f.buyer.ID, map[uint]int{p.ID: catalog.MaxMovement + 1}, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 5, testutil.Stock(t, f.db, p.ID))
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.Product(t, f.db, f.seller.ID, 5, "100")
	other := testutil.User(t, f.db, models.RoleFarmer)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, buyer := range []uint{f.buyer.ID, other.ID} {
		wg.Add(1)
		go func(i int, buyer uint) {
			defer wg.Done()
			_, errs[i] = f.svc.Place(ctx, buyer, map[uint]int{p.ID: 3}, "")
		}(i, buyer)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, checkout.ErrInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, 2, testutil.Stock(t, f.db, p.ID))
	assert.Equal(t, int64(1), testutil.Count(t, f.db, &models.Order{}))
}

func TestManyConcurrentCheckoutsStopAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.Product(t, f.db, f.seller.ID, 5, "10")

	const buyers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	placed := 0
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(buyer uint) {
			defer wg.Done()
			if _, err := f.svc.Place(ctx, buyer, map[uint]int{p.ID: 1}, ""); err == nil {
				mu.Lock()
				placed++
				mu.Unlock()
			}
		}(f.buyer.ID)
	}
	wg.Wait()

	assert.Equal(t, 5, placed)
	assert.Equal(t, 0, testutil.Stock(t, f.db, p.ID))
}

func TestOrderItemKeepsPriceAfterProductChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.Product(t, f.db, f.seller.ID, 5, "100")

	res, err := f.svc.Place(ctx, f.buyer.ID, map[uint]int{p.ID: 1}, "")
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.InventoryItem{}).Where("id = ?", p.ID).
		Updates(map[string]interface{}{"price": decimal.NewFromInt(250), "product_name": "Renamed"}).Error)

	var item models.OrderItem
	require.NoError(t, f.db.Where("order_id = ?", res.OrderID).First(&item).Error)
	assert.Equal(t, "100.00", item.UnitPrice.StringFixed(2))
	assert.Equal(t, p.ProductName, item.ProductName)
}

func TestCheckoutSurvivesLedgerFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.Product(t, f.db, f.seller.ID, 5, "100")
	require.NoError(t, f.db.Migrator().DropTable(&models.InventoryLog{}))

	res, err := f.svc.Place(ctx, f.buyer.ID, map[uint]int{p.ID: 2}, "")
	require.NoError(t, err)
	assert.NotZero(t, res.OrderID)
	assert.Equal(t, 3, testutil.Stock(t, f.db, p.ID))
}

func TestCheckoutAssignsNearestRider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := testutil.User(t, f.db, models.RoleAgrovet, testutil.At(-1.2921, 36.8219))
	testutil.User(t, f.db, models.RoleRider)
	far := testutil.User(t, f.db, models.RoleRider, testutil.At(-4.0435, 39.6682))
	near := testutil.User(t, f.db, models.RoleRider, testutil.At(-1.30, 36.80))
	p := testutil.Product(t, f.db, seller.ID, 5, "100")

	res, err := f.svc.Place(ctx, f.buyer.ID, map[uint]int{p.ID: 1}, "")
	require.NoError(t, err)
	require.NotNil(t, res.RiderID)
	assert.Equal(t, near.ID, *res.RiderID)
	assert.NotEqual(t, far.ID, *res.RiderID)

	var order models.Order
	require.NoError(t, f.db.First(&order, res.OrderID).Error)
	require.NotNil(t, order.RiderID)
	assert.Equal(t, near.ID, *order.RiderID)
	assert.Equal(t, int64(1), testutil.Count(t, f.db, &models.Notification{}, "user_id = ?", near.ID))
}

func TestCheckoutNotifiesBuyerSellerAndLowStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.Product(t, f.db, f.seller.ID, 5, "100", func(i *models.InventoryItem) { i.ReorderLevel = 3 })

	_, err := f.svc.Place(ctx, f.buyer.ID, map[uint]int{p.ID: 3}, "")
	require.NoError(t, err)

	assert.Equal(t, int64(1), testutil.Count(t, f.db, &models.Notification{}, "user_id = ? AND type = ?", f.buyer.ID, notify.TypeOrder))
	assert.Equal(t, int64(1), testutil.Count(t, f.db, &models.Notification{}, "user_id = ? AND type = ?", f.seller.ID, notify.TypeOrder))
	assert.Equal(t, int64(1), testutil.Count(t, f.db, &models.Notification{}, "user_id = ? AND type = ?", f.seller.ID, notify.TypeStock))
}

func TestFeesRoundToCents(t *testing.T) {
	rates := config.FeeRates{
		Rider:    decimal.RequireFromString("0.075"),
		Platform: decimal.RequireFromString("0.10"),
	}
	rider, platform, total := checkout.Fees(decimal.RequireFromString("33.33"), rates)
	assert.Equal(t, "2.50", rider.StringFixed(2))
	assert.Equal(t, "3.33", platform.StringFixed(2))
	assert.Equal(t, "39.16", total.StringFixed(2))
}

func TestHaversine(t *testing.T) {
	// Nairobi to Mombasa
	d := checkout.Haversine(-1.2921, 36.8219, -4.0435, 39.6682)
	assert.InDelta(t, 440, d, 10)
	assert.Zero(t, checkout.Haversine(1, 1, 1, 1))
}

func TestRankByDistancePutsUnlocatedLast(t *testing.T) {
	lat, lng := -1.0, 36.0
	origin := &models.User{Latitude: &lat, Longitude: &lng}
	at := func(id uint, la, ln float64) models.User {
		return models.User{ID: id, Latitude: &la, Longitude: &ln}
	}
	riders := []models.User{{ID: 1}, at(2, 0.0, 36.0), at(3, -1.01, 36.0)}

	ranked := checkout.RankByDistance(riders, origin)
	assert.Equal(t, []uint{3, 2, 1}, []uint{ranked[0].ID, ranked[1].ID, ranked[2].ID})

	ranked = checkout.RankByDistance(riders, nil)
	assert.Equal(t, []uint{1, 2, 3}, []uint{ranked[0].ID, ranked[1].ID, ranked[2].ID})
}
