package orders_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/apperr"
	"github.com/evansochadeka/BenFarm/pkg/models"
	"github.com/evansochadeka/BenFarm/pkg/notify"
	"github.com/evansochadeka/BenFarm/pkg/orders"
	"github.com/evansochadeka/BenFarm/pkg/repository"
	"github.com/evansochadeka/BenFarm/pkg/testutil"
)

type world struct {
	db     *gorm.DB
	svc    *orders.Service
	buyer  *models.User
	seller *models.User
	rider  *models.User
	other  *models.User
	admin  *models.User
	order  *models.Order
	stock  *models.InventoryItem
}

func newWorld(t *testing.T) *world {
	t.Helper()
	db := testutil.DB(t)
	w := &world{
		db:     db,
		svc:    orders.NewService(db, notify.SyncSender{Notifier: notify.NewNotifier(db, zap.NewNop())}, nil, repository.NewMemoryAuditor(), zap.NewNop()),
		buyer:  testutil.User(t, db, models.RoleFarmer),
		seller: testutil.User(t, db, models.RoleAgrovet),
		rider:  testutil.User(t, db, models.RoleRider),
		other:  testutil.User(t, db, models.RoleRider),
		admin:  testutil.User(t, db, models.RoleAdmin),
	}
	w.stock = testutil.Product(t, db, w.seller.ID, 5, "100")
	w.order = &models.Order{
		Reference:   uuid.NewString(),
		BuyerID:     w.buyer.ID,
		RiderID:     &w.rider.ID,
		Subtotal:    decimal.NewFromInt(100),
		RiderFee:    decimal.NewFromInt(10),
		PlatformFee: decimal.NewFromInt(10),
		Total:       decimal.NewFromInt(120),
		Status:      models.OrderStatusPending,
		Items: []models.OrderItem{{
			ProductID:   w.stock.ID,
			SellerID:    w.seller.ID,
			ProductName: w.stock.ProductName,
			Quantity:    1,
			UnitPrice:   decimal.NewFromInt(100),
			LineTotal:   decimal.NewFromInt(100),
		}},
	}
	require.NoError(t, db.Create(w.order).Error)
	return w
}

func TestCanTransition(t *testing.T) {
	assert.True(t, orders.CanTransition(models.OrderStatusPending, models.OrderStatusInTransit))
	assert.True(t, orders.CanTransition(models.OrderStatusPending, models.OrderStatusCancelled))
	assert.True(t, orders.CanTransition(models.OrderStatusInTransit, models.OrderStatusCompleted))
	assert.False(t, orders.CanTransition(models.OrderStatusPending, models.OrderStatusCompleted))
	assert.False(t, orders.CanTransition(models.OrderStatusInTransit, models.OrderStatusCancelled))
	assert.False(t, orders.CanTransition(models.OrderStatusCompleted, models.OrderStatusPending))
	assert.False(t, orders.CanTransition(models.OrderStatusCancelled, models.OrderStatusPending))
}

func TestDeliveryLifecycle(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	_, err := w.svc.UpdateStatus(ctx, w.buyer, w.order.ID, models.OrderStatusInTransit)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	o, err := w.svc.UpdateStatus(ctx, w.seller, w.order.ID, models.OrderStatusInTransit)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusInTransit, o.Status)

	_, err = w.svc.UpdateStatus(ctx, w.seller, w.order.ID, models.OrderStatusCompleted)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = w.svc.UpdateStatus(ctx, w.other, w.order.ID, models.OrderStatusCompleted)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = w.svc.UpdateStatus(ctx, w.buyer, w.order.ID, models.OrderStatusCancelled)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	o, err = w.svc.UpdateStatus(ctx, w.rider, w.order.ID, models.OrderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, o.Status)

	assert.Eventually(t, func() bool {
		history, err := w.svc.History(ctx, w.buyer, w.order.ID)
		return err == nil && len(history) == 2
	}, 2*time.Second, 10*time.Millisecond)
	_, err = w.svc.History(ctx, w.other, w.order.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	// buyer heard about both moves
	assert.Equal(t, int64(2), testutil.Count(t, w.db, &models.Notification{}, "user_id = ?", w.buyer.ID))

	sum, err := w.svc.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.ByStatus[models.OrderStatusCompleted])
	assert.Equal(t, "120.00", sum.Revenue.StringFixed(2))
}

func TestCancelDoesNotRestock(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	_, err := w.svc.UpdateStatus(ctx, w.seller, w.order.ID, models.OrderStatusCancelled)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	o, err := w.svc.UpdateStatus(ctx, w.buyer, w.order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, o.Status)
	assert.Equal(t, 5, testutil.Stock(t, w.db, w.stock.ID))
	assert.Zero(t, testutil.Count(t, w.db, &models.InventoryLog{}))
}

func TestUnassignedRiderClaimsOrder(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	require.NoError(t, w.db.Model(w.order).UpdateColumn("rider_id", gorm.Expr("NULL")).Error)

	o, err := w.svc.UpdateStatus(ctx, w.other, w.order.ID, models.OrderStatusInTransit)
	require.NoError(t, err)
	require.NotNil(t, o.RiderID)
	assert.Equal(t, w.other.ID, *o.RiderID)

	deliveries, err := w.svc.ListForRider(ctx, w.other.ID)
	require.NoError(t, err)
	assert.Len(t, deliveries, 1)
}

func TestGetRestrictsToInvolvedUsers(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	for _, u := range []*models.User{w.buyer, w.seller, w.rider, w.admin} {
		o, err := w.svc.Get(ctx, u, w.order.ID)
		require.NoError(t, err, u.Role)
		assert.Len(t, o.Items, 1)
	}
	_, err := w.svc.Get(ctx, w.other, w.order.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = w.svc.Get(ctx, w.admin, 12345)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListsBySeller(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	list, err := w.svc.ListForSeller(ctx, w.seller.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, w.order.ID, list[0].ID)

	list, err = w.svc.ListForSeller(ctx, w.buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	all, total, err := w.svc.ListAll(ctx, "pending", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, all, 1)
}
