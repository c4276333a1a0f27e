package pos_test

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evansochadeka/BenFarm/pkg/apperr"
	"github.com/evansochadeka/BenFarm/pkg/catalog"
	"github.com/evansochadeka/BenFarm/pkg/checkout"
	"github.com/evansochadeka/BenFarm/pkg/ledger"
	"github.com/evansochadeka/BenFarm/pkg/models"
	"github.com/evansochadeka/BenFarm/pkg/notify"
	"github.com/evansochadeka/BenFarm/pkg/pos"
	"github.com/evansochadeka/BenFarm/pkg/testutil"
)

func TestSellUpdatesStockLedgerAndCustomer(t *testing.T) {
	db := testutil.DB(t)
	logger := zap.NewNop()
	svc := pos.NewService(db, ledger.New(db, logger), notify.SyncSender{Notifier: notify.NewNotifier(db, logger)}, nil, nil, logger)
	ctx := context.Background()
	shop := testutil.User(t, db, models.RoleAgrovet)
	seed := testutil.Product(t, db, shop.ID, 20, "150", func(i *models.InventoryItem) { i.ReorderLevel = 5 })
	spray := testutil.Product(t, db, shop.ID, 6, "899.99", func(i *models.InventoryItem) { i.ReorderLevel = 5 })

	cust, err := svc.CreateCustomer(ctx, shop.ID, pos.CustomerInput{Name: "Wanjiku", Phone: "0700000000"})
	require.NoError(t, err)

	sale, err := svc.Sell(ctx, shop.ID, pos.SaleRequest{
		CustomerID: &cust.ID,
		Items: []pos.SaleLine{
			{ProductID: seed.ID, Quantity: 2},
			{ProductID: spray.ID, Quantity: 1},
			{ProductID: seed.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sale.ReceiptNumber, "RCP-"))
	assert.Equal(t, "cash", sale.PaymentMethod)
	assert.Equal(t, "1349.99", sale.TotalAmount.StringFixed(2))
	assert.Len(t, sale.Items, 2)

	assert.Equal(t, 17, testutil.Stock(t, db, seed.ID))
	assert.Equal(t, 5, testutil.Stock(t, db, spray.ID))
	assert.Equal(t, int64(2), testutil.Count(t, db, &models.InventoryLog{}, "reference = ? AND reason = ?", sale.ReceiptNumber, models.ReasonSale))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Notification{}, "user_id = ? AND type = ?", shop.ID, notify.TypeStock))

	detail, err := svc.GetCustomer(ctx, shop.ID, cust.ID)
	require.NoError(t, err)
	assert.Equal(t, "1349.99", detail.Customer.TotalPurchases.StringFixed(2))
	assert.NotNil(t, detail.Customer.LastPurchase)
	assert.Len(t, detail.Sales, 1)

	dash := svc.Dashboard(ctx, shop.ID)
	assert.Empty(t, dash.Warnings)
	assert.Equal(t, int64(2), dash.Products)
	assert.Equal(t, int64(1), dash.LowStock)
	assert.Equal(t, int64(1), dash.Customers)
	assert.Equal(t, 1, dash.TodaySales)
	assert.Equal(t, "1349.99", dash.TodayRevenue.StringFixed(2))
}

func TestSellRejectsShortfallAndForeignProducts(t *testing.T) {
	db := testutil.DB(t)
	logger := zap.NewNop()
	svc := pos.NewService(db, ledger.New(db, logger), nil, nil, nil, logger)
	ctx := context.Background()
	shop := testutil.User(t, db, models.RoleAgrovet)
	rival := testutil.User(t, db, models.RoleAgrovet)
	mine := testutil.Product(t, db, shop.ID, 2, "10")
	theirs := testutil.Product(t, db, rival.ID, 50, "10")

	_, err := svc.Sell(ctx, shop.ID, pos.SaleRequest{Items: []pos.SaleLine{{ProductID: mine.ID, Quantity: 3}}})
	assert.ErrorIs(t, err, checkout.ErrInsufficientStock)
	assert.Equal(t, 2, testutil.Stock(t, db, mine.ID))

	_, err = svc.Sell(ctx, shop.ID, pos.SaleRequest{Items: []pos.SaleLine{{ProductID: theirs.ID, Quantity: 1}}})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, 50, testutil.Stock(t, db, theirs.ID))

	_, err = svc.Sell(ctx, shop.ID, pos.SaleRequest{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	missing := uint(4242)
	_, err = svc.Sell(ctx, shop.ID, pos.SaleRequest{CustomerID: &missing, Items: []pos.SaleLine{{ProductID: mine.ID, Quantity: 1}}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Zero(t, testutil.Count(t, db, &models.Sale{}))
}

func TestSellRejectsOverflowingDuplicateLines(t *testing.T) {
	db := testutil.DB(t)
	logger := zap.NewNop()
	svc := pos.NewService(db, ledger.New(db, logger), nil, nil, nil, logger)
	ctx := context.Background()
	shop := testutil.User(t, db, models.RoleAgrovet)
	p := testutil.Product(t, db, shop.ID, 5, "100")

	for _, lines := range [][]pos.SaleLine{
		{{ProductID: p.ID, Quantity: math.MaxInt}, {ProductID: p.ID, Quantity: 2}},
		{{ProductID: p.ID, Quantity: catalog.MaxMovement}, {ProductID: p.ID, Quantity: 1}},
		{{ProductID: p.ID, Quantity: catalog.MaxMovement + 1}},
	} {
		_, err := svc.Sell(ctx, shop.ID, pos.SaleRequest{Items: lines})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	}

	assert.Equal(t, 5, testutil.Stock(t, db, p.ID))
	assert.Zero(t, testutil.Count(t, db, &models.Sale{}))
	assert.Zero(t, testutil.Count(t, db, &models.InventoryLog{}))
}
