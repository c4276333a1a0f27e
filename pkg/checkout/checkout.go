package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/apperr"
	"github.com/evansochadeka/BenFarm/pkg/cart"
	"github.com/evansochadeka/BenFarm/pkg/catalog"
	"github.com/evansochadeka/BenFarm/pkg/config"
	"github.com/evansochadeka/BenFarm/pkg/events"
	"github.com/evansochadeka/BenFarm/pkg/ledger"
	"github.com/evansochadeka/BenFarm/pkg/metrics"
	"github.com/evansochadeka/BenFarm/pkg/models"
	"github.com/evansochadeka/BenFarm/pkg/notify"
)

type Deps struct {
	DB      *gorm.DB
	Carts   cart.Store
	Ledger  *ledger.Ledger
	Sender  notify.Sender
	Events  events.Publisher
	Metrics *metrics.Metrics
	Rates   config.FeeRates
	Logger  *zap.Logger
}

type Service struct {
	db      *gorm.DB
	carts   cart.Store
	ledger  *ledger.Ledger
	sender  notify.Sender
	events  events.Publisher
	metrics *metrics.Metrics
	rates   config.FeeRates
	logger  *zap.Logger
}

func NewService(d Deps) *Service {
	if d.Events == nil {
		d.Events = events.NopPublisher{}
	}
	return &Service{
		db:      d.DB,
		carts:   d.Carts,
		ledger:  d.Ledger,
		sender:  d.Sender,
		events:  d.Events,
		metrics: d.Metrics,
		rates:   d.Rates,
		logger:  d.Logger.Named("checkout"),
	}
}

type Result struct {
	OrderID     uint            `json:"order_id"`
	Reference   string          `json:"reference"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	RiderFee    decimal.Decimal `json:"rider_fee"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	Total       decimal.Decimal `json:"total"`
	RiderID     *uint           `json:"rider_id,omitempty"`
}

// Fees splits a subtotal into the configured surcharges, rounded to cents.
func Fees(subtotal decimal.Decimal, rates config.FeeRates) (rider, platform, total decimal.Decimal) {
	subtotal = subtotal.Round(2)
	rider = subtotal.Mul(rates.Rider).Round(2)
	platform = subtotal.Mul(rates.Platform).Round(2)
	total = subtotal.Add(rider).Add(platform)
	return rider, platform, total
}

// Checkout places the buyer's cart as one order and empties the cart.
func (s *Service) Checkout(ctx context.Context, buyerID uint, notes string) (*Result, error) {
	items, err := s.carts.Get(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	res, err := s.Place(ctx, buyerID, items, notes)
	if err != nil {
		return nil, err
	}
	if err := s.carts.Clear(ctx, buyerID); err != nil {
		s.logger.Warn("Failed to clear cart after checkout", zap.Uint("buyer_id", buyerID), zap.Error(err))
	}
	return res, nil
}

type placedLine struct {
	product  models.InventoryItem
	quantity int
}

// Place runs the checkout transaction for items (product id -> quantity).
// Either every line is filled and recorded or nothing changes.
func (s *Service) Place(ctx context.Context, buyerID uint, items map[uint]int, notes string) (*Result, error) {
	start := time.Now()
	res, lines, err := s.place(ctx, buyerID, items, notes)
	s.observe(start, err)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, buyerID, res, lines)
	return res, nil
}

func (s *Service) place(ctx context.Context, buyerID uint, items map[uint]int, notes string) (*Result, []placedLine, error) {
	if len(items) == 0 {
		return nil, nil, ErrCartEmpty
	}
	ids := make([]uint, 0, len(items))
	for id, qty := range items {
		if qty <= 0 || qty > catalog.MaxMovement {
			return nil, nil, apperr.Invalid("quantity for product %d must be between 1 and %d", id, catalog.MaxMovement)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var (
		res   *Result
		lines []placedLine
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := catalog.LockProducts(tx, ids)
		if err != nil {
			return err
		}

		var shortfalls []Shortfall
		for _, id := range ids {
			qty := items[id]
			p, ok := locked[id]
			switch {
			case !ok || !p.IsActive:
				sf := Shortfall{ProductID: id, Requested: qty, Reason: ReasonUnavailable}
				if ok {
					sf.ProductName = p.ProductName
				}
				shortfalls = append(shortfalls, sf)
			case p.Quantity < qty:
				shortfalls = append(shortfalls, Shortfall{
					ProductID:   id,
					ProductName: p.ProductName,
					Requested:   qty,
					Available:   p.Quantity,
					Reason:      ReasonOutOfStock,
				})
			default:
				lines = append(lines, placedLine{product: *p, quantity: qty})
			}
		}
		if len(shortfalls) > 0 {
			return &ShortfallError{Lines: shortfalls}
		}

		subtotal := decimal.Zero
		orderItems := make([]models.OrderItem, 0, len(lines))
		for _, l := range lines {
			if err := catalog.DecrementStock(tx, l.product.ID, l.quantity); err != nil {
				if errors.Is(err, catalog.ErrStockConflict) {
					return &ShortfallError{Lines: []Shortfall{{
						ProductID:   l.product.ID,
						ProductName: l.product.ProductName,
						Requested:   l.quantity,
						Available:   l.product.Quantity,
						Reason:      ReasonOutOfStock,
					}}}
				}
				return err
			}
			lineTotal := l.product.Price.Mul(decimal.NewFromInt(int64(l.quantity))).Round(2)
			subtotal = subtotal.Add(lineTotal)
			orderItems = append(orderItems, models.OrderItem{
				ProductID:   l.product.ID,
				SellerID:    l.product.AgrovetID,
				ProductName: l.product.ProductName,
				Quantity:    l.quantity,
				UnitPrice:   l.product.Price,
				LineTotal:   lineTotal,
			})
		}

		riderFee, platformFee, total := Fees(subtotal, s.rates)
		order := &models.Order{
			Reference:   uuid.NewString(),
			BuyerID:     buyerID,
			Subtotal:    subtotal.Round(2),
			RiderFee:    riderFee,
			PlatformFee: platformFee,
			Total:       total,
			Status:      models.OrderStatusPending,
			Notes:       strings.TrimSpace(notes),
			Items:       orderItems,
		}
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		// LockProducts holds every row until commit, so the locked quantity is the previous stock.
		for _, l := range lines {
			s.ledger.Record(ctx, tx, ledger.Entry{
				ProductID:     l.product.ID,
				SellerID:      l.product.AgrovetID,
				PreviousStock: l.product.Quantity,
				Delta:         -l.quantity,
				Reason:        models.ReasonOrder,
				Reference:     order.Reference,
				ActorID:       &buyerID,
			})
		}

		res = &Result{
			OrderID:     order.ID,
			Reference:   order.Reference,
			Subtotal:    order.Subtotal,
			RiderFee:    riderFee,
			PlatformFee: platformFee,
			Total:       total,
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return res, lines, nil
}

func (s *Service) observe(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	switch {
	case errors.Is(err, ErrInsufficientStock):
		result = "shortfall"
	case errors.Is(err, ErrCartEmpty):
		result = "empty"
	case err != nil:
		result = "error"
	}
	s.metrics.Checkouts.WithLabelValues(result).Inc()
	if err == nil {
		s.metrics.CheckoutDuration.Observe(time.Since(start).Seconds())
	}
}

// afterCommit runs the side effects of a placed order. None of them can fail it.
func (s *Service) afterCommit(ctx context.Context, buyerID uint, res *Result, lines []placedLine) {
	log := s.logger.With(zap.String("reference", res.Reference), zap.Uint("order_id", res.OrderID))
	log.Info("Order placed", zap.Uint("buyer_id", buyerID), zap.String("total", res.Total.StringFixed(2)))

	if len(lines) > 0 {
		rider, err := nearestRider(ctx, s.db, res.OrderID, lines[0].product.AgrovetID)
		if err != nil {
			log.Warn("Rider assignment failed", zap.Error(err))
		} else if rider != nil {
			res.RiderID = &rider.ID
		}
	}

	s.notifyParties(buyerID, res, lines)

	if s.metrics != nil {
		for _, l := range lines {
			s.metrics.StockMovements.WithLabelValues(string(models.ReasonOrder)).Add(float64(l.quantity))
		}
	}

	payload := events.OrderCreatedPayload{
		OrderID:   res.OrderID,
		Reference: res.Reference,
		BuyerID:   buyerID,
		Total:     res.Total.StringFixed(2),
	}
	for _, l := range lines {
		payload.Items = append(payload.Items, events.OrderLine{
			ProductID: l.product.ID,
			SellerID:  l.product.AgrovetID,
			Qty:       l.quantity,
			UnitPrice: l.product.Price.StringFixed(2),
		})
	}
	if err := s.events.Publish(ctx, events.EventOrderCreated, res.Reference, payload); err != nil {
		log.Warn("Failed to publish order event", zap.Error(err))
	}
}

func (s *Service) notifyParties(buyerID uint, res *Result, lines []placedLine) {
	if s.sender == nil {
		return
	}
	link := fmt.Sprintf("/orders/%d", res.OrderID)
	short := res.Reference[:8]

	s.sender.Send(notify.Message{
		UserID: buyerID,
		Title:  "Order placed",
		Body:   fmt.Sprintf("Your order %s totaling KES %s has been placed.", short, res.Total.StringFixed(2)),
		Type:   notify.TypeOrder,
		Link:   link,
	})

	bySeller := map[uint][]string{}
	var sellers []uint
	for _, l := range lines {
		sid := l.product.AgrovetID
		if _, ok := bySeller[sid]; !ok {
			sellers = append(sellers, sid)
		}
		bySeller[sid] = append(bySeller[sid], fmt.Sprintf("%d x %s", l.quantity, l.product.ProductName))
	}
	for _, sid := range sellers {
		s.sender.Send(notify.Message{
			UserID: sid,
			Title:  "New order received",
			Body:   fmt.Sprintf("Order %s: %s", short, strings.Join(bySeller[sid], ", ")),
			Type:   notify.TypeOrder,
			Link:   link,
		})
	}

	if res.RiderID != nil {
		s.sender.Send(notify.Message{
			UserID: *res.RiderID,
			Title:  "New delivery assigned",
			Body:   fmt.Sprintf("Order %s is ready for pickup.", short),
			Type:   notify.TypeOrder,
			Link:   link,
		})
	}

	for _, l := range lines {
		remaining := l.product.Quantity - l.quantity
		if remaining > l.product.ReorderLevel {
			continue
		}
		s.sender.Send(notify.Message{
			UserID: l.product.AgrovetID,
			Title:  "Low stock alert",
			Body:   fmt.Sprintf("%s is down to %d units (reorder level %d).", l.product.ProductName, remaining, l.product.ReorderLevel),
			Type:   notify.TypeStock,
			Link:   fmt.Sprintf("/inventory/%d", l.product.ID),
		})
		if err := s.events.Publish(context.Background(), events.EventStockLow, fmt.Sprint(l.product.ID), events.StockLowPayload{
			ProductID:    l.product.ID,
			SellerID:     l.product.AgrovetID,
			Quantity:     remaining,
			ReorderLevel: l.product.ReorderLevel,
		}); err != nil {
			s.logger.Warn("Failed to publish stock event", zap.Uint("product_id", l.product.ID), zap.Error(err))
		}
	}
}
