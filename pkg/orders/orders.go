package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/apperr"
	"github.com/evansochadeka/BenFarm/pkg/events"
	"github.com/evansochadeka/BenFarm/pkg/models"
	"github.com/evansochadeka/BenFarm/pkg/notify"
	"github.com/evansochadeka/BenFarm/pkg/repository"
)

var ErrStatusChanged = fmt.Errorf("order status changed concurrently: %w", apperr.ErrConflict)

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:   {models.OrderStatusInTransit, models.OrderStatusCancelled},
	models.OrderStatusInTransit: {models.OrderStatusCompleted},
}

func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Service struct {
	db     *gorm.DB
	sender notify.Sender
	events events.Publisher
	audit  repository.Auditor
	logger *zap.Logger
}

func NewService(db *gorm.DB, sender notify.Sender, pub events.Publisher, audit repository.Auditor, logger *zap.Logger) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Service{db: db, sender: sender, events: pub, audit: audit, logger: logger.Named("orders")}
}

func (s *Service) load(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Items").Preload("Buyer").First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("order")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

func involves(order *models.Order, user *models.User) bool {
	if user.Role == models.RoleAdmin || order.BuyerID == user.ID {
		return true
	}
	if order.RiderID != nil && *order.RiderID == user.ID {
		return true
	}
	for _, sid := range order.SellerIDs() {
		if sid == user.ID {
			return true
		}
	}
	return false
}

// Get returns the order if viewer is its buyer, one of its sellers, its rider or an admin.
func (s *Service) Get(ctx context.Context, viewer *models.User, id uint) (*models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !involves(order, viewer) {
		return nil, fmt.Errorf("order %d: %w", id, apperr.ErrForbidden)
	}
	return order, nil
}

func (s *Service) GetByReference(ctx context.Context, reference string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Items").Where("reference = ?", reference).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("order")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

func (s *Service) ListForBuyer(ctx context.Context, buyerID uint) ([]models.Order, error) {
	var list []models.Order
	err := s.db.WithContext(ctx).Preload("Items").
		Where("buyer_id = ?", buyerID).Order("created_at DESC, id DESC").Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return list, nil
}

// ListForSeller returns orders containing the seller's products, with only those items.
func (s *Service) ListForSeller(ctx context.Context, sellerID uint) ([]models.Order, error) {
	var list []models.Order
	err := s.db.WithContext(ctx).
		Preload("Items", "seller_id = ?", sellerID).
		Preload("Buyer").
		Where("id IN (?)", s.db.Model(&models.OrderItem{}).Select("order_id").Where("seller_id = ?", sellerID)).
		Order("created_at DESC, id DESC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list seller orders: %w", err)
	}
	return list, nil
}

// ListForRider returns the rider's deliveries plus unassigned pending orders.
func (s *Service) ListForRider(ctx context.Context, riderID uint) ([]models.Order, error) {
	var list []models.Order
	err := s.db.WithContext(ctx).Preload("Items").Preload("Buyer").
		Where("rider_id = ? OR (rider_id IS NULL AND status = ?)", riderID, models.OrderStatusPending).
		Order("created_at DESC, id DESC").Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	return list, nil
}

func (s *Service) ListAll(ctx context.Context, status string, page, perPage int) ([]models.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	q := s.db.WithContext(ctx).Model(&models.Order{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}
	var list []models.Order
	if err := q.Preload("Items").Order("created_at DESC, id DESC").Offset((page - 1) * perPage).Limit(perPage).Find(&list).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return list, total, nil
}

// allowed reports whether actor may move order to status.
func allowed(order *models.Order, actor *models.User, to models.OrderStatus) bool {
	if actor.Role == models.RoleAdmin {
		return true
	}
	isRider := actor.Role == models.RoleRider &&
		(order.RiderID == nil || *order.RiderID == actor.ID)
	switch to {
	case models.OrderStatusInTransit:
		if isRider {
			return true
		}
		for _, sid := range order.SellerIDs() {
			if sid == actor.ID {
				return true
			}
		}
	case models.OrderStatusCompleted:
		return actor.Role == models.RoleRider && order.RiderID != nil && *order.RiderID == actor.ID
	case models.OrderStatusCancelled:
		return order.BuyerID == actor.ID
	}
	return false
}

// UpdateStatus applies one lifecycle transition. Cancelling does not restock.
func (s *Service) UpdateStatus(ctx context.Context, actor *models.User, id uint, to models.OrderStatus) (*models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	from := order.Status
	if !CanTransition(from, to) {
		return nil, apperr.Invalid("cannot move order from %s to %s", from, to)
	}
	if !allowed(order, actor, to) {
		return nil, fmt.Errorf("%s may not set order %d to %s: %w", actor.Role, id, to, apperr.ErrForbidden)
	}

	updates := map[string]interface{}{"status": to}
	// a rider picking up an unassigned order takes it
	if to == models.OrderStatusInTransit && actor.Role == models.RoleRider && order.RiderID == nil {
		updates["rider_id"] = actor.ID
	}
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrStatusChanged
	}

	order.Status = to
	if rid, ok := updates["rider_id"].(uint); ok {
		order.RiderID = &rid
	}
	s.afterTransition(ctx, actor, order, from)
	return order, nil
}

func (s *Service) afterTransition(ctx context.Context, actor *models.User, order *models.Order, from models.OrderStatus) {
	s.logger.Info("Order status changed",
		zap.Uint("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(order.Status)),
		zap.Uint("actor_id", actor.ID))

	if err := s.events.Publish(ctx, events.EventOrderStatusChanged, order.Reference, events.OrderStatusChangedPayload{
		OrderID:   order.ID,
		Reference: order.Reference,
		From:      string(from),
		To:        string(order.Status),
		ActorID:   actor.ID,
	}); err != nil {
		s.logger.Warn("Failed to publish status event", zap.Uint("order_id", order.ID), zap.Error(err))
	}

	if s.audit != nil {
		entry := &repository.AuditLog{
			Service:  "orders",
			Action:   "status_changed",
			EntityID: order.Reference,
			ActorID:  actor.ID,
			Data:     bson.M{"from": string(from), "to": string(order.Status)},
		}
		go func() {
			if err := s.audit.CreateAuditLog(context.Background(), entry); err != nil {
				s.logger.Warn("Failed to write audit log", zap.Error(err))
			}
		}()
	}

	if s.sender != nil && actor.ID != order.BuyerID {
		s.sender.Send(notify.Message{
			UserID: order.BuyerID,
			Title:  "Order update",
			Body:   fmt.Sprintf("Your order %s is now %s.", order.Reference[:8], statusLabel(order.Status)),
			Type:   notify.TypeOrder,
			Link:   fmt.Sprintf("/orders/%d", order.ID),
		})
	}
}

// History returns the audit trail of an order, newest first.
func (s *Service) History(ctx context.Context, viewer *models.User, id uint) ([]*repository.AuditLog, error) {
	order, err := s.Get(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if s.audit == nil {
		return []*repository.AuditLog{}, nil
	}
	logs, err := s.audit.GetAuditLogs(ctx, order.Reference, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to load order history: %w", err)
	}
	return logs, nil
}

func statusLabel(s models.OrderStatus) string {
	switch s {
	case models.OrderStatusInTransit:
		return "in transit"
	default:
		return string(s)
	}
}

type Summary struct {
	ByStatus map[models.OrderStatus]int64 `json:"by_status"`
	Orders   int64                        `json:"orders"`
	Revenue  decimal.Decimal              `json:"revenue"`
	Fees     decimal.Decimal              `json:"fees"`
}

// Summarize totals orders by status. Revenue and fees count completed orders only.
func (s *Service) Summarize(ctx context.Context) (*Summary, error) {
	var rows []struct {
		Status models.OrderStatus
		Count  int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Order{}).
		Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to summarize orders: %w", err)
	}
	sum := &Summary{ByStatus: map[models.OrderStatus]int64{}, Revenue: decimal.Zero, Fees: decimal.Zero}
	for _, r := range rows {
		sum.ByStatus[r.Status] = r.Count
		sum.Orders += r.Count
	}

	var completed []models.Order
	if err := s.db.WithContext(ctx).Select("total", "rider_fee", "platform_fee").
		Where("status = ?", models.OrderStatusCompleted).Find(&completed).Error; err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	for _, o := range completed {
		sum.Revenue = sum.Revenue.Add(o.Total)
		sum.Fees = sum.Fees.Add(o.PlatformFee)
	}
	return sum, nil
}
