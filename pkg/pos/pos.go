// Package pos records over-the-counter sales and the agrovet's customer book.
package pos

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
	"github.com/evansochadeka/BenFarm/pkg/catalog"
	"github.com/evansochadeka/BenFarm/pkg/checkout"
	"github.com/evansochadeka/BenFarm/pkg/events"
	"github.com/evansochadeka/BenFarm/pkg/ledger"
	"github.com/evansochadeka/BenFarm/pkg/metrics"
	"github.com/evansochadeka/BenFarm/pkg/models"
	"github.com/evansochadeka/BenFarm/pkg/notify"
)

type Service struct {
	db      *gorm.DB
	ledger  *ledger.Ledger
	sender  notify.Sender
	events  events.Publisher
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(db *gorm.DB, l *ledger.Ledger, sender notify.Sender, pub events.Publisher, m *metrics.Metrics, logger *zap.Logger) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Service{db: db, ledger: l, sender: sender, events: pub, metrics: m, logger: logger.Named("pos"), now: time.Now}
}

type SaleLine struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type SaleRequest struct {
	CustomerID    *uint      `json:"customer_id"`
	PaymentMethod string     `json:"payment_method"`
	Items         []SaleLine `json:"items"`
}

func receiptNumber(now time.Time) string {
	return fmt.Sprintf("RCP-%s-%s", now.Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}

// Sell records a shop sale. Stock, ledger and customer totals change together or not at all.
func (s *Service) Sell(ctx context.Context, agrovetID uint, req SaleRequest) (*models.Sale, error) {
	if len(req.Items) == 0 {
		return nil, apperr.Invalid("a sale needs at least one item")
	}
	qty := map[uint]int{}
	for _, l := range req.Items {
		if l.Quantity <= 0 {
			return nil, apperr.Invalid("quantity for product %d must be positive", l.ProductID)
		}
		if l.Quantity > catalog.MaxMovement-qty[l.ProductID] {
			return nil, apperr.Invalid("quantity for product %d must not exceed %d", l.ProductID, catalog.MaxMovement)
		}
		qty[l.ProductID] += l.Quantity
	}
	ids := make([]uint, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	method := req.PaymentMethod
	if method == "" {
		method = "cash"
	}
	now := s.now()
	sale := &models.Sale{
		AgrovetID:     agrovetID,
		CustomerID:    req.CustomerID,
		ReceiptNumber: receiptNumber(now),
		PaymentMethod: method,
		Status:        "completed",
		SaleDate:      now,
	}

	var low []models.InventoryItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.CustomerID != nil {
			var c models.Customer
			if err := tx.Where("id = ? AND agrovet_id = ?", *req.CustomerID, agrovetID).First(&c).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("customer")
				}
				return fmt.Errorf("failed to load customer: %w", err)
			}
		}

		locked, err := catalog.LockProducts(tx, ids)
		if err != nil {
			return err
		}
		var shortfalls []checkout.Shortfall
		for _, id := range ids {
			p, ok := locked[id]
			if ok && p.AgrovetID != agrovetID {
				return fmt.Errorf("product %d belongs to another seller: %w", id, apperr.ErrForbidden)
			}
			switch {
			case !ok || !p.IsActive:
				shortfalls = append(shortfalls, checkout.Shortfall{ProductID: id, Requested: qty[id], Reason: checkout.ReasonUnavailable})
			case p.Quantity < qty[id]:
				shortfalls = append(shortfalls, checkout.Shortfall{
					ProductID: id, ProductName: p.ProductName, Requested: qty[id], Available: p.Quantity, Reason: checkout.ReasonOutOfStock,
				})
			}
		}
		if len(shortfalls) > 0 {
			return &checkout.ShortfallError{Lines: shortfalls}
		}

		total := decimal.Zero
		for _, id := range ids {
			p, q := locked[id], qty[id]
			if err := catalog.DecrementStock(tx, id, q); err != nil {
				if errors.Is(err, catalog.ErrStockConflict) {
					return &checkout.ShortfallError{Lines: []checkout.Shortfall{{
						ProductID: id, ProductName: p.ProductName, Requested: q, Available: p.Quantity, Reason: checkout.ReasonOutOfStock,
					}}}
				}
				return err
			}
			sub := p.Price.Mul(decimal.NewFromInt(int64(q))).Round(2)
			total = total.Add(sub)
			sale.Items = append(sale.Items, models.SaleItem{
				ProductID:   id,
				ProductName: p.ProductName,
				Quantity:    q,
				UnitPrice:   p.Price,
				Subtotal:    sub,
			})
			if p.Quantity-q <= p.ReorderLevel {
				after := *p
				after.Quantity -= q
				low = append(low, after)
			}
		}
		sale.TotalAmount = total

		if err := tx.Create(sale).Error; err != nil {
			return fmt.Errorf("failed to create sale: %w", err)
		}
		for _, id := range ids {
			s.ledger.Record(ctx, tx, ledger.Entry{
				ProductID:     id,
				SellerID:      agrovetID,
				PreviousStock: locked[id].Quantity,
				Delta:         -qty[id],
				Reason:        models.ReasonSale,
				Reference:     sale.ReceiptNumber,
				ActorID:       &agrovetID,
			})
		}

		if req.CustomerID != nil {
			err := tx.Model(&models.Customer{}).Where("id = ?", *req.CustomerID).Updates(map[string]interface{}{
				"total_purchases": gorm.Expr("total_purchases + ?", total),
				"last_purchase":   now,
			}).Error
			if err != nil {
				return fmt.Errorf("failed to update customer: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterSale(ctx, sale, low)
	return sale, nil
}

func (s *Service) afterSale(ctx context.Context, sale *models.Sale, low []models.InventoryItem) {
	s.logger.Info("Sale recorded",
		zap.String("receipt", sale.ReceiptNumber),
		zap.Uint("agrovet_id", sale.AgrovetID),
		zap.String("total", sale.TotalAmount.StringFixed(2)))

	if s.metrics != nil {
		for _, it := range sale.Items {
			s.metrics.StockMovements.WithLabelValues(string(models.ReasonSale)).Add(float64(it.Quantity))
		}
	}
	if err := s.events.Publish(ctx, events.EventSaleCompleted, sale.ReceiptNumber, events.SaleCompletedPayload{
		SaleID:        sale.ID,
		ReceiptNumber: sale.ReceiptNumber,
		SellerID:      sale.AgrovetID,
		Total:         sale.TotalAmount.StringFixed(2),
	}); err != nil {
		s.logger.Warn("Failed to publish sale event", zap.Error(err))
	}
	if s.sender == nil {
		return
	}
	for _, p := range low {
		s.sender.Send(notify.Message{
			UserID: p.AgrovetID,
			Title:  "Low stock alert",
			Body:   fmt.Sprintf("%s is down to %d units (reorder level %d).", p.ProductName, p.Quantity, p.ReorderLevel),
			Type:   notify.TypeStock,
			Link:   fmt.Sprintf("/inventory/%d", p.ID),
		})
	}
}

func (s *Service) ListSales(ctx context.Context, agrovetID uint, limit int) ([]models.Sale, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var sales []models.Sale
	err := s.db.WithContext(ctx).Preload("Items").
		Where("agrovet_id = ?", agrovetID).
		Order("sale_date DESC, id DESC").Limit(limit).Find(&sales).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	return sales, nil
}

type CustomerInput struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	CustomerType string `json:"customer_type"`
	Notes        string `json:"notes"`
}

func (s *Service) CreateCustomer(ctx context.Context, agrovetID uint, in CustomerInput) (*models.Customer, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Invalid("customer name is required")
	}
	typ := in.CustomerType
	if typ == "" {
		typ = "farmer"
	}
	c := &models.Customer{
		AgrovetID:      agrovetID,
		Name:           name,
		Email:          strings.TrimSpace(in.Email),
		Phone:          strings.TrimSpace(in.Phone),
		Address:        in.Address,
		CustomerType:   typ,
		Notes:          in.Notes,
		TotalPurchases: decimal.Zero,
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return c, nil
}

func (s *Service) ListCustomers(ctx context.Context, agrovetID uint, search string) ([]models.Customer, error) {
	q := s.db.WithContext(ctx).Where("agrovet_id = ?", agrovetID)
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("name LIKE ? OR phone LIKE ? OR email LIKE ?", like, like, like)
	}
	var list []models.Customer
	if err := q.Order("name").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return list, nil
}

type CustomerDetail struct {
	Customer       models.Customer        `json:"customer"`
	Sales          []models.Sale          `json:"sales"`
	Communications []models.Communication `json:"communications"`
}

func (s *Service) GetCustomer(ctx context.Context, agrovetID, id uint) (*CustomerDetail, error) {
	var c models.Customer
	err := s.db.WithContext(ctx).Where("id = ? AND agrovet_id = ?", id, agrovetID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("customer")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	var sales []models.Sale
	if err := s.db.WithContext(ctx).Preload("Items").Where("customer_id = ?", id).
		Order("sale_date DESC").Limit(20).Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("failed to load purchases: %w", err)
	}
	comms, err := s.communications(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CustomerDetail{Customer: c, Sales: sales, Communications: comms}, nil
}

type Dashboard struct {
	Products     int64           `json:"products"`
	LowStock     int64           `json:"low_stock"`
	Customers    int64           `json:"customers"`
	TodayRevenue decimal.Decimal `json:"today_revenue"`
	TodaySales   int             `json:"today_sales"`
	FollowUpsDue int             `json:"follow_ups_due"`
	RecentSales  []models.Sale   `json:"recent_sales"`
	Warnings     []string        `json:"warnings,omitempty"`
}

// Dashboard summarises the shop. A failed section is left empty and named in Warnings.
func (s *Service) Dashboard(ctx context.Context, agrovetID uint) *Dashboard {
	d := &Dashboard{TodayRevenue: decimal.Zero, RecentSales: []models.Sale{}}
	warn := func(section string, err error) {
		s.logger.Warn("Dashboard section failed", zap.String("section", section), zap.Error(err))
		d.Warnings = append(d.Warnings, section+" unavailable")
	}
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.InventoryItem{}).Where("agrovet_id = ?", agrovetID).Count(&d.Products).Error; err != nil {
		warn("products", err)
	}
	if err := db.Model(&models.InventoryItem{}).
		Where("agrovet_id = ? AND is_active = ? AND quantity <= reorder_level", agrovetID, true).
		Count(&d.LowStock).Error; err != nil {
		warn("low stock", err)
	}
	if err := db.Model(&models.Customer{}).Where("agrovet_id = ?", agrovetID).Count(&d.Customers).Error; err != nil {
		warn("customers", err)
	}

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var today []models.Sale
	if err := db.Select("id", "total_amount").
		Where("agrovet_id = ? AND sale_date >= ?", agrovetID, midnight).Find(&today).Error; err != nil {
		warn("revenue", err)
	}
	for _, sale := range today {
		d.TodayRevenue = d.TodayRevenue.Add(sale.TotalAmount)
	}
	d.TodaySales = len(today)

	if err := db.Preload("Items").Where("agrovet_id = ?", agrovetID).
		Order("sale_date DESC, id DESC").Limit(5).Find(&d.RecentSales).Error; err != nil {
		warn("recent sales", err)
	}
	if due, err := s.FollowUps(ctx, agrovetID, now); err != nil {
		warn("follow ups", err)
	} else {
		d.FollowUpsDue = len(due)
	}
	return d
}
