package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/apperr"
	"github.com/evansochadeka/BenFarm/pkg/catalog"
	"github.com/evansochadeka/BenFarm/pkg/models"
)

type Service struct {
	db    *gorm.DB
	store Store
}

func NewService(db *gorm.DB, store Store) *Service {
	return &Service{db: db, store: store}
}

func (s *Service) Store() Store {
	return s.store
}

type Line struct {
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	SellerID    uint            `json:"seller_id"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
	InStock     int             `json:"in_stock"`
	Available   bool            `json:"available"`
}

type Summary struct {
	Lines     []Line          `json:"lines"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// View prices the cart at current catalog prices. Lines for products that are
// gone or inactive are reported unavailable and excluded from the subtotal.
func (s *Service) View(ctx context.Context, owner uint) (*Summary, error) {
	items, err := s.store.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Lines: []Line{}, Subtotal: decimal.Zero}
	if len(items) == 0 {
		return summary, nil
	}

	ids := make([]uint, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var products []models.InventoryItem
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to load cart products: %w", err)
	}
	byID := make(map[uint]models.InventoryItem, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for _, id := range ids {
		qty := items[id]
		line := Line{ProductID: id, Quantity: qty, UnitPrice: decimal.Zero, LineTotal: decimal.Zero}
		if p, ok := byID[id]; ok {
			line.ProductName = p.ProductName
			line.SellerID = p.AgrovetID
			line.UnitPrice = p.Price
			line.InStock = p.Quantity
			line.Available = p.IsActive && p.Quantity >= qty
			if p.IsActive {
				line.LineTotal = p.Price.Mul(decimal.NewFromInt(int64(qty)))
				summary.Subtotal = summary.Subtotal.Add(line.LineTotal)
			}
		}
		summary.ItemCount += qty
		summary.Lines = append(summary.Lines, line)
	}
	summary.Subtotal = summary.Subtotal.Round(2)
	return summary, nil
}

func (s *Service) checkProduct(ctx context.Context, productID uint) error {
	var item models.InventoryItem
	err := s.db.WithContext(ctx).Select("id", "is_active").First(&item, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("product")
	}
	if err != nil {
		return fmt.Errorf("failed to load product: %w", err)
	}
	if !item.IsActive {
		return apperr.NotFound("product")
	}
	return nil
}

// AddItem increases the quantity of productID by qty.
func (s *Service) AddItem(ctx context.Context, owner, productID uint, qty int) (int, error) {
	if err := catalog.CheckQuantity(qty); err != nil {
		return 0, err
	}
	if err := s.checkProduct(ctx, productID); err != nil {
		return 0, err
	}
	return s.store.Add(ctx, owner, productID, qty)
}

// SetItem replaces the quantity; zero removes the line.
func (s *Service) SetItem(ctx context.Context, owner, productID uint, qty int) error {
	if qty < 0 {
		return apperr.Invalid("quantity must not be negative")
	}
	if qty > catalog.MaxMovement {
		return apperr.Invalid("quantity must not exceed %d", catalog.MaxMovement)
	}
	if qty > 0 {
		if err := s.checkProduct(ctx, productID); err != nil {
			return err
		}
	}
	return s.store.Set(ctx, owner, productID, qty)
}

func (s *Service) RemoveItem(ctx context.Context, owner, productID uint) error {
	return s.store.Remove(ctx, owner, productID)
}

func (s *Service) Clear(ctx context.Context, owner uint) error {
	return s.store.Clear(ctx, owner)
}
