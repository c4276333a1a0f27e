package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/apperr"
	"github.com/evansochadeka/BenFarm/pkg/ledger"
	"github.com/evansochadeka/BenFarm/pkg/models"
)

type Service struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	logger *zap.Logger
}

func NewService(db *gorm.DB, l *ledger.Ledger, logger *zap.Logger) *Service {
	return &Service{db: db, ledger: l, logger: logger.Named("catalog")}
}

type ProductInput struct {
	ProductName  string          `json:"product_name"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	Quantity     int             `json:"quantity"`
	Unit         string          `json:"unit"`
	Price        decimal.Decimal `json:"price"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	ReorderLevel *int            `json:"reorder_level"`
	Supplier     string          `json:"supplier"`
	SKU          string          `json:"sku"`
	Image        string          `json:"image"`
}

func (in *ProductInput) validate() error {
	in.ProductName = strings.TrimSpace(in.ProductName)
	if in.ProductName == "" {
		return apperr.Invalid("product name is required")
	}
	if !in.Price.IsPositive() {
		return apperr.Invalid("price must be positive")
	}
	if in.CostPrice.IsNegative() {
		return apperr.Invalid("cost price must not be negative")
	}
	if in.Quantity < 0 || in.Quantity > MaxMovement {
		return apperr.Invalid("quantity must be between 0 and %d", MaxMovement)
	}
	if in.ReorderLevel != nil && *in.ReorderLevel < 0 {
		return apperr.Invalid("reorder level must not be negative")
	}
	return nil
}

// Create adds a product for seller and logs its opening stock.
func (s *Service) Create(ctx context.Context, sellerID uint, in ProductInput) (*models.InventoryItem, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	reorder := 10
	if in.ReorderLevel != nil {
		reorder = *in.ReorderLevel
	}

	item := &models.InventoryItem{
		AgrovetID:    sellerID,
		ProductName:  in.ProductName,
		Category:     in.Category,
		Description:  in.Description,
		Quantity:     in.Quantity,
		Unit:         in.Unit,
		Price:        in.Price.Round(2),
		CostPrice:    in.CostPrice.Round(2),
		ReorderLevel: reorder,
		Supplier:     in.Supplier,
		SKU:          in.SKU,
		Image:        in.Image,
		IsActive:     true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		if in.Quantity > 0 {
			s.ledger.Record(ctx, tx, ledger.Entry{
				ProductID: item.ID,
				SellerID:  sellerID,
				Delta:     in.Quantity,
				Reason:    models.ReasonInitial,
				ActorID:   &sellerID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Get returns an active product visible to buyers.
func (s *Service) Get(ctx context.Context, id uint) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := s.db.WithContext(ctx).Where("is_active = ?", true).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("product")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return &item, nil
}

// GetOwned returns a product only if sellerID owns it.
func (s *Service) GetOwned(ctx context.Context, sellerID, id uint) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := s.db.WithContext(ctx).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("product")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if item.AgrovetID != sellerID {
		return nil, fmt.Errorf("product %d belongs to another seller: %w", id, apperr.ErrForbidden)
	}
	return &item, nil
}

func (s *Service) ListOwned(ctx context.Context, sellerID uint) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := s.db.WithContext(ctx).Where("agrovet_id = ?", sellerID).Order("product_name").Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return items, nil
}

type Filter struct {
	Category string
	Search   string
	SellerID uint
	Page     int
	PerPage  int
}

// ListPublic returns active, in-stock products for the marketplace.
func (s *Service) ListPublic(ctx context.Context, f Filter) ([]models.InventoryItem, int64, error) {
	page, perPage := f.Page, f.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 24
	}

	q := s.db.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("is_active = ? AND quantity > 0", true)
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.SellerID != 0 {
		q = q.Where("agrovet_id = ?", f.SellerID)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("product_name LIKE ? OR description LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}
	var items []models.InventoryItem
	if err := q.Order("created_at DESC, id DESC").Offset((page - 1) * perPage).Limit(perPage).Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return items, total, nil
}

// ProductUpdate holds the editable fields. Quantity is accepted only to reject it.
type ProductUpdate struct {
	ProductName  *string          `json:"product_name"`
	Category     *string          `json:"category"`
	Description  *string          `json:"description"`
	Unit         *string          `json:"unit"`
	Price        *decimal.Decimal `json:"price"`
	CostPrice    *decimal.Decimal `json:"cost_price"`
	ReorderLevel *int             `json:"reorder_level"`
	Supplier     *string          `json:"supplier"`
	SKU          *string          `json:"sku"`
	Image        *string          `json:"image"`
	IsActive     *bool            `json:"is_active"`
	Quantity     *int             `json:"quantity"`
}

func (u *ProductUpdate) changes() (map[string]interface{}, error) {
	if u.Quantity != nil {
		return nil, apperr.Invalid("stock changes go through restock or adjustment")
	}
	changes := map[string]interface{}{}
	if u.ProductName != nil {
		name := strings.TrimSpace(*u.ProductName)
		if name == "" {
			return nil, apperr.Invalid("product name is required")
		}
		changes["product_name"] = name
	}
	if u.Price != nil {
		if !u.Price.IsPositive() {
			return nil, apperr.Invalid("price must be positive")
		}
		changes["price"] = u.Price.Round(2)
	}
	if u.CostPrice != nil {
		if u.CostPrice.IsNegative() {
			return nil, apperr.Invalid("cost price must not be negative")
		}
		changes["cost_price"] = u.CostPrice.Round(2)
	}
	if u.ReorderLevel != nil {
		if *u.ReorderLevel < 0 {
			return nil, apperr.Invalid("reorder level must not be negative")
		}
		changes["reorder_level"] = *u.ReorderLevel
	}
	for col, v := range map[string]*string{
		"category": u.Category, "description": u.Description, "unit": u.Unit,
		"supplier": u.Supplier, "sku": u.SKU, "image": u.Image,
	} {
		if v != nil {
			changes[col] = *v
		}
	}
	if u.IsActive != nil {
		changes["is_active"] = *u.IsActive
	}
	return changes, nil
}

// Update edits product details. Existing order items keep their snapshot.
func (s *Service) Update(ctx context.Context, sellerID, id uint, upd ProductUpdate) (*models.InventoryItem, error) {
	changes, err := upd.changes()
	if err != nil {
		return nil, err
	}
	item, err := s.GetOwned(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return item, nil
	}
	if err := s.db.WithContext(ctx).Model(item).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return s.GetOwned(ctx, sellerID, id)
}

// Delete soft-deletes the product.
func (s *Service) Delete(ctx context.Context, sellerID, id uint) error {
	item, err := s.GetOwned(ctx, sellerID, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(item).Error; err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// Restock adds qty units under a row lock and logs the movement.
func (s *Service) Restock(ctx context.Context, sellerID, id uint, qty int, note string) (*models.InventoryItem, error) {
	if err := CheckQuantity(qty); err != nil {
		return nil, err
	}
	var result models.InventoryItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := LockProducts(tx, []uint{id})
		if err != nil {
			return err
		}
		item, ok := locked[id]
		if !ok {
			return apperr.NotFound("product")
		}
		if item.AgrovetID != sellerID {
			return fmt.Errorf("product %d belongs to another seller: %w", id, apperr.ErrForbidden)
		}
		if err := IncrementStock(tx, id, qty); err != nil {
			return err
		}
		s.ledger.Record(ctx, tx, ledger.Entry{
			ProductID:     id,
			SellerID:      sellerID,
			PreviousStock: item.Quantity,
			Delta:         qty,
			Reason:        models.ReasonRestock,
			ActorID:       &sellerID,
			Note:          note,
		})
		result = *item
		result.Quantity += qty
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Product restocked", zap.Uint("product_id", id), zap.Int("qty", qty), zap.Int("stock", result.Quantity))
	return &result, nil
}

// Adjust sets the stock to an absolute count after a physical stock take.
func (s *Service) Adjust(ctx context.Context, sellerID, id uint, newQty int, note string) (*models.InventoryItem, error) {
	if newQty < 0 {
		return nil, apperr.Invalid("stock must not be negative")
	}
	var result models.InventoryItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := LockProducts(tx, []uint{id})
		if err != nil {
			return err
		}
		item, ok := locked[id]
		if !ok {
			return apperr.NotFound("product")
		}
		if item.AgrovetID != sellerID {
			return fmt.Errorf("product %d belongs to another seller: %w", id, apperr.ErrForbidden)
		}
		delta := newQty - item.Quantity
		result = *item
		if delta == 0 {
			return nil
		}
		if delta > 0 {
			err = IncrementStock(tx, id, delta)
		} else {
			err = DecrementStock(tx, id, -delta)
		}
		if err != nil {
			return err
		}
		s.ledger.Record(ctx, tx, ledger.Entry{
			ProductID:     id,
			SellerID:      sellerID,
			PreviousStock: item.Quantity,
			Delta:         delta,
			Reason:        models.ReasonAdjustment,
			ActorID:       &sellerID,
			Note:          note,
		})
		result.Quantity = newQty
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// LowStock lists the seller's active products at or below their reorder level.
func (s *Service) LowStock(ctx context.Context, sellerID uint) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := s.db.WithContext(ctx).
		Where("agrovet_id = ? AND is_active = ? AND quantity <= reorder_level", sellerID, true).
		Order("quantity").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock: %w", err)
	}
	return items, nil
}

// Categories returns the distinct categories of products ListPublic can show.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	var cats []string
	err := s.db.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("is_active = ? AND quantity > 0 AND category <> ''", true).
		Distinct().Order("category").Pluck("category", &cats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return cats, nil
}
