package catalog

import (
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/evansochadeka/BenFarm/pkg/apperr"
	"github.com/evansochadeka/BenFarm/pkg/models"
)

// MaxMovement caps the units a single stock movement may carry.
const MaxMovement = 1_000_000

// ErrStockConflict means a conditional decrement matched no row: the product
// vanished or another transaction took the stock first.
var ErrStockConflict = errors.New("stock changed concurrently")

// CheckQuantity rejects movements outside 1..MaxMovement.
func CheckQuantity(qty int) error {
	if qty <= 0 {
		return apperr.Invalid("quantity must be positive")
	}
	if qty > MaxMovement {
		return apperr.Invalid("quantity must not exceed %d", MaxMovement)
	}
	return nil
}

// LockProducts loads the given products inside tx in ascending id order, taking
// row locks where the dialect supports them. Missing ids are absent from the map.
func LockProducts(tx *gorm.DB, ids []uint) (map[uint]*models.InventoryItem, error) {
	sorted := append([]uint(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	locked := make(map[uint]*models.InventoryItem, len(sorted))
	for _, id := range sorted {
		if _, seen := locked[id]; seen {
			continue
		}
		var item models.InventoryItem
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&item, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to lock product %d: %w", id, err)
		}
		locked[id] = &item
	}
	return locked, nil
}

// DecrementStock removes qty units only if at least qty remain.
func DecrementStock(tx *gorm.DB, productID uint, qty int) error {
	if err := CheckQuantity(qty); err != nil {
		return err
	}
	res := tx.Model(&models.InventoryItem{}).
		Where("id = ? AND quantity >= ?", productID, qty).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return fmt.Errorf("failed to decrement stock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStockConflict
	}
	return nil
}

// IncrementStock adds qty units to an existing product.
func IncrementStock(tx *gorm.DB, productID uint, qty int) error {
	if err := CheckQuantity(qty); err != nil {
		return err
	}
	res := tx.Model(&models.InventoryItem{}).
		Where("id = ?", productID).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", qty))
	if res.Error != nil {
		return fmt.Errorf("failed to increment stock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStockConflict
	}
	return nil
}
