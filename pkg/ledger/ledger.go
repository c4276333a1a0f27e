// Package ledger appends and reads inventory movements.
//
// Entries are written inside the caller's transaction as a savepoint, so a
// failed append is rolled back on its own and never aborts the stock change
// that produced it.
package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/models"
)

const defaultLimit = 100

type Ledger struct {
	db     *gorm.DB
	logger *zap.Logger
}

func New(db *gorm.DB, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, logger: logger.Named("ledger")}
}

// Entry describes one stock movement. NewStock is derived from PreviousStock and Delta.
type Entry struct {
	ProductID     uint
	SellerID      uint
	PreviousStock int
	Delta         int
	Reason        models.LedgerReason
	Reference     string
	ActorID       *uint
	Note          string
}

// Record appends entry using tx, which may be an open transaction. It returns
// false when the entry could not be written; the error is logged, not returned.
func (l *Ledger) Record(ctx context.Context, tx *gorm.DB, entry Entry) bool {
	if tx == nil {
		tx = l.db
	}
	row := &models.InventoryLog{
		ProductID:     entry.ProductID,
		AgrovetID:     entry.SellerID,
		PreviousStock: entry.PreviousStock,
		NewStock:      entry.PreviousStock + entry.Delta,
		Delta:         entry.Delta,
		Reason:        entry.Reason,
		Reference:     entry.Reference,
		ActorID:       entry.ActorID,
		Note:          entry.Note,
	}

	err := tx.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
		return sp.Create(row).Error
	})
	if err != nil {
		l.logger.Error("Failed to record inventory movement",
			zap.Uint("product_id", entry.ProductID),
			zap.String("reason", string(entry.Reason)),
			zap.String("reference", entry.Reference),
			zap.Error(err))
		return false
	}
	return true
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return defaultLimit
	}
	return limit
}

// ListByProduct returns a product's movements, newest first.
func (l *Ledger) ListByProduct(ctx context.Context, productID uint, limit int) ([]models.InventoryLog, error) {
	var logs []models.InventoryLog
	err := l.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit)).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory logs: %w", err)
	}
	return logs, nil
}

// ListBySeller returns every movement across a seller's products, newest first.
func (l *Ledger) ListBySeller(ctx context.Context, sellerID uint, limit int) ([]models.InventoryLog, error) {
	var logs []models.InventoryLog
	err := l.db.WithContext(ctx).
		Where("agrovet_id = ?", sellerID).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit)).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory logs: %w", err)
	}
	return logs, nil
}

// ListByReference returns the movements written for one order or sale.
func (l *Ledger) ListByReference(ctx context.Context, reference string) ([]models.InventoryLog, error) {
	var logs []models.InventoryLog
	err := l.db.WithContext(ctx).Where("reference = ?", reference).Order("id").Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory logs: %w", err)
	}
	return logs, nil
}
