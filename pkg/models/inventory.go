package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryItem is a sellable product owned by an agrovet.
type InventoryItem struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	AgrovetID    uint            `gorm:"not null;index" json:"agrovet_id"`
	Agrovet      *User           `gorm:"foreignKey:AgrovetID;constraint:OnDelete:CASCADE" json:"-"`
	ProductName  string          `gorm:"type:varchar(200);not null" json:"product_name"`
	Category     string          `gorm:"type:varchar(100);index" json:"category"`
	Description  string          `gorm:"type:text" json:"description"`
	Quantity     int             `gorm:"not null;default:0" json:"quantity"`
	Unit         string          `gorm:"type:varchar(50)" json:"unit"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	CostPrice    decimal.Decimal `gorm:"type:decimal(12,2)" json:"cost_price"`
	ReorderLevel int             `gorm:"not null" json:"reorder_level"`
	Supplier     string          `gorm:"type:varchar(200)" json:"supplier"`
	SKU          string          `gorm:"type:varchar(100)" json:"sku"`
	Image        string          `gorm:"type:varchar(255)" json:"image"`
	IsActive     bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (InventoryItem) TableName() string {
	return "inventory_items"
}

func (i *InventoryItem) LowStock() bool {
	return i.Quantity <= i.ReorderLevel
}

type LedgerReason string

const (
	ReasonInitial    LedgerReason = "initial"
	ReasonRestock    LedgerReason = "restock"
	ReasonSale       LedgerReason = "sale"
	ReasonOrder      LedgerReason = "order"
	ReasonAdjustment LedgerReason = "adjustment"
)

// InventoryLog is an append-only stock movement. Rows are never updated or deleted.
type InventoryLog struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	ProductID     uint         `gorm:"not null;index" json:"product_id"`
	AgrovetID     uint         `gorm:"not null;index" json:"agrovet_id"`
	PreviousStock int          `gorm:"not null" json:"previous_stock"`
	NewStock      int          `gorm:"not null" json:"new_stock"`
	Delta         int          `gorm:"not null" json:"delta"`
	Reason        LedgerReason `gorm:"type:varchar(20);not null" json:"reason"`
	Reference     string       `gorm:"type:varchar(64);index" json:"reference,omitempty"`
	ActorID       *uint        `json:"actor_id,omitempty"`
	Note          string       `gorm:"type:varchar(255)" json:"note,omitempty"`
	CreatedAt     time.Time    `gorm:"index" json:"created_at"`
}

func (InventoryLog) TableName() string {
	return "inventory_logs"
}
