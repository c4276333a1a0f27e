package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusInTransit OrderStatus = "in_transit"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusInTransit, OrderStatusCompleted, OrderStatusCancelled:
		return OrderStatus(s), true
	}
	return "", false
}

type Order struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Reference   string          `gorm:"type:varchar(36);uniqueIndex;not null" json:"reference"`
	BuyerID     uint            `gorm:"not null;index" json:"buyer_id"`
	Buyer       *User           `gorm:"foreignKey:BuyerID;constraint:OnDelete:CASCADE" json:"buyer,omitempty"`
	RiderID     *uint           `gorm:"index" json:"rider_id,omitempty"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	RiderFee    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"rider_fee"`
	PlatformFee decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"platform_fee"`
	Total       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	Status      OrderStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Notes       string          `gorm:"type:text" json:"notes,omitempty"`
	Items       []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// SellerIDs returns the distinct sellers of the order's items in item order.
func (o *Order) SellerIDs() []uint {
	seen := make(map[uint]bool, len(o.Items))
	var ids []uint
	for _, item := range o.Items {
		if !seen[item.SellerID] {
			seen[item.SellerID] = true
			ids = append(ids, item.SellerID)
		}
	}
	return ids
}

// OrderItem snapshots the product at purchase time; UnitPrice never follows later price edits.
type OrderItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrderID     uint            `gorm:"not null;index" json:"order_id"`
	ProductID   uint            `gorm:"not null;index" json:"product_id"`
	SellerID    uint            `gorm:"not null;index" json:"seller_id"`
	ProductName string          `gorm:"type:varchar(200);not null" json:"product_name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"line_total"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
