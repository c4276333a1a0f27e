package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	AgrovetID      uint            `gorm:"not null;index" json:"agrovet_id"`
	Name           string          `gorm:"type:varchar(100);not null" json:"name"`
	Email          string          `gorm:"type:varchar(120)" json:"email"`
	Phone          string          `gorm:"type:varchar(20)" json:"phone"`
	Address        string          `gorm:"type:varchar(255)" json:"address"`
	CustomerType   string          `gorm:"type:varchar(50)" json:"customer_type"`
	Notes          string          `gorm:"type:text" json:"notes"`
	TotalPurchases decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_purchases"`
	LastPurchase   *time.Time      `json:"last_purchase,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (Customer) TableName() string {
	return "customers"
}

// Sale is an over-the-counter POS transaction at an agrovet shop.
type Sale struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	AgrovetID     uint            `gorm:"not null;index" json:"agrovet_id"`
	CustomerID    *uint           `gorm:"index" json:"customer_id,omitempty"`
	ReceiptNumber string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"receipt_number"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	PaymentMethod string          `gorm:"type:varchar(50)" json:"payment_method"`
	Status        string          `gorm:"type:varchar(20);default:'completed'" json:"status"`
	Items         []SaleItem      `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	SaleDate      time.Time       `gorm:"index" json:"sale_date"`
}

func (Sale) TableName() string {
	return "sales"
}

type SaleItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	SaleID      uint            `gorm:"not null;index" json:"sale_id"`
	ProductID   uint            `gorm:"not null" json:"product_id"`
	ProductName string          `gorm:"type:varchar(200);not null" json:"product_name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
}

func (SaleItem) TableName() string {
	return "sale_items"
}

// Communication is one CRM contact with a customer, optionally due for follow up.
type Communication struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	CustomerID   uint       `gorm:"not null;index" json:"customer_id"`
	Type         string     `gorm:"column:communication_type;type:varchar(50)" json:"communication_type"`
	Subject      string     `gorm:"type:varchar(200)" json:"subject"`
	Message      string     `gorm:"type:text" json:"message"`
	Date         time.Time  `gorm:"index" json:"date"`
	FollowUpDate *time.Time `gorm:"index" json:"follow_up_date,omitempty"`
	Status       string     `gorm:"type:varchar(50);default:'pending'" json:"status"`
}

func (Communication) TableName() string {
	return "communications"
}
