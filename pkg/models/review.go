package models

import "time"

type ReviewStatus string

const (
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// Review is a rating of an agrovet, optionally tied to an order the reviewer placed.
type Review struct {
	ID               uint         `gorm:"primaryKey" json:"id"`
	UserID           uint         `gorm:"not null;index" json:"user_id"`
	AgrovetID        uint         `gorm:"not null;index" json:"agrovet_id"`
	OrderID          *uint        `gorm:"index" json:"order_id,omitempty"`
	Rating           int          `gorm:"not null" json:"rating"`
	Title            string       `gorm:"type:varchar(200);not null" json:"title"`
	Content          string       `gorm:"type:text;not null" json:"content"`
	ServiceType      string       `gorm:"type:varchar(50)" json:"service_type,omitempty"`
	VerifiedPurchase bool         `gorm:"default:false" json:"verified_purchase"`
	IsFeatured       bool         `gorm:"default:false" json:"is_featured"`
	Status           ReviewStatus `gorm:"type:varchar(20);not null;default:'approved';index" json:"status"`
	Response         string       `gorm:"type:text" json:"response,omitempty"`
	ResponseDate     *time.Time   `json:"response_date,omitempty"`
	Reviewer         *User        `gorm:"foreignKey:UserID" json:"reviewer,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (Review) TableName() string {
	return "reviews"
}
