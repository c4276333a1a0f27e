package models

import (
	"time"
)

type ReportStatus string

const (
	ReportStatusAnalyzed ReportStatus = "analyzed"
	ReportStatusReviewed ReportStatus = "reviewed"
)

type DiseaseReport struct {
	ID                      uint              `gorm:"primaryKey" json:"id"`
	FarmerID                uint              `gorm:"not null;index" json:"farmer_id"`
	ImageRef                string            `gorm:"type:varchar(255)" json:"image_ref,omitempty"`
	Description             string            `gorm:"type:text" json:"description"`
	PlantName               string            `gorm:"type:varchar(100)" json:"plant_name"`
	DiseaseName             string            `gorm:"type:varchar(200)" json:"disease_name"`
	ScientificName          string            `gorm:"type:varchar(200)" json:"scientific_name"`
	ConfidenceScore         float64           `json:"confidence_score"`
	Symptoms                string            `gorm:"type:text" json:"symptoms"`
	Treatment               string            `gorm:"type:text" json:"treatment"`
	Medications             []string          `gorm:"type:text;serializer:json" json:"medications"`
	PreventionTips          string            `gorm:"type:text" json:"prevention_tips"`
	EnvironmentalConditions map[string]string `gorm:"type:text;serializer:json" json:"environmental_conditions"`
	AdditionalAdvice        string            `gorm:"type:text" json:"additional_advice"`
	Location                string            `gorm:"type:varchar(200)" json:"location"`
	Status                  ReportStatus      `gorm:"type:varchar(20);not null;default:'analyzed';index" json:"status"`
	ReviewedBy              *uint             `json:"reviewed_by,omitempty"`
	ReviewNotes             string            `gorm:"type:text" json:"review_notes,omitempty"`
	CreatedAt               time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at"`
}

func (DiseaseReport) TableName() string {
	return "disease_reports"
}

// All lists every entity for AutoMigrate in dependency order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&InventoryItem{},
		&InventoryLog{},
		&Order{},
		&OrderItem{},
		&Customer{},
		&Sale{},
		&SaleItem{},
		&Communication{},
		&Notification{},
		&CommunityPost{},
		&CommunityReply{},
		&PostLike{},
		&ReplyMention{},
		&DirectMessage{},
		&ChatMessage{},
		&DiseaseReport{},
		&Review{},
	}
}
