package pos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/apperr"
	"github.com/evansochadeka/BenFarm/pkg/models"
)

const (
	FollowUpPending   = "pending"
	FollowUpCompleted = "completed"
)

var communicationTypes = map[string]bool{
	"call": true, "sms": true, "email": true, "visit": true, "whatsapp": true, "other": true,
}

type CommunicationInput struct {
	Type         string `json:"communication_type"`
	Subject      string `json:"subject"`
	Message      string `json:"message"`
	FollowUpDate string `json:"follow_up_date"`
}

// ownedCustomer loads a customer and checks it belongs to the agrovet's book.
func ownedCustomer(tx *gorm.DB, agrovetID, id uint) (*models.Customer, error) {
	var c models.Customer
	err := tx.First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("customer")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	if c.AgrovetID != agrovetID {
		return nil, fmt.Errorf("customer %d belongs to another agrovet: %w", id, apperr.ErrForbidden)
	}
	return &c, nil
}

// LogCommunication records a contact with a customer. FollowUpDate is YYYY-MM-DD.
func (s *Service) LogCommunication(ctx context.Context, agrovetID, customerID uint, in CommunicationInput) (*models.Communication, error) {
	typ := strings.ToLower(strings.TrimSpace(in.Type))
	if typ == "" {
		typ = "call"
	}
	if !communicationTypes[typ] {
		return nil, apperr.Invalid("unknown communication type %q", in.Type)
	}
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return nil, apperr.Invalid("message is required")
	}
	var followUp *time.Time
	if d := strings.TrimSpace(in.FollowUpDate); d != "" {
		parsed, err := time.ParseInLocation("2006-01-02", d, s.now().Location())
		if err != nil {
			return nil, apperr.Invalid("follow_up_date must be YYYY-MM-DD")
		}
		followUp = &parsed
	}

	db := s.db.WithContext(ctx)
	if _, err := ownedCustomer(db, agrovetID, customerID); err != nil {
		return nil, err
	}
	c := &models.Communication{
		CustomerID:   customerID,
		Type:         typ,
		Subject:      strings.TrimSpace(in.Subject),
		Message:      msg,
		Date:         s.now(),
		FollowUpDate: followUp,
		Status:       FollowUpPending,
	}
	if err := db.Create(c).Error; err != nil {
		return nil, fmt.Errorf("failed to log communication: %w", err)
	}
	s.logger.Info("Customer communication logged",
		zap.Uint("agrovet_id", agrovetID), zap.Uint("customer_id", customerID), zap.String("type", typ))
	return c, nil
}

// CompleteFollowUp closes a pending communication.
func (s *Service) CompleteFollowUp(ctx context.Context, agrovetID, id uint) (*models.Communication, error) {
	db := s.db.WithContext(ctx)
	var c models.Communication
	err := db.First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("communication")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load communication: %w", err)
	}
	if _, err := ownedCustomer(db, agrovetID, c.CustomerID); err != nil {
		return nil, err
	}
	if err := db.Model(&c).Update("status", FollowUpCompleted).Error; err != nil {
		return nil, fmt.Errorf("failed to complete follow up: %w", err)
	}
	c.Status = FollowUpCompleted
	return &c, nil
}

// FollowUps lists the agrovet's pending follow ups due on or before the end of the given day.
func (s *Service) FollowUps(ctx context.Context, agrovetID uint, day time.Time) ([]models.Communication, error) {
	end := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, day.Location())
	var list []models.Communication
	err := s.db.WithContext(ctx).
		Joins("JOIN customers ON customers.id = communications.customer_id").
		Where("customers.agrovet_id = ? AND communications.status = ? AND communications.follow_up_date <= ?",
			agrovetID, FollowUpPending, end).
		Order("communications.follow_up_date").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list follow ups: %w", err)
	}
	return list, nil
}

func (s *Service) communications(ctx context.Context, customerID uint) ([]models.Communication, error) {
	var list []models.Communication
	err := s.db.WithContext(ctx).Where("customer_id = ?", customerID).
		Order("date DESC, id DESC").Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load communications: %w", err)
	}
	return list, nil
}
