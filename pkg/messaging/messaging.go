// Package messaging stores direct messages between users.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/apperr"
	"github.com/evansochadeka/BenFarm/pkg/models"
	"github.com/evansochadeka/BenFarm/pkg/notify"
)

const (
	maxContent   = 2000
	inboxHorizon = 500
)

type Service struct {
	db     *gorm.DB
	sender notify.Sender
	logger *zap.Logger
}

func NewService(db *gorm.DB, sender notify.Sender, logger *zap.Logger) *Service {
	return &Service{db: db, sender: sender, logger: logger.Named("messaging")}
}

// Conversation summarizes the exchange with one other user.
type Conversation struct {
	With        models.User          `json:"with"`
	LastMessage models.DirectMessage `json:"last_message"`
	Unread      int                  `json:"unread"`
}

func (s *Service) Send(ctx context.Context, from *models.User, to uint, content string) (*models.DirectMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Invalid("message content is required")
	}
	if len(content) > maxContent {
		return nil, apperr.Invalid("message exceeds %d characters", maxContent)
	}
	if to == from.ID {
		return nil, apperr.Invalid("cannot message yourself")
	}
	var receiver models.User
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).First(&receiver, to).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("recipient")
		}
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}
	msg := &models.DirectMessage{SenderID: from.ID, ReceiverID: receiver.ID, Content: content}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	if s.sender != nil {
		s.sender.Send(notify.Message{
			UserID: receiver.ID,
			Title:  "New Message",
			Body:   fmt.Sprintf("%s sent you a message", from.FullName),
			Type:   notify.TypeMessage,
			Link:   fmt.Sprintf("/messages/%d", from.ID),
		})
	}
	return msg, nil
}

// Conversations lists the users userID has exchanged messages with, most recent first.
func (s *Service) Conversations(ctx context.Context, userID uint) ([]Conversation, error) {
	var msgs []models.DirectMessage
	err := s.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").Order("id DESC").
		Limit(inboxHorizon).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	index := map[uint]int{}
	var convs []Conversation
	var others []uint
	for _, m := range msgs {
		other := m.SenderID
		if other == userID {
			other = m.ReceiverID
		}
		i, ok := index[other]
		if !ok {
			i = len(convs)
			index[other] = i
			convs = append(convs, Conversation{LastMessage: m})
			others = append(others, other)
		}
		if m.ReceiverID == userID && !m.IsRead {
			convs[i].Unread++
		}
	}
	if len(others) == 0 {
		return []Conversation{}, nil
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", others).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	for _, u := range users {
		convs[index[u.ID]].With = u
	}
	return convs, nil
}

// Thread returns the messages between userID and otherID oldest first and marks
// the ones addressed to userID as read.
func (s *Service) Thread(ctx context.Context, userID, otherID uint) ([]models.DirectMessage, error) {
	var other models.User
	if err := s.db.WithContext(ctx).First(&other, otherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	var msgs []models.DirectMessage
	err := s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userID, otherID, otherID, userID).
		Order("created_at ASC").Order("id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}
	err = s.db.WithContext(ctx).Model(&models.DirectMessage{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", otherID, userID, false).
		UpdateColumn("is_read", true).Error
	if err != nil {
		s.logger.Warn("Failed to mark messages read", zap.Uint("user_id", userID), zap.Error(err))
	}
	return msgs, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.DirectMessage{}).
		Where("receiver_id = ? AND is_read = ?", userID, false).Count(&n).Error
	return n, err
}

// ListAll pages through every direct message for moderation, newest first.
func (s *Service) ListAll(ctx context.Context, page, perPage int) ([]models.DirectMessage, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.DirectMessage{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}
	var msgs []models.DirectMessage
	err := s.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&msgs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, total, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.DirectMessage{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("message")
	}
	s.logger.Info("Message deleted", zap.Uint("message_id", id))
	return nil
}

// DeleteConversation removes every message exchanged between the two users.
func (s *Service) DeleteConversation(ctx context.Context, a, b uint) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Delete(&models.DirectMessage{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete conversation: %w", res.Error)
	}
	s.logger.Info("Conversation deleted", zap.Uint("user_a", a), zap.Uint("user_b", b), zap.Int64("messages", res.RowsAffected))
	return res.RowsAffected, nil
}
