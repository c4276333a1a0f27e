package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/apperr"
	"github.com/evansochadeka/BenFarm/pkg/models"
)

const (
	TypeOrder     = "order"
	TypeStock     = "stock"
	TypeCommunity = "community"
	TypeMention   = "mention"
	TypeMessage   = "message"
	TypeSystem    = "system"
)

type Message struct {
	UserID uint
	Title  string
	Body   string
	Type   string
	Link   string
}

// Notifier stores notifications. Delivery is by polling; there is no dedup or retry.
type Notifier struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewNotifier(db *gorm.DB, logger *zap.Logger) *Notifier {
	return &Notifier{db: db, logger: logger.Named("notify")}
}

func (n *Notifier) Notify(ctx context.Context, msg Message) (*models.Notification, error) {
	if msg.UserID == 0 {
		return nil, apperr.Invalid("notification needs a recipient")
	}
	typ := msg.Type
	if typ == "" {
		typ = TypeSystem
	}
	row := &models.Notification{
		UserID:  msg.UserID,
		Title:   msg.Title,
		Message: msg.Body,
		Type:    typ,
		Link:    msg.Link,
	}
	if err := n.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return row, nil
}

func (n *Notifier) List(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := n.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var rows []models.Notification
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return rows, nil
}

func (n *Notifier) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := n.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one of the user's notifications as read.
func (n *Notifier) MarkRead(ctx context.Context, userID, id uint) error {
	var row models.Notification
	err := n.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("notification")
	}
	if err != nil {
		return fmt.Errorf("failed to load notification: %w", err)
	}
	if row.UserID != userID {
		return fmt.Errorf("notification belongs to another user: %w", apperr.ErrForbidden)
	}
	if err := n.db.WithContext(ctx).Model(&row).UpdateColumn("is_read", true).Error; err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	return nil
}

func (n *Notifier) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := n.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		UpdateColumn("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}
