// Package reviews holds ratings of agrovets and their moderation.
package reviews

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
	"github.com/evansochadeka/BenFarm/pkg/notify"
)

type Service struct {
	db     *gorm.DB
	sender notify.Sender
	logger *zap.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, sender notify.Sender, logger *zap.Logger) *Service {
	return &Service{db: db, sender: sender, logger: logger.Named("reviews"), now: time.Now}
}

type Input struct {
	AgrovetID   uint   `json:"agrovet_id"`
	OrderID     *uint  `json:"order_id"`
	Rating      int    `json:"rating"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	ServiceType string `json:"service_type"`
}

// Rating is the aggregate of an agrovet's approved reviews.
type Rating struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

type Summary struct {
	Rating  Rating          `json:"rating"`
	Reviews []models.Review `json:"reviews"`
}

type Filter struct {
	Status  string
	Page    int
	PerPage int
}

func (s *Service) find(ctx context.Context, id uint) (*models.Review, error) {
	var r models.Review
	err := s.db.WithContext(ctx).First(&r, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("review")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load review: %w", err)
	}
	return &r, nil
}

// Create stores a review. Naming an order the author placed with the agrovet
// marks it a verified purchase.
func (s *Service) Create(ctx context.Context, author *models.User, in Input) (*models.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperr.Invalid("rating must be between 1 and 5")
	}
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	if title == "" || content == "" {
		return nil, apperr.Invalid("title and content are required")
	}
	if in.AgrovetID == author.ID {
		return nil, apperr.Invalid("you cannot review yourself")
	}

	db := s.db.WithContext(ctx)
	var agrovet models.User
	err := db.Where("id = ? AND role = ? AND is_active = ?", in.AgrovetID, models.RoleAgrovet, true).First(&agrovet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("agrovet")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load agrovet: %w", err)
	}

	review := &models.Review{
		UserID:      author.ID,
		AgrovetID:   agrovet.ID,
		Rating:      in.Rating,
		Title:       title,
		Content:     content,
		ServiceType: strings.TrimSpace(in.ServiceType),
		Status:      models.ReviewApproved,
	}
	if in.OrderID != nil {
		var n int64
		err := db.Model(&models.OrderItem{}).
			Joins("JOIN orders ON orders.id = order_items.order_id").
			Where("orders.id = ? AND orders.buyer_id = ? AND order_items.seller_id = ?", *in.OrderID, author.ID, agrovet.ID).
			Count(&n).Error
		if err != nil {
			return nil, fmt.Errorf("failed to check order: %w", err)
		}
		if n == 0 {
			return nil, apperr.Invalid("order %d is not a purchase from this agrovet", *in.OrderID)
		}
		review.OrderID = in.OrderID
		review.VerifiedPurchase = true
	}
	if err := db.Create(review).Error; err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	if s.sender != nil {
		s.sender.Send(notify.Message{
			UserID: agrovet.ID,
			Title:  "New review",
			Body:   fmt.Sprintf("%s rated you %d/5: %s", author.FullName, review.Rating, title),
			Type:   notify.TypeSystem,
			Link:   fmt.Sprintf("/agrovets/%d/reviews", agrovet.ID),
		})
	}
	s.logger.Info("Review created",
		zap.Uint("review_id", review.ID), zap.Uint("agrovet_id", agrovet.ID), zap.Int("rating", review.Rating))
	return review, nil
}

// ForAgrovet returns approved reviews, featured first, with the rating aggregate.
func (s *Service) ForAgrovet(ctx context.Context, agrovetID uint) (*Summary, error) {
	sum := &Summary{Reviews: []models.Review{}}
	err := s.db.WithContext(ctx).Preload("Reviewer").
		Where("agrovet_id = ? AND status = ?", agrovetID, models.ReviewApproved).
		Order("is_featured DESC, created_at DESC, id DESC").
		Find(&sum.Reviews).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	ratings, err := s.Ratings(ctx, []uint{agrovetID})
	if err != nil {
		return nil, err
	}
	sum.Rating = ratings[agrovetID]
	return sum, nil
}

// Ratings aggregates approved reviews per agrovet. Agrovets without reviews are absent.
func (s *Service) Ratings(ctx context.Context, agrovetIDs []uint) (map[uint]Rating, error) {
	out := make(map[uint]Rating, len(agrovetIDs))
	if len(agrovetIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		AgrovetID uint
		Average   float64
		Count     int64
	}
	err := s.db.WithContext(ctx).Model(&models.Review{}).
		Select("agrovet_id, AVG(rating) AS average, COUNT(*) AS count").
		Where("agrovet_id IN ? AND status = ?", agrovetIDs, models.ReviewApproved).
		Group("agrovet_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ratings: %w", err)
	}
	for _, r := range rows {
		out[r.AgrovetID] = Rating{Average: r.Average, Count: r.Count}
	}
	return out, nil
}

// Respond stores the reviewed agrovet's public answer.
func (s *Service) Respond(ctx context.Context, agrovet *models.User, id uint, response string) (*models.Review, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, apperr.Invalid("response is required")
	}
	r, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.AgrovetID != agrovet.ID {
		return nil, fmt.Errorf("review %d is not about you: %w", id, apperr.ErrForbidden)
	}
	now := s.now()
	err = s.db.WithContext(ctx).Model(r).Updates(map[string]interface{}{
		"response":      response,
		"response_date": now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save response: %w", err)
	}
	r.Response = response
	r.ResponseDate = &now
	return r, nil
}

// List pages through every review for moderation, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]models.Review, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}
	q := s.db.WithContext(ctx).Model(&models.Review{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	var list []models.Review
	err := q.Preload("Reviewer").Order("created_at DESC, id DESC").
		Offset((f.Page - 1) * f.PerPage).Limit(f.PerPage).Find(&list).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	return list, total, nil
}

func (s *Service) SetStatus(ctx context.Context, id uint, status models.ReviewStatus) (*models.Review, error) {
	if status != models.ReviewApproved && status != models.ReviewRejected {
		return nil, apperr.Invalid("unknown review status %q", status)
	}
	r, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(r).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("failed to update review: %w", err)
	}
	r.Status = status
	return r, nil
}

func (s *Service) ToggleFeatured(ctx context.Context, id uint) (*models.Review, error) {
	r, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(r).Update("is_featured", !r.IsFeatured).Error; err != nil {
		return nil, fmt.Errorf("failed to feature review: %w", err)
	}
	r.IsFeatured = !r.IsFeatured
	return r, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	r, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(r).Error; err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	s.logger.Info("Review deleted", zap.Uint("review_id", id))
	return nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Review{}).Count(&n).Error
	return n, err
}
