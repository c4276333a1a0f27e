// Package directory lets farmers find agrovet shops.
package directory

import (
	"context"
	"fmt"
	"math"
	"strings"

	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/checkout"
	"github.com/evansochadeka/BenFarm/pkg/models"
	"github.com/evansochadeka/BenFarm/pkg/reviews"
)

const defaultLimit = 50

type Listing struct {
	Agrovet    models.User    `json:"agrovet"`
	DistanceKm *float64       `json:"distance_km,omitempty"`
	Products   int64          `json:"products"`
	Rating     reviews.Rating `json:"rating"`
}

type Filter struct {
	Search   string
	Location string
	Limit    int
}

type Service struct {
	db      *gorm.DB
	reviews *reviews.Service
}

func NewService(db *gorm.DB, r *reviews.Service) *Service {
	return &Service{db: db, reviews: r}
}

// Agrovets lists active agrovets nearest to the viewer first, with their
// in-stock product count and rating.
func (s *Service) Agrovets(ctx context.Context, viewer *models.User, f Filter) ([]Listing, error) {
	q := s.db.WithContext(ctx).Where("role = ? AND is_active = ?", models.RoleAgrovet, true)
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + term + "%"
		q = q.Where("full_name LIKE ? OR bio LIKE ?", like, like)
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		q = q.Where("location LIKE ?", "%"+loc+"%")
	}
	var shops []models.User
	if err := q.Find(&shops).Error; err != nil {
		return nil, fmt.Errorf("failed to list agrovets: %w", err)
	}
	shops = checkout.RankByDistance(shops, viewer)
	limit := f.Limit
	if limit < 1 || limit > 200 {
		limit = defaultLimit
	}
	if len(shops) > limit {
		shops = shops[:limit]
	}
	if len(shops) == 0 {
		return []Listing{}, nil
	}

	ids := make([]uint, len(shops))
	for i, u := range shops {
		ids[i] = u.ID
	}
	var counts []struct {
		AgrovetID uint
		N         int64
	}
	err := s.db.WithContext(ctx).Model(&models.InventoryItem{}).
		Select("agrovet_id, COUNT(*) AS n").
		Where("agrovet_id IN ? AND is_active = ? AND quantity > 0", ids, true).
		Group("agrovet_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	products := make(map[uint]int64, len(counts))
	for _, c := range counts {
		products[c.AgrovetID] = c.N
	}
	ratings, err := s.reviews.Ratings(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]Listing, len(shops))
	for i := range shops {
		l := Listing{Agrovet: shops[i], Products: products[shops[i].ID], Rating: ratings[shops[i].ID]}
		if d, ok := checkout.Distance(viewer, &shops[i]); ok {
			d = math.Round(d*10) / 10
			l.DistanceKm = &d
		}
		out[i] = l
	}
	return out, nil
}
