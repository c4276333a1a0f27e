package checkout

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/models"
)

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Distance returns the kilometres between two located users.
func Distance(a, b *models.User) (float64, bool) {
	if a == nil || b == nil || !a.HasCoordinates() || !b.HasCoordinates() {
		return 0, false
	}
	return Haversine(*a.Latitude, *a.Longitude, *b.Latitude, *b.Longitude), true
}

// RankByDistance orders users by distance from origin. Users without
// coordinates, or everyone when origin is unknown, keep id order at the end.
func RankByDistance(users []models.User, origin *models.User) []models.User {
	ranked := append([]models.User(nil), users...)
	dist := func(u *models.User) float64 {
		if d, ok := Distance(origin, u); ok {
			return d
		}
		return math.Inf(1)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		di, dj := dist(&ranked[i]), dist(&ranked[j])
		if di != dj {
			return di < dj
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}

// nearestRider picks the closest active rider to the seller and stores it on the order.
func nearestRider(ctx context.Context, db *gorm.DB, orderID, sellerID uint) (*models.User, error) {
	var riders []models.User
	if err := db.WithContext(ctx).Where("role = ? AND is_active = ?", models.RoleRider, true).Find(&riders).Error; err != nil {
		return nil, fmt.Errorf("failed to list riders: %w", err)
	}
	if len(riders) == 0 {
		return nil, nil
	}

	var seller models.User
	var origin *models.User
	if err := db.WithContext(ctx).First(&seller, sellerID).Error; err == nil {
		origin = &seller
	}

	rider := RankByDistance(riders, origin)[0]
	if err := db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).UpdateColumn("rider_id", rider.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to assign rider: %w", err)
	}
	return &rider, nil
}
