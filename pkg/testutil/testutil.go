// Package testutil builds databases and fixtures for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/auth"
	"github.com/evansochadeka/BenFarm/pkg/database"
	"github.com/evansochadeka/BenFarm/pkg/models"
)

const Password = "secret123"

var seq int64

// DB opens a migrated sqlite database that is closed when the test ends.
func DB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.OpenTest(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// User inserts an active user with role; mutate adjusts it before insert.
func User(t testing.TB, db *gorm.DB, role models.Role, mutate ...func(*models.User)) *models.User {
	t.Helper()
	n := atomic.AddInt64(&seq, 1)
	hash, err := auth.HashPassword(Password)
	require.NoError(t, err)
	u := &models.User{
		Email:        fmt.Sprintf("%s%d@example.com", role, n),
		PasswordHash: hash,
		FullName:     fmt.Sprintf("%s %d", role, n),
		Role:         role,
		IsActive:     true,
	}
	for _, m := range mutate {
		m(u)
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// At places a user at the given coordinates.
func At(lat, lng float64) func(*models.User) {
	return func(u *models.User) {
		u.Latitude = &lat
		u.Longitude = &lng
	}
}

// Product inserts an active product owned by sellerID.
func Product(t testing.TB, db *gorm.DB, sellerID uint, stock int, price string, mutate ...func(*models.InventoryItem)) *models.InventoryItem {
	t.Helper()
	n := atomic.AddInt64(&seq, 1)
	p := &models.InventoryItem{
		AgrovetID:    sellerID,
		ProductName:  fmt.Sprintf("Product %d", n),
		Category:     "fertilizer",
		Quantity:     stock,
		Unit:         "bag",
		Price:        decimal.RequireFromString(price),
		ReorderLevel: 1,
		IsActive:     true,
	}
	for _, m := range mutate {
		m(p)
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// Stock reads the current quantity of a product.
func Stock(t testing.TB, db *gorm.DB, productID uint) int {
	t.Helper()
	var p models.InventoryItem
	require.NoError(t, db.Unscoped().First(&p, productID).Error)
	return p.Quantity
}

// Count returns the number of rows of model matching the optional condition.
func Count(t testing.TB, db *gorm.DB, model interface{}, query ...interface{}) int64 {
	t.Helper()
	q := db.Model(model)
	if len(query) > 0 {
		q = q.Where(query[0], query[1:]...)
	}
	var n int64
	require.NoError(t, q.Count(&n).Error)
	return n
}
