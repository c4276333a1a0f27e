package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleFarmer           Role = "farmer"
	RoleAgrovet          Role = "agrovet"
	RoleRider            Role = "rider"
	RoleExtensionOfficer Role = "extension_officer"
	RoleAdmin            Role = "admin"
)

var Roles = []Role{RoleFarmer, RoleAgrovet, RoleRider, RoleExtensionOfficer, RoleAdmin}

func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

type User struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Email           string         `gorm:"type:varchar(120);uniqueIndex;not null" json:"email"`
	PasswordHash    string         `gorm:"type:varchar(255);not null" json:"-"`
	FullName        string         `gorm:"type:varchar(100);not null;index" json:"full_name"`
	Role            Role           `gorm:"type:varchar(30);not null;index" json:"role"`
	IsSuperAdmin    bool           `gorm:"default:false" json:"is_super_admin,omitempty"`
	PhoneNumber     string         `gorm:"type:varchar(20)" json:"phone_number"`
	Location        string         `gorm:"type:varchar(200)" json:"location"`
	Latitude        *float64       `json:"latitude,omitempty"`
	Longitude       *float64       `json:"longitude,omitempty"`
	Bio             string         `gorm:"type:text" json:"bio,omitempty"`
	ExperienceYears int            `gorm:"default:0" json:"experience_years"`
	IsVerified      bool           `gorm:"default:false" json:"is_verified"`
	IsActive        bool           `gorm:"default:true" json:"is_active"`
	LastLogin       *time.Time     `json:"last_login,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// HasCoordinates reports whether the user has a usable position for rider matching.
func (u *User) HasCoordinates() bool {
	return u.Latitude != nil && u.Longitude != nil
}
