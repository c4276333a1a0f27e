package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/evansochadeka/BenFarm/pkg/apperr"
	"github.com/evansochadeka/BenFarm/pkg/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactive           = errors.New("account is deactivated")
	ErrEmailTaken         = fmt.Errorf("email already registered: %w", apperr.ErrConflict)
)

const userCacheTTL = 30 * time.Minute

// Cache is the subset of the Redis repository the account service uses.
type Cache interface {
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
	Del(ctx context.Context, keys ...string) error
}

type Service struct {
	db     *gorm.DB
	tokens *TokenManager
	cache  Cache
	logger *zap.Logger
}

func NewService(db *gorm.DB, tokens *TokenManager, cache Cache, logger *zap.Logger) *Service {
	return &Service{db: db, tokens: tokens, cache: cache, logger: logger.Named("auth")}
}

type RegisterRequest struct {
	Email           string   `json:"email"`
	Password        string   `json:"password"`
	FullName        string   `json:"full_name"`
	Role            string   `json:"role"`
	PhoneNumber     string   `json:"phone_number"`
	Location        string   `json:"location"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	Bio             string   `json:"bio"`
	ExperienceYears int      `json:"experience_years"`
}

func (r *RegisterRequest) normalize() (models.Role, error) {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FullName = strings.TrimSpace(r.FullName)
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return "", apperr.Invalid("a valid email is required")
	}
	if len(r.Password) < 6 {
		return "", apperr.Invalid("password must be at least 6 characters")
	}
	if r.FullName == "" {
		return "", apperr.Invalid("full name is required")
	}
	role, ok := models.ParseRole(r.Role)
	if !ok || !SelfRegisterable(role) {
		return "", apperr.Invalid("invalid role %q", r.Role)
	}
	return role, nil
}

// Register creates a non-admin account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	role, err := req.normalize()
	if err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:           req.Email,
		PasswordHash:    hash,
		FullName:        req.FullName,
		Role:            role,
		PhoneNumber:     req.PhoneNumber,
		Location:        req.Location,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		Bio:             req.Bio,
		ExperienceYears: req.ExperienceYears,
		IsActive:        true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.Uint("user_id", user.ID), zap.String("role", string(role)))
	return user, nil
}

// Login verifies credentials and returns the user with a signed session token.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load user: %w", err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, "", ErrInactive
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).UpdateColumn("last_login", now).Error; err != nil {
		s.logger.Warn("Failed to record last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	user.LastLogin = &now

	token, err := s.tokens.Issue(&user)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// Authenticate resolves a session token to an active user.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	user, err := s.Get(ctx, claims.UserID())
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactive
	}
	return user, nil
}

func userKey(id uint) string {
	return fmt.Sprintf("user:%d", id)
}

// Get loads a user, reading through the cache when one is configured.
func (s *Service) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if s.cache != nil {
		if err := s.cache.GetJSON(ctx, userKey(id), &user); err == nil && user.ID == id {
			return &user, nil
		}
	}

	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, userKey(id), &user, userCacheTTL); err != nil {
			s.logger.Debug("Failed to cache user", zap.Uint("user_id", id), zap.Error(err))
		}
	}
	return &user, nil
}

func (s *Service) invalidate(ctx context.Context, id uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, userKey(id)); err != nil {
		s.logger.Warn("Failed to invalidate cached user", zap.Uint("user_id", id), zap.Error(err))
	}
}

type UserFilter struct {
	Role    string
	Search  string
	Page    int
	PerPage int
}

func (f *UserFilter) bounds() (int, int) {
	page, perPage := f.Page, f.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

// ListUsers returns one page of users and the total match count.
func (s *Service) ListUsers(ctx context.Context, filter UserFilter) ([]models.User, int64, error) {
	page, perPage := filter.bounds()
	q := s.db.WithContext(ctx).Model(&models.User{})
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("full_name LIKE ? OR email LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	var users []models.User
	if err := q.Order("created_at DESC").Offset((page - 1) * perPage).Limit(perPage).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// ToggleActive flips the active flag. Super admins cannot be deactivated.
func (s *Service) ToggleActive(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsSuperAdmin {
		return nil, fmt.Errorf("cannot deactivate the super admin: %w", apperr.ErrForbidden)
	}
	user.IsActive = !user.IsActive
	if err := s.db.WithContext(ctx).Model(user).UpdateColumn("is_active", user.IsActive).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	s.invalidate(ctx, id)
	return user, nil
}

func (s *Service) Verify(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	user.IsVerified = true
	if err := s.db.WithContext(ctx).Model(user).UpdateColumn("is_verified", true).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	s.invalidate(ctx, id)
	return user, nil
}

func (s *Service) load(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// CountByRole returns the number of users per role.
func (s *Service) CountByRole(ctx context.Context) (map[models.Role]int64, error) {
	var rows []struct {
		Role  models.Role
		Count int64
	}
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Select("role, COUNT(*) AS count").Group("role").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	counts := make(map[models.Role]int64, len(rows))
	for _, r := range rows {
		counts[r.Role] = r.Count
	}
	return counts, nil
}

// EnsureAdmin creates the bootstrap super admin if no account uses email yet.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, fullName string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up admin: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user = models.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         models.RoleAdmin,
		IsSuperAdmin: true,
		IsVerified:   true,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}
	s.logger.Info("Bootstrap admin created", zap.String("email", email))
	return &user, nil
}
