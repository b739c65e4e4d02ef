package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/taskhive/taskhive/internal/models"
	apperrors "github.com/taskhive/taskhive/pkg/errors"
)

// UserService reads user records created by the identity resolver.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// GetByUID loads a user by their stable identity.
func (s *UserService) GetByUID(ctx context.Context, uid string) (*models.User, error) {
	ctx, cancel := readContext(ctx)
	defer cancel()

	var user models.User
	if err := s.db.WithContext(ctx).Where("uid = ?", uid).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, translateDBError(err, "load user")
	}
	return &user, nil
}

// FindByEmail returns the user with the given email, or nil when no account
// exists yet (invitees may not have signed in before).
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := readContext(ctx)
	defer cancel()

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateDBError(err, "find user by email")
	}
	return &user, nil
}

// DisplayName resolves a uid to a human-readable name for notification copy.
func (s *UserService) DisplayName(ctx context.Context, uid string) string {
	user, err := s.GetByUID(ctx, uid)
	if err != nil || user == nil {
		return "Someone"
	}
	return defaultIfEmpty(user.DisplayName, user.Email)
}
