package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nebari-dev/taskboard/internal/models"
	"gorm.io/gorm"
)

// ResolveUser returns the live user with the given ID, or nil if not found.
func (s *Store) ResolveUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.conn(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving user: %w", err)
	}
	return &user, nil
}

// FindUserByUsername returns the user with the given username, or nil if not found.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.conn(ctx).Preload("GlobalRole").Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding user by username: %w", err)
	}
	return &user, nil
}

// CreateUser inserts a user. The global role must already be set.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.GlobalRoleID == 0 {
		return fmt.Errorf("creating user %q: no global role", user.Username)
	}
	if err := s.conn(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// CountUsers returns the number of live users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.conn(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// ListUsers returns every live user with its global role, ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.conn(ctx).Preload("GlobalRole").Order("username").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// IdentityTaken reports whether a user other than except, deleted or not,
// already holds username or email. Deleted users keep their names so audit
// entries stay unambiguous.
func (s *Store) IdentityTaken(ctx context.Context, username, email string, except uuid.UUID) (bool, error) {
	var count int64
	err := s.conn(ctx).Unscoped().Model(&models.User{}).
		Where("(username = ? OR email = ?) AND id <> ?", username, email, except).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking user identity: %w", err)
	}
	return count > 0, nil
}
