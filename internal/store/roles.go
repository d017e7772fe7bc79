package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/nebari-dev/taskboard/internal/models"
	"gorm.io/gorm"
)

// FindRole returns the role with the given name, or nil if not found.
func (s *Store) FindRole(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	err := s.conn(ctx).Where("name = ?", name).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding role %q: %w", name, err)
	}
	return &role, nil
}

// FindRoleByID returns the role with the given ID, or nil if not found.
func (s *Store) FindRoleByID(ctx context.Context, id uint) (*models.Role, error) {
	var role models.Role
	err := s.conn(ctx).Where("id = ?", id).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding role %d: %w", id, err)
	}
	return &role, nil
}

// ListRoles returns every live role ordered by scope and name.
func (s *Store) ListRoles(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := s.conn(ctx).Order("scope, name").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	return roles, nil
}

// CountRoleAssignments returns how many users hold the role globally plus
// how many memberships use it.
func (s *Store) CountRoleAssignments(ctx context.Context, roleID uint) (int64, error) {
	var users, memberships int64
	if err := s.conn(ctx).Model(&models.User{}).Where("global_role_id = ?", roleID).Count(&users).Error; err != nil {
		return 0, fmt.Errorf("counting role users: %w", err)
	}
	if err := s.conn(ctx).Model(&models.ProjectMembership{}).Where("role_id = ?", roleID).Count(&memberships).Error; err != nil {
		return 0, fmt.Errorf("counting role memberships: %w", err)
	}
	return users + memberships, nil
}
