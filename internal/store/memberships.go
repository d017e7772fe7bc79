package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nebari-dev/taskboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FindMembership returns the membership of userID in projectID, or nil if
// the user is not a member.
func (s *Store) FindMembership(ctx context.Context, projectID, userID uuid.UUID) (*models.ProjectMembership, error) {
	var m models.ProjectMembership
	err := s.conn(ctx).Where("project_id = ? AND user_id = ?", projectID, userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding membership: %w", err)
	}
	return &m, nil
}

// ListMemberships returns the members of a project with their users and roles.
func (s *Store) ListMemberships(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMembership, error) {
	var ms []models.ProjectMembership
	err := s.conn(ctx).
		Preload("User").
		Preload("Role").
		Where("project_id = ?", projectID).
		Order("id").
		Find(&ms).Error
	if err != nil {
		return nil, fmt.Errorf("listing memberships: %w", err)
	}
	return ms, nil
}

// ListUserMemberships returns every membership of userID ordered by project,
// the order in which project locks are taken.
func (s *Store) ListUserMemberships(ctx context.Context, userID uuid.UUID) ([]models.ProjectMembership, error) {
	var ms []models.ProjectMembership
	err := s.conn(ctx).
		Preload("Project").
		Where("user_id = ?", userID).
		Order("project_id").
		Find(&ms).Error
	if err != nil {
		return nil, fmt.Errorf("listing user memberships: %w", err)
	}
	return ms, nil
}

// CountOwners counts the memberships of projectID holding ownerRoleID,
// leaving out excludingMembershipID.
func (s *Store) CountOwners(ctx context.Context, projectID uuid.UUID, ownerRoleID uint, excludingMembershipID uint) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&models.ProjectMembership{}).
		Where("project_id = ? AND role_id = ? AND id <> ?", projectID, ownerRoleID, excludingMembershipID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting owners: %w", err)
	}
	return count, nil
}

// LockProject loads the project and, on PostgreSQL, holds its row lock until
// the surrounding transaction ends. Membership writes take this lock first so
// that two concurrent demotions cannot both pass the last-owner check. SQLite
// runs on a single connection and needs no lock. Returns nil if not found.
func (s *Store) LockProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	q := s.conn(ctx)
	if s.isPostgres() {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var p models.Project
	err := q.Where("id = ?", projectID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("locking project: %w", err)
	}
	return &p, nil
}
