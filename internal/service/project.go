package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nebari-dev/taskboard/internal/audit"
	"github.com/nebari-dev/taskboard/internal/models"
	"github.com/nebari-dev/taskboard/internal/rbac"
	"gorm.io/gorm"
)

const maxSlugLength = 10

// ProjectService contains the business logic for projects and their teams.
type ProjectService struct {
	*base
}

func validateProjectFields(name, slug *string) error {
	if name != nil && strings.TrimSpace(*name) == "" {
		return &ValidationError{Message: "project name is required"}
	}
	if slug != nil && len(*slug) > maxSlugLength {
		return &ValidationError{Message: fmt.Sprintf("project slug must be at most %d characters", maxSlugLength)}
	}
	return nil
}

// List returns the projects visible to the user: every project for holders
// of projects:read, otherwise the projects they are a member of.
func (s *ProjectService) List(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	decision, err := s.Resolver.Authorize(ctx, userID, rbac.PermProjectsRead, nil)
	if err != nil {
		return nil, err
	}

	query := s.DB.WithContext(ctx).Order("projects.created_at ASC")
	if decision == rbac.Deny {
		query = query.
			Joins("JOIN project_memberships ON project_memberships.project_id = projects.id").
			Where("project_memberships.user_id = ?", userID)
	}

	var projects []models.Project
	if err := query.Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

// Get returns a single project.
func (s *ProjectService) Get(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, userID, rbac.PermProjectRead, project.ID); err != nil {
		return nil, err
	}
	return project, nil
}

// Members returns the team of a project.
func (s *ProjectService) Members(ctx context.Context, userID, projectID uuid.UUID) ([]models.ProjectMembership, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, userID, rbac.PermProjectRead, project.ID); err != nil {
		return nil, err
	}
	return s.store.ListMemberships(ctx, project.ID)
}

// Create creates a project with its default board and makes the creator
// its owner.
func (s *ProjectService) Create(ctx context.Context, userID uuid.UUID, req CreateProjectRequest) (*CreateProjectResult, error) {
	if err := s.requireGlobal(ctx, userID, rbac.PermProjectsCreate); err != nil {
		return nil, err
	}
	if err := validateProjectFields(&req.Name, &req.Slug); err != nil {
		return nil, err
	}

	project := models.Project{
		Name:        strings.TrimSpace(req.Name),
		Slug:        req.Slug,
		Description: req.Description,
	}
	board := models.Board{Name: s.Board.DefaultName, IsDefault: true}

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		owner, err := s.ownerRole(ctx, s.store.WithTx(tx))
		if err != nil {
			return err
		}

		if err := tx.Create(&project).Error; err != nil {
			return fmt.Errorf("create project: %w", err)
		}

		board.ProjectID = project.ID
		if err := tx.Create(&board).Error; err != nil {
			return fmt.Errorf("create default board: %w", err)
		}

		membership := models.ProjectMembership{ProjectID: project.ID, UserID: userID, RoleID: owner.ID}
		if err := tx.Create(&membership).Error; err != nil {
			return fmt.Errorf("create owner membership: %w", err)
		}

		return audit.Log(tx, userID, audit.ActionCreateProject, audit.Resource("project", project.ID), map[string]interface{}{
			"name":  project.Name,
			"board": board.Name,
		})
	})
	if err != nil {
		return nil, err
	}

	s.membershipChanged(project.ID, userID)
	return &CreateProjectResult{Project: &project, Board: &board}, nil
}

// Update changes the name, slug or description of a project.
func (s *ProjectService) Update(ctx context.Context, userID, projectID uuid.UUID, req UpdateProjectRequest) (*models.Project, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, userID, rbac.PermProjectUpdate, project.ID); err != nil {
		return nil, err
	}
	if err := validateProjectFields(req.Name, req.Slug); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Slug != nil {
		updates["slug"] = *req.Slug
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) == 0 {
		return project, nil
	}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(project).Updates(updates).Error; err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		if req.Name != nil {
			project.Name = strings.TrimSpace(*req.Name)
		}
		if req.Slug != nil {
			project.Slug = *req.Slug
		}
		if req.Description != nil {
			project.Description = *req.Description
		}
		return audit.Log(tx, userID, audit.ActionUpdateProject, audit.Resource("project", project.ID), updates)
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// Delete soft-deletes a project together with its boards, stages and tasks
// and removes its memberships, all in one transaction.
func (s *ProjectService) Delete(ctx context.Context, userID, projectID uuid.UUID) error {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.requireProject(ctx, userID, rbac.PermProjectDelete, project.ID); err != nil {
		return err
	}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.store.WithTx(tx).LockProject(ctx, project.ID); err != nil {
			return err
		}

		boards := tx.Model(&models.Board{}).Select("id").Where("project_id = ?", project.ID)
		if err := tx.Where("board_id IN (?)", boards).Delete(&models.Task{}).Error; err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}
		if err := tx.Where("board_id IN (?)", boards).Delete(&models.Stage{}).Error; err != nil {
			return fmt.Errorf("delete stages: %w", err)
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.Board{}).Error; err != nil {
			return fmt.Errorf("delete boards: %w", err)
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.ProjectMembership{}).Error; err != nil {
			return fmt.Errorf("delete memberships: %w", err)
		}
		if err := tx.Delete(project).Error; err != nil {
			return fmt.Errorf("delete project: %w", err)
		}

		return audit.Log(tx, userID, audit.ActionDeleteProject, audit.Resource("project", project.ID), map[string]interface{}{
			"name": project.Name,
		})
	})
	if err != nil {
		return err
	}

	s.membershipsPurged()
	return nil
}

// AddMember adds a user to the project team with a project role.
func (s *ProjectService) AddMember(ctx context.Context, actorID, projectID uuid.UUID, req MemberRequest) (*models.ProjectMembership, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, actorID, rbac.PermTeamUpdate, project.ID); err != nil {
		return nil, err
	}

	user, err := s.userByName(ctx, s.store, req.Username)
	if err != nil {
		return nil, err
	}
	role, err := s.projectRole(ctx, s.store, req.RoleName)
	if err != nil {
		return nil, err
	}

	membership := models.ProjectMembership{ProjectID: project.ID, UserID: user.ID, RoleID: role.ID}
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		st := s.store.WithTx(tx)
		if _, err := st.LockProject(ctx, project.ID); err != nil {
			return err
		}

		existing, err := st.FindMembership(ctx, project.ID, user.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return &ConflictError{Message: fmt.Sprintf("user %q is already a member of this project", user.Username)}
		}

		if err := tx.Create(&membership).Error; err != nil {
			return fmt.Errorf("create membership: %w", err)
		}

		return audit.Log(tx, actorID, audit.ActionAddMember, audit.Resource("project", project.ID), map[string]interface{}{
			"user": user.Username,
			"role": role.Name,
		})
	})
	if err != nil {
		return nil, err
	}

	s.membershipChanged(project.ID, user.ID)
	membership.Role = *role
	return &membership, nil
}

// RemoveMember removes a user from the project team. The last owner cannot
// be removed.
func (s *ProjectService) RemoveMember(ctx context.Context, actorID, projectID uuid.UUID, username string) error {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.requireProject(ctx, actorID, rbac.PermTeamUpdate, project.ID); err != nil {
		return err
	}

	user, err := s.userByName(ctx, s.store, username)
	if err != nil {
		return err
	}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		st := s.store.WithTx(tx)
		if _, err := st.LockProject(ctx, project.ID); err != nil {
			return err
		}

		m, err := st.FindMembership(ctx, project.ID, user.ID)
		if err != nil {
			return err
		}
		if m == nil {
			return fmt.Errorf("user %q is not a member of this project: %w", username, ErrNotFound)
		}

		owner, err := s.ownerRole(ctx, st)
		if err != nil {
			return err
		}
		if err := rbac.CheckLastOwnerSafe(ctx, st, owner.ID, m); err != nil {
			return err
		}

		if err := tx.Delete(m).Error; err != nil {
			return fmt.Errorf("delete membership: %w", err)
		}

		return audit.Log(tx, actorID, audit.ActionRemoveMember, audit.Resource("project", project.ID), map[string]interface{}{
			"user": user.Username,
		})
	})
	if err != nil {
		return err
	}

	s.membershipChanged(project.ID, user.ID)
	return nil
}

// ChangeMemberRole gives a member another project role. Demoting the last
// owner is refused.
func (s *ProjectService) ChangeMemberRole(ctx context.Context, actorID, projectID uuid.UUID, req MemberRequest) (*models.ProjectMembership, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.requireProject(ctx, actorID, rbac.PermTeamUpdate, project.ID); err != nil {
		return nil, err
	}

	user, err := s.userByName(ctx, s.store, req.Username)
	if err != nil {
		return nil, err
	}
	role, err := s.projectRole(ctx, s.store, req.RoleName)
	if err != nil {
		return nil, err
	}

	var membership *models.ProjectMembership
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		st := s.store.WithTx(tx)
		if _, err := st.LockProject(ctx, project.ID); err != nil {
			return err
		}

		m, err := st.FindMembership(ctx, project.ID, user.ID)
		if err != nil {
			return err
		}
		if m == nil {
			return fmt.Errorf("user %q is not a member of this project: %w", user.Username, ErrNotFound)
		}
		if m.RoleID == role.ID {
			membership = m
			return nil
		}

		owner, err := s.ownerRole(ctx, st)
		if err != nil {
			return err
		}
		if err := rbac.CheckLastOwnerSafe(ctx, st, owner.ID, m); err != nil {
			return err
		}

		if err := tx.Model(m).Update("role_id", role.ID).Error; err != nil {
			return fmt.Errorf("update membership: %w", err)
		}
		m.RoleID = role.ID
		membership = m

		return audit.Log(tx, actorID, audit.ActionChangeMemberRole, audit.Resource("project", project.ID), map[string]interface{}{
			"user": user.Username,
			"role": role.Name,
		})
	})
	if err != nil {
		return nil, err
	}

	s.membershipChanged(project.ID, user.ID)
	membership.Role = *role
	return membership, nil
}
