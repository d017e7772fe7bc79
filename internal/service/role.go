package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/nebari-dev/taskboard/internal/audit"
	"github.com/nebari-dev/taskboard/internal/models"
	"github.com/nebari-dev/taskboard/internal/rbac"
	"gorm.io/gorm"
)

// RoleService contains the business logic for roles, their permissions and
// users' global roles.
type RoleService struct {
	*base
}

func (s *RoleService) loadRole(ctx context.Context, roleID uint) (*models.Role, error) {
	role, err := s.store.FindRoleByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("role %d: %w", roleID, ErrNotFound)
	}
	return role, nil
}

// checkPermissions verifies that every name is in the catalog. A role may
// hold permissions of either scope; only those matching the context it is
// evaluated in take effect.
func (s *RoleService) checkPermissions(perms []string) error {
	catalog := s.Resolver.Catalog()
	for _, name := range perms {
		if _, ok := catalog.Lookup(name); !ok {
			return &ValidationError{Message: fmt.Sprintf("unknown permission %q", name)}
		}
	}
	return nil
}

func (s *RoleService) checkNameFree(ctx context.Context, name string, except uint) error {
	var existing models.Role
	err := s.DB.WithContext(ctx).Where("name = ?", name).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID == except {
		return nil
	}
	return &ConflictError{Message: fmt.Sprintf("role %q already exists", name)}
}

// List returns every role with its permissions.
func (s *RoleService) List(ctx context.Context, userID uuid.UUID) ([]RoleWithPermissions, error) {
	if err := s.requireGlobal(ctx, userID, rbac.PermRolesRead); err != nil {
		return nil, err
	}

	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]RoleWithPermissions, 0, len(roles))
	for _, role := range roles {
		perms, err := s.Grants.Permissions(role.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, RoleWithPermissions{Role: role, Permissions: perms})
	}
	return out, nil
}

// Create creates a role and grants it the requested permissions.
func (s *RoleService) Create(ctx context.Context, userID uuid.UUID, req CreateRoleRequest) (*RoleWithPermissions, error) {
	if err := s.requireGlobal(ctx, userID, rbac.PermRolesCreate); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Message: "role name is required"}
	}
	scope := req.Scope
	if scope == "" {
		scope = models.ScopeGlobal
	}
	if scope != models.ScopeGlobal && scope != models.ScopeProject {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown role scope %q", scope)}
	}
	if err := s.checkPermissions(req.Permissions); err != nil {
		return nil, err
	}
	if err := s.checkNameFree(ctx, name, 0); err != nil {
		return nil, err
	}

	role := models.Role{Name: name, Description: req.Description, Scope: scope}
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&role).Error; err != nil {
			return fmt.Errorf("create role: %w", err)
		}
		return audit.Log(tx, userID, audit.ActionCreateRole, audit.Resource("role", role.ID), map[string]interface{}{
			"name":        role.Name,
			"scope":       role.Scope,
			"permissions": req.Permissions,
		})
	})
	if err != nil {
		return nil, err
	}

	// Policies live outside the role transaction; casbin writes through its
	// own connection. A reused id must not inherit a deleted role's policies.
	if err := s.Grants.RevokeAll(role.ID); err != nil {
		return nil, err
	}
	if err := s.Grants.Grant(role.ID, req.Permissions...); err != nil {
		return nil, err
	}

	perms, err := s.Grants.Permissions(role.ID)
	if err != nil {
		return nil, err
	}
	return &RoleWithPermissions{Role: role, Permissions: perms}, nil
}

// Update renames a role or changes its description. Built-in immutable roles
// are refused.
func (s *RoleService) Update(ctx context.Context, userID uuid.UUID, roleID uint, req UpdateRoleRequest) (*models.Role, error) {
	if err := s.requireGlobal(ctx, userID, rbac.PermRolesUpdate); err != nil {
		return nil, err
	}
	role, err := s.loadRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if err := rbac.CheckMutable(role); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, &ValidationError{Message: "role name is required"}
		}
		if err := s.checkNameFree(ctx, name, role.ID); err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) == 0 {
		return role, nil
	}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(role).Updates(updates).Error; err != nil {
			return fmt.Errorf("update role: %w", err)
		}
		return audit.Log(tx, userID, audit.ActionUpdateRole, audit.Resource("role", role.ID), updates)
	})
	if err != nil {
		return nil, err
	}
	if name, ok := updates["name"].(string); ok {
		role.Name = name
	}
	if req.Description != nil {
		role.Description = *req.Description
	}
	return role, nil
}

// Delete deletes a role that nobody holds. Built-in immutable roles are
// refused.
func (s *RoleService) Delete(ctx context.Context, userID uuid.UUID, roleID uint) error {
	if err := s.requireGlobal(ctx, userID, rbac.PermRolesDelete); err != nil {
		return err
	}
	role, err := s.loadRole(ctx, roleID)
	if err != nil {
		return err
	}
	if err := rbac.CheckMutable(role); err != nil {
		return err
	}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		assigned, err := s.store.WithTx(tx).CountRoleAssignments(ctx, role.ID)
		if err != nil {
			return err
		}
		if assigned > 0 {
			return &ConflictError{Message: fmt.Sprintf("role %q is still assigned %d time(s)", role.Name, assigned)}
		}

		if err := tx.Delete(role).Error; err != nil {
			return fmt.Errorf("delete role: %w", err)
		}
		return audit.Log(tx, userID, audit.ActionDeleteRole, audit.Resource("role", role.ID), map[string]interface{}{
			"name": role.Name,
		})
	})
	if err != nil {
		return err
	}

	return s.Grants.RevokeAll(role.ID)
}

// GrantPermissions adds permissions to a role.
func (s *RoleService) GrantPermissions(ctx context.Context, userID uuid.UUID, roleID uint, perms []string) ([]string, error) {
	return s.changePermissions(ctx, userID, roleID, perms, true)
}

// RevokePermissions removes permissions from a role.
func (s *RoleService) RevokePermissions(ctx context.Context, userID uuid.UUID, roleID uint, perms []string) ([]string, error) {
	return s.changePermissions(ctx, userID, roleID, perms, false)
}

func (s *RoleService) changePermissions(ctx context.Context, userID uuid.UUID, roleID uint, perms []string, grant bool) ([]string, error) {
	if err := s.requireGlobal(ctx, userID, rbac.PermRolesUpdate); err != nil {
		return nil, err
	}
	role, err := s.loadRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if err := rbac.CheckMutable(role); err != nil {
		return nil, err
	}
	if len(perms) == 0 {
		return nil, &ValidationError{Message: "no permissions given"}
	}
	if err := s.checkPermissions(perms); err != nil {
		return nil, err
	}

	action := audit.ActionRevokePermission
	if grant {
		action = audit.ActionGrantPermission
		err = s.Grants.Grant(role.ID, perms...)
	} else {
		err = s.Grants.Revoke(role.ID, perms...)
	}
	if err != nil {
		return nil, err
	}

	sorted := append([]string(nil), perms...)
	sort.Strings(sorted)
	if err := audit.Log(s.DB.WithContext(ctx), userID, action, audit.Resource("role", role.ID), map[string]interface{}{
		"permissions": sorted,
	}); err != nil {
		return nil, err
	}

	return s.Grants.Permissions(role.ID)
}

// SetUserRole changes a user's global role.
func (s *RoleService) SetUserRole(ctx context.Context, actorID uuid.UUID, username, roleName string) (*models.User, error) {
	if err := s.requireGlobal(ctx, actorID, rbac.PermUsersUpdateRole); err != nil {
		return nil, err
	}
	user, err := s.userByName(ctx, s.store, username)
	if err != nil {
		return nil, err
	}
	role, err := s.store.FindRole(ctx, roleName)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("role %q: %w", roleName, ErrNotFound)
	}
	if err := rbac.CheckScope(role, models.ScopeGlobal); err != nil {
		return nil, err
	}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(user).Omit("GlobalRole").Update("global_role_id", role.ID).Error; err != nil {
			return fmt.Errorf("update user role: %w", err)
		}
		return audit.Log(tx, actorID, audit.ActionSetUserRole, audit.Resource("user", user.ID), map[string]interface{}{
			"username": user.Username,
			"role":     role.Name,
		})
	})
	if err != nil {
		return nil, err
	}

	user.GlobalRoleID = role.ID
	user.GlobalRole = *role
	return user, nil
}
