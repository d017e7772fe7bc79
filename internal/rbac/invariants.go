package rbac

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nebari-dev/taskboard/internal/models"
)

// CheckMutable fails with ErrImmutableRole for built-in roles.
func CheckMutable(role *models.Role) error {
	if role.IsImmutable {
		return fmt.Errorf("%w: %s", ErrImmutableRole, role.Name)
	}
	return nil
}

// CheckScope fails with ErrRoleScopeMismatch unless role has scope want.
func CheckScope(role *models.Role, want models.PermissionScope) error {
	if role.Scope != want {
		return fmt.Errorf("%w: role %q is %s, expected %s", ErrRoleScopeMismatch, role.Name, role.Scope, want)
	}
	return nil
}

// OwnerCounter counts the memberships of a project holding the owner role,
// leaving out one membership.
type OwnerCounter interface {
	CountOwners(ctx context.Context, projectID uuid.UUID, ownerRoleID uint, excludingMembershipID uint) (int64, error)
}

// CheckLastOwnerSafe fails with ErrLastOwner when m is an owner membership
// and no other owner membership exists in its project. Run it inside the
// transaction that removes or demotes m.
func CheckLastOwnerSafe(ctx context.Context, counter OwnerCounter, ownerRoleID uint, m *models.ProjectMembership) error {
	if m.RoleID != ownerRoleID {
		return nil
	}
	others, err := counter.CountOwners(ctx, m.ProjectID, ownerRoleID, m.ID)
	if err != nil {
		return fmt.Errorf("count owners: %w", err)
	}
	if others == 0 {
		return ErrLastOwner
	}
	return nil
}
