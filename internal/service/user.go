package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/nebari-dev/taskboard/internal/audit"
	"github.com/nebari-dev/taskboard/internal/auth"
	"github.com/nebari-dev/taskboard/internal/models"
	"github.com/nebari-dev/taskboard/internal/rbac"
	"gorm.io/gorm"
)

// generatedPasswordBytes is the entropy of passwords generated for new users.
const generatedPasswordBytes = 12

// UserService contains the business logic for user accounts.
type UserService struct {
	*base
}

// List returns every user with their global role.
func (s *UserService) List(ctx context.Context, actorID uuid.UUID) ([]models.User, error) {
	if err := s.requireGlobal(ctx, actorID, rbac.PermUsersRead); err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx)
}

// Get returns one user. Reading your own profile needs profile:read, anyone
// else's needs users:read:full.
func (s *UserService) Get(ctx context.Context, actorID uuid.UUID, username string) (*models.User, error) {
	user, err := s.userByName(ctx, s.store, username)
	if errors.Is(err, ErrNotFound) {
		// Only callers allowed to read others learn whether a name exists.
		if ferr := s.requireGlobal(ctx, actorID, rbac.PermUsersReadFull); ferr != nil {
			return nil, ferr
		}
	}
	if err != nil {
		return nil, err
	}
	perm := rbac.PermUsersReadFull
	if user.ID == actorID {
		perm = rbac.PermProfileRead
	}
	if err := s.requireGlobal(ctx, actorID, perm); err != nil {
		return nil, err
	}
	return user, nil
}

// Create creates a user. Choosing a global role other than the default also
// needs users:update:role.
func (s *UserService) Create(ctx context.Context, actorID uuid.UUID, req CreateUserRequest) (*CreateUserResult, error) {
	if err := s.requireGlobal(ctx, actorID, rbac.PermUsersCreate); err != nil {
		return nil, err
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, &ValidationError{Message: "username is required"}
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	roleName := s.Users.DefaultRole
	if req.RoleName != "" && req.RoleName != roleName {
		if err := s.requireGlobal(ctx, actorID, rbac.PermUsersUpdateRole); err != nil {
			return nil, err
		}
		roleName = req.RoleName
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

	password := req.Password
	generated := ""
	if password == "" {
		if password, err = generatePassword(); err != nil {
			return nil, err
		}
		generated = password
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: hash,
		GlobalRoleID: role.ID,
	}
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		st := s.store.WithTx(tx)
		taken, err := st.IdentityTaken(ctx, username, email, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return &ConflictError{Message: fmt.Sprintf("username %q or email %q is already in use", username, email)}
		}
		if err := st.CreateUser(ctx, user); err != nil {
			return err
		}
		return audit.Log(tx, actorID, audit.ActionCreateUser, audit.Resource("user", user.ID), map[string]interface{}{
			"username": user.Username,
			"role":     role.Name,
		})
	})
	if err != nil {
		return nil, err
	}

	user.GlobalRole = *role
	return &CreateUserResult{User: user, Password: generated}, nil
}

// Update changes a user's email, full name or password. Updating yourself
// needs profile:update, anyone else needs users:update.
func (s *UserService) Update(ctx context.Context, actorID uuid.UUID, username string, req UpdateUserRequest) (*models.User, error) {
	user, err := s.userByName(ctx, s.store, username)
	if err != nil {
		return nil, err
	}
	perm := rbac.PermUsersUpdate
	if user.ID == actorID {
		perm = rbac.PermProfileUpdate
	}
	if err := s.requireGlobal(ctx, actorID, perm); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	changed := []string{}
	if req.Email != nil {
		email, err := normalizeEmail(*req.Email)
		if err != nil {
			return nil, err
		}
		updates["email"] = email
		changed = append(changed, "email")
	}
	if req.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*req.FullName)
		changed = append(changed, "full_name")
	}
	if req.Password != nil {
		if *req.Password == "" {
			return nil, &ValidationError{Message: "password cannot be empty"}
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = hash
		changed = append(changed, "password")
	}
	if len(updates) == 0 {
		return user, nil
	}

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		if email, ok := updates["email"].(string); ok {
			taken, err := s.store.WithTx(tx).IdentityTaken(ctx, user.Username, email, user.ID)
			if err != nil {
				return err
			}
			if taken {
				return &ConflictError{Message: fmt.Sprintf("email %q is already in use", email)}
			}
		}
		if err := tx.Model(user).Omit("GlobalRole").Updates(updates).Error; err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		return audit.Log(tx, actorID, audit.ActionUpdateUser, audit.Resource("user", user.ID), map[string]interface{}{
			"username": user.Username,
			"fields":   changed,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.userByName(ctx, s.store, username)
}

// Delete removes a user from every project and soft-deletes the account.
// It fails with rbac.ErrLastOwner when the user is the last owner of a
// project; transfer ownership first. Users cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actorID uuid.UUID, username string) error {
	if err := s.requireGlobal(ctx, actorID, rbac.PermUsersDelete); err != nil {
		return err
	}
	user, err := s.userByName(ctx, s.store, username)
	if err != nil {
		return err
	}
	if user.ID == actorID {
		return &ValidationError{Message: "you cannot delete your own account"}
	}

	var left int
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		st := s.store.WithTx(tx)
		memberships, err := st.ListUserMemberships(ctx, user.ID)
		if err != nil {
			return err
		}
		if len(memberships) > 0 {
			owner, err := s.ownerRole(ctx, st)
			if err != nil {
				return err
			}
			for i := range memberships {
				m := &memberships[i]
				if _, err := st.LockProject(ctx, m.ProjectID); err != nil {
					return err
				}
				if err := rbac.CheckLastOwnerSafe(ctx, st, owner.ID, m); err != nil {
					return fmt.Errorf("project %q: %w", m.Project.Name, err)
				}
			}
			if err := tx.Where("user_id = ?", user.ID).Delete(&models.ProjectMembership{}).Error; err != nil {
				return fmt.Errorf("delete memberships: %w", err)
			}
		}
		left = len(memberships)

		if err := tx.Exec("DELETE FROM task_assignees WHERE user_id = ?", user.ID).Error; err != nil {
			return fmt.Errorf("delete task assignments: %w", err)
		}
		if err := tx.Delete(user).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return audit.Log(tx, actorID, audit.ActionDeleteUser, audit.Resource("user", user.ID), map[string]interface{}{
			"username":    user.Username,
			"memberships": left,
		})
	})
	if err != nil {
		return err
	}

	if left > 0 {
		s.membershipsPurged()
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", &ValidationError{Message: fmt.Sprintf("invalid email %q", raw)}
	}
	return strings.ToLower(addr.Address), nil
}

func generatePassword() (string, error) {
	buf := make([]byte, generatedPasswordBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
