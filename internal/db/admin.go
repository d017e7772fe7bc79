package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nebari-dev/taskboard/internal/auth"
	"github.com/nebari-dev/taskboard/internal/config"
	"github.com/nebari-dev/taskboard/internal/models"
	"github.com/nebari-dev/taskboard/internal/rbac"
	"github.com/nebari-dev/taskboard/internal/store"
	"gorm.io/gorm"
)

// CreateDefaultAdmin creates the bootstrap admin from cfg when admin
// credentials are configured and no users exist in the database.
func CreateDefaultAdmin(db *gorm.DB, cfg config.UsersConfig) error {
	username := cfg.AdminUsername
	password := cfg.AdminPassword
	email := cfg.AdminEmail

	// If no admin credentials provided, skip
	if username == "" || password == "" {
		slog.Info("No admin username or password configured, skipping default admin creation")
		return nil
	}

	if email == "" {
		email = fmt.Sprintf("%s@taskboard.local", username)
	}

	ctx := context.Background()
	st := store.New(db)

	count, err := st.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		slog.Info("Users already exist, skipping default admin creation")
		return nil
	}

	_, err = CreateUser(ctx, st, username, email, password, cfg.AdminRole)
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	slog.Info("Default admin user created", "username", username, "email", email)
	return nil
}

// CreateUser hashes password and creates a user holding the named global role.
func CreateUser(ctx context.Context, st *store.Store, username, email, password, roleName string) (*models.User, error) {
	role, err := st.FindRole(ctx, roleName)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("role %q does not exist", roleName)
	}
	if err := rbac.CheckScope(role, models.ScopeGlobal); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		GlobalRoleID: role.ID,
	}
	if err := st.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
