package db

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nebari-dev/taskboard/internal/models"
	"github.com/nebari-dev/taskboard/internal/rbac"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Built-in role names.
const (
	RoleAdministrator = "Administrator"
	RoleViewer        = "Viewer"
	RoleUser          = "User"
	RoleProjectOwner  = "Project Owner"
	RoleProjectMember = "Project Member"
	RoleProjectViewer = "Project Viewer"
)

type builtinRole struct {
	role  models.Role
	perms []string
}

func builtinRoles(catalog *rbac.Catalog) []builtinRole {
	return []builtinRole{
		{
			role: models.Role{Name: RoleAdministrator, Description: "Full access to the instance and every project",
				Scope: models.ScopeGlobal, IsImmutable: true},
			perms: catalog.Names(models.ScopeGlobal),
		},
		{
			role: models.Role{Name: RoleViewer, Description: "Read access to every project",
				Scope: models.ScopeGlobal, IsImmutable: true},
			perms: []string{rbac.PermProfileRead, rbac.PermProjectsRead},
		},
		{
			role:  models.Role{Name: RoleUser, Description: "Manage own profile and create projects", Scope: models.ScopeGlobal},
			perms: []string{rbac.PermProfileRead, rbac.PermProfileUpdate, rbac.PermProjectsCreate},
		},
		{
			role: models.Role{Name: RoleProjectOwner, Description: "Full access to the project",
				Scope: models.ScopeProject, IsImmutable: true},
			perms: catalog.Names(models.ScopeProject),
		},
		{
			role: models.Role{Name: RoleProjectMember, Description: "Work on tasks", Scope: models.ScopeProject},
			perms: []string{
				rbac.PermProjectRead,
				rbac.PermTasksCreate, rbac.PermTasksUpdate, rbac.PermTasksDelete, rbac.PermTasksMove,
				rbac.PermAssigneesUpdate,
			},
		},
		{
			role:  models.Role{Name: RoleProjectViewer, Description: "Read the project", Scope: models.ScopeProject},
			perms: []string{rbac.PermProjectRead},
		},
	}
}

// Migrate runs database migrations, syncs the permission table with the
// catalog and seeds the built-in roles. Immutable roles get their grants
// reset on every run; other built-in roles are only granted when created so
// that edits survive restarts.
func Migrate(db *gorm.DB, catalog *rbac.Catalog, grants *rbac.Grants) error {
	slog.Info("Running database migrations...")

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := seedPermissions(db, catalog); err != nil {
		return fmt.Errorf("failed to seed permissions: %w", err)
	}

	if err := seedDefaultRoles(db, catalog, grants); err != nil {
		return fmt.Errorf("failed to seed default roles: %w", err)
	}

	return nil
}

func seedPermissions(db *gorm.DB, catalog *rbac.Catalog) error {
	perms := catalog.All()
	if len(perms) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"perm_group", "operation", "scope", "description"}),
	}).Create(&perms).Error
}

func seedDefaultRoles(db *gorm.DB, catalog *rbac.Catalog, grants *rbac.Grants) error {
	for _, b := range builtinRoles(catalog) {
		role := b.role
		var existing models.Role
		err := db.Where("name = ?", role.Name).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := db.Create(&role).Error; err != nil {
				return err
			}
			if err := grants.Grant(role.ID, b.perms...); err != nil {
				return err
			}
			slog.Info("Created default role", "role", role.Name)
		case err != nil:
			return err
		case existing.IsImmutable:
			if err := grants.RevokeAll(existing.ID); err != nil {
				return err
			}
			if err := grants.Grant(existing.ID, b.perms...); err != nil {
				return err
			}
		}
	}

	return nil
}
