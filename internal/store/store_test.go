package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/nebari-dev/taskboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "store.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(&models.Role{}, &models.User{}, &models.Project{}, &models.ProjectMembership{}, &models.ServerConfig{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db)
}

func createRole(t *testing.T, s *Store, name string, scope models.PermissionScope) *models.Role {
	t.Helper()
	role := &models.Role{Name: name, Scope: scope}
	if err := s.DB().Create(role).Error; err != nil {
		t.Fatalf("create role: %v", err)
	}
	return role
}

func createUser(t *testing.T, s *Store, username string, roleID uint) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		GlobalRoleID: roleID,
	}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestUsers(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	role := createRole(t, s, "User", models.ScopeGlobal)
	alice := createUser(t, s, "alice", role.ID)

	got, err := s.ResolveUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ResolveUser: %v", err)
	}
	if got == nil || got.Username != "alice" {
		t.Fatalf("expected alice, got %+v", got)
	}

	missing, err := s.ResolveUser(ctx, uuid.New())
	if err != nil {
		t.Fatalf("ResolveUser: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for unknown user")
	}

	byName, err := s.FindUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("FindUserByUsername: %v", err)
	}
	if byName == nil || byName.GlobalRole.Name != "User" {
		t.Fatalf("expected alice with preloaded role, got %+v", byName)
	}

	if err := s.CreateUser(ctx, &models.User{Username: "bob", Email: "bob@example.com"}); err == nil {
		t.Error("expected error creating user without global role")
	}

	// Soft-deleted users no longer resolve.
	if err := s.DB().Delete(alice).Error; err != nil {
		t.Fatalf("delete: %v", err)
	}
	gone, _ := s.ResolveUser(ctx, alice.ID)
	if gone != nil {
		t.Error("expected soft-deleted user to be invisible")
	}
}

func TestRoles(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	global := createRole(t, s, "User", models.ScopeGlobal)
	owner := createRole(t, s, "Project Owner", models.ScopeProject)

	found, err := s.FindRole(ctx, "Project Owner")
	if err != nil || found == nil || found.ID != owner.ID {
		t.Fatalf("FindRole: %+v, %v", found, err)
	}
	if none, _ := s.FindRole(ctx, "nope"); none != nil {
		t.Error("expected nil for unknown role")
	}
	if byID, _ := s.FindRoleByID(ctx, global.ID); byID == nil || byID.Name != "User" {
		t.Errorf("FindRoleByID: %+v", byID)
	}

	roles, err := s.ListRoles(ctx)
	if err != nil {
		t.Fatalf("ListRoles: %v", err)
	}
	if len(roles) != 2 || roles[0].Scope != models.ScopeGlobal {
		t.Errorf("expected global role first, got %+v", roles)
	}

	user := createUser(t, s, "alice", global.ID)
	project := models.Project{Name: "P"}
	s.DB().Create(&project)
	s.DB().Create(&models.ProjectMembership{ProjectID: project.ID, UserID: user.ID, RoleID: owner.ID})

	if n, _ := s.CountRoleAssignments(ctx, global.ID); n != 1 {
		t.Errorf("expected 1 assignment of global role, got %d", n)
	}
	if n, _ := s.CountRoleAssignments(ctx, owner.ID); n != 1 {
		t.Errorf("expected 1 assignment of owner role, got %d", n)
	}
}

func TestMemberships(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	global := createRole(t, s, "User", models.ScopeGlobal)
	owner := createRole(t, s, "Project Owner", models.ScopeProject)
	member := createRole(t, s, "Project Member", models.ScopeProject)
	alice := createUser(t, s, "alice", global.ID)
	bob := createUser(t, s, "bob", global.ID)

	project := models.Project{Name: "P"}
	if err := s.DB().Create(&project).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	am := models.ProjectMembership{ProjectID: project.ID, UserID: alice.ID, RoleID: owner.ID}
	bm := models.ProjectMembership{ProjectID: project.ID, UserID: bob.ID, RoleID: member.ID}
	s.DB().Create(&am)
	s.DB().Create(&bm)

	m, err := s.FindMembership(ctx, project.ID, alice.ID)
	if err != nil || m == nil || m.RoleID != owner.ID {
		t.Fatalf("FindMembership: %+v, %v", m, err)
	}
	if none, _ := s.FindMembership(ctx, uuid.New(), alice.ID); none != nil {
		t.Error("expected nil membership in unknown project")
	}

	others, err := s.CountOwners(ctx, project.ID, owner.ID, am.ID)
	if err != nil {
		t.Fatalf("CountOwners: %v", err)
	}
	if others != 0 {
		t.Errorf("expected no other owners, got %d", others)
	}
	if n, _ := s.CountOwners(ctx, project.ID, owner.ID, bm.ID); n != 1 {
		t.Errorf("expected alice to count as owner, got %d", n)
	}

	list, err := s.ListMemberships(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListMemberships: %v", err)
	}
	if len(list) != 2 || list[0].User.Username != "alice" || list[1].Role.Name != "Project Member" {
		t.Errorf("unexpected memberships: %+v", list)
	}

	second := models.Project{Name: "Q"}
	if err := s.DB().Create(&second).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	s.DB().Create(&models.ProjectMembership{ProjectID: second.ID, UserID: bob.ID, RoleID: owner.ID})
	mine, err := s.ListUserMemberships(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListUserMemberships: %v", err)
	}
	if len(mine) != 2 || mine[0].ProjectID.String() > mine[1].ProjectID.String() {
		t.Errorf("expected bob's two memberships ordered by project, got %+v", mine)
	}
	for _, m := range mine {
		if m.Project.Name == "" {
			t.Errorf("expected project preloaded on membership %d", m.ID)
		}
	}

	err = s.DB().Transaction(func(tx *gorm.DB) error {
		p, err := s.WithTx(tx).LockProject(ctx, project.ID)
		if err != nil {
			return err
		}
		if p == nil || p.Name != "P" {
			t.Errorf("expected project P, got %+v", p)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("LockProject: %v", err)
	}
}

func TestIdentityTaken(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	role := createRole(t, s, "User", models.ScopeGlobal)
	alice := createUser(t, s, "alice", role.ID)
	bob := createUser(t, s, "bob", role.ID)

	tests := []struct {
		name     string
		username string
		email    string
		except   uuid.UUID
		want     bool
	}{
		{"free", "carol", "carol@example.com", uuid.Nil, false},
		{"username taken", "alice", "other@example.com", uuid.Nil, true},
		{"email taken", "carol", "bob@example.com", uuid.Nil, true},
		{"own identity", "alice", "alice@example.com", alice.ID, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.IdentityTaken(ctx, tt.username, tt.email, tt.except)
			if err != nil {
				t.Fatalf("IdentityTaken: %v", err)
			}
			if got != tt.want {
				t.Errorf("IdentityTaken(%s, %s) = %v, want %v", tt.username, tt.email, got, tt.want)
			}
		})
	}

	if err := s.DB().Delete(bob).Error; err != nil {
		t.Fatalf("delete bob: %v", err)
	}
	if taken, _ := s.IdentityTaken(ctx, "bob", "new@example.com", uuid.Nil); !taken {
		t.Error("expected a deleted user's name to stay taken")
	}
	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 || users[0].Username != "alice" || users[0].GlobalRole.Name != "User" {
		t.Errorf("expected only alice with the User role, got %+v", users)
	}
}

func TestSettings(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, ok, err := s.Setting(ctx, "instance_name"); err != nil || ok {
		t.Fatalf("expected no setting, got ok=%v err=%v", ok, err)
	}
	if err := s.PutSetting(ctx, "instance_name", "Apollo"); err != nil {
		t.Fatalf("PutSetting: %v", err)
	}
	if err := s.PutSetting(ctx, "instance_name", "Gemini"); err != nil {
		t.Fatalf("PutSetting overwrite: %v", err)
	}
	v, ok, err := s.Setting(ctx, "instance_name")
	if err != nil || !ok || v != "Gemini" {
		t.Errorf("Setting = %q, %v, %v; want Gemini", v, ok, err)
	}
	var rows int64
	s.DB().Model(&models.ServerConfig{}).Count(&rows)
	if rows != 1 {
		t.Errorf("expected one settings row, got %d", rows)
	}
}

func TestDefaultDataDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TASKBOARD_DATA_DIR", dir)

	got, err := DefaultDataDir()
	if err != nil {
		t.Fatalf("DefaultDataDir: %v", err)
	}
	if got != dir {
		t.Errorf("got %q, want %q", got, dir)
	}

	path, err := DefaultSQLitePath()
	if err != nil {
		t.Fatalf("DefaultSQLitePath: %v", err)
	}
	if path != filepath.Join(dir, "taskboard.db") {
		t.Errorf("unexpected path %q", path)
	}
}
