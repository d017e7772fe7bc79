package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nebari-dev/taskboard/internal/config"
	"github.com/nebari-dev/taskboard/internal/db"
	"github.com/nebari-dev/taskboard/internal/models"
	"github.com/nebari-dev/taskboard/internal/ordering"
	"github.com/nebari-dev/taskboard/internal/rbac"
	"github.com/nebari-dev/taskboard/internal/store"
	"gorm.io/gorm"
)

type fixture struct {
	svc    *Services
	db     *gorm.DB
	grants *rbac.Grants
	admin  uuid.UUID
	alice  uuid.UUID
	bob    uuid.UUID
	carol  uuid.UUID
}

// testSetup creates a migrated SQLite DB with the built-in roles, an admin
// and three regular users, and returns services wired over it.
func testSetup(t *testing.T) *fixture {
	t.Helper()

	gdb, err := db.New(config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close(gdb) })

	catalog, err := rbac.DefaultCatalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	grants, err := rbac.NewGrants(gdb, nil)
	if err != nil {
		t.Fatalf("grants: %v", err)
	}
	if err := db.Migrate(gdb, catalog, grants); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	st := store.New(gdb)
	resolver := rbac.NewResolver(catalog, st, grants, nil, rbac.WithMembershipCache(64, time.Minute))

	f := &fixture{
		svc: New(Deps{
			DB:       gdb,
			Resolver: resolver,
			Grants:   grants,
			Users: config.UsersConfig{
				DefaultRole:        db.RoleUser,
				DefaultProjectRole: db.RoleProjectMember,
				OwnerRole:          db.RoleProjectOwner,
			},
			Board: config.BoardConfig{DefaultName: "Main"},
		}),
		db:     gdb,
		grants: grants,
	}
	f.admin = createTestUser(t, st, "admin", db.RoleAdministrator)
	f.alice = createTestUser(t, st, "alice", db.RoleUser)
	f.bob = createTestUser(t, st, "bob", db.RoleUser)
	f.carol = createTestUser(t, st, "carol", db.RoleUser)
	return f
}

// createTestUser inserts a user holding the named global role and returns its ID.
func createTestUser(t *testing.T, st *store.Store, username, roleName string) uuid.UUID {
	t.Helper()
	role, err := st.FindRole(context.Background(), roleName)
	if err != nil || role == nil {
		t.Fatalf("find role %s: %v", roleName, err)
	}
	user := &models.User{
		Username:     username,
		Email:        username + "@test.com",
		PasswordHash: "x",
		GlobalRoleID: role.ID,
	}
	if err := st.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user.ID
}

// createProject creates a project owned by owner and returns it with its
// default board.
func createProject(t *testing.T, f *fixture, owner uuid.UUID, name string) (*models.Project, *models.Board) {
	t.Helper()
	res, err := f.svc.Projects.Create(context.Background(), owner, CreateProjectRequest{Name: name})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return res.Project, res.Board
}

func createStages(t *testing.T, f *fixture, userID, boardID uuid.UUID, names ...string) []*models.Stage {
	t.Helper()
	stages := make([]*models.Stage, 0, len(names))
	for _, name := range names {
		stage, err := f.svc.Boards.CreateStage(context.Background(), userID, boardID, name)
		if err != nil {
			t.Fatalf("create stage %s: %v", name, err)
		}
		stages = append(stages, stage)
	}
	return stages
}

func createTasks(t *testing.T, f *fixture, userID, stageID uuid.UUID, titles ...string) []*models.Task {
	t.Helper()
	tasks := make([]*models.Task, 0, len(titles))
	for _, title := range titles {
		task, err := f.svc.Tasks.Create(context.Background(), userID, CreateTaskRequest{StageID: stageID, Title: title})
		if err != nil {
			t.Fatalf("create task %s: %v", title, err)
		}
		tasks = append(tasks, task)
	}
	return tasks
}

func stageOrder(t *testing.T, f *fixture, userID, boardID uuid.UUID) []string {
	t.Helper()
	stages, err := f.svc.Boards.ListStages(context.Background(), userID, boardID)
	if err != nil {
		t.Fatalf("list stages: %v", err)
	}
	names := make([]string, len(stages))
	for i, s := range stages {
		if s.Index != i+1 {
			t.Fatalf("stage %s has index %d at position %d", s.Name, s.Index, i+1)
		}
		names[i] = s.Name
	}
	return names
}

func taskOrder(t *testing.T, f *fixture, userID, stageID uuid.UUID) []string {
	t.Helper()
	tasks, err := f.svc.Tasks.List(context.Background(), userID, stageID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	titles := make([]string, len(tasks))
	for i, task := range tasks {
		if task.Index != i+1 {
			t.Fatalf("task %s has index %d at position %d", task.Title, task.Index, i+1)
		}
		titles[i] = task.Title
	}
	return titles
}

func assertDenseScope(t *testing.T, f *fixture, table ordering.Table, scope uuid.UUID) {
	t.Helper()
	entries, err := ordering.NewGormStore(f.db, table).List(context.Background(), scope)
	if err != nil {
		t.Fatalf("list %s: %v", table.Name, err)
	}
	if err := ordering.CheckDense(entries); err != nil {
		t.Fatalf("%s of %s: %v", table.Name, scope, err)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isValidationError(err error, target **ValidationError) bool {
	return errors.As(err, target)
}

func isConflictError(err error, target **ConflictError) bool {
	return errors.As(err, target)
}
