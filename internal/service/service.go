package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nebari-dev/taskboard/internal/config"
	"github.com/nebari-dev/taskboard/internal/models"
	"github.com/nebari-dev/taskboard/internal/ordering"
	"github.com/nebari-dev/taskboard/internal/rbac"
	"github.com/nebari-dev/taskboard/internal/store"
	"gorm.io/gorm"
)

// Deps are the collaborators shared by every service.
type Deps struct {
	DB       *gorm.DB
	Resolver *rbac.Resolver
	Grants   *rbac.Grants
	Users    config.UsersConfig
	Board    config.BoardConfig
}

// Services bundles the mutation services.
type Services struct {
	Projects *ProjectService
	Boards   *BoardService
	Tasks    *TaskService
	Roles    *RoleService
	Users    *UserService
	Instance *InstanceService
}

// New creates every service over the same dependencies.
func New(deps Deps) *Services {
	b := &base{Deps: deps, store: store.New(deps.DB)}
	return &Services{
		Projects: &ProjectService{b},
		Boards:   &BoardService{b},
		Tasks:    &TaskService{b},
		Roles:    &RoleService{b},
		Users:    &UserService{b},
		Instance: &InstanceService{b},
	}
}

type base struct {
	Deps
	store *store.Store
}

func (b *base) requireProject(ctx context.Context, userID uuid.UUID, perm string, projectID uuid.UUID) error {
	return b.Resolver.Require(ctx, userID, perm, &projectID)
}

func (b *base) requireGlobal(ctx context.Context, userID uuid.UUID, perm string) error {
	return b.Resolver.Require(ctx, userID, perm, nil)
}

// transaction runs fn in a transaction. Inside fn, use tx and never b.DB:
// SQLite runs on a single connection.
func (b *base) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return b.DB.WithContext(ctx).Transaction(fn)
}

// membershipChanged drops cached membership state here and in every other
// process. Failures only delay convergence until the cache TTL.
func (b *base) membershipChanged(projectID, userID uuid.UUID) {
	b.Resolver.InvalidateMembership(projectID, userID)
	if err := b.Grants.Notify(); err != nil {
		slog.Warn("Failed to broadcast membership change", "project_id", projectID, "user_id", userID, "error", err)
	}
}

func (b *base) membershipsPurged() {
	b.Resolver.PurgeMemberships()
	if err := b.Grants.Notify(); err != nil {
		slog.Warn("Failed to broadcast membership purge", "error", err)
	}
}

func (b *base) ownerRole(ctx context.Context, st *store.Store) (*models.Role, error) {
	role, err := st.FindRole(ctx, b.Users.OwnerRole)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("owner role %q: %w", b.Users.OwnerRole, ErrNotFound)
	}
	return role, nil
}

// projectRole resolves name, or the default project role when empty, and
// checks that it is project-scoped.
func (b *base) projectRole(ctx context.Context, st *store.Store, name string) (*models.Role, error) {
	if name == "" {
		name = b.Users.DefaultProjectRole
	}
	role, err := st.FindRole(ctx, name)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("role %q: %w", name, ErrNotFound)
	}
	if err := rbac.CheckScope(role, models.ScopeProject); err != nil {
		return nil, err
	}
	return role, nil
}

func (b *base) userByName(ctx context.Context, st *store.Store, username string) (*models.User, error) {
	user, err := st.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	return user, nil
}

// first loads one row into dest, mapping a missing row to ErrNotFound.
func first(db *gorm.DB, dest interface{}, id uuid.UUID) error {
	if err := db.Where("id = ?", id).First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (b *base) loadProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var p models.Project
	if err := first(b.DB.WithContext(ctx), &p, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (b *base) loadBoard(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	var board models.Board
	if err := first(b.DB.WithContext(ctx), &board, id); err != nil {
		return nil, err
	}
	return &board, nil
}

// loadStage returns the stage with its board.
func (b *base) loadStage(ctx context.Context, id uuid.UUID) (*models.Stage, *models.Board, error) {
	var stage models.Stage
	if err := first(b.DB.WithContext(ctx), &stage, id); err != nil {
		return nil, nil, err
	}
	board, err := b.loadBoard(ctx, stage.BoardID)
	if err != nil {
		return nil, nil, err
	}
	return &stage, board, nil
}

// loadTask returns the task with its board.
func (b *base) loadTask(ctx context.Context, id uuid.UUID) (*models.Task, *models.Board, error) {
	var task models.Task
	if err := first(b.DB.WithContext(ctx).Preload("Assignees"), &task, id); err != nil {
		return nil, nil, err
	}
	board, err := b.loadBoard(ctx, task.BoardID)
	if err != nil {
		return nil, nil, err
	}
	return &task, board, nil
}

// lockStage holds the stage ordering lock of boardID until tx ends and
// confirms stageID is still a live stage of that board. A stage read before
// the transaction may have been deleted since.
func lockStage(ctx context.Context, tx *gorm.DB, boardID, stageID uuid.UUID) error {
	st := ordering.NewGormStore(tx, ordering.Stages)
	if err := st.Lock(ctx, boardID); err != nil {
		return err
	}
	entry, err := st.Get(ctx, stageID)
	if err != nil {
		return orderingError(err)
	}
	if entry.Scope != boardID {
		return &ValidationError{Message: "a task can only move between stages of its own board"}
	}
	return nil
}

// orderingError maps a missing entity reported by the reindexer to ErrNotFound
// while keeping the original error in the chain.
func orderingError(err error) error {
	if errors.Is(err, ordering.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, ordering.ErrInvalidMoveTarget) {
		return &ValidationError{Message: err.Error()}
	}
	return err
}
