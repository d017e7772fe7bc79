package ordering

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nebari-dev/taskboard/internal/models"
	"gorm.io/gorm"
)

// Table describes a ranked table: its name and the column holding the
// scope key. The rank itself always lives in the "position" column.
type Table struct {
	Name        string
	ScopeColumn string
	newModel    func() any
}

var (
	// Stages are ranked within their board.
	Stages = Table{Name: "stages", ScopeColumn: "board_id", newModel: func() any { return &models.Stage{} }}
	// Tasks are ranked within their stage.
	Tasks = Table{Name: "tasks", ScopeColumn: "stage_id", newModel: func() any { return &models.Task{} }}
)

// GormStore implements Store on top of a GORM transaction. Soft-deleted
// rows are invisible to every query.
type GormStore struct {
	tx    *gorm.DB
	table Table
}

// NewGormStore binds a store to tx. Pass the *gorm.DB handed to a
// db.Transaction callback, never the root handle.
func NewGormStore(tx *gorm.DB, table Table) *GormStore {
	return &GormStore{tx: tx, table: table}
}

type rankRow struct {
	ID       uuid.UUID
	Scope    uuid.UUID
	Position int
}

func (s *GormStore) model(ctx context.Context) *gorm.DB {
	return s.tx.WithContext(ctx).Model(s.table.newModel())
}

func (s *GormStore) columns() string {
	return fmt.Sprintf("id, %s AS scope, position", s.table.ScopeColumn)
}

// Lock takes a transaction-scoped advisory lock on PostgreSQL. SQLite runs
// with a single writer connection (see db.New), which already serializes
// transactions.
func (s *GormStore) Lock(ctx context.Context, scope uuid.UUID) error {
	if s.tx.Dialector.Name() != "postgres" {
		return nil
	}
	key := s.table.Name + ":" + scope.String()
	if err := s.tx.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error; err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	return nil
}

// MaxIndex returns the highest live rank in scope.
func (s *GormStore) MaxIndex(ctx context.Context, scope uuid.UUID) (int, error) {
	var max int
	err := s.model(ctx).
		Select("COALESCE(MAX(position), 0)").
		Where(s.table.ScopeColumn+" = ?", scope).
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("max position in %s: %w", s.table.Name, err)
	}
	return max, nil
}

// Get reads the current scope and rank of id.
func (s *GormStore) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	var row rankRow
	res := s.model(ctx).Select(s.columns()).Where("id = ?", id).Limit(1).Scan(&row)
	if res.Error != nil {
		return Entry{}, fmt.Errorf("read %s %s: %w", s.table.Name, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return Entry{}, fmt.Errorf("%w: %s %s", ErrNotFound, s.table.Name, id)
	}
	return Entry{ID: row.ID, Scope: row.Scope, Index: row.Position}, nil
}

// List returns the live rows of scope ordered by rank.
func (s *GormStore) List(ctx context.Context, scope uuid.UUID) ([]Entry, error) {
	var rows []rankRow
	err := s.model(ctx).
		Select(s.columns()).
		Where(s.table.ScopeColumn+" = ?", scope).
		Order("position ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.table.Name, err)
	}
	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{ID: r.ID, Scope: r.Scope, Index: r.Position}
	}
	return entries, nil
}

// Shift pushes "position = position ± 1" down to the database.
func (s *GormStore) Shift(ctx context.Context, scope uuid.UUID, threshold int, dir Direction, exclude uuid.UUID) (int64, error) {
	q := s.model(ctx).Where(s.table.ScopeColumn+" = ?", scope)
	if exclude != uuid.Nil {
		q = q.Where("id <> ?", exclude)
	}

	var expr string
	switch dir {
	case Down:
		q = q.Where("position > ?", threshold)
		expr = "position - 1"
	case Up:
		q = q.Where("position >= ?", threshold)
		expr = "position + 1"
	default:
		return 0, fmt.Errorf("invalid shift direction %d", dir)
	}

	res := q.UpdateColumn("position", gorm.Expr(expr))
	if res.Error != nil {
		return 0, fmt.Errorf("shift %s: %w", s.table.Name, res.Error)
	}
	return res.RowsAffected, nil
}

// Place writes scope and rank onto one row.
func (s *GormStore) Place(ctx context.Context, id uuid.UUID, scope uuid.UUID, index int) error {
	res := s.model(ctx).Where("id = ?", id).UpdateColumns(map[string]any{
		s.table.ScopeColumn: scope,
		"position":          index,
	})
	if res.Error != nil {
		return fmt.Errorf("place %s %s: %w", s.table.Name, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, s.table.Name, id)
	}
	return nil
}
