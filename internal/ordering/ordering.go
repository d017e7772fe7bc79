// Package ordering keeps a dense, 1-based rank over the live members of a
// scope (stages of a board, tasks of a stage) and moves members around
// without breaking it.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

var (
	// ErrNotFound means the moving entity or the preceding entity does not
	// exist in the expected scope.
	ErrNotFound = errors.New("entity not found in scope")

	// ErrInvalidMoveTarget means an entity was asked to follow itself.
	ErrInvalidMoveTarget = errors.New("entity cannot be placed after itself")

	// ErrNotDense means a scope's ranks are not exactly 1..N.
	ErrNotDense = errors.New("scope ranks are not dense")
)

// Direction of a bulk shift.
type Direction int

const (
	// Down decrements every rank strictly greater than the threshold.
	Down Direction = -1
	// Up increments every rank greater than or equal to the threshold.
	Up Direction = 1
)

// Entry is the ordering view of one entity.
type Entry struct {
	ID    uuid.UUID
	Scope uuid.UUID
	Index int
}

// Store is the persistence the reindexer needs. Implementations are bound to
// a single transaction; every call must see the writes made before it in the
// same transaction.
type Store interface {
	// Lock serializes concurrent writers of the scope until the transaction
	// ends.
	Lock(ctx context.Context, scope uuid.UUID) error
	// MaxIndex returns the highest rank in scope, 0 when empty.
	MaxIndex(ctx context.Context, scope uuid.UUID) (int, error)
	// Get returns the live entity with id, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (Entry, error)
	// List returns the live entities of scope ordered by rank.
	List(ctx context.Context, scope uuid.UUID) ([]Entry, error)
	// Shift moves every rank on the threshold side given by dir by one,
	// skipping exclude.
	Shift(ctx context.Context, scope uuid.UUID, threshold int, dir Direction, exclude uuid.UUID) (int64, error)
	// Place writes the scope and rank of one entity.
	Place(ctx context.Context, id uuid.UUID, scope uuid.UUID, index int) error
}

// NextAppendIndex returns the rank a new last entity of scope gets.
func NextAppendIndex(ctx context.Context, st Store, scope uuid.UUID) (int, error) {
	if err := st.Lock(ctx, scope); err != nil {
		return 0, err
	}
	max, err := st.MaxIndex(ctx, scope)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// Move places entityID right after precedingID inside scope, or first when
// precedingID is nil. scope may differ from the entity's current scope, in
// which case the entity leaves its old scope and the gap it leaves is closed.
//
// Every read happens inside the caller's transaction, after the writes that
// precede it, so the rank of precedingID is the one left by the gap close.
func Move(ctx context.Context, st Store, scope, entityID uuid.UUID, precedingID *uuid.UUID) error {
	if precedingID != nil && *precedingID == entityID {
		return ErrInvalidMoveTarget
	}

	moving, err := st.Get(ctx, entityID)
	if err != nil {
		return err
	}

	for _, s := range lockOrder(moving.Scope, scope) {
		if err := st.Lock(ctx, s); err != nil {
			return err
		}
	}

	// Re-read under the lock; a concurrent mover may have shifted it.
	moving, err = st.Get(ctx, entityID)
	if err != nil {
		return err
	}

	if _, err := st.Shift(ctx, moving.Scope, moving.Index, Down, moving.ID); err != nil {
		return fmt.Errorf("close gap: %w", err)
	}

	newIndex := 1
	if precedingID != nil {
		preceding, err := st.Get(ctx, *precedingID)
		if err != nil {
			return err
		}
		if preceding.Scope != scope {
			return fmt.Errorf("%w: %s is not in %s", ErrNotFound, preceding.ID, scope)
		}
		newIndex = preceding.Index + 1
	}

	if _, err := st.Shift(ctx, scope, newIndex, Up, moving.ID); err != nil {
		return fmt.Errorf("open slot: %w", err)
	}

	return st.Place(ctx, moving.ID, scope, newIndex)
}

// CompactAfterRemoval closes the gap left at removedIndex. Call it in the
// transaction that removes the entity.
func CompactAfterRemoval(ctx context.Context, st Store, scope uuid.UUID, removedIndex int) error {
	if err := st.Lock(ctx, scope); err != nil {
		return err
	}
	_, err := st.Shift(ctx, scope, removedIndex, Down, uuid.Nil)
	return err
}

// CheckDense verifies that the ranks of entries are exactly 1..len(entries).
func CheckDense(entries []Entry) error {
	idx := make([]int, len(entries))
	for i, e := range entries {
		idx[i] = e.Index
	}
	sort.Ints(idx)
	for i, v := range idx {
		if v != i+1 {
			return fmt.Errorf("%w: expected rank %d, found %d", ErrNotDense, i+1, v)
		}
	}
	return nil
}

func lockOrder(a, b uuid.UUID) []uuid.UUID {
	if a == b {
		return []uuid.UUID{a}
	}
	if a.String() < b.String() {
		return []uuid.UUID{a, b}
	}
	return []uuid.UUID{b, a}
}
