package store

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"gorm.io/gorm"
)

// Store answers the lookups the authorization and mutation layers need.
// It is bound to one *gorm.DB; use WithTx to run the same lookups inside a
// transaction.
type Store struct {
	db *gorm.DB
}

// New creates a Store over db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx returns a Store that runs every query on tx.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

// DB returns the underlying GORM DB for advanced queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *Store) isPostgres() bool {
	return s.db.Dialector.Name() == "postgres"
}

// DefaultDataDir returns ~/.local/share/taskboard/ on Linux, platform equivalent elsewhere.
func DefaultDataDir() (string, error) {
	if dir := os.Getenv("TASKBOARD_DATA_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "taskboard"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "taskboard"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "taskboard"), nil
	default:
		return filepath.Join(home, ".local", "share", "taskboard"), nil
	}
}

// DefaultSQLitePath returns the database file used when no DSN is configured,
// creating its directory.
func DefaultSQLitePath() (string, error) {
	dir, err := DefaultDataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "taskboard.db"), nil
}
