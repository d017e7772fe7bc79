// Package app wires configuration, storage, authorization and services
// together for the command line.
package app

import (
	"fmt"
	"log/slog"

	"github.com/nebari-dev/taskboard/internal/config"
	"github.com/nebari-dev/taskboard/internal/db"
	"github.com/nebari-dev/taskboard/internal/rbac"
	"github.com/nebari-dev/taskboard/internal/service"
	"github.com/nebari-dev/taskboard/internal/store"

	"gorm.io/gorm"
)

// App holds the initialized components.
type App struct {
	Config     *config.Config
	DB         *gorm.DB
	Store      *store.Store
	Grants     *rbac.Grants
	Resolver   *rbac.Resolver
	Services   *service.Services
	InstanceID string

	watcher *rbac.ValkeyWatcher
}

// Open connects to the database, runs migrations, creates the bootstrap
// admin when configured and builds the services. Call Close when done.
func Open(cfg *config.Config) (*App, error) {
	database, err := db.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Debug("Database initialized", "driver", cfg.Database.Driver)

	a := &App{Config: cfg, DB: database}
	if err := a.init(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init() error {
	catalog, err := rbac.DefaultCatalog()
	if err != nil {
		return fmt.Errorf("failed to load permission catalog: %w", err)
	}

	a.Grants, err = rbac.NewGrants(a.DB, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to initialize role grants: %w", err)
	}

	if err := db.Migrate(a.DB, catalog, a.Grants); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Database migrations completed")

	// Processes sharing a database share the instance ID, and with it the
	// watcher channel.
	a.InstanceID, err = db.GetOrCreateInstanceID(a.DB)
	if err != nil {
		return fmt.Errorf("failed to initialize instance ID: %w", err)
	}

	if err := db.CreateDefaultAdmin(a.DB, a.Config.Users); err != nil {
		return fmt.Errorf("failed to create default admin user: %w", err)
	}

	a.watcher, err = createWatcher(a.Config.RBAC, a.InstanceID)
	if err != nil {
		return fmt.Errorf("failed to initialize RBAC watcher: %w", err)
	}
	if a.watcher != nil {
		if err := a.Grants.SetWatcher(a.watcher); err != nil {
			return fmt.Errorf("failed to attach RBAC watcher: %w", err)
		}
	}

	a.Store = store.New(a.DB)
	a.Resolver = rbac.NewResolver(catalog, a.Store, a.Grants, slog.Default(),
		rbac.WithMembershipCache(a.Config.RBAC.MembershipCacheSize, a.Config.RBAC.MembershipCacheTTL))
	a.Grants.OnReload(a.Resolver.PurgeMemberships)

	a.Services = service.New(service.Deps{
		DB:       a.DB,
		Resolver: a.Resolver,
		Grants:   a.Grants,
		Users:    a.Config.Users,
		Board:    a.Config.Board,
	})
	return nil
}

// Close stops the watcher and closes the database.
func (a *App) Close() error {
	if a.watcher != nil {
		a.watcher.Close()
		a.watcher = nil
	}
	return db.Close(a.DB)
}

// createWatcher creates a watcher based on configuration. Its channel is
// scoped to the instance so installations sharing one Valkey server do not
// reload each other's policies.
func createWatcher(cfg config.RBACConfig, instanceID string) (*rbac.ValkeyWatcher, error) {
	switch cfg.Watcher {
	case "", "none":
		return nil, nil
	case "valkey":
		if cfg.ValkeyAddr == "" {
			return nil, fmt.Errorf("valkey address is required when watcher is valkey")
		}
		return rbac.NewValkeyWatcher(cfg.ValkeyAddr, watcherChannel(cfg.WatcherChannel, instanceID))
	default:
		return nil, fmt.Errorf("unsupported watcher: %s (supported: none, valkey)", cfg.Watcher)
	}
}

func watcherChannel(base, instanceID string) string {
	if base == "" {
		base = rbac.DefaultWatcherChannel
	}
	return base + ":" + instanceID
}
