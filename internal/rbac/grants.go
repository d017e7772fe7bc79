package rbac

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelConf string

const roleSubjectPrefix = "role:"

// Grants stores which permissions each role holds. Policies live in the
// casbin_rule table and are mirrored in memory by a synced enforcer, so
// lookups never touch the database.
type Grants struct {
	enforcer *casbin.SyncedEnforcer
	watcher  persist.Watcher
	onReload []func()
	logger   *slog.Logger
}

// NewGrants initializes the casbin enforcer over db and loads every policy.
func NewGrants(db *gorm.DB, logger *slog.Logger) (*Grants, error) {
	if logger == nil {
		logger = slog.Default()
	}

	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin adapter: %w", err)
	}

	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}

	e, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}

	logger.Info("Role grants initialized")
	return &Grants{enforcer: e, logger: logger}, nil
}

func roleSubject(roleID uint) string {
	return roleSubjectPrefix + strconv.FormatUint(uint64(roleID), 10)
}

// HasPermission reports whether the role holds perm.
func (g *Grants) HasPermission(roleID uint, perm string) (bool, error) {
	return g.enforcer.Enforce(roleSubject(roleID), perm)
}

// Permissions returns the sorted permission names held by the role.
func (g *Grants) Permissions(roleID uint) ([]string, error) {
	policies, err := g.enforcer.GetFilteredPolicy(0, roleSubject(roleID))
	if err != nil {
		return nil, err
	}

	perms := make([]string, 0, len(policies))
	for _, policy := range policies {
		if len(policy) >= 2 {
			perms = append(perms, policy[1])
		}
	}
	sort.Strings(perms)
	return perms, nil
}

// Grant adds perms to the role. Permissions already held are skipped.
func (g *Grants) Grant(roleID uint, perms ...string) error {
	sub := roleSubject(roleID)
	for _, perm := range perms {
		if _, err := g.enforcer.AddPolicy(sub, perm); err != nil {
			return fmt.Errorf("grant %s to %s: %w", perm, sub, err)
		}
	}
	return nil
}

// Revoke removes perms from the role.
func (g *Grants) Revoke(roleID uint, perms ...string) error {
	sub := roleSubject(roleID)
	for _, perm := range perms {
		if _, err := g.enforcer.RemovePolicy(sub, perm); err != nil {
			return fmt.Errorf("revoke %s from %s: %w", perm, sub, err)
		}
	}
	return nil
}

// RevokeAll removes every permission of the role.
func (g *Grants) RevokeAll(roleID uint) error {
	_, err := g.enforcer.RemoveFilteredPolicy(0, roleSubject(roleID))
	return err
}

// Reload re-reads every policy from the database and runs the reload hooks.
func (g *Grants) Reload() error {
	if err := g.enforcer.LoadPolicy(); err != nil {
		return fmt.Errorf("failed to reload policies: %w", err)
	}
	for _, fn := range g.onReload {
		fn()
	}
	return nil
}

// OnReload registers fn to run after every reload, local or triggered by
// another process through the watcher.
func (g *Grants) OnReload(fn func()) {
	g.onReload = append(g.onReload, fn)
}

// SetWatcher attaches a watcher so that policy writes in one process make
// every other process reload.
func (g *Grants) SetWatcher(w persist.Watcher) error {
	if err := g.enforcer.SetWatcher(w); err != nil {
		return err
	}
	if err := w.SetUpdateCallback(func(msg string) {
		g.logger.Debug("Reloading role grants", "reason", msg)
		if err := g.Reload(); err != nil {
			g.logger.Error("Failed to reload role grants", "error", err)
		}
	}); err != nil {
		return err
	}
	g.watcher = w
	return nil
}

// Notify tells other processes to drop cached authorization state. Policy
// writes notify on their own; call this after membership writes.
func (g *Grants) Notify() error {
	if g.watcher == nil {
		return nil
	}
	return g.watcher.Update()
}
