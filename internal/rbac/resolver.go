package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/nebari-dev/taskboard/internal/models"
)

// Decision is the outcome of an authorization check.
type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

func (d Decision) String() string {
	if d {
		return "allow"
	}
	return "deny"
}

// Directory looks up users and project memberships. Both lookups return a
// nil record and a nil error when nothing matches.
type Directory interface {
	ResolveUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	FindMembership(ctx context.Context, projectID, userID uuid.UUID) (*models.ProjectMembership, error)
}

// PermissionChecker answers whether a role holds a permission.
type PermissionChecker interface {
	HasPermission(roleID uint, perm string) (bool, error)
}

type membershipKey struct {
	projectID uuid.UUID
	userID    uuid.UUID
}

// roleID 0 records a known non-member.
type cachedMembership struct {
	roleID uint
}

// Resolver decides whether a user may perform an action. A user is allowed
// when their global role holds the global equivalent of the permission, or
// when their role in the target project holds the permission itself.
type Resolver struct {
	catalog *Catalog
	dir     Directory
	grants  PermissionChecker
	cache   *expirable.LRU[membershipKey, cachedMembership]
	logger  *slog.Logger

	// version counts invalidations. A lookup only fills the cache when no
	// invalidation ran while it was reading.
	mu      sync.Mutex
	version uint64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMembershipCache caches membership lookups. Writers must call
// InvalidateMembership or PurgeMemberships.
func WithMembershipCache(size int, ttl time.Duration) Option {
	return func(r *Resolver) {
		if size > 0 {
			r.cache = expirable.NewLRU[membershipKey, cachedMembership](size, nil, ttl)
		}
	}
}

// NewResolver creates a Resolver.
func NewResolver(catalog *Catalog, dir Directory, grants PermissionChecker, logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{catalog: catalog, dir: dir, grants: grants, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Catalog returns the permission catalog the resolver was built with.
func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// Authorize checks perm for userID. projectID must be set for project
// permissions and is ignored by the global check. Deny is a normal result;
// errors are reserved for lookups that failed or contract violations.
func (r *Resolver) Authorize(ctx context.Context, userID uuid.UUID, perm string, projectID *uuid.UUID) (Decision, error) {
	p, ok := r.catalog.Lookup(perm)
	if !ok {
		return Deny, fmt.Errorf("%w: %s", ErrUnknownPermission, perm)
	}
	if p.Scope == models.ScopeProject && projectID == nil {
		return Deny, fmt.Errorf("%w: %s", ErrProjectRequired, perm)
	}

	user, err := r.dir.ResolveUser(ctx, userID)
	if err != nil {
		return Deny, fmt.Errorf("resolve user: %w", err)
	}
	if user == nil {
		return Deny, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	global, err := r.globalCheck(user, perm)
	if err != nil {
		return Deny, err
	}

	local := false
	if !global && projectID != nil && p.Scope == models.ScopeProject {
		local, err = r.localCheck(ctx, user.ID, *projectID, perm)
		if err != nil {
			return Deny, err
		}
	}

	decision := Decision(global || local)
	r.logger.Debug("Authorization decision",
		"user_id", userID,
		"permission", perm,
		"project_id", projectID,
		"global", global,
		"local", local,
		"decision", decision.String())
	return decision, nil
}

// Require is Authorize with Deny turned into ErrForbidden.
func (r *Resolver) Require(ctx context.Context, userID uuid.UUID, perm string, projectID *uuid.UUID) error {
	decision, err := r.Authorize(ctx, userID, perm, projectID)
	if err != nil {
		return err
	}
	if decision == Deny {
		return fmt.Errorf("%w: %s", ErrForbidden, perm)
	}
	return nil
}

func (r *Resolver) globalCheck(user *models.User, perm string) (bool, error) {
	if user.GlobalRoleID == 0 {
		return false, nil
	}
	equivalent, ok := r.catalog.GlobalEquivalent(perm)
	if !ok {
		return false, nil
	}
	allowed, err := r.grants.HasPermission(user.GlobalRoleID, equivalent)
	if err != nil {
		return false, fmt.Errorf("check global role %d: %w", user.GlobalRoleID, err)
	}
	return allowed, nil
}

func (r *Resolver) localCheck(ctx context.Context, userID, projectID uuid.UUID, perm string) (bool, error) {
	roleID, err := r.membershipRole(ctx, projectID, userID)
	if err != nil {
		return false, err
	}
	if roleID == 0 {
		return false, nil
	}
	allowed, err := r.grants.HasPermission(roleID, perm)
	if err != nil {
		return false, fmt.Errorf("check project role %d: %w", roleID, err)
	}
	return allowed, nil
}

func (r *Resolver) membershipRole(ctx context.Context, projectID, userID uuid.UUID) (uint, error) {
	key := membershipKey{projectID: projectID, userID: userID}
	var version uint64
	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			return cached.roleID, nil
		}
		r.mu.Lock()
		version = r.version
		r.mu.Unlock()
	}

	m, err := r.dir.FindMembership(ctx, projectID, userID)
	if err != nil {
		return 0, fmt.Errorf("find membership: %w", err)
	}

	var roleID uint
	if m != nil {
		roleID = m.RoleID
	}
	if r.cache != nil {
		r.mu.Lock()
		if r.version == version {
			r.cache.Add(key, cachedMembership{roleID: roleID})
		}
		r.mu.Unlock()
	}
	return roleID, nil
}

// InvalidateMembership drops the cached membership of userID in projectID.
func (r *Resolver) InvalidateMembership(projectID, userID uuid.UUID) {
	if r.cache == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.version++
	r.cache.Remove(membershipKey{projectID: projectID, userID: userID})
}

// PurgeMemberships drops every cached membership.
func (r *Resolver) PurgeMemberships() {
	if r.cache == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.version++
	r.cache.Purge()
}
