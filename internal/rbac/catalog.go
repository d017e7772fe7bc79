package rbac

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/nebari-dev/taskboard/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog is the immutable set of known permissions together with the
// project-to-global equivalence table. Build it once at startup and pass it
// to whoever needs it.
type Catalog struct {
	perms       map[string]models.Permission
	order       []string
	equivalents map[string]string
}

type catalogFile struct {
	Permissions []struct {
		Name        string `yaml:"name"`
		Scope       string `yaml:"scope"`
		Description string `yaml:"description"`
	} `yaml:"permissions"`
	Equivalents map[string]string `yaml:"equivalents"`
}

// DefaultCatalog returns the catalog embedded in the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog builds a catalog from its YAML form and checks that every
// project permission has a declared global equivalent.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse permission catalog: %w", err)
	}

	c := &Catalog{
		perms:       make(map[string]models.Permission, len(f.Permissions)),
		equivalents: make(map[string]string, len(f.Equivalents)),
	}

	for _, p := range f.Permissions {
		scope := models.PermissionScope(p.Scope)
		if scope != models.ScopeGlobal && scope != models.ScopeProject {
			return nil, fmt.Errorf("permission %q: unknown scope %q", p.Name, p.Scope)
		}
		group, operation, ok := strings.Cut(p.Name, ":")
		if !ok || group == "" || operation == "" {
			return nil, fmt.Errorf("permission %q: name must be <group>:<operation>", p.Name)
		}
		if _, dup := c.perms[p.Name]; dup {
			return nil, fmt.Errorf("permission %q declared twice", p.Name)
		}
		c.perms[p.Name] = models.Permission{
			Name:        p.Name,
			Group:       group,
			Operation:   operation,
			Scope:       scope,
			Description: p.Description,
		}
		c.order = append(c.order, p.Name)
	}

	for local, global := range f.Equivalents {
		lp, ok := c.perms[local]
		if !ok || lp.Scope != models.ScopeProject {
			return nil, fmt.Errorf("equivalent for %q: not a project permission", local)
		}
		gp, ok := c.perms[global]
		if !ok || gp.Scope != models.ScopeGlobal {
			return nil, fmt.Errorf("equivalent for %q: %q is not a global permission", local, global)
		}
		c.equivalents[local] = global
	}

	for _, name := range c.order {
		if c.perms[name].Scope != models.ScopeProject {
			continue
		}
		if _, ok := c.equivalents[name]; !ok {
			return nil, fmt.Errorf("project permission %q has no global equivalent", name)
		}
	}

	return c, nil
}

// Lookup returns the permission with the given name.
func (c *Catalog) Lookup(name string) (models.Permission, bool) {
	p, ok := c.perms[name]
	return p, ok
}

// GlobalEquivalent returns the global permission a global role must hold to
// be granted name. Global permissions are their own equivalent.
func (c *Catalog) GlobalEquivalent(name string) (string, bool) {
	p, ok := c.perms[name]
	if !ok {
		return "", false
	}
	if p.Scope == models.ScopeGlobal {
		return name, true
	}
	g, ok := c.equivalents[name]
	return g, ok
}

// Names returns the sorted names of every permission with the given scope.
func (c *Catalog) Names(scope models.PermissionScope) []string {
	var names []string
	for _, name := range c.order {
		if c.perms[name].Scope == scope {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// All returns every permission in declaration order.
func (c *Catalog) All() []models.Permission {
	out := make([]models.Permission, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.perms[name])
	}
	return out
}
