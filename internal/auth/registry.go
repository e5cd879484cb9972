package auth

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"slices"
	"sync/atomic"

	"github.com/wolfeidau/casekeeper/internal/models"
	"gopkg.in/yaml.v3"
)

// Permission represents an authorized action
type Permission string

const (
	PermViewUsers           Permission = "view_users"
	PermCreateUsers         Permission = "create_users"
	PermEditUsers           Permission = "edit_users"
	PermDeleteUsers         Permission = "delete_users"
	PermViewClients         Permission = "view_clients"
	PermCreateClients       Permission = "create_clients"
	PermEditClients         Permission = "edit_clients"
	PermDeleteClients       Permission = "delete_clients"
	PermAssignClients       Permission = "assign_clients"
	PermViewAppointments    Permission = "view_appointments"
	PermCreateAppointments  Permission = "create_appointments"
	PermViewWorkload        Permission = "view_workload"
	PermManageOrganizations Permission = "manage_organizations"
	PermManageRoles         Permission = "manage_roles"
	PermViewAuditLogs       Permission = "view_audit_logs"
	PermExportAuditLogs     Permission = "export_audit_logs"
)

// AllPermissions is the complete permission catalog.
var AllPermissions = []Permission{
	PermViewUsers,
	PermCreateUsers,
	PermEditUsers,
	PermDeleteUsers,
	PermViewClients,
	PermCreateClients,
	PermEditClients,
	PermDeleteClients,
	PermAssignClients,
	PermViewAppointments,
	PermCreateAppointments,
	PermViewWorkload,
	PermManageOrganizations,
	PermManageRoles,
	PermViewAuditLogs,
	PermExportAuditLogs,
}

// ParsePermission rejects permissions outside the catalog.
func ParsePermission(s string) (Permission, error) {
	p := Permission(s)
	if !slices.Contains(AllPermissions, p) {
		return "", fmt.Errorf("unknown permission %q", s)
	}
	return p, nil
}

//go:embed roles.yaml
var defaultRolesYAML []byte

type roleEntry struct {
	level int
	perms map[Permission]struct{}
}

// Registry maps every role to its hierarchy level and explicit permission set.
// A Registry is never modified after construction.
type Registry struct {
	roles map[models.Role]roleEntry
}

// NewRegistry builds a registry. Every role must be present and every permission must be in the catalog.
func NewRegistry(grants map[models.Role][]Permission) (*Registry, error) {
	reg := &Registry{roles: make(map[models.Role]roleEntry, len(models.Roles))}

	for role, perms := range grants {
		if !role.Valid() {
			return nil, fmt.Errorf("unknown role %q", role)
		}
		entry := roleEntry{level: role.Level(), perms: make(map[Permission]struct{}, len(perms))}
		for _, p := range perms {
			if _, err := ParsePermission(string(p)); err != nil {
				return nil, fmt.Errorf("role %s: %w", role, err)
			}
			entry.perms[p] = struct{}{}
		}
		reg.roles[role] = entry
	}

	for _, role := range models.Roles {
		if _, ok := reg.roles[role]; !ok {
			return nil, fmt.Errorf("role %q missing from registry", role)
		}
	}

	return reg, nil
}

type registryFile struct {
	Roles map[string]struct {
		Level       int      `yaml:"level"`
		Permissions []string `yaml:"permissions"`
	} `yaml:"roles"`
}

// LoadRegistry reads a YAML role file. Levels in the file must match the fixed role hierarchy.
func LoadRegistry(r io.Reader) (*Registry, error) {
	var file registryFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode roles file: %w", err)
	}

	grants := make(map[models.Role][]Permission, len(file.Roles))
	for name, def := range file.Roles {
		role, err := models.ParseRole(name)
		if err != nil {
			return nil, err
		}
		if def.Level != role.Level() {
			return nil, fmt.Errorf("role %s: level %d does not match hierarchy level %d", role, def.Level, role.Level())
		}
		perms := make([]Permission, 0, len(def.Permissions))
		for _, p := range def.Permissions {
			perm, err := ParsePermission(p)
			if err != nil {
				return nil, fmt.Errorf("role %s: %w", role, err)
			}
			perms = append(perms, perm)
		}
		grants[role] = perms
	}

	return NewRegistry(grants)
}

// DefaultRegistry returns the registry built from the embedded roles.yaml.
func DefaultRegistry() *Registry {
	reg, err := LoadRegistry(bytes.NewReader(defaultRolesYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded roles.yaml is invalid: %v", err))
	}
	return reg
}

// HasPermission reports whether the role's permission set contains perm.
func (r *Registry) HasPermission(role models.Role, perm Permission) bool {
	entry, ok := r.roles[role]
	if !ok {
		return false
	}
	_, ok = entry.perms[perm]
	return ok
}

// Knows reports whether the registry has an entry for the role.
func (r *Registry) Knows(role models.Role) bool {
	_, ok := r.roles[role]
	return ok
}

// Permissions returns a sorted copy of the role's permission set.
func (r *Registry) Permissions(role models.Role) []Permission {
	entry, ok := r.roles[role]
	if !ok {
		return nil
	}
	perms := make([]Permission, 0, len(entry.perms))
	for p := range entry.perms {
		perms = append(perms, p)
	}
	slices.Sort(perms)
	return perms
}

// Level returns the role's hierarchy level.
func (r *Registry) Level(role models.Role) (int, bool) {
	entry, ok := r.roles[role]
	return entry.level, ok
}

// WithPermissions returns a new registry where role holds exactly perms.
func (r *Registry) WithPermissions(role models.Role, perms []Permission) (*Registry, error) {
	grants := make(map[models.Role][]Permission, len(r.roles))
	for existing := range r.roles {
		grants[existing] = r.Permissions(existing)
	}
	grants[role] = slices.Clone(perms)
	return NewRegistry(grants)
}

// RegistryHolder publishes the current registry to concurrent readers.
// Replacing it is reserved for the audited role administration path.
type RegistryHolder struct {
	current atomic.Pointer[Registry]
}

// NewRegistryHolder wraps an initial registry.
func NewRegistryHolder(reg *Registry) *RegistryHolder {
	h := &RegistryHolder{}
	h.current.Store(reg)
	return h
}

// Load returns the current registry.
func (h *RegistryHolder) Load() *Registry {
	return h.current.Load()
}

// Replace swaps in next only if old is still current.
func (h *RegistryHolder) Replace(old, next *Registry) bool {
	return h.current.CompareAndSwap(old, next)
}
