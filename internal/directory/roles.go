package directory

import (
	"context"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/audit"
	"github.com/wolfeidau/casekeeper/internal/auth"
	"github.com/wolfeidau/casekeeper/internal/models"
)

// RoleInfo describes a role and its current permissions.
type RoleInfo struct {
	Role        models.Role       `json:"role"`
	Level       int               `json:"level"`
	Permissions []auth.Permission `json:"permissions"`
}

func roleInfo(reg *auth.Registry, role models.Role) RoleInfo {
	level, _ := reg.Level(role)
	return RoleInfo{Role: role, Level: level, Permissions: reg.Permissions(role)}
}

// ListRoles returns every role in hierarchy order.
func (s *Service) ListRoles(ctx context.Context, subjectID string) ([]RoleInfo, error) {
	if _, err := s.engine.Check(ctx, subjectID, auth.PermViewUsers); err != nil {
		return nil, err
	}

	reg := s.engine.Registry()
	roles := make([]RoleInfo, 0, len(models.Roles))
	for _, role := range models.Roles {
		roles = append(roles, roleInfo(reg, role))
	}
	return roles, nil
}

// UpdateRolePermissions replaces the permission set of role.
// The superadmin role always keeps manage_roles.
func (s *Service) UpdateRolePermissions(ctx context.Context, subjectID string, role string, permissions []string) (*RoleInfo, error) {
	actor, err := s.engine.Check(ctx, subjectID, auth.PermManageRoles)
	if err != nil {
		return nil, err
	}

	r, err := models.ParseRole(role)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	perms := make([]auth.Permission, 0, len(permissions))
	for _, p := range permissions {
		perm, err := auth.ParsePermission(p)
		if err != nil {
			return nil, apperr.Validation("%v", err)
		}
		if !slices.Contains(perms, perm) {
			perms = append(perms, perm)
		}
	}
	if r == models.RoleSuperadmin && !slices.Contains(perms, auth.PermManageRoles) {
		return nil, apperr.InvariantViolation("superadmin must keep %s", auth.PermManageRoles)
	}

	holder := s.engine.Registries()
	var (
		previous []auth.Permission
		next     *auth.Registry
	)
	for {
		current := holder.Load()
		next, err = current.WithPermissions(r, perms)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, err, "invalid permission set")
		}
		if holder.Replace(current, next) {
			previous = current.Permissions(r)
			break
		}
	}

	info := roleInfo(next, r)
	s.record(ctx, actor, audit.ActionRolePermissions, models.EntityRole, string(r), nil, map[string]any{
		"previous":    previous,
		"permissions": info.Permissions,
	})
	log.Info().Str("subject_id", subjectID).Str("role", string(r)).Int("permissions", len(info.Permissions)).Msg("Role permissions updated")

	return &info, nil
}
