package directory

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/audit"
	"github.com/wolfeidau/casekeeper/internal/auth"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
	"github.com/wolfeidau/casekeeper/internal/validation"
)

// UserQuery selects staff users. OrgID is narrowed by the caller's scope.
type UserQuery struct {
	OrgID          *uuid.UUID         `json:"org_id,omitempty"`
	Role           *models.Role       `json:"role,omitempty" validate:"omitempty,oneof=superadmin admin team_leader support_worker peer_support client"`
	Status         *models.UserStatus `json:"status,omitempty" validate:"omitempty,oneof=active inactive suspended deleted"`
	IncludeDeleted bool               `json:"include_deleted,omitempty"`
}

// CreateUserInput is the request to create a staff user.
type CreateUserInput struct {
	ExternalID string      `json:"external_id" validate:"required,max=255"`
	Email      string      `json:"email" validate:"required,email,max=320"`
	Name       string      `json:"name" validate:"required,max=200"`
	Phone      string      `json:"phone,omitempty" validate:"omitempty,phone"`
	Role       models.Role `json:"role" validate:"required,oneof=superadmin admin team_leader support_worker peer_support client"`
	OrgID      *uuid.UUID  `json:"org_id,omitempty"`
}

// UpdateUserInput changes the non-nil fields of a staff user.
type UpdateUserInput struct {
	Email  *string            `json:"email,omitempty" validate:"omitempty,email,max=320"`
	Name   *string            `json:"name,omitempty" validate:"omitempty,max=200"`
	Phone  *string            `json:"phone,omitempty" validate:"omitempty,phone"`
	Role   *models.Role       `json:"role,omitempty" validate:"omitempty,oneof=superadmin admin team_leader support_worker peer_support client"`
	Status *models.UserStatus `json:"status,omitempty" validate:"omitempty,oneof=active inactive suspended deleted"`
	OrgID  *uuid.UUID         `json:"org_id,omitempty"`
	// ExpectedVersion guards against lost updates. Zero accepts the current version.
	ExpectedVersion int64 `json:"expected_version,omitempty"`
}

// GetUser returns targetID, or the caller when targetID is nil or the caller's own ID.
// Reading anyone else needs view_users within scope.
func (s *Service) GetUser(ctx context.Context, subjectID string, targetID *uuid.UUID) (*models.StaffUser, error) {
	self, err := s.engine.Resolver().Resolve(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if !self.IsActive() {
		return nil, apperr.Unauthorized("subject is not active")
	}
	if targetID == nil || *targetID == self.ID {
		return self, nil
	}

	_, scope, err := s.engine.CheckScoped(ctx, subjectID, auth.PermViewUsers, nil)
	if err != nil {
		return nil, err
	}

	target, err := s.staff.Get(ctx, *targetID)
	if err != nil {
		return nil, storeError(err, "user")
	}
	if !scope.PermitsOptional(target.OrgID) {
		return nil, apperr.Unauthorized("user is outside your organization")
	}

	return target, nil
}

// ListUsers returns staff users in scope ordered by creation time.
func (s *Service) ListUsers(ctx context.Context, subjectID string, q UserQuery) ([]*models.StaffUser, error) {
	_, scope, err := s.engine.CheckScoped(ctx, subjectID, auth.PermViewUsers, q.OrgID)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(q); err != nil {
		return nil, err
	}

	filter := store.UserFilter{
		OrgID:          scope.OrgID,
		Status:         q.Status,
		IncludeDeleted: q.IncludeDeleted || (q.Status != nil && *q.Status == models.UserStatusDeleted),
	}
	if q.Role != nil {
		filter.Roles = []models.Role{*q.Role}
	}

	users, err := s.staff.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, "users")
	}
	return users, nil
}

// CreateUser creates a staff user. The caller must outrank the new user's role.
func (s *Service) CreateUser(ctx context.Context, subjectID string, in CreateUserInput) (*models.StaffUser, error) {
	actor, scope, err := s.engine.CheckScoped(ctx, subjectID, auth.PermCreateUsers, in.OrgID)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if !actor.Role.Outranks(in.Role) {
		return nil, apperr.Unauthorized("%s cannot create %s users", actor.Role, in.Role)
	}

	var orgID *uuid.UUID
	switch {
	case in.Role == models.RoleSuperadmin:
		if in.OrgID != nil {
			return nil, apperr.Validation("superadmins do not belong to an organization")
		}
	case scope.Global():
		return nil, apperr.Validation("org_id is required for role %s", in.Role)
	default:
		org, err := s.requireOrg(ctx, *scope.OrgID)
		if err != nil {
			return nil, err
		}
		orgID = &org.ID
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	user := &models.StaffUser{
		ID:         id,
		ExternalID: in.ExternalID,
		Email:      in.Email,
		Name:       in.Name,
		Phone:      in.Phone,
		Role:       in.Role,
		OrgID:      orgID,
		Status:     models.UserStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.staff.Create(ctx, user); err != nil {
		return nil, storeError(err, "user")
	}

	s.record(ctx, actor, audit.ActionUserCreate, models.EntityUser, user.ID.String(), orgID, map[string]any{
		"email": user.Email,
		"role":  user.Role,
	})
	log.Info().Str("subject_id", subjectID).Str("user_id", user.ID.String()).Str("role", string(user.Role)).Msg("User created")

	return user, nil
}

// UpdateUser applies the non-nil fields of in to targetID.
//
// Users may edit their own contact details but not their own role, status or organization.
// Editing anyone else requires outranking both their current and any new role.
// A worker whose change leaves them unable to hold clients has those clients unassigned.
func (s *Service) UpdateUser(ctx context.Context, subjectID string, targetID uuid.UUID, in UpdateUserInput) (*models.StaffUser, error) {
	actor, scope, err := s.engine.CheckScoped(ctx, subjectID, auth.PermEditUsers, nil)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	target, err := s.staff.Get(ctx, targetID)
	if err != nil {
		return nil, storeError(err, "user")
	}
	if !scope.PermitsOptional(target.OrgID) {
		return nil, apperr.Unauthorized("user is outside your organization")
	}
	if target.IsDeleted() {
		return nil, apperr.Validation("user %s is deleted", targetID)
	}

	self := actor.ID == target.ID
	if self {
		if in.Role != nil || in.Status != nil || in.OrgID != nil {
			return nil, apperr.Unauthorized("cannot change your own role, status or organization")
		}
	} else {
		if !actor.Role.Outranks(target.Role) {
			return nil, apperr.Unauthorized("%s cannot edit %s users", actor.Role, target.Role)
		}
		if in.Role != nil && !actor.Role.Outranks(*in.Role) {
			return nil, apperr.Unauthorized("%s cannot grant role %s", actor.Role, *in.Role)
		}
	}

	expected, err := checkVersion("user", in.ExpectedVersion, target.Version)
	if err != nil {
		return nil, err
	}

	changed, err := s.applyUserUpdate(ctx, actor, target, in)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return target, nil
	}

	if err := s.staff.Update(ctx, target, expected); err != nil {
		return nil, storeError(err, "user")
	}
	s.engine.Resolver().Invalidate(target.ExternalID)

	s.record(ctx, actor, audit.ActionUserUpdate, models.EntityUser, target.ID.String(), target.OrgID, map[string]any{
		"changed": changed,
	})
	log.Info().Str("subject_id", subjectID).Str("user_id", target.ID.String()).Strs("changed", changed).Msg("User updated")

	if eligibilityChanged(changed) {
		s.releaseCaseload(ctx, actor, target, "user.update")
	}

	return target, nil
}

func (s *Service) applyUserUpdate(ctx context.Context, actor, target *models.StaffUser, in UpdateUserInput) ([]string, error) {
	var changed []string

	if in.Email != nil && *in.Email != target.Email {
		target.Email = *in.Email
		changed = append(changed, "email")
	}
	if in.Name != nil && *in.Name != target.Name {
		if *in.Name == "" {
			return nil, apperr.Validation("name must not be empty")
		}
		target.Name = *in.Name
		changed = append(changed, "name")
	}
	if in.Phone != nil && *in.Phone != target.Phone {
		target.Phone = *in.Phone
		changed = append(changed, "phone")
	}
	if in.Status != nil && *in.Status != target.Status {
		if !target.Status.CanTransition(*in.Status) {
			return nil, apperr.Validation("cannot change status from %s to %s", target.Status, *in.Status)
		}
		target.Status = *in.Status
		if target.Status == models.UserStatusDeleted {
			now := s.now().UTC()
			target.DeletedAt = &now
		}
		changed = append(changed, "status")
	}
	if in.OrgID != nil && (target.OrgID == nil || *in.OrgID != *target.OrgID) {
		if actor.Role != models.RoleSuperadmin {
			return nil, apperr.Unauthorized("only superadmins can move users between organizations")
		}
		org, err := s.requireOrg(ctx, *in.OrgID)
		if err != nil {
			return nil, err
		}
		target.OrgID = &org.ID
		changed = append(changed, "org_id")
	}
	if in.Role != nil && *in.Role != target.Role {
		target.Role = *in.Role
		changed = append(changed, "role")
	}

	if target.Role == models.RoleSuperadmin && target.OrgID != nil {
		if in.OrgID != nil {
			return nil, apperr.Validation("superadmins do not belong to an organization")
		}
		target.OrgID = nil
	}
	if target.Role != models.RoleSuperadmin && target.OrgID == nil {
		return nil, apperr.Validation("org_id is required for role %s", target.Role)
	}

	return changed, nil
}

// ArchiveUser soft-deletes targetID. Archiving an already archived user succeeds without change.
// The last active superadmin cannot be archived. Clients assigned to the user are unassigned.
func (s *Service) ArchiveUser(ctx context.Context, subjectID string, targetID uuid.UUID) (*models.StaffUser, error) {
	actor, scope, err := s.engine.CheckScoped(ctx, subjectID, auth.PermDeleteUsers, nil)
	if err != nil {
		return nil, err
	}

	target, err := s.staff.Get(ctx, targetID)
	if err != nil {
		return nil, storeError(err, "user")
	}
	if !scope.PermitsOptional(target.OrgID) {
		return nil, apperr.Unauthorized("user is outside your organization")
	}
	if !actor.Role.Outranks(target.Role) {
		return nil, apperr.Unauthorized("%s cannot archive %s users", actor.Role, target.Role)
	}
	if target.IsDeleted() {
		return target, nil
	}

	expected := target.Version
	now := s.now().UTC()
	target.Status = models.UserStatusDeleted
	target.DeletedAt = &now

	if err := s.staff.Update(ctx, target, expected); err != nil {
		mapped := storeError(err, "user")
		if apperr.Is(mapped, apperr.KindInvariantViolation) {
			log.Warn().Str("subject_id", subjectID).Str("user_id", targetID.String()).Msg("Refused to archive last superadmin")
		}
		return nil, mapped
	}
	s.engine.Resolver().Invalidate(target.ExternalID)

	s.record(ctx, actor, audit.ActionUserArchive, models.EntityUser, target.ID.String(), target.OrgID, map[string]any{
		"role": target.Role,
	})
	log.Info().Str("subject_id", subjectID).Str("user_id", target.ID.String()).Msg("User archived")

	s.releaseCaseload(ctx, actor, target, "user.archive")

	return target, nil
}
