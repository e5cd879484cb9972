package directory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/audit"
	"github.com/wolfeidau/casekeeper/internal/auth"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
	"github.com/wolfeidau/casekeeper/internal/validation"
)

// CreateOrganizationInput is the request to create an organization.
type CreateOrganizationInput struct {
	Slug     string             `json:"slug" validate:"required,slug"`
	Name     string             `json:"name" validate:"required,max=200"`
	Settings models.OrgSettings `json:"settings"`
}

// UpdateOrganizationInput changes the non-nil fields of an organization. Slugs are immutable.
type UpdateOrganizationInput struct {
	Name            *string             `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Status          *models.OrgStatus   `json:"status,omitempty" validate:"omitempty,oneof=active inactive suspended"`
	Settings        *models.OrgSettings `json:"settings,omitempty"`
	ExpectedVersion int64               `json:"expected_version,omitempty"`
}

func validateSettings(st models.OrgSettings) error {
	if st.MaxClientsPerWorker < 0 {
		return apperr.Validation("max_clients_per_worker must not be negative")
	}
	return nil
}

// CreateOrganization creates an active organization.
func (s *Service) CreateOrganization(ctx context.Context, subjectID string, in CreateOrganizationInput) (*models.Organization, error) {
	actor, err := s.engine.Check(ctx, subjectID, auth.PermManageOrganizations)
	if err != nil {
		return nil, err
	}
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := validateSettings(in.Settings); err != nil {
		return nil, err
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	org := &models.Organization{
		ID:        id,
		Slug:      in.Slug,
		Name:      in.Name,
		Status:    models.OrgStatusActive,
		Settings:  in.Settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.orgs.Create(ctx, org); err != nil {
		return nil, storeError(err, "organization")
	}

	s.record(ctx, actor, audit.ActionOrgCreate, models.EntityOrganization, org.ID.String(), &org.ID, map[string]any{
		"slug": org.Slug,
	})
	log.Info().Str("subject_id", subjectID).Str("org_id", org.ID.String()).Str("slug", org.Slug).Msg("Organization created")

	return org, nil
}

// GetOrganization returns an organization visible to the caller.
func (s *Service) GetOrganization(ctx context.Context, subjectID string, orgID uuid.UUID) (*models.Organization, error) {
	if _, err := s.engine.Scope(ctx, subjectID, &orgID); err != nil {
		return nil, err
	}
	return s.requireOrg(ctx, orgID)
}

// UpdateOrganization applies the non-nil fields of in.
func (s *Service) UpdateOrganization(ctx context.Context, subjectID string, orgID uuid.UUID, in UpdateOrganizationInput) (*models.Organization, error) {
	actor, err := s.engine.Check(ctx, subjectID, auth.PermManageOrganizations)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	org, err := s.requireOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	expected, err := checkVersion("organization", in.ExpectedVersion, org.Version)
	if err != nil {
		return nil, err
	}

	var changed []string
	if in.Name != nil && *in.Name != org.Name {
		org.Name = *in.Name
		changed = append(changed, "name")
	}
	if in.Status != nil && *in.Status != org.Status {
		if !org.Status.CanTransition(*in.Status) {
			return nil, apperr.Validation("cannot change status from %s to %s", org.Status, *in.Status)
		}
		org.Status = *in.Status
		changed = append(changed, "status")
	}
	if in.Settings != nil && *in.Settings != org.Settings {
		if err := validateSettings(*in.Settings); err != nil {
			return nil, err
		}
		org.Settings = *in.Settings
		changed = append(changed, "settings")
	}
	if len(changed) == 0 {
		return org, nil
	}

	if err := s.orgs.Update(ctx, org, expected); err != nil {
		return nil, storeError(err, "organization")
	}

	s.record(ctx, actor, audit.ActionOrgUpdate, models.EntityOrganization, org.ID.String(), &org.ID, map[string]any{
		"changed": changed,
	})
	log.Info().Str("subject_id", subjectID).Str("org_id", org.ID.String()).Strs("changed", changed).Msg("Organization updated")

	return org, nil
}

// ListOrganizations returns organizations ordered by slug, optionally by status.
func (s *Service) ListOrganizations(ctx context.Context, subjectID string, status *models.OrgStatus) ([]*models.Organization, error) {
	if _, err := s.engine.Check(ctx, subjectID, auth.PermManageOrganizations); err != nil {
		return nil, err
	}
	if status != nil && !status.Valid() {
		return nil, apperr.Validation("unknown organization status %q", *status)
	}

	orgs, err := s.orgs.List(ctx, store.OrganizationFilter{Status: status})
	if err != nil {
		return nil, storeError(err, "organizations")
	}
	return orgs, nil
}

// DeleteOrganization removes an organization that no user or client references.
func (s *Service) DeleteOrganization(ctx context.Context, subjectID string, orgID uuid.UUID) error {
	actor, err := s.engine.Check(ctx, subjectID, auth.PermManageOrganizations)
	if err != nil {
		return err
	}

	org, err := s.requireOrg(ctx, orgID)
	if err != nil {
		return err
	}
	if err := s.orgs.Delete(ctx, orgID); err != nil {
		return storeError(err, "organization")
	}

	s.record(ctx, actor, audit.ActionOrgDelete, models.EntityOrganization, orgID.String(), &orgID, map[string]any{
		"slug": org.Slug,
	})
	log.Info().Str("subject_id", subjectID).Str("org_id", orgID.String()).Msg("Organization deleted")

	return nil
}
