package directory

import (
	"context"

	"github.com/google/uuid"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/auth"
	"github.com/wolfeidau/casekeeper/internal/workload"
)

// GetWorkerLoad reports each eligible worker's active caseload in an organization.
// Superadmins must name the organization.
func (s *Service) GetWorkerLoad(ctx context.Context, subjectID string, orgID *uuid.UUID) ([]workload.WorkerLoad, error) {
	_, scope, err := s.engine.CheckScoped(ctx, subjectID, auth.PermViewWorkload, orgID)
	if err != nil {
		return nil, err
	}
	if scope.Global() {
		return nil, apperr.Validation("org_id is required")
	}
	if _, err := s.requireOrg(ctx, *scope.OrgID); err != nil {
		return nil, err
	}

	return s.balancer.Loads(ctx, *scope.OrgID)
}
