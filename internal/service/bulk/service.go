package bulk

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/medtrail/consent-api/internal/model"
	"github.com/medtrail/consent-api/internal/repository"
	"github.com/medtrail/consent-api/internal/service/audit"
	apperrors "github.com/medtrail/consent-api/pkg/errors"
	"github.com/medtrail/consent-api/pkg/metrics"
)

// Service applies one state transition to many identities atomically and fans
// out one audit entry per affected identity.
type Service struct {
	identities repository.IdentityRepository
	auditor    *audit.Service
	metrics    *metrics.Metrics
}

func NewService(identities repository.IdentityRepository, auditor *audit.Service, m *metrics.Metrics) *Service {
	return &Service{
		identities: identities,
		auditor:    auditor,
		metrics:    m,
	}
}

// Apply validates that every subject id resolves before any write (one
// missing id fails the whole call with zero mutations), applies the action as
// a single atomic batch mutation, then writes one audit entry per identity.
// If the process dies between mutation commit and fan-out some entries may be
// missing; an audit write failure surfaces as an error so the operator can
// reconcile.
func (s *Service) Apply(ctx context.Context, req *model.BulkActionRequest, actorID uuid.UUID) (*model.BulkResult, error) {
	if req == nil || len(req.SubjectIDs) == 0 {
		return nil, apperrors.NewValidation("subject_ids must not be empty", nil)
	}
	if !model.ValidBulkAction(req.Action) {
		return nil, apperrors.NewValidation(fmt.Sprintf("invalid bulk action %q", req.Action), nil)
	}

	ids := dedupe(req.SubjectIDs)

	identities, err := s.identities.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	if missing := missingIDs(ids, identities); len(missing) > 0 {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown identities: %s", joinIDs(missing)), nil)
	}

	var (
		affected    int64
		auditAction string
	)

	switch req.Action {
	case model.BulkActionSuspend:
		affected, err = s.identities.BulkUpdateStatus(ctx, ids, model.IdentityStatusSuspended)
		auditAction = model.BulkStatusAction(model.IdentityStatusSuspended)
	case model.BulkActionActivate:
		affected, err = s.identities.BulkUpdateStatus(ctx, ids, model.IdentityStatusActive)
		auditAction = model.BulkStatusAction(model.IdentityStatusActive)
	case model.BulkActionVerify:
		affected, err = s.identities.BulkUpdateVerified(ctx, ids, true)
		auditAction = model.BulkVerifiedAction(true)
	case model.BulkActionUnverify:
		affected, err = s.identities.BulkUpdateVerified(ctx, ids, false)
		auditAction = model.BulkVerifiedAction(false)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.BulkActionsApplied.WithLabelValues(req.Action).Inc()
	s.metrics.BulkBatchSize.Observe(float64(affected))

	// Audit fan-out after the batch commit. Any failed write fails the call:
	// the mutation stands, but the caller must know the trail is incomplete.
	for _, identity := range identities {
		if _, err := s.auditor.Record(ctx, &audit.RecordInput{
			SubjectID: identity.ID,
			ActorID:   actorID,
			Action:    auditAction,
			Details: model.JSONMap{
				"bulk_action":       req.Action,
				"previous_status":   identity.Status,
				"previous_verified": identity.Verified,
				"reason":            req.Reason,
				"batch_size":        len(ids),
			},
		}); err != nil {
			return nil, fmt.Errorf("bulk action committed but audit fan-out failed for %s: %w", identity.ID, err)
		}
	}

	return &model.BulkResult{
		Action:   req.Action,
		Affected: int(affected),
	}, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(ids []uuid.UUID, identities []*model.Identity) []uuid.UUID {
	found := make(map[uuid.UUID]struct{}, len(identities))
	for _, identity := range identities {
		found[identity.ID] = struct{}{}
	}

	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func joinIDs(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}
