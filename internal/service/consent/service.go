package consent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medtrail/consent-api/internal/model"
	"github.com/medtrail/consent-api/internal/repository"
	"github.com/medtrail/consent-api/internal/service/audit"
	apperrors "github.com/medtrail/consent-api/pkg/errors"
)

type Service struct {
	repo    repository.ConsentRepository
	auditor *audit.Service
	now     func() time.Time
}

func NewService(repo repository.ConsentRepository, auditor *audit.Service) *Service {
	return &Service{
		repo:    repo,
		auditor: auditor,
		now:     time.Now,
	}
}

// Request creates a new grant in REQUESTED, the only entry state. Either
// party may initiate; the actor is recorded in the audit trail.
func (s *Service) Request(ctx context.Context, patientID, providerID uuid.UUID, expiresAt *time.Time, actorID uuid.UUID) (*model.ConsentGrant, error) {
	if patientID == uuid.Nil || providerID == uuid.Nil {
		return nil, apperrors.NewValidation("patient_id and provider_id are required", nil)
	}
	if expiresAt != nil && expiresAt.Before(s.now()) {
		return nil, apperrors.NewValidation("expires_at must be in the future", nil)
	}

	now := s.now().UTC()
	grant := &model.ConsentGrant{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		PatientID:  patientID,
		ProviderID: providerID,
		Status:     model.ConsentStatusRequested,
		ExpiresAt:  expiresAt,
	}

	if err := s.repo.Create(ctx, grant); err != nil {
		return nil, err
	}

	if err := s.recordTransition(ctx, grant, actorID, model.AuditActionConsentRequested, "", grant.Status); err != nil {
		return nil, err
	}

	return grant, nil
}

// Approve activates a REQUESTED grant. Only the granting party, the patient,
// may approve.
func (s *Service) Approve(ctx context.Context, grantID, actorID uuid.UUID) (*model.ConsentGrant, error) {
	grant, err := s.repo.Get(ctx, grantID)
	if err != nil {
		return nil, err
	}

	if actorID != grant.PatientID {
		return nil, apperrors.NewValidation("only the patient may approve a consent request", nil)
	}

	ok, err := s.repo.TransitionStatus(ctx, grantID, model.ConsentStatusRequested, model.ConsentStatusActive)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewInvalidStatus(fmt.Sprintf("consent grant is %s, not %s", grant.Status, model.ConsentStatusRequested))
	}

	previous := grant.Status
	grant.Status = model.ConsentStatusActive

	if err := s.recordTransition(ctx, grant, actorID, model.AuditActionConsentApproved, previous, grant.Status); err != nil {
		return nil, err
	}

	return grant, nil
}

// Revoke terminates an ACTIVE grant. An ACTIVE grant past its expiry is
// logically EXPIRED and cannot be revoked.
func (s *Service) Revoke(ctx context.Context, grantID, actorID uuid.UUID) (*model.ConsentGrant, error) {
	grant, err := s.repo.Get(ctx, grantID)
	if err != nil {
		return nil, err
	}

	if actorID != grant.PatientID {
		return nil, apperrors.NewValidation("only the patient may revoke a consent grant", nil)
	}

	effective := grant.EffectiveStatus(s.now())
	if effective != model.ConsentStatusActive {
		return nil, apperrors.NewInvalidStatus(fmt.Sprintf("consent grant is %s, not %s", effective, model.ConsentStatusActive))
	}

	ok, err := s.repo.TransitionStatus(ctx, grantID, model.ConsentStatusActive, model.ConsentStatusRevoked)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewInvalidStatus("consent grant is no longer active")
	}

	previous := grant.Status
	grant.Status = model.ConsentStatusRevoked

	if err := s.recordTransition(ctx, grant, actorID, model.AuditActionConsentRevoked, previous, grant.Status); err != nil {
		return nil, err
	}

	return grant, nil
}

// Get returns the grant with its status resolved as of now: a stale ACTIVE
// grant reads as EXPIRED even before the sweeper persists the transition.
func (s *Service) Get(ctx context.Context, grantID uuid.UUID) (*model.ConsentGrant, error) {
	grant, err := s.repo.Get(ctx, grantID)
	if err != nil {
		return nil, err
	}

	grant.Status = grant.EffectiveStatus(s.now())
	return grant, nil
}

func (s *Service) List(ctx context.Context, filter *model.ConsentFilter) ([]*model.ConsentGrant, error) {
	if filter == nil {
		filter = &model.ConsentFilter{}
	}

	grants, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for _, grant := range grants {
		grant.Status = grant.EffectiveStatus(now)
	}

	return grants, nil
}

// ExpireDue persists the passive ACTIVE -> EXPIRED transition for every grant
// past its expiry, writing one audit entry per grant. Called by the sweeper.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	grants, err := s.repo.ExpireDue(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}

	for _, grant := range grants {
		if err := s.recordTransition(ctx, grant, uuid.Nil, model.AuditActionConsentExpired, model.ConsentStatusActive, model.ConsentStatusExpired); err != nil {
			return len(grants), err
		}
	}

	return len(grants), nil
}

func (s *Service) recordTransition(ctx context.Context, grant *model.ConsentGrant, actorID uuid.UUID, action, previous, next string) error {
	details := model.JSONMap{
		"grant_id":    grant.ID,
		"provider_id": grant.ProviderID,
		"new_status":  next,
	}
	if previous != "" {
		details["previous_status"] = previous
	}

	if _, err := s.auditor.Record(ctx, &audit.RecordInput{
		SubjectID: grant.PatientID,
		ActorID:   actorID,
		Action:    action,
		Details:   details,
	}); err != nil {
		return fmt.Errorf("consent transition committed but audit write failed: %w", err)
	}

	return nil
}
