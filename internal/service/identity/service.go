package identity

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

const defaultReason = "No reason provided"

type Service struct {
	repo    repository.IdentityRepository
	auditor *audit.Service
}

func NewService(repo repository.IdentityRepository, auditor *audit.Service) *Service {
	return &Service{
		repo:    repo,
		auditor: auditor,
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Identity, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter *model.IdentityFilter) ([]*model.Identity, error) {
	if filter == nil {
		filter = &model.IdentityFilter{}
	}
	return s.repo.List(ctx, filter)
}

// SetStatus moves an identity to newStatus. Any status may be set to any
// other; the open transition graph is a deliberate administrative override.
// The operation is mutate-then-audit: a failed audit write fails the call
// even though the status change already committed.
func (s *Service) SetStatus(ctx context.Context, subjectID uuid.UUID, newStatus string, actorID uuid.UUID, reason string) (*model.Identity, error) {
	if !model.ValidIdentityStatus(newStatus) {
		return nil, apperrors.NewInvalidStatus(fmt.Sprintf("invalid status %q", newStatus))
	}

	identity, err := s.repo.Get(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	previousStatus := identity.Status

	if err := s.repo.UpdateStatus(ctx, subjectID, newStatus); err != nil {
		return nil, err
	}
	identity.Status = newStatus

	if reason == "" {
		reason = defaultReason
	}

	if _, err := s.auditor.Record(ctx, &audit.RecordInput{
		SubjectID: subjectID,
		ActorID:   actorID,
		Action:    model.AuditActionStatusUpdated,
		Details: model.JSONMap{
			"previous_status": previousStatus,
			"new_status":      newStatus,
			"reason":          reason,
		},
	}); err != nil {
		return nil, fmt.Errorf("status updated but audit write failed: %w", err)
	}

	return identity, nil
}

// SetVerified sets the verification flag. Verifying a non-active identity
// promotes it to active; unverifying leaves status alone. Doctor-role
// identities additionally get a profile-level verification stamp.
func (s *Service) SetVerified(ctx context.Context, subjectID uuid.UUID, verified bool, actorID uuid.UUID, notes string) (*model.Identity, error) {
	identity, err := s.repo.Get(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	previousVerification := identity.Verified

	newStatus := identity.Status
	if verified && identity.Status != model.IdentityStatusActive {
		newStatus = model.IdentityStatusActive
	}

	if err := s.repo.UpdateVerified(ctx, subjectID, verified, newStatus); err != nil {
		return nil, err
	}
	identity.Verified = verified
	identity.Status = newStatus

	if verified && identity.Role == model.RoleDoctor {
		if err := s.repo.StampDoctorVerification(ctx, subjectID, time.Now().UTC()); err != nil {
			return nil, err
		}
	}

	action := model.AuditActionVerified
	if !verified {
		action = model.AuditActionUnverified
	}

	if _, err := s.auditor.Record(ctx, &audit.RecordInput{
		SubjectID: subjectID,
		ActorID:   actorID,
		Action:    action,
		Details: model.JSONMap{
			"previous_verification": previousVerification,
			"new_verification":      verified,
			"notes":                 notes,
		},
	}); err != nil {
		return nil, fmt.Errorf("verification updated but audit write failed: %w", err)
	}

	return identity, nil
}
