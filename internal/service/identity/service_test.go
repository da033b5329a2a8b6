package identity

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrail/consent-api/internal/model"
	"github.com/medtrail/consent-api/internal/service/audit"
	apperrors "github.com/medtrail/consent-api/pkg/errors"
	"github.com/medtrail/consent-api/pkg/metrics"
)

type fakeIdentityRepo struct {
	identities map[uuid.UUID]*model.Identity
	stamped    []uuid.UUID
}

func newFakeIdentityRepo(identities ...*model.Identity) *fakeIdentityRepo {
	r := &fakeIdentityRepo{identities: make(map[uuid.UUID]*model.Identity)}
	for _, identity := range identities {
		r.identities[identity.ID] = identity
	}
	return r
}

func (r *fakeIdentityRepo) Get(_ context.Context, id uuid.UUID) (*model.Identity, error) {
	identity, ok := r.identities[id]
	if !ok {
		return nil, apperrors.NewNotFound("identity", nil)
	}
	cp := *identity
	return &cp, nil
}

func (r *fakeIdentityRepo) GetByEmail(_ context.Context, email string) (*model.Identity, error) {
	for _, identity := range r.identities {
		if identity.Email != nil && *identity.Email == email {
			cp := *identity
			return &cp, nil
		}
	}
	return nil, apperrors.NewNotFound("identity", nil)
}

func (r *fakeIdentityRepo) GetMany(_ context.Context, ids []uuid.UUID) ([]*model.Identity, error) {
	var out []*model.Identity
	for _, id := range ids {
		if identity, ok := r.identities[id]; ok {
			cp := *identity
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeIdentityRepo) List(_ context.Context, _ *model.IdentityFilter) ([]*model.Identity, error) {
	var out []*model.Identity
	for _, identity := range r.identities {
		cp := *identity
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeIdentityRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	identity, ok := r.identities[id]
	if !ok {
		return apperrors.NewNotFound("identity", nil)
	}
	identity.Status = status
	return nil
}

func (r *fakeIdentityRepo) UpdateVerified(_ context.Context, id uuid.UUID, verified bool, status string) error {
	identity, ok := r.identities[id]
	if !ok {
		return apperrors.NewNotFound("identity", nil)
	}
	identity.Verified = verified
	identity.Status = status
	return nil
}

func (r *fakeIdentityRepo) StampDoctorVerification(_ context.Context, identityID uuid.UUID, _ time.Time) error {
	r.stamped = append(r.stamped, identityID)
	return nil
}

func (r *fakeIdentityRepo) BulkUpdateStatus(_ context.Context, ids []uuid.UUID, status string) (int64, error) {
	var affected int64
	for _, id := range ids {
		if identity, ok := r.identities[id]; ok {
			identity.Status = status
			affected++
		}
	}
	return affected, nil
}

func (r *fakeIdentityRepo) BulkUpdateVerified(_ context.Context, ids []uuid.UUID, verified bool) (int64, error) {
	var affected int64
	for _, id := range ids {
		if identity, ok := r.identities[id]; ok {
			identity.Verified = verified
			if verified {
				identity.Status = model.IdentityStatusActive
			}
			affected++
		}
	}
	return affected, nil
}

type fakeAuditRepo struct {
	entries []*model.AuditEntry
	err     error
}

func (r *fakeAuditRepo) Create(_ context.Context, entry *model.AuditEntry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, _ *model.AuditFilter) ([]*model.AuditEntry, error) {
	return r.entries, nil
}

func newTestService(identities ...*model.Identity) (*Service, *fakeIdentityRepo, *fakeAuditRepo) {
	repo := newFakeIdentityRepo(identities...)
	auditRepo := &fakeAuditRepo{}
	logger := zerolog.Nop()
	auditor := audit.NewService(auditRepo, nil, metrics.New("identity_test"), &logger)
	return NewService(repo, auditor), repo, auditRepo
}

func patientIdentity(status string) *model.Identity {
	email := "patient@example.com"
	return &model.Identity{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		},
		Email:  &email,
		Role:   model.RolePatient,
		Status: status,
	}
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	svc, _, auditRepo := newTestService(patientIdentity(model.IdentityStatusActive))

	_, err := svc.SetStatus(context.Background(), uuid.New(), "banned", uuid.New(), "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidStatus))
	assert.Empty(t, auditRepo.entries)
}

func TestSetStatusUnknownIdentity(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.SetStatus(context.Background(), uuid.New(), model.IdentityStatusSuspended, uuid.New(), "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestSetStatusAuditsPreviousStatus(t *testing.T) {
	identity := patientIdentity(model.IdentityStatusActive)
	svc, repo, auditRepo := newTestService(identity)
	actorID := uuid.New()

	updated, err := svc.SetStatus(context.Background(), identity.ID, model.IdentityStatusSuspended, actorID, "policy violation")
	require.NoError(t, err)
	assert.Equal(t, model.IdentityStatusSuspended, updated.Status)
	assert.Equal(t, model.IdentityStatusSuspended, repo.identities[identity.ID].Status)

	require.Len(t, auditRepo.entries, 1)
	entry := auditRepo.entries[0]
	assert.Equal(t, identity.ID, entry.SubjectID)
	assert.Equal(t, actorID, entry.ActorID)
	assert.Equal(t, model.AuditActionStatusUpdated, entry.Action)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.Details, &details))
	assert.Equal(t, model.IdentityStatusActive, details["previous_status"])
	assert.Equal(t, model.IdentityStatusSuspended, details["new_status"])
	assert.Equal(t, "policy violation", details["reason"])
}

func TestSetStatusDefaultsReason(t *testing.T) {
	identity := patientIdentity(model.IdentityStatusActive)
	svc, _, auditRepo := newTestService(identity)

	_, err := svc.SetStatus(context.Background(), identity.ID, model.IdentityStatusPendingApproval, uuid.New(), "")
	require.NoError(t, err)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(auditRepo.entries[0].Details, &details))
	assert.Equal(t, "No reason provided", details["reason"])
}

func TestSetStatusFailsWhenAuditFails(t *testing.T) {
	identity := patientIdentity(model.IdentityStatusActive)
	svc, repo, auditRepo := newTestService(identity)
	auditRepo.err = errors.New("disk full")

	_, err := svc.SetStatus(context.Background(), identity.ID, model.IdentityStatusSuspended, uuid.New(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit write failed")

	// The mutation itself already committed; only the call fails.
	assert.Equal(t, model.IdentityStatusSuspended, repo.identities[identity.ID].Status)
}

func TestSetVerifiedPromotesDoctorToActive(t *testing.T) {
	identity := patientIdentity(model.IdentityStatusPendingApproval)
	identity.Role = model.RoleDoctor
	svc, repo, auditRepo := newTestService(identity)
	actorID := uuid.New()

	updated, err := svc.SetVerified(context.Background(), identity.ID, true, actorID, "docs checked")
	require.NoError(t, err)
	assert.True(t, updated.Verified)
	assert.Equal(t, model.IdentityStatusActive, updated.Status)

	// Doctor-role identities get the profile-level stamp.
	require.Len(t, repo.stamped, 1)
	assert.Equal(t, identity.ID, repo.stamped[0])

	require.Len(t, auditRepo.entries, 1)
	entry := auditRepo.entries[0]
	assert.Equal(t, model.AuditActionVerified, entry.Action)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.Details, &details))
	assert.Equal(t, false, details["previous_verification"])
	assert.Equal(t, true, details["new_verification"])
	assert.Equal(t, "docs checked", details["notes"])
}

func TestSetVerifiedNonDoctorNotStamped(t *testing.T) {
	identity := patientIdentity(model.IdentityStatusPendingVerification)
	svc, repo, _ := newTestService(identity)

	updated, err := svc.SetVerified(context.Background(), identity.ID, true, uuid.New(), "")
	require.NoError(t, err)
	assert.True(t, updated.Verified)
	assert.Equal(t, model.IdentityStatusActive, updated.Status)
	assert.Empty(t, repo.stamped)
}

func TestUnverifyLeavesStatusAlone(t *testing.T) {
	identity := patientIdentity(model.IdentityStatusSuspended)
	identity.Verified = true
	svc, repo, auditRepo := newTestService(identity)

	updated, err := svc.SetVerified(context.Background(), identity.ID, false, uuid.New(), "fraud review")
	require.NoError(t, err)
	assert.False(t, updated.Verified)
	assert.Equal(t, model.IdentityStatusSuspended, updated.Status)
	assert.Empty(t, repo.stamped)

	require.Len(t, auditRepo.entries, 1)
	assert.Equal(t, model.AuditActionUnverified, auditRepo.entries[0].Action)
}
