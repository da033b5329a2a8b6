package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrail/consent-api/internal/model"
	"github.com/medtrail/consent-api/internal/service/audit"
	"github.com/medtrail/consent-api/internal/service/consent"
	apperrors "github.com/medtrail/consent-api/pkg/errors"
	"github.com/medtrail/consent-api/pkg/metrics"
)

type fakeConsentRepo struct {
	mu     sync.Mutex
	grants []*model.ConsentGrant
}

func (r *fakeConsentRepo) Create(_ context.Context, grant *model.ConsentGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants = append(r.grants, grant)
	return nil
}

func (r *fakeConsentRepo) Get(_ context.Context, _ uuid.UUID) (*model.ConsentGrant, error) {
	return nil, apperrors.NewNotFound("consent grant", nil)
}

func (r *fakeConsentRepo) List(_ context.Context, _ *model.ConsentFilter) ([]*model.ConsentGrant, error) {
	return nil, nil
}

func (r *fakeConsentRepo) TransitionStatus(_ context.Context, _ uuid.UUID, _, _ string) (bool, error) {
	return false, nil
}

func (r *fakeConsentRepo) ExpireDue(_ context.Context, now time.Time) ([]*model.ConsentGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []*model.ConsentGrant
	for _, grant := range r.grants {
		if grant.Status == model.ConsentStatusActive && grant.ExpiresAt != nil && grant.ExpiresAt.Before(now) {
			grant.Status = model.ConsentStatusExpired
			expired = append(expired, grant)
		}
	}
	return expired, nil
}

type fakeCodeRepo struct {
	mu     sync.Mutex
	pruned int
}

func (r *fakeCodeRepo) Create(_ context.Context, _ *model.VerificationCode) error { return nil }

func (r *fakeCodeRepo) Consume(_ context.Context, _ uuid.UUID, _, _ string, _ time.Time) (bool, error) {
	return false, nil
}

func (r *fakeCodeRepo) SumAttempts(_ context.Context, _ uuid.UUID, _ string, _ time.Time) (int, error) {
	return 0, nil
}

func (r *fakeCodeRepo) IncrementLatestAttempts(_ context.Context, _ uuid.UUID, _ string, _ time.Time) error {
	return nil
}

func (r *fakeCodeRepo) DeleteExpiredBefore(_ context.Context, _ time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruned++
	return 1, nil
}

func (r *fakeCodeRepo) pruneCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pruned
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*model.AuditEntry
}

func (r *fakeAuditRepo) Create(_ context.Context, entry *model.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, _ *model.AuditFilter) ([]*model.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries, nil
}

func TestSweeperExpiresAndPrunes(t *testing.T) {
	logger := zerolog.Nop()
	consentRepo := &fakeConsentRepo{}
	codeRepo := &fakeCodeRepo{}
	auditRepo := &fakeAuditRepo{}
	auditor := audit.NewService(auditRepo, nil, metrics.New("sweeper_test"), &logger)
	consentSvc := consent.NewService(consentRepo, auditor)

	expiry := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, consentRepo.Create(context.Background(), &model.ConsentGrant{
		Base:      model.Base{ID: uuid.New()},
		PatientID: uuid.New(),
		Status:    model.ConsentStatusActive,
		ExpiresAt: &expiry,
	}))

	sweeper := NewSweeper(consentSvc, codeRepo, 5*time.Millisecond, 30*time.Minute,
		metrics.New("sweeper_test_worker"), &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for codeRepo.pruneCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("sweeper never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done

	consentRepo.mu.Lock()
	status := consentRepo.grants[0].Status
	consentRepo.mu.Unlock()
	assert.Equal(t, model.ConsentStatusExpired, status)

	entries, err := auditRepo.List(context.Background(), nil)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, model.AuditActionConsentExpired, entries[0].Action)
	assert.Equal(t, uuid.Nil, entries[0].ActorID)
}
