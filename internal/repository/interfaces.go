package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medtrail/consent-api/internal/model"
)

// All repository interfaces in one file
type (
	// IdentityRepository handles identity storage. Identities are never
	// deleted; mutation is limited to status and verification fields.
	IdentityRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Identity, error)
		GetByEmail(ctx context.Context, email string) (*model.Identity, error)
		GetMany(ctx context.Context, ids []uuid.UUID) ([]*model.Identity, error)
		List(ctx context.Context, filter *model.IdentityFilter) ([]*model.Identity, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
		// UpdateVerified sets the verified flag and status in a single statement.
		UpdateVerified(ctx context.Context, id uuid.UUID, verified bool, status string) error
		StampDoctorVerification(ctx context.Context, identityID uuid.UUID, at time.Time) error
		// BulkUpdateStatus applies one status to all ids atomically and
		// returns the number of affected rows.
		BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status string) (int64, error)
		// BulkUpdateVerified applies one verification change to all ids in a
		// single transaction, promoting to active and stamping doctor
		// profiles when verified is true.
		BulkUpdateVerified(ctx context.Context, ids []uuid.UUID, verified bool) (int64, error)
	}

	ConsentRepository interface {
		Create(ctx context.Context, grant *model.ConsentGrant) error
		Get(ctx context.Context, id uuid.UUID) (*model.ConsentGrant, error)
		List(ctx context.Context, filter *model.ConsentFilter) ([]*model.ConsentGrant, error)
		// TransitionStatus moves a grant from one status to another only if it
		// currently holds the expected status. Returns false when the grant
		// exists but the conditional update lost.
		TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
		// ExpireDue persists the passive ACTIVE -> EXPIRED transition for all
		// grants past their expiry and returns the grants it touched.
		ExpireDue(ctx context.Context, now time.Time) ([]*model.ConsentGrant, error)
	}

	// AuditRepository persists immutable audit entries. There is deliberately
	// no update or delete operation.
	AuditRepository interface {
		Create(ctx context.Context, entry *model.AuditEntry) error
		List(ctx context.Context, filter *model.AuditFilter) ([]*model.AuditEntry, error)
	}

	VerificationCodeRepository interface {
		Create(ctx context.Context, code *model.VerificationCode) error
		// Consume atomically marks the most recently issued unused, unexpired
		// code matching (subjectID, target, hash) as used. Returns false when
		// no such code exists or a concurrent caller won the update.
		Consume(ctx context.Context, subjectID uuid.UUID, target, hash string, now time.Time) (bool, error)
		// SumAttempts totals attempts across every code issued for
		// (subjectID, target) since the given time.
		SumAttempts(ctx context.Context, subjectID uuid.UUID, target string, since time.Time) (int, error)
		// IncrementLatestAttempts bumps the attempt counter on the most
		// recently issued code in the window. A missing row is not an error.
		IncrementLatestAttempts(ctx context.Context, subjectID uuid.UUID, target string, since time.Time) error
		// DeleteExpiredBefore prunes codes whose rate-limit window has fully
		// passed. Codes inside the window are retained for attempt accounting.
		DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}
)
