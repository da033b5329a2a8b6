package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medtrail/consent-api/internal/model"
	"github.com/medtrail/consent-api/internal/repository"
	apperrors "github.com/medtrail/consent-api/pkg/errors"
)

type consentRepository struct {
	BaseRepository
}

func NewConsentRepository(base BaseRepository) repository.ConsentRepository {
	return &consentRepository{base}
}

func (r *consentRepository) Create(ctx context.Context, grant *model.ConsentGrant) error {
	query := `
		INSERT INTO consent_grants (
			id, patient_id, provider_id, status, expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			grant.ID,
			grant.PatientID,
			grant.ProviderID,
			grant.Status,
			grant.ExpiresAt,
			grant.CreatedAt,
			grant.UpdatedAt,
		)
		if err != nil {
			return apperrors.NewStorage(fmt.Errorf("failed to create consent grant: %w", err))
		}
		return nil
	})
}

func (r *consentRepository) Get(ctx context.Context, id uuid.UUID) (*model.ConsentGrant, error) {
	query := `
		SELECT * FROM consent_grants
		WHERE id = $1
	`

	var grant model.ConsentGrant
	if err := r.db.GetContext(ctx, &grant, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("consent grant", err)
		}
		return nil, apperrors.NewStorage(fmt.Errorf("failed to get consent grant: %w", err))
	}

	return &grant, nil
}

func (r *consentRepository) List(ctx context.Context, filter *model.ConsentFilter) ([]*model.ConsentGrant, error) {
	query := `
		SELECT * FROM consent_grants
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.PatientID != nil {
		query += fmt.Sprintf(" AND patient_id = $%d", len(args)+1)
		args = append(args, *filter.PatientID)
	}

	if filter.ProviderID != nil {
		query += fmt.Sprintf(" AND provider_id = $%d", len(args)+1)
		args = append(args, *filter.ProviderID)
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}

	query += " ORDER BY created_at DESC"

	var grants []*model.ConsentGrant
	if err := r.db.SelectContext(ctx, &grants, query, args...); err != nil {
		return nil, apperrors.NewStorage(fmt.Errorf("failed to list consent grants: %w", err))
	}

	return grants, nil
}

// TransitionStatus is a compare-and-swap on the grant's status column. Two
// racing transitions cannot both win; the loser observes zero affected rows.
func (r *consentRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	query := `
		UPDATE consent_grants
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, apperrors.NewStorage(fmt.Errorf("failed to transition consent grant: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewStorage(fmt.Errorf("failed to get rows affected: %w", err))
	}

	return rows > 0, nil
}

func (r *consentRepository) ExpireDue(ctx context.Context, now time.Time) ([]*model.ConsentGrant, error) {
	query := `
		UPDATE consent_grants
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND expires_at IS NOT NULL AND expires_at < $3
		RETURNING *
	`

	var grants []*model.ConsentGrant
	err := r.db.SelectContext(ctx, &grants, query, model.ConsentStatusExpired, model.ConsentStatusActive, now)
	if err != nil {
		return nil, apperrors.NewStorage(fmt.Errorf("failed to expire consent grants: %w", err))
	}

	return grants, nil
}
