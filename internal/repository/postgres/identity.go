package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medtrail/consent-api/internal/model"
	"github.com/medtrail/consent-api/internal/repository"
	apperrors "github.com/medtrail/consent-api/pkg/errors"
)

type identityRepository struct {
	BaseRepository
}

func NewIdentityRepository(base BaseRepository) repository.IdentityRepository {
	return &identityRepository{base}
}

func (r *identityRepository) Get(ctx context.Context, id uuid.UUID) (*model.Identity, error) {
	query := `
		SELECT * FROM identities
		WHERE id = $1
	`

	var identity model.Identity
	if err := r.db.GetContext(ctx, &identity, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("identity", err)
		}
		return nil, apperrors.NewStorage(fmt.Errorf("failed to get identity: %w", err))
	}

	return &identity, nil
}

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (*model.Identity, error) {
	query := `
		SELECT * FROM identities
		WHERE email = $1
	`

	var identity model.Identity
	if err := r.db.GetContext(ctx, &identity, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("identity", err)
		}
		return nil, apperrors.NewStorage(fmt.Errorf("failed to get identity by email: %w", err))
	}

	return &identity, nil
}

func (r *identityRepository) GetMany(ctx context.Context, ids []uuid.UUID) ([]*model.Identity, error) {
	query := `
		SELECT * FROM identities
		WHERE id = ANY($1)
	`

	var identities []*model.Identity
	if err := r.db.SelectContext(ctx, &identities, query, pq.Array(ids)); err != nil {
		return nil, apperrors.NewStorage(fmt.Errorf("failed to get identities: %w", err))
	}

	return identities, nil
}

func (r *identityRepository) List(ctx context.Context, filter *model.IdentityFilter) ([]*model.Identity, error) {
	query := `
		SELECT * FROM identities
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.Role != "" {
		query += fmt.Sprintf(" AND role = $%d", len(args)+1)
		args = append(args, filter.Role)
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}

	if filter.Verified != nil {
		query += fmt.Sprintf(" AND verified = $%d", len(args)+1)
		args = append(args, *filter.Verified)
	}

	query += " ORDER BY created_at DESC"

	var identities []*model.Identity
	if err := r.db.SelectContext(ctx, &identities, query, args...); err != nil {
		return nil, apperrors.NewStorage(fmt.Errorf("failed to list identities: %w", err))
	}

	return identities, nil
}

func (r *identityRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `
		UPDATE identities
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return apperrors.NewStorage(fmt.Errorf("failed to update identity status: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewStorage(fmt.Errorf("failed to get rows affected: %w", err))
	}
	if rows == 0 {
		return apperrors.NewNotFound("identity", nil)
	}

	return nil
}

func (r *identityRepository) UpdateVerified(ctx context.Context, id uuid.UUID, verified bool, status string) error {
	query := `
		UPDATE identities
		SET verified = $1, status = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, verified, status, id)
	if err != nil {
		return apperrors.NewStorage(fmt.Errorf("failed to update identity verification: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewStorage(fmt.Errorf("failed to get rows affected: %w", err))
	}
	if rows == 0 {
		return apperrors.NewNotFound("identity", nil)
	}

	return nil
}

func (r *identityRepository) StampDoctorVerification(ctx context.Context, identityID uuid.UUID, at time.Time) error {
	query := `
		INSERT INTO doctor_profiles (identity_id, verified_at, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (identity_id) DO UPDATE
		SET verified_at = $2, updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, identityID, at); err != nil {
		return apperrors.NewStorage(fmt.Errorf("failed to stamp doctor verification: %w", err))
	}

	return nil
}

func (r *identityRepository) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status string) (int64, error) {
	query := `
		UPDATE identities
		SET status = $1, updated_at = NOW()
		WHERE id = ANY($2)
	`

	var affected int64
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query, status, pq.Array(ids))
		if err != nil {
			return fmt.Errorf("failed to bulk update status: %w", err)
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, apperrors.NewStorage(err)
	}

	return affected, nil
}

func (r *identityRepository) BulkUpdateVerified(ctx context.Context, ids []uuid.UUID, verified bool) (int64, error) {
	var affected int64
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var query string
		args := []interface{}{pq.Array(ids)}
		if verified {
			// Verification promotes every identity to active.
			query = `
				UPDATE identities
				SET verified = TRUE, status = $2, updated_at = NOW()
				WHERE id = ANY($1)
			`
			args = append(args, model.IdentityStatusActive)
		} else {
			// Unverifying leaves status untouched.
			query = `
				UPDATE identities
				SET verified = FALSE, updated_at = NOW()
				WHERE id = ANY($1)
			`
		}

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to bulk update verification: %w", err)
		}
		if affected, err = result.RowsAffected(); err != nil {
			return err
		}

		if !verified {
			return nil
		}

		stamp := `
			INSERT INTO doctor_profiles (identity_id, verified_at, updated_at)
			SELECT id, NOW(), NOW() FROM identities
			WHERE id = ANY($1) AND role = $2
			ON CONFLICT (identity_id) DO UPDATE
			SET verified_at = NOW(), updated_at = NOW()
		`
		if _, err := tx.ExecContext(ctx, stamp, pq.Array(ids), model.RoleDoctor); err != nil {
			return fmt.Errorf("failed to stamp doctor verifications: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.NewStorage(err)
	}

	return affected, nil
}
