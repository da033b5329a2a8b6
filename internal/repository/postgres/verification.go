package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medtrail/consent-api/internal/model"
	"github.com/medtrail/consent-api/internal/repository"
	apperrors "github.com/medtrail/consent-api/pkg/errors"
)

type verificationCodeRepository struct {
	BaseRepository
}

func NewVerificationCodeRepository(base BaseRepository) repository.VerificationCodeRepository {
	return &verificationCodeRepository{base}
}

func (r *verificationCodeRepository) Create(ctx context.Context, code *model.VerificationCode) error {
	query := `
		INSERT INTO verification_codes (
			id, subject_id, target_value, code_hash, expires_at, attempts, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			code.ID,
			code.SubjectID,
			code.TargetValue,
			code.CodeHash,
			code.ExpiresAt,
			code.Attempts,
			code.CreatedAt,
		)
		if err != nil {
			return apperrors.NewStorage(fmt.Errorf("failed to create verification code: %w", err))
		}
		return nil
	})
}

// Consume marks the newest matching unused, unexpired code as used. The
// conditional update on used_at IS NULL is the single point deciding which of
// two racing verify calls succeeds; the loser sees zero rows.
func (r *verificationCodeRepository) Consume(ctx context.Context, subjectID uuid.UUID, target, hash string, now time.Time) (bool, error) {
	query := `
		UPDATE verification_codes
		SET used_at = $1
		WHERE used_at IS NULL
		AND id = (
			SELECT id FROM verification_codes
			WHERE subject_id = $2
			AND target_value = $3
			AND code_hash = $4
			AND used_at IS NULL
			AND expires_at > $1
			ORDER BY created_at DESC
			LIMIT 1
		)
	`

	result, err := r.db.ExecContext(ctx, query, now, subjectID, target, hash)
	if err != nil {
		return false, apperrors.NewStorage(fmt.Errorf("failed to consume verification code: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewStorage(fmt.Errorf("failed to get rows affected: %w", err))
	}

	return rows > 0, nil
}

func (r *verificationCodeRepository) SumAttempts(ctx context.Context, subjectID uuid.UUID, target string, since time.Time) (int, error) {
	query := `
		SELECT COALESCE(SUM(attempts), 0)
		FROM verification_codes
		WHERE subject_id = $1 AND target_value = $2 AND created_at > $3
	`

	var total int
	if err := r.db.GetContext(ctx, &total, query, subjectID, target, since); err != nil {
		return 0, apperrors.NewStorage(fmt.Errorf("failed to sum verification attempts: %w", err))
	}

	return total, nil
}

func (r *verificationCodeRepository) IncrementLatestAttempts(ctx context.Context, subjectID uuid.UUID, target string, since time.Time) error {
	query := `
		UPDATE verification_codes
		SET attempts = attempts + 1
		WHERE id = (
			SELECT id FROM verification_codes
			WHERE subject_id = $1 AND target_value = $2 AND created_at > $3
			ORDER BY created_at DESC
			LIMIT 1
		)
	`

	// Zero affected rows just means no code exists in the window; the caller
	// reports Invalid either way.
	if _, err := r.db.ExecContext(ctx, query, subjectID, target, since); err != nil {
		return apperrors.NewStorage(fmt.Errorf("failed to increment verification attempts: %w", err))
	}

	return nil
}

func (r *verificationCodeRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM verification_codes
		WHERE created_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, apperrors.NewStorage(fmt.Errorf("failed to prune verification codes: %w", err))
	}

	return result.RowsAffected()
}
