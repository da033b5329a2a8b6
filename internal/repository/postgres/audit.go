package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/medtrail/consent-api/internal/model"
	"github.com/medtrail/consent-api/internal/repository"
	apperrors "github.com/medtrail/consent-api/pkg/errors"
)

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

// Create durably persists a single audit entry. The insert is the whole
// transaction: either the complete entry is visible or nothing is.
func (r *auditRepository) Create(ctx context.Context, entry *model.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (
			id, subject_id, actor_id, action, details,
			ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			entry.ID,
			entry.SubjectID,
			entry.ActorID,
			entry.Action,
			entry.Details,
			entry.IPAddress,
			entry.UserAgent,
			entry.CreatedAt,
		)
		if err != nil {
			return apperrors.NewStorage(fmt.Errorf("failed to create audit entry: %w", err))
		}
		return nil
	})
}

func (r *auditRepository) List(ctx context.Context, filter *model.AuditFilter) ([]*model.AuditEntry, error) {
	query := `
		SELECT * FROM audit_entries
		WHERE 1=1
	`
	var args []interface{}

	if filter.SubjectID != nil {
		query += fmt.Sprintf(" AND subject_id = $%d", len(args)+1)
		args = append(args, *filter.SubjectID)
	}

	if filter.ActorID != nil {
		query += fmt.Sprintf(" AND actor_id = $%d", len(args)+1)
		args = append(args, *filter.ActorID)
	}

	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", len(args)+1)
		args = append(args, filter.Action)
	}

	if filter.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", len(args)+1)
		args = append(args, *filter.Since)
	}

	if filter.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", len(args)+1)
		args = append(args, *filter.Until)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = model.DefaultAuditListLimit
	}
	if limit > model.MaxAuditListLimit {
		limit = model.MaxAuditListLimit
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	var entries []*model.AuditEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, apperrors.NewStorage(fmt.Errorf("failed to list audit entries: %w", err))
	}

	return entries, nil
}
