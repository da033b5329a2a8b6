package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrail/consent-api/internal/model"
)

var auditColumns = []string{"id", "subject_id", "actor_id", "action", "details", "ip_address", "user_agent", "created_at"}

func TestAuditCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(NewBaseRepository(db))

	entry := &model.AuditEntry{
		ID:        uuid.New(),
		SubjectID: uuid.New(),
		ActorID:   uuid.New(),
		Action:    "STATUS_UPDATED",
		Details:   json.RawMessage(`{"previous_status":"active"}`),
		IPAddress: "203.0.113.7",
		UserAgent: "medtrail-cli/1.2",
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO audit_entries").
		WithArgs(entry.ID, entry.SubjectID, entry.ActorID, entry.Action,
			entry.Details, entry.IPAddress, entry.UserAgent, entry.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditCreateRollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(NewBaseRepository(db))

	entry := &model.AuditEntry{
		ID:        uuid.New(),
		SubjectID: uuid.New(),
		Action:    "VERIFIED",
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO audit_entries").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	require.Error(t, repo.Create(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditListBySubject(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(NewBaseRepository(db))

	subjectID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT \* FROM audit_entries`).
		WithArgs(subjectID, model.DefaultAuditListLimit).
		WillReturnRows(sqlmock.NewRows(auditColumns).
			AddRow(uuid.New(), subjectID, uuid.New(), "VERIFIED", []byte(`{}`), "", "", now).
			AddRow(uuid.New(), subjectID, uuid.New(), "STATUS_UPDATED", []byte(`{}`), "", "", now.Add(-time.Minute)))

	entries, err := repo.List(context.Background(), &model.AuditFilter{SubjectID: &subjectID})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, subjectID, entries[0].SubjectID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditListClampsLimit(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(NewBaseRepository(db))

	mock.ExpectQuery(`SELECT \* FROM audit_entries`).
		WithArgs(model.MaxAuditListLimit).
		WillReturnRows(sqlmock.NewRows(auditColumns))

	_, err := repo.List(context.Background(), &model.AuditFilter{Limit: 10000})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
