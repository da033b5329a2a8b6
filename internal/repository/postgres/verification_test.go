package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrail/consent-api/internal/model"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestVerificationCodeCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVerificationCodeRepository(NewBaseRepository(db))

	now := time.Now().UTC()
	code := &model.VerificationCode{
		ID:          uuid.New(),
		SubjectID:   uuid.New(),
		TargetValue: "patient@example.com",
		CodeHash:    "abc123",
		ExpiresAt:   now.Add(10 * time.Minute),
		CreatedAt:   now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO verification_codes").
		WithArgs(code.ID, code.SubjectID, code.TargetValue, code.CodeHash, code.ExpiresAt, 0, code.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), code))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationCodeConsume(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVerificationCodeRepository(NewBaseRepository(db))

	subjectID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE verification_codes").
		WithArgs(now, subjectID, "patient@example.com", "abc123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	consumed, err := repo.Consume(context.Background(), subjectID, "patient@example.com", "abc123", now)
	require.NoError(t, err)
	assert.True(t, consumed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationCodeConsumeLosesRace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVerificationCodeRepository(NewBaseRepository(db))

	subjectID := uuid.New()
	now := time.Now().UTC()

	// A racer already set used_at; the conditional update touches zero rows.
	mock.ExpectExec("UPDATE verification_codes").
		WithArgs(now, subjectID, "patient@example.com", "abc123").
		WillReturnResult(sqlmock.NewResult(0, 0))

	consumed, err := repo.Consume(context.Background(), subjectID, "patient@example.com", "abc123", now)
	require.NoError(t, err)
	assert.False(t, consumed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationCodeSumAttempts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVerificationCodeRepository(NewBaseRepository(db))

	subjectID := uuid.New()
	since := time.Now().UTC().Add(-10 * time.Minute)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(subjectID, "patient@example.com", since).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(4))

	total, err := repo.SumAttempts(context.Background(), subjectID, "patient@example.com", since)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationCodeIncrementLatestAttempts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVerificationCodeRepository(NewBaseRepository(db))

	subjectID := uuid.New()
	since := time.Now().UTC().Add(-10 * time.Minute)

	// Zero affected rows is not an error: no code in the window to count on.
	mock.ExpectExec("UPDATE verification_codes").
		WithArgs(subjectID, "patient@example.com", since).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.IncrementLatestAttempts(context.Background(), subjectID, "patient@example.com", since))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationCodeDeleteExpiredBefore(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVerificationCodeRepository(NewBaseRepository(db))

	cutoff := time.Now().UTC().Add(-30 * time.Minute)

	mock.ExpectExec("DELETE FROM verification_codes").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	pruned, err := repo.DeleteExpiredBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), pruned)
	require.NoError(t, mock.ExpectationsWereMet())
}
