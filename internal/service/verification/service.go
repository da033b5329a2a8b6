package verification

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"github.com/medtrail/consent-api/internal/email"
	"github.com/medtrail/consent-api/internal/model"
	"github.com/medtrail/consent-api/internal/repository"
	apperrors "github.com/medtrail/consent-api/pkg/errors"
	"github.com/medtrail/consent-api/pkg/metrics"
)

const (
	codeTTL     = 10 * time.Minute
	maxAttempts = 5
	codeDigits  = 1000000
)

type Service struct {
	repo     repository.VerificationCodeRepository
	emailSvc email.Service
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(repo repository.VerificationCodeRepository, emailSvc email.Service, m *metrics.Metrics) *Service {
	return &Service{
		repo:     repo,
		emailSvc: emailSvc,
		metrics:  m,
		now:      time.Now,
	}
}

// Issue generates a 6-digit code for (subjectID, target), stores only its
// hash, delivers the plaintext to the target address and returns it. The
// plaintext is never persisted. Delivery failure fails the whole issuance.
func (s *Service) Issue(ctx context.Context, subjectID uuid.UUID, target string) (string, error) {
	plaintext, err := generateCode()
	if err != nil {
		return "", apperrors.NewInternal(fmt.Errorf("failed to generate code: %w", err))
	}

	now := s.now().UTC()
	code := &model.VerificationCode{
		ID:          uuid.New(),
		SubjectID:   subjectID,
		TargetValue: target,
		CodeHash:    HashCode(plaintext),
		ExpiresAt:   now.Add(codeTTL),
		Attempts:    0,
		CreatedAt:   now,
	}

	if err := s.repo.Create(ctx, code); err != nil {
		return "", fmt.Errorf("failed to store verification code: %w", err)
	}

	if err := s.emailSvc.SendVerificationCode(ctx, target, plaintext); err != nil {
		// The stored code will expire on its own; an undelivered code is not
		// an acceptable end state, so issuance reports failure.
		return "", apperrors.NewInternal(fmt.Errorf("failed to deliver verification code: %w", err))
	}

	s.metrics.CodesIssued.Inc()
	return plaintext, nil
}

// Verify checks a supplied code. The winning path is a single conditional
// update marking the code used; two concurrent calls for the same code cannot
// both succeed, and the loser is indistinguishable from a wrong code.
func (s *Service) Verify(ctx context.Context, subjectID uuid.UUID, target, supplied string) error {
	now := s.now().UTC()

	consumed, err := s.repo.Consume(ctx, subjectID, target, HashCode(supplied), now)
	if err != nil {
		s.metrics.VerificationResults.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to verify code: %w", err)
	}
	if consumed {
		s.metrics.VerificationResults.WithLabelValues("success").Inc()
		return nil
	}

	// Attempts are summed across every code issued in the window so a fresh
	// issuance cannot reset the budget.
	windowStart := now.Add(-codeTTL)
	total, err := s.repo.SumAttempts(ctx, subjectID, target, windowStart)
	if err != nil {
		s.metrics.VerificationResults.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to check attempt budget: %w", err)
	}
	if total >= maxAttempts {
		s.metrics.VerificationResults.WithLabelValues("too_many_attempts").Inc()
		return apperrors.NewTooManyAttempts()
	}

	if err := s.repo.IncrementLatestAttempts(ctx, subjectID, target, windowStart); err != nil {
		s.metrics.VerificationResults.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to count attempt: %w", err)
	}

	s.metrics.VerificationResults.WithLabelValues("invalid").Inc()
	return apperrors.NewInvalidCode()
}

// HashCode computes the one-way hash stored in place of the plaintext code.
func HashCode(code string) string {
	sum := sha3.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeDigits))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
