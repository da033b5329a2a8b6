package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medtrail/consent-api/internal/model"
	"github.com/medtrail/consent-api/internal/repository"
	apperrors "github.com/medtrail/consent-api/pkg/errors"
	"github.com/medtrail/consent-api/pkg/messaging"
	"github.com/medtrail/consent-api/pkg/metrics"
)

// Channel for best-effort downstream fan-out of audit events.
const PublishChannel = "audit.entries"

type metaKey struct{}

// RequestMeta carries per-request client details for audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// WithRequestMeta stashes request metadata in the context for Record to pick up.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, metaKey{}, meta)
}

// MetaFromContext returns request metadata previously stored with WithRequestMeta.
func MetaFromContext(ctx context.Context) (RequestMeta, bool) {
	meta, ok := ctx.Value(metaKey{}).(RequestMeta)
	return meta, ok
}

type Service struct {
	repo    repository.AuditRepository
	broker  messaging.Broker
	metrics *metrics.Metrics
	logger  *zerolog.Logger
}

func NewService(repo repository.AuditRepository, broker messaging.Broker, m *metrics.Metrics, logger *zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		broker:  broker,
		metrics: m,
		logger:  logger,
	}
}

// RecordInput describes one privileged action to be logged.
type RecordInput struct {
	SubjectID uuid.UUID
	ActorID   uuid.UUID
	Action    string
	Details   interface{}
	IPAddress string
	UserAgent string
	Timestamp time.Time
}

// Record durably persists an audit entry before returning. A storage failure
// is always surfaced: callers treat an unaudited privileged action as a failed
// operation, never a partial success.
func (s *Service) Record(ctx context.Context, in *RecordInput) (*model.AuditEntry, error) {
	if in.SubjectID == uuid.Nil || in.Action == "" {
		return nil, apperrors.NewValidation("audit entry requires subject_id and action", nil)
	}

	var details json.RawMessage
	if in.Details != nil {
		var err error
		details, err = json.Marshal(in.Details)
		if err != nil {
			return nil, apperrors.NewValidation("failed to marshal audit details", err)
		}
	}

	ipAddress := in.IPAddress
	userAgent := in.UserAgent
	if meta, ok := MetaFromContext(ctx); ok {
		if ipAddress == "" {
			ipAddress = meta.IPAddress
		}
		if userAgent == "" {
			userAgent = meta.UserAgent
		}
	}

	timestamp := in.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	entry := &model.AuditEntry{
		ID:        uuid.New(),
		SubjectID: in.SubjectID,
		ActorID:   in.ActorID,
		Action:    in.Action,
		Details:   details,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: timestamp,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.metrics.AuditWriteFailures.Inc()
		return nil, fmt.Errorf("failed to record audit entry: %w", err)
	}
	s.metrics.AuditEntriesWritten.Inc()

	s.publish(ctx, entry)

	return entry, nil
}

// publish fans the entry out to downstream consumers. Best effort: the entry
// is already durable, so a broker failure is logged and counted, not surfaced.
func (s *Service) publish(ctx context.Context, entry *model.AuditEntry) {
	if s.broker == nil {
		return
	}

	msg := messaging.Message{Type: entry.Action, Payload: entry}
	if err := s.broker.Publish(ctx, PublishChannel, msg); err != nil {
		s.metrics.AuditPublishErrors.Inc()
		s.logger.Warn().Err(err).
			Str("entry_id", entry.ID.String()).
			Str("action", entry.Action).
			Msg("failed to publish audit entry")
	}
}

// List returns audit entries matching the filter, newest first, capped at
// MaxAuditListLimit.
func (s *Service) List(ctx context.Context, filter *model.AuditFilter) ([]*model.AuditEntry, error) {
	if filter == nil {
		filter = &model.AuditFilter{}
	}
	return s.repo.List(ctx, filter)
}
