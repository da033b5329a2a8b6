package worker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/medtrail/consent-api/internal/repository"
	"github.com/medtrail/consent-api/internal/service/consent"
	"github.com/medtrail/consent-api/pkg/metrics"
)

// Sweeper periodically persists passive consent expiry and prunes
// verification codes whose rate-limit window has fully passed.
type Sweeper struct {
	consentSvc *consent.Service
	codes      repository.VerificationCodeRepository
	interval   time.Duration
	retention  time.Duration
	metrics    *metrics.Metrics
	logger     *zerolog.Logger
}

func NewSweeper(consentSvc *consent.Service, codes repository.VerificationCodeRepository,
	interval, codeRetention time.Duration, m *metrics.Metrics, logger *zerolog.Logger) *Sweeper {
	return &Sweeper{
		consentSvc: consentSvc,
		codes:      codes,
		interval:   interval,
		retention:  codeRetention,
		metrics:    m,
		logger:     logger,
	}
}

func (w *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	timer := prometheus.NewTimer(w.metrics.DatabaseLatency.WithLabelValues("expire_consents"))
	expired, err := w.consentSvc.ExpireDue(ctx)
	timer.ObserveDuration()
	if err != nil {
		w.metrics.DatabaseOperations.WithLabelValues("expire_consents", "error").Inc()
		w.logger.Error().Err(err).Msg("failed to expire consent grants")
	} else {
		w.metrics.DatabaseOperations.WithLabelValues("expire_consents", "success").Inc()
		if expired > 0 {
			w.logger.Info().Int("expired", expired).Msg("expired consent grants")
		}
	}

	cutoff := time.Now().Add(-w.retention)
	timer = prometheus.NewTimer(w.metrics.DatabaseLatency.WithLabelValues("prune_codes"))
	pruned, err := w.codes.DeleteExpiredBefore(ctx, cutoff)
	timer.ObserveDuration()
	if err != nil {
		w.metrics.DatabaseOperations.WithLabelValues("prune_codes", "error").Inc()
		w.logger.Error().Err(err).Msg("failed to prune verification codes")
	} else {
		w.metrics.DatabaseOperations.WithLabelValues("prune_codes", "success").Inc()
		if pruned > 0 {
			w.logger.Info().Int64("pruned", pruned).Msg("pruned verification codes")
		}
	}
}
