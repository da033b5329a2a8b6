package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/medtrail/consent-api/internal/config"
	"github.com/medtrail/consent-api/internal/repository/postgres"
	auditService "github.com/medtrail/consent-api/internal/service/audit"
	consentService "github.com/medtrail/consent-api/internal/service/consent"
	"github.com/medtrail/consent-api/internal/worker"
	"github.com/medtrail/consent-api/pkg/logger"
	"github.com/medtrail/consent-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics("consent_api", "worker")

	base := postgres.NewBaseRepository(db)
	consentRepo := postgres.NewConsentRepository(base)
	auditRepo := postgres.NewAuditRepository(base)
	codeRepo := postgres.NewVerificationCodeRepository(base)

	auditSvc := auditService.NewService(auditRepo, nil, m, appLogger.Zerolog())
	consentSvc := consentService.NewService(consentRepo, auditSvc)

	interval := cfg.Sweeper.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	retention := cfg.Sweeper.CodeRetention
	if retention <= 0 {
		retention = 30 * time.Minute
	}

	sweeper := worker.NewSweeper(consentSvc, codeRepo, interval, retention, m, appLogger.Zerolog())

	ctx, cancel := context.WithCancel(context.Background())
	go sweeper.Start(ctx)
	log.Info().Dur("interval", interval).Msg("sweeper started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down worker...")
	cancel()
}
