package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/medtrail/consent-api/internal/config"
	"github.com/medtrail/consent-api/internal/email"
	"github.com/medtrail/consent-api/internal/handler"
	auditHandler "github.com/medtrail/consent-api/internal/handler/audit"
	consentHandler "github.com/medtrail/consent-api/internal/handler/consent"
	identityHandler "github.com/medtrail/consent-api/internal/handler/identity"
	verificationHandler "github.com/medtrail/consent-api/internal/handler/verification"
	"github.com/medtrail/consent-api/internal/repository/postgres"
	"github.com/medtrail/consent-api/internal/router"
	auditService "github.com/medtrail/consent-api/internal/service/audit"
	bulkService "github.com/medtrail/consent-api/internal/service/bulk"
	consentService "github.com/medtrail/consent-api/internal/service/consent"
	identityService "github.com/medtrail/consent-api/internal/service/identity"
	verificationService "github.com/medtrail/consent-api/internal/service/verification"
	"github.com/medtrail/consent-api/pkg/logger"
	"github.com/medtrail/consent-api/pkg/messaging"
	redisBroker "github.com/medtrail/consent-api/pkg/messaging/redis"
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

	// Audit events fan out over Redis best effort; the service runs without
	// a broker if Redis is unreachable at startup.
	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		broker, err = redisBroker.NewRedisBroker(redisBroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, appLogger.Zerolog())
		if err != nil {
			log.Warn().Err(err).Msg("audit event publishing disabled")
			broker = nil
		} else {
			defer broker.Close()
		}
	}

	m := metrics.NewMetrics("consent_api", "core")

	base := postgres.NewBaseRepository(db)
	identityRepo := postgres.NewIdentityRepository(base)
	consentRepo := postgres.NewConsentRepository(base)
	auditRepo := postgres.NewAuditRepository(base)
	codeRepo := postgres.NewVerificationCodeRepository(base)

	emailSvc := email.NewSMTPService(email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	auditSvc := auditService.NewService(auditRepo, broker, m, appLogger.Zerolog())
	identitySvc := identityService.NewService(identityRepo, auditSvc)
	consentSvc := consentService.NewService(consentRepo, auditSvc)
	verificationSvc := verificationService.NewService(codeRepo, emailSvc, m)
	bulkSvc := bulkService.NewService(identityRepo, auditSvc, m)

	r := router.NewRouter(
		router.Config{
			JWTSecret: cfg.JWT.Secret,
			RateLimit: rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst: cfg.RateLimit.Burst,
		},
		identityHandler.NewHandler(identitySvc, bulkSvc),
		consentHandler.NewHandler(consentSvc),
		verificationHandler.NewHandler(verificationSvc),
		auditHandler.NewHandler(auditSvc),
		handler.NewHandler(),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
