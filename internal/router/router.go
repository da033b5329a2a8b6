package router

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/medtrail/consent-api/internal/handler"
	"github.com/medtrail/consent-api/internal/middleware"
	"github.com/medtrail/consent-api/internal/model"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	JWTSecret string
	RateLimit rate.Limit
	RateBurst int
}

type Router struct {
	engine        *gin.Engine
	config        Config
	identityH     Handler
	consentH      Handler
	verificationH Handler
	auditH        Handler
	h             *handler.Handler
}

func NewRouter(
	config Config,
	identityH Handler,
	consentH Handler,
	verificationH Handler,
	auditH Handler,
	h *handler.Handler,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	registerValidators()

	return &Router{
		engine:        gin.New(),
		config:        config,
		identityH:     identityH,
		consentH:      consentH,
		verificationH: verificationH,
		auditH:        auditH,
		h:             h,
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) Setup() {
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Logger())
	r.engine.Use(middleware.Recovery())

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  r.config.RateLimit,
		Burst: r.config.RateBurst,
	})
	r.engine.Use(limiter.RateLimit())

	r.engine.GET("/health/live", r.h.LivenessCheck)
	r.engine.GET("/health/ready", r.h.ReadinessCheck)
	r.engine.GET("/metrics", r.h.MetricsHandler)

	api := r.engine.Group("/api/v1")
	api.Use(middleware.Actor(r.config.JWTSecret))

	r.identityH.RegisterRoutes(api)
	r.consentH.RegisterRoutes(api)
	r.verificationH.RegisterRoutes(api)
	r.auditH.RegisterRoutes(api)
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("bulkaction", func(fl validator.FieldLevel) bool {
			return model.ValidBulkAction(fl.Field().String())
		})
	}
}
