package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/config"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/transport/http/handlers"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/transport/http/middleware"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          *usecase.AuthService
	Registration  *usecase.RegistrationService
	PasswordReset *usecase.PasswordResetService
	Sessions      *usecase.SessionService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	Database    Pinger
	Cache       Pinger
	// Gatherer serves /metrics; nil selects the default registry.
	Gatherer    prometheus.Gatherer
	HTTPMetrics *middleware.HTTPMetrics
}

// Pinger exposes readiness behaviour for a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	handlers.ConfigureValidator()

	r := gin.New()
	if err := r.SetTrustedProxies(trustedProxies(deps.Config.App.TrustedProxies)); err != nil {
		deps.Logger.Warn("invalid trusted proxies, ignoring forwarded headers", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.HTTPMetrics.Handler())
	r.Use(middleware.CORS(deps.Config.CORS.AllowedOrigins))

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.Ping))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	cookie := middleware.NewSessionCookie(deps.Config.Cookie, deps.Config.Session)
	requireSession := middleware.RequireSession(deps.Services.Sessions, cookie, deps.Logger)

	authGroup := r.Group("/api/v1/auth")

	authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Services.Sessions, cookie, deps.Logger)
	authHandler.RegisterRoutes(authGroup, requireSession, throttle(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts)...)

	registrationHandler := handlers.NewRegistrationHandler(deps.Services.Registration)
	registrationHandler.RegisterRoutes(authGroup,
		throttle(deps, "auth_register_ip", deps.Config.RateLimit.RegisterMaxAttempts),
		throttle(deps, "auth_verify_ip", deps.Config.RateLimit.VerifyMaxAttempts),
	)

	passwordHandler := handlers.NewPasswordHandler(deps.Services.PasswordReset)
	passwordHandler.RegisterRoutes(authGroup, throttle(deps, "password_reset_ip", deps.Config.RateLimit.PasswordResetMaxAttempts)...)

	return r
}

// throttle builds a per-IP limit, or nothing when disabled.
func throttle(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}

// trustedProxies maps an empty list to nil, which makes gin ignore
// X-Forwarded-For and use the peer address.
func trustedProxies(proxies []string) []string {
	if len(proxies) == 0 {
		return nil
	}
	return proxies
}
