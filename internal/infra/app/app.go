package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/audit"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/config"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/database"
	kafkainfra "github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/kafka"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/logger"
	redisinfra "github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/redis"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/security"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/telemetry"
	memoryrepo "github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/repository/memory"
	postgresrepo "github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/repository/postgres"
	redisrepo "github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/repository/redis"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/transport/http/middleware"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/transport/http/routes"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/usecase"
)

// stores is the persistence backend selected by store.driver.
type stores struct {
	users       port.UserRepository
	lockout     port.LockoutStore
	sessions    port.SessionRepository
	tokens      port.TokenRepository
	credentials port.CredentialStore
}

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	tracer   *telemetry.TracerProvider
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	audit    *audit.Dispatcher
	sessions *usecase.SessionService
	// memLimits is set when rate-limit windows live in process memory.
	memLimits *memoryrepo.RateLimitStore
}

func New(ctx context.Context, cfg *config.AppConfig) (_ *Application, err error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.release(context.Background())
		}
	}()

	a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	metrics, err := telemetry.NewMetrics(telemetry.MetricsOptions{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	st, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}

	limitStore, err := a.openRateLimitStore(ctx)
	if err != nil {
		return nil, err
	}

	auditSink, notifier := a.openPublishers()
	a.audit = audit.NewDispatcher(auditSink, audit.Options{
		QueueSize:      cfg.Audit.QueueSize,
		PublishTimeout: cfg.Audit.PublishTimeout,
	}, metrics, log)

	policy := security.NewPasswordPolicy(security.DefaultPasswordPolicyConfig())
	resetLimiter := usecase.NewRateLimiter(limitStore, usecase.RateLimitPolicy{
		Class:       usecase.RateClassPasswordReset,
		MaxRequests: cfg.Security.ResetRequestMax,
		Window:      cfg.Security.ResetRequestWindow,
	}, cfg.Store.Timeout, log)
	resendLimiter := usecase.NewRateLimiter(limitStore, usecase.RateLimitPolicy{
		Class:       usecase.RateClassVerificationResend,
		MaxRequests: cfg.Security.ResetRequestMax,
		Window:      cfg.Security.ResetRequestWindow,
	}, cfg.Store.Timeout, log)

	tokens := usecase.NewTokenService(st.tokens, cfg, metrics, log)
	lockout := usecase.NewLockoutGuard(st.lockout, cfg)
	a.sessions = usecase.NewSessionService(cfg, st.sessions, st.users, a.audit, metrics, log)

	services := routes.ServiceSet{
		Auth:          usecase.NewAuthService(cfg, st.users, hasher, lockout, a.sessions, a.audit, metrics, log),
		Registration:  usecase.NewRegistrationService(cfg, st.users, st.credentials, tokens, hasher, policy, notifier, resendLimiter, a.audit, log),
		PasswordReset: usecase.NewPasswordResetService(cfg, st.users, st.credentials, tokens, hasher, policy, notifier, resetLimiter, a.audit, metrics, log),
		Sessions:      a.sessions,
	}

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(limitStore, log),
		Services:    services,
		HTTPMetrics: httpMetrics,
	}
	if a.pool != nil {
		deps.Database = a.pool
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	return a, nil
}

func (a *Application) openStores(ctx context.Context) (stores, error) {
	if a.cfg.Store.Driver == "memory" {
		a.logger.Warn("using in-memory store; accounts and sessions are lost on restart")
		repos := memoryrepo.NewRepositories()
		return stores{
			users:       repos.Users,
			lockout:     repos.Users,
			sessions:    repos.Sessions,
			tokens:      repos.Tokens,
			credentials: repos.Credentials,
		}, nil
	}

	if a.cfg.Store.AutoMigrate {
		if err := migrateUp(a.cfg.Postgres.DSN(), a.logger); err != nil {
			return stores{}, err
		}
	}

	pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres, a.logger)
	if err != nil {
		return stores{}, fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool

	repos := postgresrepo.NewRepositories(pool)
	return stores{
		users:       repos.Users,
		lockout:     repos.Users,
		sessions:    repos.Sessions,
		tokens:      repos.Tokens,
		credentials: repos.Credentials,
	}, nil
}

func migrateUp(dsn string, log *zap.Logger) error {
	migrator, err := database.NewMigrator(dsn)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() {
		if cerr := migrator.Close(); cerr != nil {
			log.Warn("close migrator", zap.Error(cerr))
		}
	}()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	log.Info("database schema up to date", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func (a *Application) openRateLimitStore(ctx context.Context) (port.RateLimitStore, error) {
	if a.cfg.Redis.Host == "" {
		a.logger.Info("redis not configured, rate limit windows kept in memory")
		a.memLimits = memoryrepo.NewRateLimitStore(a.logger)
		return a.memLimits, nil
	}

	client, err := redisinfra.NewClient(ctx, a.cfg.Redis, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	a.redis = client

	return redisrepo.NewRateLimitRepository(client.Client(), redisrepo.RateLimitConfig{
		KeyPrefix: a.cfg.Redis.RateLimitPrefix,
	}), nil
}

func (a *Application) openPublishers() (port.AuditSink, port.Notifier) {
	if len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, using stub publisher")
		stub := kafkainfra.NewStubPublisher(a.logger)
		return stub, stub
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		stub := kafkainfra.NewStubPublisher(a.logger)
		return stub, stub
	}
	a.producer = producer
	a.logger.Info("kafka publishers initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))

	return kafkainfra.NewAuditPublisher(producer, a.cfg.App, a.logger),
		kafkainfra.NewNotificationPublisher(producer, a.cfg.App, a.logger)
}

func (a *Application) Run(ctx context.Context) error {
	workersCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	a.sessions.Start()
	go a.sessions.RunReaper(workersCtx, a.cfg.Store.ReaperInterval)
	if a.memLimits != nil {
		go a.memLimits.RunReaper(workersCtx, a.cfg.Store.ReaperInterval)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("store", a.cfg.Store.Driver),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErrCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("shutdown server: %w", err))
	}
	stopWorkers()
	a.release(shutdownCtx)

	return runErr
}

// release stops background workers and closes connections in dependency order.
func (a *Application) release(ctx context.Context) {
	if a.sessions != nil {
		a.sessions.Close()
	}
	if a.audit != nil {
		if err := a.audit.Close(ctx); err != nil {
			a.logger.Warn("audit queue not fully drained", zap.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
