package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	Store     StoreSettings     `mapstructure:"store"`
	Session   SessionSettings   `mapstructure:"session"`
	Cookie    CookieSettings    `mapstructure:"cookie"`
	Security  SecuritySettings  `mapstructure:"security"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Audit     AuditSettings     `mapstructure:"audit"`
	CORS      CORSSettings      `mapstructure:"cors"`
}

type AppSettings struct {
	Name            string        `mapstructure:"name"`
	Env             string        `mapstructure:"env"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For header is
	// honoured. Empty means the peer address is always the client address.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// DSN renders a postgres:// connection URL.
func (p PostgresSettings) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// RedisSettings configures Redis connection and TLS. An empty Host disables Redis.
type RedisSettings struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	TLSEnabled      bool   `mapstructure:"tls_enabled"`
	RateLimitPrefix string `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures the Kafka producer. No brokers means log-only sinks.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// StoreSettings selects the persistence backend.
type StoreSettings struct {
	Driver         string        `mapstructure:"driver"`
	Timeout        time.Duration `mapstructure:"timeout"`
	AutoMigrate    bool          `mapstructure:"auto_migrate"`
	ReaperInterval time.Duration `mapstructure:"reaper_interval"`
}

type SessionSettings struct {
	Duration       time.Duration `mapstructure:"duration"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	TouchWorkers   int           `mapstructure:"touch_workers"`
	TouchQueueSize int           `mapstructure:"touch_queue_size"`
}

type CookieSettings struct {
	Name   string `mapstructure:"name"`
	Domain string `mapstructure:"domain"`
	Path   string `mapstructure:"path"`
	Secure bool   `mapstructure:"secure"`
}

// SecuritySettings holds the lockout, token and reset-request policy.
type SecuritySettings struct {
	MaxLoginAttempts     int           `mapstructure:"max_login_attempts"`
	MaxCodeAttempts      int           `mapstructure:"max_code_attempts"`
	LockoutDuration      time.Duration `mapstructure:"lockout_duration"`
	VerificationTokenTTL time.Duration `mapstructure:"verification_token_ttl"`
	ResetTokenTTL        time.Duration `mapstructure:"reset_token_ttl"`
	ResetRequestWindow   time.Duration `mapstructure:"reset_request_window"`
	ResetRequestMax      int           `mapstructure:"reset_request_max"`
	ResetResponseFloor   time.Duration `mapstructure:"reset_response_floor"`
}

// RateLimitSettings configures per-IP HTTP throttles.
type RateLimitSettings struct {
	WindowDuration           time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts         int           `mapstructure:"login_max_attempts"`
	RegisterMaxAttempts      int           `mapstructure:"register_max_attempts"`
	VerifyMaxAttempts        int           `mapstructure:"verify_max_attempts"`
	PasswordResetMaxAttempts int           `mapstructure:"password_reset_max_attempts"`
}

type AuditSettings struct {
	QueueSize      int           `mapstructure:"queue_size"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

type CORSSettings struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AUTH")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.shutdown_timeout",
		"app.trusted_proxies",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.rate_limit_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"store.driver",
		"store.timeout",
		"store.auto_migrate",
		"store.reaper_interval",
		"session.duration",
		"session.idle_timeout",
		"session.touch_workers",
		"session.touch_queue_size",
		"cookie.name",
		"cookie.domain",
		"cookie.path",
		"cookie.secure",
		"security.max_login_attempts",
		"security.max_code_attempts",
		"security.lockout_duration",
		"security.verification_token_ttl",
		"security.reset_token_ttl",
		"security.reset_request_window",
		"security.reset_request_max",
		"security.reset_response_floor",
		"rate_limit.window_duration",
		"rate_limit.login_max_attempts",
		"rate_limit.register_max_attempts",
		"rate_limit.verify_max_attempts",
		"rate_limit.password_reset_max_attempts",
		"audit.queue_size",
		"audit.publish_timeout",
		"cors.allowed_origins",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration produced by Load with no environment overrides.
func Default() *AppConfig {
	v := viper.New()
	setDefaults(v)

	var cfg AppConfig
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate rejects policy values that would disable a security control.
func (c *AppConfig) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("store.driver must be postgres or memory, got %q", c.Store.Driver))
	}

	positiveDurations := map[string]time.Duration{
		"store.timeout":                   c.Store.Timeout,
		"session.duration":                c.Session.Duration,
		"session.idle_timeout":            c.Session.IdleTimeout,
		"security.lockout_duration":       c.Security.LockoutDuration,
		"security.verification_token_ttl": c.Security.VerificationTokenTTL,
		"security.reset_token_ttl":        c.Security.ResetTokenTTL,
		"security.reset_request_window":   c.Security.ResetRequestWindow,
		"rate_limit.window_duration":      c.RateLimit.WindowDuration,
	}
	for key, value := range positiveDurations {
		if value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}

	positiveCounts := map[string]int{
		"security.max_login_attempts": c.Security.MaxLoginAttempts,
		"security.max_code_attempts":  c.Security.MaxCodeAttempts,
		"security.reset_request_max":  c.Security.ResetRequestMax,
		"session.touch_workers":       c.Session.TouchWorkers,
		"session.touch_queue_size":    c.Session.TouchQueueSize,
		"audit.queue_size":            c.Audit.QueueSize,
	}
	for key, value := range positiveCounts {
		if value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}

	if c.Security.ResetResponseFloor < 0 {
		errs = append(errs, errors.New("security.reset_response_floor must not be negative"))
	}
	if c.Cookie.Name == "" {
		errs = append(errs, errors.New("cookie.name is required"))
	}
	for _, proxy := range c.App.TrustedProxies {
		if !validProxy(proxy) {
			errs = append(errs, fmt.Errorf("app.trusted_proxies: %q is not an IP or CIDR", proxy))
		}
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "rowbooster-auth")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.shutdown_timeout", "10s")
	v.SetDefault("app.trusted_proxies", []string{})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "rowbooster")
	v.SetDefault("postgres.password", "rowbooster")
	v.SetDefault("postgres.database", "rowbooster")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.rate_limit_prefix", "auth:rl")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "rowbooster")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "rowbooster-auth")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.timeout", "3s")
	v.SetDefault("store.auto_migrate", false)
	v.SetDefault("store.reaper_interval", "5m")

	v.SetDefault("session.duration", "168h")
	v.SetDefault("session.idle_timeout", "30m")
	v.SetDefault("session.touch_workers", 2)
	v.SetDefault("session.touch_queue_size", 1024)

	v.SetDefault("cookie.name", "sessionId")
	v.SetDefault("cookie.domain", "")
	v.SetDefault("cookie.path", "/")
	v.SetDefault("cookie.secure", true)

	v.SetDefault("security.max_login_attempts", 5)
	v.SetDefault("security.max_code_attempts", 5)
	v.SetDefault("security.lockout_duration", "15m")
	v.SetDefault("security.verification_token_ttl", "1h")
	v.SetDefault("security.reset_token_ttl", "1h")
	v.SetDefault("security.reset_request_window", "15m")
	v.SetDefault("security.reset_request_max", 3)
	v.SetDefault("security.reset_response_floor", "250ms")

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 10)
	v.SetDefault("rate_limit.register_max_attempts", 5)
	v.SetDefault("rate_limit.verify_max_attempts", 10)
	v.SetDefault("rate_limit.password_reset_max_attempts", 5)

	v.SetDefault("audit.queue_size", 1024)
	v.SetDefault("audit.publish_timeout", "2s")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})
}

func validProxy(value string) bool {
	if _, err := netip.ParsePrefix(value); err == nil {
		return true
	}
	_, err := netip.ParseAddr(value)
	return err == nil
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "AUTH_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
