package logger

import (
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	lg   *zap.Logger
	once sync.Once
)

// New returns the process-wide logger. Only the first call builds it.
func New(env string) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		lg, err = build(env)
	})
	return lg, err
}

func build(env string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "production", "staging":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.InitialFields = map[string]any{"component": "auth", "env": env}

	return cfg.Build()
}

// RequestIDKey is used to store a request identifier on the context.
type RequestIDKey struct{}

// PII masking helpers

var emailRegex = regexp.MustCompile(`^([^@]{1,3})[^@]*(@.+)$`)

// MaskEmail masks email addresses, showing first 3 characters and domain
// Example: john.doe@example.com -> joh***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	matches := emailRegex.FindStringSubmatch(email)
	if len(matches) == 3 {
		return matches[1] + "***" + matches[2]
	}

	// Fallback: just mask everything before @
	parts := strings.SplitN(email, "@", 2)
	if len(parts) == 2 {
		return "***@" + parts[1]
	}

	return "***"
}

// MaskIdentifier masks a login identifier that may be a username or an email.
// Example: alice@x.com -> ali***@x.com, alice -> al***ce
func MaskIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return MaskEmail(identifier)
	}
	return MaskString(identifier)
}

// MaskIP performs partial IP masking, showing first 2 octets for IPv4
// Example: 192.168.1.100 -> 192.168.*.*
// For IPv6, shows first 4 groups
// Example: 2001:0db8:85a3:0000:0000:8a2e:0370:7334 -> 2001:0db8:85a3:0000:*:*:*:*
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	// IPv4 masking
	if strings.Contains(ip, ".") {
		parts := strings.Split(ip, ".")
		if len(parts) == 4 {
			return parts[0] + "." + parts[1] + ".*.*"
		}
	}

	// IPv6 masking
	if strings.Contains(ip, ":") {
		parts := strings.Split(ip, ":")
		if len(parts) >= 4 {
			return strings.Join(parts[:4], ":") + ":*:*:*:*"
		}
	}

	return "***"
}

// MaskString generic masking for arbitrary sensitive strings
// Shows first and last 2 characters with *** in between
// Example: "secret123" -> "se***23"
func MaskString(s string) string {
	if s == "" {
		return ""
	}

	length := len(s)
	if length <= 4 {
		return "***"
	}

	return s[:2] + "***" + s[length-2:]
}
