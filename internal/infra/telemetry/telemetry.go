package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Login outcome labels.
const (
	OutcomeSuccess     = "success"
	OutcomeInvalid     = "invalid_credentials"
	OutcomeLocked      = "locked"
	OutcomeLockedOut   = "locked_out"
	OutcomeInactive    = "inactive"
	OutcomeStorageFail = "storage_unavailable"
)

// MetricsOptions configures the auth metrics.
type MetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
}

// Metrics holds the Prometheus collectors for security outcomes.
type Metrics struct {
	LoginAttempts      *prometheus.CounterVec
	SessionValidations *prometheus.CounterVec
	TokensIssued       *prometheus.CounterVec
	ResetRequests      *prometheus.CounterVec
	AuditDropped       prometheus.Counter
	TouchDropped       prometheus.Counter
}

// NewMetrics constructs collectors and registers them with the provided registerer.
func NewMetrics(opts MetricsOptions) (*Metrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "auth"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	logins, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Login attempts partitioned by outcome.",
	}, []string{"outcome"})
	if err != nil {
		return nil, err
	}

	validations, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_validations_total",
		Help:      "Session validations partitioned by result.",
	}, []string{"result"})
	if err != nil {
		return nil, err
	}

	tokens, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Single-use tokens issued partitioned by purpose.",
	}, []string{"purpose"})
	if err != nil {
		return nil, err
	}

	resets, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_reset_requests_total",
		Help:      "Password reset requests partitioned by result.",
	}, []string{"result"})
	if err != nil {
		return nil, err
	}

	auditDropped, err := registerCounter(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_dropped_total",
		Help:      "Audit events dropped because the queue was full or the sink failed.",
	})
	if err != nil {
		return nil, err
	}

	touchDropped, err := registerCounter(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_touch_dropped_total",
		Help:      "Session activity refreshes dropped because the queue was full.",
	})
	if err != nil {
		return nil, err
	}

	return &Metrics{
		LoginAttempts:      logins,
		SessionValidations: validations,
		TokensIssued:       tokens,
		ResetRequests:      resets,
		AuditDropped:       auditDropped,
		TouchDropped:       touchDropped,
	}, nil
}

// NewNopMetrics returns collectors registered nowhere.
func NewNopMetrics() *Metrics {
	m, _ := NewMetrics(MetricsOptions{Registerer: prometheus.NewRegistry()})
	return m
}

// ObserveLogin records a login outcome.
func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

// ObserveSession records a session validation result.
func (m *Metrics) ObserveSession(result string) {
	if m == nil {
		return
	}
	m.SessionValidations.WithLabelValues(result).Inc()
}

// ObserveTokenIssued records an issued token.
func (m *Metrics) ObserveTokenIssued(purpose string) {
	if m == nil {
		return
	}
	m.TokensIssued.WithLabelValues(purpose).Inc()
}

// ObserveResetRequest records a password reset request result.
func (m *Metrics) ObserveResetRequest(result string) {
	if m == nil {
		return
	}
	m.ResetRequests.WithLabelValues(result).Inc()
}

// IncAuditDropped counts a dropped audit event.
func (m *Metrics) IncAuditDropped() {
	if m == nil {
		return
	}
	m.AuditDropped.Inc()
}

// IncTouchDropped counts a dropped session refresh.
func (m *Metrics) IncTouchDropped() {
	if m == nil {
		return
	}
	m.TouchDropped.Inc()
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("existing %s collector has unexpected type %T", opts.Name, already.ExistingCollector)
		}
		return nil, fmt.Errorf("register %s collector: %w", opts.Name, err)
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, opts prometheus.CounterOpts) (prometheus.Counter, error) {
	counter := prometheus.NewCounter(opts)
	if err := reg.Register(counter); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("existing %s collector has unexpected type %T", opts.Name, already.ExistingCollector)
		}
		return nil, fmt.Errorf("register %s collector: %w", opts.Name, err)
	}
	return counter, nil
}
