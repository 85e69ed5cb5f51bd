package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultReadinessTimeout = 2 * time.Second

// ReadinessCheck probes one dependency.
type ReadinessCheck func(ctx context.Context) error

type namedCheck struct {
	name  string
	check ReadinessCheck
}

// HealthHandler exposes liveness and readiness information.
type HealthHandler struct {
	startedAt time.Time
	checks    []namedCheck
	timeout   time.Duration
}

// HealthOption configures HealthHandler.
type HealthOption func(*HealthHandler)

// WithReadinessCheck adds a named dependency probe to /readyz.
func WithReadinessCheck(name string, check ReadinessCheck) HealthOption {
	return func(h *HealthHandler) {
		if check != nil {
			h.checks = append(h.checks, namedCheck{name: name, check: check})
		}
	}
}

// WithReadinessTimeout bounds each probe.
func WithReadinessTimeout(timeout time.Duration) HealthOption {
	return func(h *HealthHandler) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// NewHealthHandler builds a new health handler instance.
func NewHealthHandler(opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{startedAt: time.Now().UTC(), timeout: defaultReadinessTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Status reports liveness.
func (h *HealthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		StartedAt: h.startedAt,
	})
}

// Readiness runs every probe and answers 503 when any fails.
func (h *HealthHandler) Readiness(c *gin.Context) {
	resp := ReadinessResponse{Status: "ready", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK

	for _, nc := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		err := nc.check(ctx)
		cancel()

		if err != nil {
			_ = c.Error(err)
			resp.Checks[nc.name] = "unavailable"
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[nc.name] = "ok"
	}

	c.JSON(status, resp)
}
