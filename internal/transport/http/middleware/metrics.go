package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetricsOptions configures the HTTP metrics middleware.
type HTTPMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Subsystem  string
	Buckets    []float64
}

// HTTPMetrics exposes Prometheus collectors for request instrumentation.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewHTTPMetrics constructs collectors for HTTP request metrics and registers
// them. Collectors already registered under the same name are reused.
func NewHTTPMetrics(opts HTTPMetricsOptions) (*HTTPMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "auth"
	}

	subsystem := opts.Subsystem
	if subsystem == "" {
		subsystem = "http"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	labels := []string{"method", "route", "status"}

	requests, err := register(reg, "requests", prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "requests_total",
		Help:      "Total number of HTTP requests partitioned by method, route, and status code.",
	}, labels))
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, "duration", prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of HTTP request latencies in seconds partitioned by method, route, and status code.",
		Buckets:   buckets,
	}, labels))
	if err != nil {
		return nil, err
	}

	inFlight, err := register(reg, "inflight", prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "in_flight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	}))
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{
		Requests: requests,
		Duration: duration,
		InFlight: inFlight,
	}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, name string, collector T) (T, error) {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return collector, fmt.Errorf("register %s collector: %w", name, err)
		}
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("existing %s collector has unexpected type %T", name, already.ExistingCollector)
		}
		return existing, nil
	}
	return collector, nil
}

// Handler returns a Gin middleware that records the HTTP metrics.
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		labels := prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}

		m.Requests.With(labels).Inc()
		m.Duration.With(labels).Observe(time.Since(start).Seconds())
	}
}
