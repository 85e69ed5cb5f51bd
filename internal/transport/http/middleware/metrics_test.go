package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetricsHandlerRecordsMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	metrics, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create http metrics: %v", err)
	}

	router := gin.New()
	router.Use(metrics.Handler())
	router.POST("/api/v1/auth/login", func(c *gin.Context) {
		c.Status(http.StatusUnauthorized)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/no/such/route", nil))

	login := prometheus.Labels{"method": http.MethodPost, "route": "/api/v1/auth/login", "status": "401"}
	if got := testutil.ToFloat64(metrics.Requests.With(login)); got != 1 {
		t.Fatalf("expected login counter 1, got %f", got)
	}

	unmatched := prometheus.Labels{"method": http.MethodGet, "route": "unmatched", "status": "404"}
	if got := testutil.ToFloat64(metrics.Requests.With(unmatched)); got != 1 {
		t.Fatalf("expected unmatched routes to share one label, got %f", got)
	}

	if got := testutil.ToFloat64(metrics.InFlight); got != 0 {
		t.Fatalf("expected in-flight gauge to return to 0, got %f", got)
	}
	if samples := testutil.CollectAndCount(metrics.Duration); samples == 0 {
		t.Fatalf("expected histogram collector to have at least one sample")
	}
}

func TestHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("first registration: %v", err)
	}
	second, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("second registration: %v", err)
	}
	if first.Requests != second.Requests {
		t.Fatalf("expected the existing requests collector to be reused")
	}
}

func TestHTTPMetricsHandlerNoopWhenNil(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use((*HTTPMetrics)(nil).Handler())
	router.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}
