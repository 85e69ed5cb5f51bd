package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
)

const (
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the context key for trace ID
	TraceIDKey = "trace_id"
	// UserIDKey is the context key for authenticated user ID
	UserIDKey = "user_id"
	// SessionKey is the context key for the validated session context
	SessionKey = "session"

	requestContextKey = "request_context"
)

// RequestContext holds request-scoped information
type RequestContext struct {
	TraceID   string
	UserID    string
	IP        string
	UserAgent string
}

// EnrichContext adds trace ID and request context to each request
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		reqCtx := &RequestContext{
			TraceID:   traceID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		c.Set(requestContextKey, reqCtx)

		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// GetRequestContext retrieves the full request context
func GetRequestContext(c *gin.Context) *RequestContext {
	if ctx, exists := c.Get(requestContextKey); exists {
		if reqCtx, ok := ctx.(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{}
}

// ClientInfo returns the network origin and user agent of the caller.
func ClientInfo(c *gin.Context) *domain.ClientInfo {
	return &domain.ClientInfo{
		IPAddress: strings.TrimSpace(c.ClientIP()),
		UserAgent: strings.TrimSpace(c.Request.UserAgent()),
	}
}
