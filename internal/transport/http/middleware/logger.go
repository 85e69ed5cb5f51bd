package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appLogger "github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/logger"
)

// Logger emits access logs with correlation identifiers and a masked client IP.
// Query strings are omitted; reset and verification links carry secrets.
func Logger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("trace_id", GetTraceID(c)),
			zap.String("request_id", requestIDFromContext(c.Request.Context())),
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", appLogger.MaskIP(c.ClientIP())),
		}

		if userID, ok := GetAuthenticatedUserID(c); ok {
			fields = append(fields, zap.String("user_id", userID))
		}

		switch {
		case len(c.Errors) > 0:
			log.Error("request failed", append(fields, zap.String("errors", c.Errors.String()))...)
		case status >= http.StatusInternalServerError:
			log.Error("request completed", fields...)
		default:
			log.Info("request completed", fields...)
		}
	}
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(appLogger.RequestIDKey{}).(string); ok {
		return id
	}
	return ""
}
