package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/logger"
)

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 64
)

// RequestID tags every request with a correlation id, reusing a well-formed
// inbound X-Request-ID and replacing anything else.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if !validRequestID(reqID) {
			reqID = uuid.NewString()
		}

		c.Header(requestIDHeader, reqID)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey{}, reqID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// validRequestID accepts short ids made of letters, digits, '-', '_' and '.'
// so client input cannot inject control characters into access logs.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
