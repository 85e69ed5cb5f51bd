package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/usecase"
)

// SessionRiskHeader flags responses served on a session whose network origin changed.
const SessionRiskHeader = "X-Session-Risk"

// SessionValidator resolves a session secret to its session and owner.
type SessionValidator interface {
	Validate(ctx context.Context, secret string, client *domain.ClientInfo) (*usecase.SessionContext, error)
}

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// RequireSession validates the session cookie and stores the session context.
// Any session failure clears the cookie.
func RequireSession(validator SessionValidator, cookie SessionCookie, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		secret, ok := cookie.Read(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "authentication required"))
			return
		}

		sc, err := validator.Validate(c.Request.Context(), secret, ClientInfo(c))
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrStorageUnavailable):
				log.Error("session validation unavailable", zap.String("trace_id", GetTraceID(c)), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, newErrorResponse(c, "service temporarily unavailable"))
			default:
				cookie.Clear(c)
				c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "authentication required"))
			}
			return
		}

		if sc.BindingMismatch {
			c.Header(SessionRiskHeader, "elevated")
		}

		c.Set(UserIDKey, sc.User.ID)
		c.Set(SessionKey, sc)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.UserID = sc.User.ID
		}

		c.Next()
	}
}

// GetSessionContext returns the session resolved by RequireSession.
func GetSessionContext(c *gin.Context) (*usecase.SessionContext, bool) {
	raw, exists := c.Get(SessionKey)
	if !exists {
		return nil, false
	}
	sc, ok := raw.(*usecase.SessionContext)
	return sc, ok && sc != nil
}

// GetAuthenticatedUserID retrieves the user ID from context (helper for handlers)
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}

	if id, ok := userID.(string); ok {
		return id, true
	}

	return "", false
}
