package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/transport/http/middleware"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/usecase"
)

// AuthHandler exposes login, logout and session endpoints.
type AuthHandler struct {
	auth     *usecase.AuthService
	sessions *usecase.SessionService
	cookie   middleware.SessionCookie
	logger   *zap.Logger
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, sessions *usecase.SessionService, cookie middleware.SessionCookie, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		cookie:   cookie,
		logger:   logger,
	}
}

// RegisterRoutes binds authentication routes. requireSession guards the
// caller-scoped endpoints; loginMiddlewares run ahead of the login handler.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, requireSession gin.HandlerFunc, loginMiddlewares ...gin.HandlerFunc) {
	login := append(append([]gin.HandlerFunc{}, loginMiddlewares...), h.Login)
	r.POST("/login", login...)
	r.POST("/logout", h.Logout)

	r.GET("/me", requireSession, h.Me)
	r.GET("/sessions", requireSession, h.ListSessions)
	r.DELETE("/sessions", requireSession, h.RevokeAllSessions)
}

// Login verifies the credentials and sets the session cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.auth.Authenticate(c.Request.Context(), req.Identifier, req.Password, middleware.ClientInfo(c))
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "authentication failed")
		return
	}

	h.cookie.Set(c, result.Session.Secret)
	c.JSON(http.StatusOK, LoginResponse{
		User:      newUserSummary(result.User),
		ExpiresAt: result.Session.Session.ExpiresAt,
	})
}

// Logout destroys the presented session, if any, and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	secret, ok := h.cookie.Read(c)
	h.cookie.Clear(c)
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.auth.Logout(c.Request.Context(), secret, middleware.ClientInfo(c)); err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to sign out")
		return
	}

	c.Status(http.StatusNoContent)
}

// Me returns the user owning the current session.
func (h *AuthHandler) Me(c *gin.Context) {
	sc, ok := middleware.GetSessionContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, msgAuthRequired))
		return
	}
	c.JSON(http.StatusOK, newUserSummary(sc.User))
}

// ListSessions returns every session of the caller.
func (h *AuthHandler) ListSessions(c *gin.Context) {
	sc, ok := middleware.GetSessionContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, msgAuthRequired))
		return
	}

	sessions, err := h.sessions.ListForUser(c.Request.Context(), sc.User.ID)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	resp := SessionListResponse{Sessions: make([]SessionSummary, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, SessionSummary{
			CreatedAt:    s.CreatedAt,
			LastActivity: s.LastActivity,
			ExpiresAt:    s.ExpiresAt,
			IPAddress:    s.IPAddress,
			UserAgent:    s.UserAgent,
			Current:      s.ID == sc.Session.ID,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// RevokeAllSessions signs the caller out everywhere, the current session included.
func (h *AuthHandler) RevokeAllSessions(c *gin.Context) {
	sc, ok := middleware.GetSessionContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, msgAuthRequired))
		return
	}

	removed, err := h.sessions.InvalidateAll(c.Request.Context(), sc.User.ID)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to revoke sessions")
		return
	}

	h.logger.Info("sessions revoked by owner",
		zap.String("user_id", sc.User.ID),
		zap.Int("count", removed),
		zap.String("trace_id", middleware.GetTraceID(c)),
	)

	h.cookie.Clear(c)
	c.Status(http.StatusNoContent)
}
