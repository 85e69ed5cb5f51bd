package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/transport/http/middleware"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/usecase"
)

const msgResetRequested = "if an account exists for that email, a reset link has been sent"

// PasswordHandler exposes the password reset flow.
type PasswordHandler struct {
	reset *usecase.PasswordResetService
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(reset *usecase.PasswordResetService) *PasswordHandler {
	return &PasswordHandler{reset: reset}
}

// RegisterRoutes binds forgot-password and reset-password. Only the reset
// confirmation takes HTTP throttling middleware.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup, resetMiddlewares ...gin.HandlerFunc) {
	r.POST("/forgot-password", h.ForgotPassword)
	r.POST("/reset-password", append(append([]gin.HandlerFunc{}, resetMiddlewares...), h.ResetPassword)...)
}

// ForgotPassword always answers 202 with the same body.
func (h *PasswordHandler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.reset.RequestReset(c.Request.Context(), req.Email, middleware.ClientInfo(c)); err != nil {
		_ = c.Error(err)
	}

	c.JSON(http.StatusAccepted, MessageResponse{Message: msgResetRequested})
}

// ResetPassword sets a new password with a reset token. Every session of the
// account is revoked.
func (h *PasswordHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	_, err := h.reset.ResetPassword(c.Request.Context(), usecase.ResetPasswordInput{
		Token:        req.Token,
		Password:     req.Password,
		Confirmation: req.ConfirmPassword,
		Client:       middleware.ClientInfo(c),
	})
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to reset password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password updated; sign in with the new password"})
}
