package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/transport/http/middleware"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	TraceID string            `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary is the public view of an account. It never carries credentials
// or lockout counters.
type UserSummary struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	Role            string     `json:"role"`
	IsActive        bool       `json:"is_active"`
	SelectedAIModel *string    `json:"selected_ai_model,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	LastLogin       *time.Time `json:"last_login,omitempty"`
}

func newUserSummary(user domain.User) UserSummary {
	return UserSummary{
		ID:              user.ID,
		Username:        user.Username,
		Email:           user.Email,
		Role:            string(user.Role),
		IsActive:        user.IsActive,
		SelectedAIModel: user.SelectedAIModel,
		CreatedAt:       user.CreatedAt,
		LastLogin:       user.LastLogin,
	}
}

// LoginRequest accepts a username or email plus password.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required,max=254"`
	Password   string `json:"password" binding:"required,max=1024"`
}

// LoginResponse is returned with the session cookie.
type LoginResponse struct {
	User      UserSummary `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// RegistrationRequest defines the account registration payload.
type RegistrationRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,max=1024"`
}

// RegistrationResponse contains the pending account and the verification deadline.
type RegistrationResponse struct {
	User                  UserSummary `json:"user"`
	RequiresVerification  bool        `json:"requires_verification"`
	VerificationExpiresAt time.Time   `json:"verification_expires_at"`
	Message               string      `json:"message"`
}

// VerifyEmailRequest accepts the link token, or the email plus the 6-digit code.
type VerifyEmailRequest struct {
	Token string `json:"token" binding:"omitempty,max=256"`
	Email string `json:"email" binding:"omitempty,email,max=254"`
	Code  string `json:"code" binding:"omitempty,len=6,numeric"`
}

// VerifyEmailResponse is returned after a successful verification.
type VerifyEmailResponse struct {
	Message string      `json:"message"`
	User    UserSummary `json:"user"`
}

// EmailRequest carries a single email address (forgot-password, resend-verification).
type EmailRequest struct {
	Email string `json:"email" binding:"required,max=254"`
}

// ResetPasswordRequest completes a password reset.
type ResetPasswordRequest struct {
	Token           string `json:"token" binding:"required,max=256"`
	Password        string `json:"password" binding:"required,max=1024"`
	ConfirmPassword string `json:"confirm_password" binding:"required,max=1024"`
}

// SessionSummary describes one session of the caller. Session ids are never exposed.
type SessionSummary struct {
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
	IPAddress    *string   `json:"ip_address,omitempty"`
	UserAgent    *string   `json:"user_agent,omitempty"`
	Current      bool      `json:"current"`
}

// SessionListResponse wraps the caller's sessions.
type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports the state of each dependency.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
