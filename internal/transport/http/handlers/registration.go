package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/transport/http/middleware"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/usecase"
)

const msgVerificationSent = "if the account is awaiting verification, a new email has been sent"

// RegistrationHandler manages sign-up and email verification.
type RegistrationHandler struct {
	registration *usecase.RegistrationService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registration *usecase.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registration: registration}
}

// RegisterRoutes binds the registration endpoints. resend-verification takes no
// HTTP throttle; the service limits it without changing the response.
func (h *RegistrationHandler) RegisterRoutes(r *gin.RouterGroup, registerMiddlewares, verifyMiddlewares []gin.HandlerFunc) {
	r.POST("/register", append(append([]gin.HandlerFunc{}, registerMiddlewares...), h.Register)...)
	r.POST("/verify-email", append(append([]gin.HandlerFunc{}, verifyMiddlewares...), h.VerifyEmail)...)
	r.POST("/resend-verification", h.ResendVerification)
}

// Register creates a pending account and sends the verification email.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Client:   middleware.ClientInfo(c),
	})
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to register user")
		return
	}

	c.JSON(http.StatusCreated, RegistrationResponse{
		User:                  newUserSummary(result.User),
		RequiresVerification:  true,
		VerificationExpiresAt: result.Verification.ExpiresAt,
		Message:               "check your email to verify the account",
	})
}

// VerifyEmail activates the account owning the token or code.
func (h *RegistrationHandler) VerifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.registration.VerifyEmail(c.Request.Context(), usecase.VerifyEmailInput{
		Token:  req.Token,
		Email:  req.Email,
		Code:   req.Code,
		Client: middleware.ClientInfo(c),
	})
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to verify email")
		return
	}

	c.JSON(http.StatusOK, VerifyEmailResponse{
		Message: "email verified",
		User:    newUserSummary(*user),
	})
}

// ResendVerification always answers 202 with the same body.
func (h *RegistrationHandler) ResendVerification(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.registration.ResendVerification(c.Request.Context(), req.Email, middleware.ClientInfo(c)); err != nil {
		_ = c.Error(err)
	}

	c.JSON(http.StatusAccepted, MessageResponse{Message: msgVerificationSent})
}
