package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/security"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/usecase"
)

const (
	msgAuthRequired       = "authentication required"
	msgInvalidLink        = "invalid or expired link"
	msgServiceUnavailable = "service temporarily unavailable"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// commonErrorCases apply to every endpoint after its own cases.
var commonErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
	{Err: usecase.ErrAccountLocked, Status: http.StatusLocked, Message: "account temporarily locked"},
	{Err: usecase.ErrAccountInactive, Status: http.StatusForbidden, Message: "account is not active"},
	{Err: usecase.ErrTokenNotFound, Status: http.StatusBadRequest, Message: msgInvalidLink},
	{Err: usecase.ErrTokenExpired, Status: http.StatusBadRequest, Message: msgInvalidLink},
	{Err: usecase.ErrSessionNotFound, Status: http.StatusUnauthorized, Message: msgAuthRequired},
	{Err: usecase.ErrSessionExpired, Status: http.StatusUnauthorized, Message: msgAuthRequired},
	{Err: usecase.ErrSessionIdle, Status: http.StatusUnauthorized, Message: msgAuthRequired},
	{Err: usecase.ErrSessionOwnerInactive, Status: http.StatusUnauthorized, Message: msgAuthRequired},
	{Err: usecase.ErrPasswordMismatch, Status: http.StatusBadRequest, Message: "passwords do not match"},
	{Err: usecase.ErrUsernameTaken, Status: http.StatusConflict, Message: "username already taken"},
	{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: "email already registered"},
	{Err: usecase.ErrStorageUnavailable, Status: http.StatusServiceUnavailable, Message: msgServiceUnavailable},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	if respondWithTypedError(c, err) {
		return
	}

	for _, list := range [][]ErrorCase{cases, commonErrorCases} {
		for _, cs := range list {
			if cs.Err == nil {
				continue
			}
			if errors.Is(err, cs.Err) {
				c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
				return
			}
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

// respondWithTypedError handles errors that carry response details of their own.
func respondWithTypedError(c *gin.Context, err error) bool {
	var locked *usecase.AccountLockedError
	if errors.As(err, &locked) {
		seconds := int(locked.RetryAfter(time.Now()).Round(time.Second) / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.JSON(http.StatusLocked, NewErrorResponse(c, "account temporarily locked"))
		return true
	}

	var policy *security.PasswordValidationError
	if errors.As(err, &policy) {
		resp := NewErrorResponse(c, policy.Message)
		resp.Code = policy.Code
		c.JSON(http.StatusBadRequest, resp)
		return true
	}

	var input *usecase.InputError
	if errors.As(err, &input) {
		resp := NewErrorResponse(c, "invalid input")
		resp.Fields = map[string]string{input.Field: input.Reason}
		c.JSON(http.StatusBadRequest, resp)
		return true
	}

	return false
}

// respondBindError reports a request body that failed to decode or validate.
func respondBindError(c *gin.Context, err error) {
	resp := NewErrorResponse(c, "invalid request payload")

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Fields = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			resp.Fields[fe.Field()] = describeFieldError(fe)
		}
	}

	c.JSON(http.StatusBadRequest, resp)
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "numeric":
		return "must contain digits only"
	default:
		return "is invalid"
	}
}
