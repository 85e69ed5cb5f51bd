package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/config"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/logger"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/repository"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 50
	maxEmailLength    = 254
)

// RateClassVerificationResend is the limiter class for verification re-sends.
const RateClassVerificationResend = "verification_resend"

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// RegisterInput carries the fields of a sign-up request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Client   *domain.ClientInfo
}

// RegistrationResult is the pending account and the verification token sent for it.
type RegistrationResult struct {
	User         domain.User
	Verification *IssuedToken
}

// VerifyEmailInput accepts either the link token or an email plus the numeric code.
type VerifyEmailInput struct {
	Token  string
	Email  string
	Code   string
	Client *domain.ClientInfo
}

// RegistrationService handles account creation and email verification.
type RegistrationService struct {
	users        port.UserRepository
	credentials  port.CredentialStore
	tokens       *TokenService
	hasher       port.PasswordHasher
	policy       port.PasswordPolicyValidator
	notifier     port.Notifier
	resend       *RateLimiter
	audit        auditEmitter
	logger       *zap.Logger
	storeTimeout time.Duration
	now          func() time.Time
}

// NewRegistrationService constructs a RegistrationService. resend throttles
// verification re-sends and may be nil.
func NewRegistrationService(
	cfg *config.AppConfig,
	users port.UserRepository,
	credentials port.CredentialStore,
	tokens *TokenService,
	hasher port.PasswordHasher,
	policy port.PasswordPolicyValidator,
	notifier port.Notifier,
	resend *RateLimiter,
	audit port.AuditSink,
	log *zap.Logger,
) *RegistrationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RegistrationService{
		users:        users,
		credentials:  credentials,
		tokens:       tokens,
		hasher:       hasher,
		policy:       policy,
		notifier:     notifier,
		resend:       resend,
		audit:        auditEmitter{sink: audit, logger: log},
		logger:       log,
		storeTimeout: cfg.Store.Timeout,
		now:          time.Now,
	}
}

// WithClock overrides the time source.
func (s *RegistrationService) WithClock(now func() time.Time) *RegistrationService {
	if now != nil {
		s.now = now
	}
	return s
}

// Register creates an inactive account and issues its verification token.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput) (*RegistrationResult, error) {
	username := strings.TrimSpace(in.Username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	email := domain.NormalizeEmail(in.Email)
	if email == "" || len(email) > maxEmailLength || !domain.LooksLikeEmail(email) {
		return nil, &InputError{Field: "email", Reason: "must be a valid email address"}
	}

	if err := s.policy.Validate(in.Password, domain.PasswordContext{Username: username, Email: email}); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.UserRoleUser,
		IsActive:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	storeCtx, cancel := boundedContext(ctx, s.storeTimeout)
	err = s.users.Create(storeCtx, user)
	cancel()
	if err != nil {
		var conflict *repository.ConflictError
		if errors.As(err, &conflict) {
			switch conflict.Field {
			case "username":
				return nil, ErrUsernameTaken
			case "email":
				return nil, ErrEmailTaken
			}
		}
		return nil, storageFailure("create user", err)
	}

	issued, err := s.tokens.Issue(ctx, user.ID, domain.TokenPurposeVerification)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, user, issued)

	ip, ua := clientFields(in.Client)
	s.audit.emit(ctx, domain.AuditEvent{
		Type:       domain.AuditUserRegistered,
		UserID:     user.ID,
		Identifier: logger.MaskEmail(email),
		IPAddress:  ip,
		UserAgent:  ua,
		OccurredAt: now,
	})

	user.PasswordHash = ""
	return &RegistrationResult{User: user, Verification: issued}, nil
}

// VerifyEmail consumes a verification token or code and activates the account.
// Unknown and consumed tokens both yield ErrTokenNotFound.
func (s *RegistrationService) VerifyEmail(ctx context.Context, in VerifyEmailInput) (*domain.User, error) {
	token := strings.TrimSpace(in.Token)
	code := strings.TrimSpace(in.Code)

	var (
		slot *domain.SecurityToken
		err  error
	)

	switch {
	case token != "":
		slot, err = s.tokens.Verify(ctx, token, domain.TokenPurposeVerification)
	case code != "" && strings.TrimSpace(in.Email) != "":
		var user *domain.User
		user, err = s.lookupEmail(ctx, in.Email)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrTokenNotFound
		}
		slot, err = s.tokens.VerifyCode(ctx, user.ID, code, domain.TokenPurposeVerification)
	default:
		return nil, &InputError{Field: "token", Reason: "token or email with code is required"}
	}
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()

	if err := s.credentials.CompleteVerification(storeCtx, slot.UserID, slot.TokenHash, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, storageFailure("complete verification", err)
	}

	user, err := s.users.GetByID(storeCtx, slot.UserID)
	if err != nil {
		return nil, storageFailure("get verified user", err)
	}

	ip, ua := clientFields(in.Client)
	s.audit.emit(ctx, domain.AuditEvent{
		Type:       domain.AuditEmailVerified,
		UserID:     user.ID,
		IPAddress:  ip,
		UserAgent:  ua,
		OccurredAt: s.now().UTC(),
	})

	sanitized := *user
	sanitized.PasswordHash = ""
	return &sanitized, nil
}

// ResendVerification re-issues the verification token for a pending account.
// The result never depends on whether the account exists, is already active,
// or the request was throttled.
func (s *RegistrationService) ResendVerification(ctx context.Context, email string, client *domain.ClientInfo) error {
	email = domain.NormalizeEmail(email)
	ip, ua := clientFields(client)

	key := ip
	if key == "" {
		key = email
	}
	if !s.resend.Allow(ctx, key) {
		s.audit.emit(ctx, domain.AuditEvent{
			Type:       domain.AuditRequestThrottled,
			Identifier: logger.MaskEmail(email),
			IPAddress:  ip,
			UserAgent:  ua,
			OccurredAt: s.now().UTC(),
			Details:    map[string]any{"class": RateClassVerificationResend},
		})
		return nil
	}

	if email == "" {
		return nil
	}

	user, err := s.lookupEmail(ctx, email)
	if err != nil {
		s.logger.Error("verification resend lookup failed", zap.String("email", logger.MaskEmail(email)), zap.Error(err))
		return nil
	}
	if user == nil || user.IsActive {
		return nil
	}

	issued, err := s.tokens.Issue(ctx, user.ID, domain.TokenPurposeVerification)
	if err != nil {
		s.logger.Error("verification resend failed", zap.String("user_id", user.ID), zap.Error(err))
		return nil
	}

	s.notify(ctx, *user, issued)
	s.audit.emit(ctx, domain.AuditEvent{
		Type:       domain.AuditVerificationResent,
		UserID:     user.ID,
		IPAddress:  ip,
		UserAgent:  ua,
		OccurredAt: s.now().UTC(),
	})
	return nil
}

func (s *RegistrationService) lookupEmail(ctx context.Context, email string) (*domain.User, error) {
	storeCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.users.GetByEmail(storeCtx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, storageFailure("get user by email", err)
	}
	return user, nil
}

// notify hands the token to the mailer. Delivery failures are logged; the
// token stays valid and the user can ask for a resend.
func (s *RegistrationService) notify(ctx context.Context, user domain.User, issued *IssuedToken) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Notify(ctx, domain.Notification{
		Kind:      domain.NotificationEmailVerification,
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Token:     issued.Token,
		Code:      issued.Code,
		ExpiresAt: issued.ExpiresAt,
	})
	if err != nil {
		s.logger.Warn("verification email not dispatched",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}
}

func validateUsername(username string) error {
	switch {
	case username == "":
		return &InputError{Field: "username", Reason: "is required"}
	case len(username) < minUsernameLength || len(username) > maxUsernameLength:
		return &InputError{Field: "username", Reason: fmt.Sprintf("must be between %d and %d characters", minUsernameLength, maxUsernameLength)}
	case !usernamePattern.MatchString(username):
		return &InputError{Field: "username", Reason: "may only contain letters, digits, '.', '_' and '-'"}
	}
	return nil
}
