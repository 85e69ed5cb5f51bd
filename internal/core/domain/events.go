package domain

import "time"

// AuditEventType enumerates security audit events emitted by the subsystem.
type AuditEventType string

const (
	AuditLoginSucceeded         AuditEventType = "auth.login.succeeded"
	AuditLoginFailed            AuditEventType = "auth.login.failed"
	AuditAccountLocked          AuditEventType = "auth.account.locked"
	AuditLoginBlocked           AuditEventType = "auth.login.blocked"
	AuditLoginInactive          AuditEventType = "auth.login.inactive"
	AuditLogout                 AuditEventType = "auth.logout"
	AuditSessionExpired         AuditEventType = "auth.session.expired"
	AuditSessionIdle            AuditEventType = "auth.session.idle"
	AuditSessionOwnerInactive   AuditEventType = "auth.session.owner_inactive"
	AuditSessionBindingMismatch AuditEventType = "auth.session.binding_mismatch"
	AuditUserRegistered         AuditEventType = "auth.user.registered"
	AuditEmailVerified          AuditEventType = "auth.user.email_verified"
	AuditVerificationResent     AuditEventType = "auth.user.verification_resent"
	AuditPasswordResetRequested AuditEventType = "auth.password.reset_requested"
	AuditPasswordResetCompleted AuditEventType = "auth.password.reset_completed"
	AuditRequestThrottled       AuditEventType = "auth.request.throttled"
)

// AuditEvent is a structured security record. Identifier must already be
// masked by the emitter; no field may carry a password, token, or session secret.
type AuditEvent struct {
	ID         string
	Type       AuditEventType
	UserID     string
	Identifier string
	IPAddress  string
	UserAgent  string
	OccurredAt time.Time
	Details    map[string]any
}

// NotificationKind identifies an outbound credential email.
type NotificationKind string

const (
	NotificationEmailVerification NotificationKind = "email_verification"
	NotificationPasswordReset     NotificationKind = "password_reset"
)

// Notification carries the raw credential to the mail delivery collaborator.
type Notification struct {
	Kind      NotificationKind
	UserID    string
	Username  string
	Email     string
	Token     string
	Code      string
	ExpiresAt time.Time
}
