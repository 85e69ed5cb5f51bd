package port

import (
	"context"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
)

// AuditSink receives security audit events. Implementations used on request
// paths must not block.
type AuditSink interface {
	Publish(ctx context.Context, event domain.AuditEvent) error
}

// Notifier hands credential emails to the outbound mail collaborator.
type Notifier interface {
	Notify(ctx context.Context, notification domain.Notification) error
}
