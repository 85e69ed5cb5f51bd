package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/config"
)

const (
	schemaVersion = "1.0"

	auditTopic        = "auth.audit"
	notificationTopic = "notifications.email"
)

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

// envelopeWriter serialises envelopes onto the producer input channel.
type envelopeWriter struct {
	producer *Producer
	appCfg   config.AppSettings
}

func (w envelopeWriter) publish(ctx context.Context, topic, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     w.appCfg.Name,
		"environment": w.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: w.producer.TopicName(topic),
		Value: sarama.ByteEncoder(bytes),
	}
	if userID != "" {
		message.Key = sarama.StringEncoder(userID)
	}

	select {
	case w.producer.input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AuditPublisher implements port.AuditSink using Kafka.
type AuditPublisher struct {
	writer envelopeWriter
	logger *zap.Logger
}

// NewAuditPublisher constructs a Kafka-backed audit sink.
func NewAuditPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *AuditPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditPublisher{writer: envelopeWriter{producer: producer, appCfg: appCfg}, logger: logger}
}

// Publish writes the audit event to the <prefix>.auth.audit topic.
func (p *AuditPublisher) Publish(ctx context.Context, event domain.AuditEvent) error {
	payload := struct {
		Identifier string         `json:"identifier,omitempty"`
		IPAddress  string         `json:"ip_address,omitempty"`
		UserAgent  string         `json:"user_agent,omitempty"`
		OccurredAt time.Time      `json:"occurred_at"`
		Details    map[string]any `json:"details,omitempty"`
	}{
		Identifier: event.Identifier,
		IPAddress:  event.IPAddress,
		UserAgent:  event.UserAgent,
		OccurredAt: event.OccurredAt.UTC(),
		Details:    event.Details,
	}

	return p.writer.publish(ctx, auditTopic, event.ID, string(event.Type), event.UserID, event.OccurredAt, payload)
}

// NotificationPublisher implements port.Notifier by handing credential emails
// to the mailer through the <prefix>.notifications.email topic.
type NotificationPublisher struct {
	writer envelopeWriter
	logger *zap.Logger
}

// NewNotificationPublisher constructs a Kafka-backed notifier.
func NewNotificationPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *NotificationPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationPublisher{writer: envelopeWriter{producer: producer, appCfg: appCfg}, logger: logger}
}

// Notify publishes the notification. The payload carries the raw credential
// for the mail template; it is never logged here.
func (p *NotificationPublisher) Notify(ctx context.Context, n domain.Notification) error {
	payload := struct {
		Kind      string    `json:"kind"`
		Username  string    `json:"username"`
		Email     string    `json:"email"`
		Token     string    `json:"token"`
		Code      string    `json:"code,omitempty"`
		ExpiresAt time.Time `json:"expires_at"`
	}{
		Kind:      string(n.Kind),
		Username:  n.Username,
		Email:     n.Email,
		Token:     n.Token,
		Code:      n.Code,
		ExpiresAt: n.ExpiresAt.UTC(),
	}

	if err := p.writer.publish(ctx, notificationTopic, "", "notification."+string(n.Kind), n.UserID, time.Now().UTC(), payload); err != nil {
		return err
	}

	p.logger.Debug("notification queued",
		zap.String("kind", string(n.Kind)),
		zap.String("user_id", n.UserID),
	)
	return nil
}

var (
	_ port.AuditSink = (*AuditPublisher)(nil)
	_ port.Notifier  = (*NotificationPublisher)(nil)
)
