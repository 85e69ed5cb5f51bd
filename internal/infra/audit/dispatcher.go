// Package audit decouples security audit emission from request handling.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/telemetry"
)

var (
	// ErrQueueFull is returned when an event was dropped because the queue is saturated.
	ErrQueueFull = errors.New("audit: queue full")
	// ErrClosed is returned for events published after Close.
	ErrClosed = errors.New("audit: dispatcher closed")
)

const (
	defaultQueueSize      = 1024
	defaultPublishTimeout = 2 * time.Second
)

// Options configures the Dispatcher.
type Options struct {
	QueueSize      int
	PublishTimeout time.Duration
}

// Dispatcher implements port.AuditSink over a bounded queue drained by a
// single worker. Publish never blocks the caller.
type Dispatcher struct {
	sink    port.AuditSink
	timeout time.Duration
	metrics *telemetry.Metrics
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan domain.AuditEvent
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewDispatcher starts a dispatcher forwarding to sink.
func NewDispatcher(sink port.AuditSink, opts Options, metrics *telemetry.Metrics, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}

	d := &Dispatcher{
		sink:    sink,
		timeout: opts.PublishTimeout,
		metrics: metrics,
		logger:  logger,
		queue:   make(chan domain.AuditEvent, opts.QueueSize),
		stop:    make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// Publish enqueues the event. A full queue drops the event and counts it.
func (d *Dispatcher) Publish(_ context.Context, event domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.metrics.IncAuditDropped()
		return ErrClosed
	}

	select {
	case d.queue <- event:
		return nil
	default:
		d.metrics.IncAuditDropped()
		d.logger.Warn("audit queue full, dropping event", zap.String("event_type", string(event.Type)))
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for queued ones to be forwarded.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.stop)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.queue:
			d.forward(event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.forward(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) forward(event domain.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sink.Publish(ctx, event); err != nil {
		d.metrics.IncAuditDropped()
		d.logger.Warn("audit sink publish failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}

var _ port.AuditSink = (*Dispatcher)(nil)
