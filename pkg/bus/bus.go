// Package bus is an in-process request/reply dispatcher. Senders get a
// Future; consumers get a Message they must Reply to or Fail. Every message
// ends in exactly one outcome: a reply, a handler failure, no handler,
// executor rejection or timeout.
package bus

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/thumbgate/internal/logger"
	"github.com/marmos91/thumbgate/internal/telemetry"
)

// DefaultTimeout applies when neither the bus nor Send sets one.
const DefaultTimeout = 30 * time.Second

// ErrEndpointExists is returned when registering a second consumer for an
// endpoint.
var ErrEndpointExists = errors.New("bus: endpoint already has a consumer")

// Handler processes one message. It must call msg.Reply or msg.Fail; if it
// returns without doing so the message fails with CodeInternal.
type Handler func(ctx context.Context, msg *Message)

// Metrics observes dispatch outcomes. A nil Metrics disables collection.
type Metrics interface {
	ObserveDispatch(endpoint, outcome string, duration time.Duration)
	SetPending(n int)
}

// Config holds dispatch settings.
type Config struct {
	// Timeout bounds how long a sender waits for a reply. Default: 30s
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0" yaml:"timeout"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

type consumer struct {
	handler Handler
	exec    Executor
}

// Bus routes messages to consumers by endpoint name.
type Bus struct {
	timeout time.Duration
	metrics Metrics

	mu        sync.RWMutex
	consumers map[string]consumer
	pending   map[string]*Future
	closed    bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithDefaultTimeout sets the reply deadline for every Send.
func WithDefaultTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithMetrics attaches dispatch metrics.
func WithMetrics(m Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		timeout:   DefaultTimeout,
		consumers: make(map[string]consumer),
		pending:   make(map[string]*Future),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Consumer registers h for endpoint. Messages run on exec.
func (b *Bus) Consumer(endpoint string, h Handler, exec Executor) error {
	if h == nil || exec == nil {
		return fmt.Errorf("bus: consumer for %q needs a handler and an executor", endpoint)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.consumers[endpoint]; ok {
		return fmt.Errorf("%w: %s", ErrEndpointExists, endpoint)
	}
	b.consumers[endpoint] = consumer{handler: h, exec: exec}
	logger.Debug("consumer registered", logger.KeyEndpoint, endpoint)
	return nil
}

// Unregister removes the consumer for endpoint. In-flight messages finish.
func (b *Bus) Unregister(endpoint string) {
	b.mu.Lock()
	delete(b.consumers, endpoint)
	b.mu.Unlock()
}

// Endpoints lists the registered endpoint names.
func (b *Bus) Endpoints() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.consumers))
	for name := range b.consumers {
		names = append(names, name)
	}
	return names
}

// SendOption adjusts a single Send.
type SendOption func(*sendOptions)

type sendOptions struct {
	timeout time.Duration
}

// WithTimeout overrides the bus deadline for one message.
func WithTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) { o.timeout = d }
}

// Send delivers body to the consumer of endpoint and returns the pending
// reply. Send never blocks on the handler.
func (b *Bus) Send(ctx context.Context, endpoint string, body []byte, opts ...SendOption) *Future {
	o := sendOptions{timeout: b.timeout}
	for _, opt := range opts {
		opt(&o)
	}

	msg := &Message{ID: uuid.NewString(), Endpoint: endpoint, Body: body}
	f := newFuture()
	msg.future = f

	ctx, span := telemetry.StartDispatchSpan(ctx, telemetry.SpanDispatch, endpoint, msg.ID)
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).WithMessage(endpoint, msg.ID))
	start := time.Now()

	b.mu.Lock()
	c, ok := b.consumers[endpoint]
	closed := b.closed
	if !closed {
		b.pending[msg.ID] = f
		b.reportPendingLocked()
	}
	b.mu.Unlock()

	f.OnComplete(func(_ []byte, err error) {
		b.forget(msg.ID)
		if err != nil {
			code := Code(err)
			span.SetAttributes(telemetry.FailureCode(int(code)))
			telemetry.RecordError(ctx, err)
			logger.DebugCtx(ctx, "message failed",
				logger.KeyFailureCode, int(code), logger.DurationSince(start), logger.Err(err))
		} else {
			logger.DebugCtx(ctx, "message replied", logger.DurationSince(start))
		}
		span.End()
		if b.metrics != nil {
			b.metrics.ObserveDispatch(endpoint, outcome(err), time.Since(start))
		}
	})

	switch {
	case closed:
		f.fail(CodeUnavailable, "bus closed")
		return f
	case !ok:
		logger.WarnCtx(ctx, "no consumer for endpoint")
		f.fail(CodeNoHandlers, "no handlers for "+endpoint)
		return f
	}

	if o.timeout > 0 {
		f.expireAfter(o.timeout, func() {
			if f.fail(CodeTimeout, fmt.Sprintf("timed out after %s waiting for reply", o.timeout)) {
				logger.WarnCtx(ctx, "message timed out", "timeout", o.timeout.String())
			}
		})
	}

	hctx := context.WithoutCancel(ctx)
	if err := c.exec.Submit(func() { b.handle(hctx, c.handler, msg) }); err != nil {
		logger.WarnCtx(ctx, "executor rejected message", logger.Err(err))
		f.fail(CodeUnavailable, err.Error())
	}
	return f
}

// Request is Send followed by Await.
func (b *Bus) Request(ctx context.Context, endpoint string, body []byte, opts ...SendOption) ([]byte, error) {
	return b.Send(ctx, endpoint, body, opts...).Await(ctx)
}

func (b *Bus) handle(ctx context.Context, h Handler, msg *Message) {
	ctx, span := telemetry.StartDispatchSpan(ctx, telemetry.SpanHandle, msg.Endpoint, msg.ID)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCtx(ctx, "message handler panicked", "panic", r, "stack", string(debug.Stack()))
			msg.Fail(CodeInternal, "handler panicked")
			return
		}
		if !msg.Answered() {
			logger.ErrorCtx(ctx, "message handler returned without reply")
			msg.Fail(CodeInternal, "handler returned without reply")
		}
	}()

	h(ctx, msg)
}

// Pending returns the number of messages awaiting a reply.
func (b *Bus) Pending() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.pending)
}

func (b *Bus) forget(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.reportPendingLocked()
	b.mu.Unlock()
}

func (b *Bus) reportPendingLocked() {
	if b.metrics != nil {
		b.metrics.SetPending(len(b.pending))
	}
}

// Close rejects new messages and fails every pending one with
// CodeUnavailable. Handlers already running are not interrupted; their
// replies are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	pending := make([]*Future, 0, len(b.pending))
	for _, f := range b.pending {
		pending = append(pending, f)
	}
	b.mu.Unlock()

	for _, f := range pending {
		f.fail(CodeUnavailable, "bus closed")
	}
	logger.Debug("bus closed", "failed_pending", len(pending))
}
