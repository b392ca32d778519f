// Package requestctx scopes one unit of remote work to one remote session:
// join, run exactly one handler, always close.
package requestctx

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/marmos91/thumbgate/internal/logger"
	"github.com/marmos91/thumbgate/internal/telemetry"
	"github.com/marmos91/thumbgate/pkg/remote"
)

// DefaultCloseTimeout bounds Close when no timeout is configured.
const DefaultCloseTimeout = 5 * time.Second

// DefaultCallTimeout bounds Join plus the handler in WithSession.
const DefaultCallTimeout = 30 * time.Second

// JoinError reports that the remote session could not be joined. The
// handler never ran.
type JoinError struct {
	Err error
}

func (e *JoinError) Error() string { return "join session: " + e.Err.Error() }
func (e *JoinError) Unwrap() error { return e.Err }

// PanicError is returned when the handler panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("handler panicked: %v", e.Value) }

// Metrics observes session lifecycle. A nil Metrics disables collection.
type Metrics interface {
	ObserveJoin(result string, duration time.Duration)
	ObserveClose(result string, duration time.Duration)
}

// Lifecycle results
const (
	ResultOK     = "ok"
	ResultDenied = "denied"
	ResultError  = "error"
)

// Option configures a Context.
type Option func(*Context)

// WithCloseTimeout bounds how long Close may take.
func WithCloseTimeout(d time.Duration) Option {
	return func(c *Context) {
		if d > 0 {
			c.closeTimeout = d
		}
	}
}

// WithCallTimeout bounds joining and running the handler in WithSession.
// The handler context carries the deadline even when the caller's does not.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Context) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithMetrics attaches lifecycle metrics.
func WithMetrics(m Metrics) Option {
	return func(c *Context) { c.metrics = m }
}

// Context owns at most one joined remote session.
type Context struct {
	dialer       remote.Dialer
	key          string
	session      remote.Session
	closeTimeout time.Duration
	callTimeout  time.Duration
	metrics      Metrics
}

// New prepares a Context for key. Nothing is dialed until Join.
func New(d remote.Dialer, key string, opts ...Option) *Context {
	c := &Context{dialer: d, key: key, closeTimeout: DefaultCloseTimeout, callTimeout: DefaultCallTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Join attaches to the remote session. Errors are *JoinError.
func (c *Context) Join(ctx context.Context) error {
	if c.session != nil {
		return nil
	}

	ctx, span := telemetry.StartRemoteSpan(ctx, telemetry.SpanJoinSession)
	defer span.End()

	start := time.Now()
	s, err := c.dialer.JoinSession(ctx, c.key)
	if err != nil {
		result := ResultError
		if errors.Is(err, remote.ErrPermissionDenied) || errors.Is(err, remote.ErrSessionNotFound) {
			result = ResultDenied
		}
		c.observeJoin(result, start)
		telemetry.RecordError(ctx, err)
		logger.WarnCtx(ctx, "remote session join failed",
			logger.SessionKey(c.key), logger.DurationSince(start), logger.Err(err))
		return &JoinError{Err: err}
	}

	c.observeJoin(ResultOK, start)
	logger.DebugCtx(ctx, "remote session joined", logger.SessionKey(c.key), logger.DurationSince(start))
	c.session = s
	return nil
}

// Session returns the joined session, or nil before Join.
func (c *Context) Session() remote.Session {
	return c.session
}

// Close releases the session. It runs on a context detached from the
// caller's cancellation so a timed-out request still releases its session.
// Failures are logged and never returned. Close is idempotent.
func (c *Context) Close(ctx context.Context) {
	if c.session == nil {
		return
	}
	s := c.session
	c.session = nil

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.closeTimeout)
	defer cancel()

	ctx, span := telemetry.StartRemoteSpan(ctx, telemetry.SpanCloseSession)
	defer span.End()

	start := time.Now()
	if err := s.Close(ctx); err != nil {
		c.observeClose(ResultError, start)
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "remote session close failed",
			logger.SessionKey(c.key), logger.DurationSince(start), logger.Err(err))
		return
	}
	c.observeClose(ResultOK, start)
	logger.DebugCtx(ctx, "remote session closed", logger.SessionKey(c.key), logger.DurationSince(start))
}

func (c *Context) observeJoin(result string, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveJoin(result, time.Since(start))
	}
}

func (c *Context) observeClose(result string, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveClose(result, time.Since(start))
	}
}

// Func is a unit of remote work.
type Func[T any] func(ctx context.Context, s remote.Session) (T, error)

// WithSession joins the session for key, runs fn once against it and
// closes the session on every exit path, including a panic in fn, which
// is returned as *PanicError. Join and fn share one call timeout; Close
// has its own.
func WithSession[T any](ctx context.Context, d remote.Dialer, key string, fn Func[T], opts ...Option) (result T, err error) {
	rc := New(d, key, opts...)

	callCtx, cancel := context.WithTimeout(ctx, rc.callTimeout)
	defer cancel()

	if err := rc.Join(callCtx); err != nil {
		return result, err
	}
	defer rc.Close(ctx)

	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = &PanicError{Value: r, Stack: debug.Stack()}
			logger.ErrorCtx(ctx, "remote handler panicked", "panic", r)
		}
	}()

	return fn(callCtx, rc.Session())
}
