package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/thumbgate/internal/logger"
)

// Message is one request delivered to a consumer. Exactly one of Reply or
// Fail takes effect; later calls return false.
type Message struct {
	ID       string
	Endpoint string
	Body     []byte

	answered atomic.Bool
	future   *Future
}

// Reply completes the message successfully.
func (m *Message) Reply(body []byte) bool {
	return m.answer(body, nil)
}

// Fail completes the message with a failure code.
func (m *Message) Fail(code FailureCode, msg string) bool {
	return m.answer(nil, &ReplyError{Code: code, Message: msg})
}

// Answered reports whether Reply or Fail has been called.
func (m *Message) Answered() bool {
	return m.answered.Load()
}

func (m *Message) answer(body []byte, err error) bool {
	if m.answered.Swap(true) {
		logger.Warn("duplicate reply ignored",
			logger.KeyEndpoint, m.Endpoint, logger.KeyMessageID, m.ID)
		return false
	}
	if !m.future.complete(body, err) {
		// the sender already gave up (timeout or bus closed)
		logger.Debug("late reply discarded",
			logger.KeyEndpoint, m.Endpoint, logger.KeyMessageID, m.ID)
		return false
	}
	return true
}

// Future is the pending result of Send.
type Future struct {
	done chan struct{}

	mu        sync.Mutex
	completed bool
	body      []byte
	err       error
	callbacks []func([]byte, error)
	timer     *time.Timer
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Done is closed once the future completes.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the reply arrives or ctx ends. Cancelling ctx only
// stops the wait; the message keeps its own deadline.
func (f *Future) Await(ctx context.Context) ([]byte, error) {
	select {
	case <-f.done:
		return f.body, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnComplete registers fn to run once with the outcome. If the future has
// already completed, fn runs immediately on the calling goroutine.
func (f *Future) OnComplete(fn func(body []byte, err error)) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	fn(f.body, f.err)
}

func (f *Future) complete(body []byte, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.body, f.err = body, err
	callbacks := f.callbacks
	f.callbacks = nil
	if f.timer != nil {
		f.timer.Stop()
	}
	f.mu.Unlock()

	// callbacks run before waiters wake so bookkeeping is settled by then
	for _, fn := range callbacks {
		fn(body, err)
	}
	close(f.done)
	return true
}

func (f *Future) fail(code FailureCode, msg string) bool {
	return f.complete(nil, &ReplyError{Code: code, Message: msg})
}

// expireAfter arms the deadline unless the future already completed.
func (f *Future) expireAfter(d time.Duration, onExpire func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completed {
		return
	}
	f.timer = time.AfterFunc(d, onExpire)
}
