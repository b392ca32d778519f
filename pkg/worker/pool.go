// Package worker runs tasks on a fixed number of slots. Each slot runs one
// task to completion before taking the next; excess tasks wait in a FIFO
// backlog.
package worker

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/eapache/queue"

	"github.com/marmos91/thumbgate/internal/logger"
)

var (
	// ErrPoolClosed is returned by Submit after Close.
	ErrPoolClosed = errors.New("worker: pool closed")

	// ErrPoolSaturated is returned when the backlog limit is reached.
	ErrPoolSaturated = errors.New("worker: backlog full")
)

// Config sizes the pool.
type Config struct {
	// Size is the number of slots. Default: 2 * NumCPU
	Size int `mapstructure:"size" validate:"gte=0" yaml:"size"`

	// MaxPending bounds the backlog. 0 means unbounded.
	MaxPending int `mapstructure:"max_pending" validate:"gte=0" yaml:"max_pending"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Size <= 0 {
		c.Size = 2 * runtime.NumCPU()
	}
}

// Metrics observes pool occupancy. A nil Metrics disables collection.
type Metrics interface {
	SetSlots(n int)
	SetActive(n int)
	SetBacklog(n int)
	IncPanics()
}

// Pool is a bounded worker pool.
type Pool struct {
	size       int
	maxPending int
	metrics    Metrics

	mu      sync.Mutex
	cond    *sync.Cond
	backlog *queue.Queue
	active  int
	closed  bool

	wg sync.WaitGroup
}

// Option configures a Pool.
type Option func(*Pool)

// WithMaxPending bounds the backlog.
func WithMaxPending(n int) Option {
	return func(p *Pool) { p.maxPending = n }
}

// WithMetrics attaches occupancy metrics.
func WithMetrics(m Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

// NewPool starts size slots. size < 1 is raised to 1.
func NewPool(size int, opts ...Option) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		size:    size,
		backlog: queue.New(),
	}
	p.cond = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}

	if p.metrics != nil {
		p.metrics.SetSlots(size)
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.slot(i)
	}

	logger.Debug("worker pool started", "slots", size, "max_pending", p.maxPending)
	return p
}

// New builds a pool from cfg.
func New(cfg Config, m Metrics) *Pool {
	cfg.ApplyDefaults()
	return NewPool(cfg.Size, WithMaxPending(cfg.MaxPending), WithMetrics(m))
}

// Submit queues task. It never blocks on a busy pool.
func (p *Pool) Submit(task func()) error {
	if task == nil {
		return fmt.Errorf("worker: nil task")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if p.maxPending > 0 && p.backlog.Length() >= p.maxPending {
		return ErrPoolSaturated
	}

	p.backlog.Add(task)
	p.reportLocked()
	p.cond.Signal()
	return nil
}

// Close stops intake, lets the slots drain the backlog and waits for them.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	pending := p.backlog.Length()
	p.cond.Broadcast()
	p.mu.Unlock()

	logger.Debug("worker pool draining", "pending", pending)
	p.wg.Wait()
}

// Size returns the number of slots.
func (p *Pool) Size() int { return p.size }

// Active returns the number of slots currently running a task.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Pending returns the backlog length.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backlog.Length()
}

func (p *Pool) slot(id int) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for p.backlog.Length() == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.backlog.Length() == 0 {
			p.mu.Unlock()
			return
		}
		task := p.backlog.Remove().(func())
		p.active++
		p.reportLocked()
		p.mu.Unlock()

		p.run(id, task)

		p.mu.Lock()
		p.active--
		p.reportLocked()
		p.mu.Unlock()
	}
}

// run executes one task; a panic is contained to the task.
func (p *Pool) run(id int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			if p.metrics != nil {
				p.metrics.IncPanics()
			}
			logger.Error("worker task panicked",
				logger.KeyWorker, id, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task()
}

func (p *Pool) reportLocked() {
	if p.metrics == nil {
		return
	}
	p.metrics.SetActive(p.active)
	p.metrics.SetBacklog(p.backlog.Length())
}
