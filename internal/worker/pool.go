// Package worker runs fire-and-forget background tasks on a bounded pool.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

var (
	// ErrPoolClosed is returned by Submit after Shutdown has begun.
	ErrPoolClosed = errors.New("worker pool closed")
	// ErrPoolSaturated is returned by Submit when the queue is full.
	ErrPoolSaturated = errors.New("worker pool at capacity")
)

// Task is a unit of background work. ctx carries the per-task deadline, measured
// from Submit, and is independent of any inbound request.
type Task func(ctx context.Context) error

// Config configures a Pool.
type Config struct {
	Workers     int
	Queue       int
	TaskTimeout time.Duration
	Logger      *slog.Logger
}

type job struct {
	name     string
	fn       Task
	enqueued time.Time
}

// Pool is a fixed set of workers draining a bounded queue. Submit never blocks.
type Pool struct {
	base    context.Context
	cancel  context.CancelFunc
	jobs    chan job
	workers conc.WaitGroup
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool

	inFlight atomic.Int64
}

// New starts a pool.
func New(cfg Config) (*Pool, error) {
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("workers must be > 0, got %d", cfg.Workers)
	}
	if cfg.Queue < 0 {
		cfg.Queue = 0
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	base, cancel := context.WithCancel(context.Background())
	p := &Pool{
		base:    base,
		cancel:  cancel,
		jobs:    make(chan job, cfg.Queue),
		timeout: cfg.TaskTimeout,
		logger:  cfg.Logger,
	}
	for i := 0; i < cfg.Workers; i++ {
		p.workers.Go(p.work)
	}
	return p, nil
}

// Submit enqueues fn. It returns ErrPoolSaturated when no worker is free and the
// queue is full, and ErrPoolClosed once Shutdown has been called.
func (p *Pool) Submit(name string, fn Task) error {
	if fn == nil {
		return errors.New("task must not be nil")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- job{name: name, fn: fn, enqueued: time.Now()}:
		return nil
	default:
		return ErrPoolSaturated
	}
}

// InFlight returns the number of tasks currently executing.
func (p *Pool) InFlight() int64 { return p.inFlight.Load() }

// Queued returns the number of tasks waiting for a worker.
func (p *Pool) Queued() int { return len(p.jobs) }

// Shutdown stops accepting tasks and waits for queued and running tasks to finish.
// When ctx expires first, running tasks are cancelled and ctx's error is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return fmt.Errorf("drain worker pool: %w", ctx.Err())
	}
}

func (p *Pool) work() {
	for j := range p.jobs {
		p.run(j)
	}
}

func (p *Pool) run(j job) {
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	// The deadline runs from submission; time spent queued counts against it.
	ctx, cancel := context.WithDeadline(p.base, j.enqueued.Add(p.timeout))
	defer cancel()

	start := time.Now()
	var (
		pc  panics.Catcher
		err error
	)
	pc.Try(func() { err = j.fn(ctx) })

	attrs := []any{
		slog.String("task", j.name),
		slog.Duration("queued", start.Sub(j.enqueued)),
		slog.Duration("duration", time.Since(start)),
	}
	if r := pc.Recovered(); r != nil {
		p.logger.Error("background task panicked",
			append(attrs, slog.Any("panic", r.Value), slog.String("stack", string(r.Stack)))...)
		return
	}
	if err != nil {
		p.logger.Warn("background task failed", append(attrs, slog.Any("error", err))...)
		return
	}
	p.logger.Debug("background task finished", attrs...)
}
