package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const maxBackoff = 30 * time.Second

var (
	// ErrNotStarted is returned by Submit before Start.
	ErrNotStarted = errors.New("queue not started")
	// ErrStopped is returned by Submit once Stop began.
	ErrStopped = errors.New("queue stopped")
	// ErrFull is returned when the buffer has no room.
	ErrFull = errors.New("queue full")
)

// Job is one unit of background work.
type Job[T any] struct {
	ID       string
	Payload  T
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler[T any] func(context.Context, Job[T]) error

// Config tunes a Queue.
type Config[T any] struct {
	Workers    int
	BufferSize int
	MaxRetries int
	// Backoff is the first retry delay; it doubles per attempt up to 30s.
	Backoff time.Duration
	// DrainTimeout bounds how long Stop keeps processing buffered jobs.
	DrainTimeout time.Duration
	Logger       *zap.Logger
	// OnGiveUp is called once a job exhausted its retries or was cut off by Stop.
	OnGiveUp func(Job[T], error)
}

// Queue is an in-memory worker pool. Buffered jobs are still processed on Stop
// until the drain timeout expires.
type Queue[T any] struct {
	name    string
	handler Handler[T]
	cfg     Config[T]

	jobs     chan Job[T]
	stopping chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool
}

// New builds a queue with the provided handler.
func New[T any](name string, handler Handler[T], cfg Config[T]) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue[T]{
		name:     name,
		handler:  handler,
		cfg:      cfg,
		jobs:     make(chan Job[T], cfg.BufferSize),
		stopping: make(chan struct{}),
	}
}

// Start launches the workers. Handlers do not observe ctx cancellation; Stop
// bounds them through the drain timeout.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.ctx, q.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.cfg.Logger.Info("queue started", zap.String("queue", q.name), zap.Int("workers", q.cfg.Workers))
}

// Stop refuses new jobs, drains the buffer within the drain timeout and waits
// for the workers to exit.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if !q.started || q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.stopping)
	q.mu.Unlock()

	deadline := time.AfterFunc(q.cfg.DrainTimeout, q.cancel)
	q.wg.Wait()
	deadline.Stop()
	q.cancel()
	q.cfg.Logger.Info("queue stopped", zap.String("queue", q.name), zap.Int("abandoned", len(q.jobs)))
}

// Len reports buffered jobs not yet picked up by a worker.
func (q *Queue[T]) Len() int {
	return len(q.jobs)
}

// Submit buffers a job without blocking.
func (q *Queue[T]) Submit(id string, payload T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	switch {
	case q.stopped:
		return fmt.Errorf("%s: %w", q.name, ErrStopped)
	case !q.started:
		return fmt.Errorf("%s: %w", q.name, ErrNotStarted)
	}

	select {
	case q.jobs <- Job[T]{ID: id, Payload: payload, Enqueued: time.Now().UTC()}:
		return nil
	default:
		return fmt.Errorf("%s: %w", q.name, ErrFull)
	}
}

func (q *Queue[T]) worker() {
	defer q.wg.Done()
	for {
		select {
		case job := <-q.jobs:
			q.run(job)
		case <-q.stopping:
			q.drain()
			return
		}
	}
}

func (q *Queue[T]) drain() {
	for {
		select {
		case job := <-q.jobs:
			q.run(job)
		default:
			return
		}
	}
}

// run retries inline; jobs behind a failing one wait on this worker.
func (q *Queue[T]) run(job Job[T]) {
	for {
		job.Attempt++
		err := q.handler(q.ctx, job)
		if err == nil {
			return
		}
		if job.Attempt > q.cfg.MaxRetries {
			q.giveUp(job, err)
			return
		}
		q.cfg.Logger.Warn("job failed, retrying",
			zap.String("queue", q.name),
			zap.String("job_id", job.ID),
			zap.Int("attempt", job.Attempt),
			zap.Error(err))
		if !q.sleep(q.backoff(job.Attempt)) {
			q.giveUp(job, errors.Join(err, q.ctx.Err()))
			return
		}
	}
}

func (q *Queue[T]) backoff(attempt int) time.Duration {
	delay := q.cfg.Backoff
	for i := 1; i < attempt && delay < maxBackoff; i++ {
		delay *= 2
	}
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

func (q *Queue[T]) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-q.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (q *Queue[T]) giveUp(job Job[T], err error) {
	q.cfg.Logger.Error("job given up",
		zap.String("queue", q.name),
		zap.String("job_id", job.ID),
		zap.Int("attempts", job.Attempt),
		zap.Error(err))
	if q.cfg.OnGiveUp != nil {
		q.cfg.OnGiveUp(job, err)
	}
}
