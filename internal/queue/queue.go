// Package queue serializes ledger submissions made on behalf of one signing
// identity. A single owner goroutine drains a FIFO, running one job at a time
// from start to finish, network round trip included.
package queue

import (
	"context"
	"errors"
	"fmt"
	mathbits "math/bits"
	"sync"
	"time"

	"github.com/ef-ds/deque"

	"github.com/dtroode/househelp-server/internal/ledger"
	"github.com/dtroode/househelp-server/internal/logger"
)

var (
	ErrClosed = errors.New("transaction queue closed")
	ErrFull   = errors.New("transaction queue full")
)

// DefaultJobTimeout bounds a single job once it starts running. It covers the
// ledger validity window plus account loading.
const DefaultJobTimeout = ledger.DefaultTimeout + 15*time.Second

// Job loads, builds, signs and submits one transaction.
type Job func(ctx context.Context) (ledger.Receipt, error)

// Observer receives queue measurements. Implementations must not block.
type Observer interface {
	SetDepth(n int)
	ObserveWait(d time.Duration)
	ObserveRun(d time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) SetDepth(int)                    {}
func (noopObserver) ObserveWait(time.Duration)       {}
func (noopObserver) ObserveRun(time.Duration, error) {}

// Future is the pending result of an enqueued job.
type Future struct {
	done    chan struct{}
	receipt ledger.Receipt
	err     error
}

func newFuture() *Future { return &Future{done: make(chan struct{})} }

func (f *Future) resolve(receipt ledger.Receipt, err error) {
	f.receipt, f.err = receipt, err
	close(f.done)
}

// Done is closed once the job has finished or was rejected.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the job finishes or ctx is done. Giving up on the wait
// does not withdraw a job that is already running.
func (f *Future) Wait(ctx context.Context) (ledger.Receipt, error) {
	select {
	case <-f.done:
		return f.receipt, f.err
	case <-ctx.Done():
		return ledger.Receipt{}, ctx.Err()
	}
}

type task struct {
	ctx        context.Context
	job        Job
	future     *Future
	enqueuedAt time.Time
}

// Queue is a process-wide FIFO executor for ledger jobs.
type Queue struct {
	mu       sync.Mutex
	pending  deque.Deque
	capacity int
	closed   bool

	wake      chan struct{}
	stop      chan struct{}
	stopped   chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once

	jobTimeout time.Duration
	observer   Observer
	logger     *logger.Logger
}

// Option configures a Queue.
type Option func(*Queue) error

// WithCapacity limits the number of waiting jobs.
func WithCapacity(capacity int) Option {
	return func(q *Queue) error {
		if capacity < 1 {
			return fmt.Errorf("capacity for transaction queue must be positive")
		}
		q.capacity = capacity
		return nil
	}
}

// WithJobTimeout bounds how long a running job may take.
func WithJobTimeout(d time.Duration) Option {
	return func(q *Queue) error {
		if d <= 0 {
			return fmt.Errorf("job timeout must be positive")
		}
		q.jobTimeout = d
		return nil
	}
}

// WithObserver attaches queue measurements.
func WithObserver(o Observer) Option {
	return func(q *Queue) error {
		if o == nil {
			return fmt.Errorf("nil is not a valid queue observer")
		}
		q.observer = o
		return nil
	}
}

// New creates a stopped queue. Call Start to begin draining it.
func New(logger *logger.Logger, opts ...Option) (*Queue, error) {
	q := &Queue{
		capacity:   1<<(mathbits.UintSize-1) - 1,
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
		jobTimeout: DefaultJobTimeout,
		observer:   noopObserver{},
		logger:     logger,
	}
	for _, opt := range opts {
		if err := opt(q); err != nil {
			return nil, fmt.Errorf("failed to apply transaction queue option: %w", err)
		}
	}
	return q, nil
}

// Start launches the owner goroutine. It returns immediately; the queue runs
// until ctx is done or Stop is called.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		go q.run(ctx)
	})
}

// Stop lets the running job finish, fails the remaining ones with ErrClosed
// and waits for the owner goroutine to exit.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stop) })

	started := true
	q.startOnce.Do(func() {
		started = false
		close(q.stopped)
	})
	<-q.stopped
	if !started {
		q.drain()
	}
}

// Enqueue appends job to the queue. ctx belongs to the caller: if it is done
// before the job starts, the job is skipped.
func (q *Queue) Enqueue(ctx context.Context, job Job) *Future {
	f := newFuture()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		f.resolve(ledger.Receipt{}, ErrClosed)
		return f
	}
	if q.pending.Len() >= q.capacity {
		q.mu.Unlock()
		f.resolve(ledger.Receipt{}, ErrFull)
		return f
	}
	q.pending.PushBack(&task{ctx: ctx, job: job, future: f, enqueuedAt: time.Now()})
	depth := q.pending.Len()
	q.mu.Unlock()

	q.observer.SetDepth(depth)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return f
}

// Do enqueues job and waits for its result.
func (q *Queue) Do(ctx context.Context, job Job) (ledger.Receipt, error) {
	return q.Enqueue(ctx, job).Wait(ctx)
}

// Len returns the number of jobs waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.stopped)
	defer q.drain()

	for {
		select {
		case <-q.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		t, ok := q.pop()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-q.stop:
				return
			case <-ctx.Done():
				return
			}
		}
		q.execute(t)
	}
}

func (q *Queue) pop() (*task, bool) {
	q.mu.Lock()
	v, ok := q.pending.PopFront()
	depth := q.pending.Len()
	q.mu.Unlock()
	if !ok {
		return nil, false
	}
	q.observer.SetDepth(depth)
	return v.(*task), true
}

func (q *Queue) execute(t *task) {
	q.observer.ObserveWait(time.Since(t.enqueuedAt))

	if err := t.ctx.Err(); err != nil {
		q.logger.Debug("Transaction queue: skipping job abandoned by caller", "error", err)
		t.future.resolve(ledger.Receipt{}, err)
		return
	}

	// The job keeps running if the caller goes away mid-submission, so the
	// next job never loads a sequence number this one is about to consume.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(t.ctx), q.jobTimeout)
	defer cancel()

	start := time.Now()
	receipt, err := q.safeRun(ctx, t.job)
	elapsed := time.Since(start)
	q.observer.ObserveRun(elapsed, err)

	if err != nil {
		q.logger.Warn("Transaction queue: job failed",
			"duration_ms", elapsed.Milliseconds(),
			"error", err)
	} else {
		q.logger.Debug("Transaction queue: job committed",
			"hash", receipt.Hash,
			"duration_ms", elapsed.Milliseconds())
	}
	t.future.resolve(receipt, err)
}

func (q *Queue) safeRun(ctx context.Context, job Job) (receipt ledger.Receipt, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transaction job panicked: %v", r)
		}
	}()
	return job(ctx)
}

func (q *Queue) drain() {
	q.mu.Lock()
	q.closed = true
	var rest []*task
	for {
		v, ok := q.pending.PopFront()
		if !ok {
			break
		}
		rest = append(rest, v.(*task))
	}
	q.mu.Unlock()

	q.observer.SetDepth(0)
	for _, t := range rest {
		t.future.resolve(ledger.Receipt{}, ErrClosed)
	}
}
