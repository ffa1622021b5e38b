// Package queue serializes upstream calls. Jobs wait in a priority heap and
// a single worker runs them one at a time through the resilience policy, so
// at most one upstream call is ever in flight.
package queue

import (
	"container/heap"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/LavishGent/catalogfetch/internal/config"
	"github.com/LavishGent/catalogfetch/internal/types"
)

// Executor runs one logical upstream call, re-attempting it as its policy
// allows. resilience.Policy implements it.
type Executor interface {
	Execute(ctx context.Context, tier types.Tier, fn func(context.Context) error) error
}

// Job is one upstream call waiting for its turn. Its priority is fixed at
// enqueue time.
type Job struct {
	ID         uuid.UUID
	Priority   types.Priority
	Tier       types.Tier
	Endpoint   string
	EnqueuedAt time.Time
	Execute    func(ctx context.Context) (json.RawMessage, error)
	// Cached, if set, is consulted when the job reaches the worker. A hit
	// settles the job without an upstream attempt, so it never waits at the
	// rate gate.
	Cached func(ctx context.Context) (json.RawMessage, bool)
}

type result struct {
	payload json.RawMessage
	err     error
}

type item struct {
	job   Job
	ctx   context.Context
	seq   uint64
	index int
	done  chan result
}

func (it *item) settle(payload json.RawMessage, err error) {
	select {
	case it.done <- result{payload: payload, err: err}:
	default:
	}
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Pending  int
	Capacity int
	Executed int64
	Rejected int64
	Skipped  int64
	Cached   int64
}

// Queue is a priority queue drained by one worker goroutine.
type Queue struct {
	exec            Executor
	capacity        int
	shutdownTimeout time.Duration
	metrics         types.MetricsRecorder
	logger          *slog.Logger
	now             func() time.Time

	mu     sync.Mutex
	heap   jobHeap
	seq    uint64
	closed bool

	wake           chan struct{}
	stopCh         chan struct{}
	done           chan struct{}
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc

	executed atomic.Int64
	rejected atomic.Int64
	skipped  atomic.Int64
	cached   atomic.Int64
}

// Option customizes a Queue.
type Option func(*Queue)

func WithMetrics(m types.MetricsRecorder) Option {
	return func(q *Queue) { q.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// New creates a queue and starts its worker.
func New(cfg config.QueueConfig, exec Executor, opts ...Option) *Queue {
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	q := &Queue{
		exec:            exec,
		capacity:        cfg.Capacity,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          slog.Default(),
		now:             time.Now,
		wake:            make(chan struct{}, 1),
		stopCh:          make(chan struct{}),
		done:            make(chan struct{}),
		shutdownCtx:     shutdownCtx,
		shutdownCancel:  shutdownCancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.shutdownTimeout <= 0 {
		q.shutdownTimeout = 5 * time.Second
	}
	q.logger = q.logger.With("component", "request-queue")

	go q.run()
	return q
}

// Enqueue adds job and blocks until it settles.
//
// If ctx ends while the job is still waiting, the job is withdrawn and
// ctx.Err() returned. A job that already started runs to completion; its
// result then only reaches the cache write done by job.Execute.
func (q *Queue) Enqueue(ctx context.Context, job Job) (json.RawMessage, error) {
	if job.Execute == nil {
		return nil, errors.New("queue: job has no Execute func")
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if !job.Priority.Valid() {
		job.Priority = types.PriorityMedium
	}
	if job.Tier != types.TierClient {
		job.Tier = types.TierServer
	}
	job.EnqueuedAt = q.now()

	it := &item{job: job, ctx: ctx, done: make(chan result, 1)}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, types.ErrClosed
	}
	if q.capacity > 0 && q.heap.Len() >= q.capacity {
		q.mu.Unlock()
		q.rejected.Add(1)
		q.logger.Warn("Queue full, rejecting job", "endpoint", job.Endpoint, "capacity", q.capacity)
		return nil, types.ErrQueueFull
	}
	it.seq = q.seq
	q.seq++
	heap.Push(&q.heap, it)
	depth := q.heap.Len()
	q.mu.Unlock()

	q.recordDepth(depth)
	q.logger.Debug("Job enqueued",
		"job_id", job.ID,
		"endpoint", job.Endpoint,
		"priority", job.Priority.String(),
		"depth", depth,
	)
	q.signal()

	select {
	case r := <-it.done:
		return r.payload, r.err
	case <-ctx.Done():
		q.withdraw(it)
		return nil, ctx.Err()
	}
}

// withdraw drops it from the heap if the worker has not taken it yet.
func (q *Queue) withdraw(it *item) {
	q.mu.Lock()
	if it.index >= 0 && it.index < q.heap.Len() && q.heap[it.index] == it {
		heap.Remove(&q.heap, it.index)
		q.skipped.Add(1)
	}
	depth := q.heap.Len()
	q.mu.Unlock()
	q.recordDepth(depth)
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run() {
	defer close(q.done)

	for {
		it, ok := q.next()
		if !ok {
			return
		}
		q.execute(it)
	}
}

// next blocks until a job is available or the queue closes.
func (q *Queue) next() (*item, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		if q.heap.Len() > 0 {
			it := heap.Pop(&q.heap).(*item)
			depth := q.heap.Len()
			q.mu.Unlock()
			q.recordDepth(depth)
			return it, true
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-q.stopCh:
		}
	}
}

func (q *Queue) execute(it *item) {
	if err := it.ctx.Err(); err != nil {
		q.skipped.Add(1)
		q.logger.Debug("Skipping cancelled job", "job_id", it.job.ID, "endpoint", it.job.Endpoint)
		it.settle(nil, err)
		return
	}

	// The caller may stop waiting, but a started job only stops on shutdown.
	ctx, cancel := context.WithCancel(context.WithoutCancel(it.ctx))
	stop := context.AfterFunc(q.shutdownCtx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	if it.job.Cached != nil {
		if payload, ok := it.job.Cached(ctx); ok {
			q.cached.Add(1)
			q.logger.Debug("Job served from cache", "job_id", it.job.ID, "endpoint", it.job.Endpoint)
			it.settle(payload, nil)
			return
		}
	}

	start := q.now()
	var payload json.RawMessage
	err := q.exec.Execute(ctx, it.job.Tier, func(ctx context.Context) error {
		p, err := it.job.Execute(ctx)
		if err == nil {
			payload = p
		}
		return err
	})
	q.executed.Add(1)

	q.logger.Debug("Job settled",
		"job_id", it.job.ID,
		"endpoint", it.job.Endpoint,
		"waited", start.Sub(it.job.EnqueuedAt),
		"ran", q.now().Sub(start),
		"error", err,
	)
	it.settle(payload, err)
}

func (q *Queue) recordDepth(depth int) {
	if q.metrics != nil {
		q.metrics.RecordQueueDepth(depth)
	}
}

// Len returns the number of jobs waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// Stats returns queue counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Pending:  q.Len(),
		Capacity: q.capacity,
		Executed: q.executed.Load(),
		Rejected: q.rejected.Load(),
		Skipped:  q.skipped.Load(),
		Cached:   q.cached.Load(),
	}
}

// Close stops the worker. Waiting jobs fail with ErrClosed. A running job
// gets the configured shutdown timeout to finish before it is cancelled,
// in which case Close returns ErrShutdownTimeout.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	pending := make([]*item, len(q.heap))
	copy(pending, q.heap)
	for _, it := range pending {
		it.index = -1
	}
	q.heap = nil
	q.mu.Unlock()

	close(q.stopCh)
	for _, it := range pending {
		it.settle(nil, types.ErrClosed)
	}
	q.recordDepth(0)

	select {
	case <-q.done:
		q.shutdownCancel()
		return nil
	case <-time.After(q.shutdownTimeout):
		q.logger.Warn("Running job outlived shutdown timeout, cancelling", "timeout", q.shutdownTimeout)
		q.shutdownCancel()
		<-q.done
		return types.ErrShutdownTimeout
	}
}
