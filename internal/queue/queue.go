// Package queue executes skill operations one at a time, in FIFO order.
//
// The external skills CLI mutates a shared on-disk lockfile and is not safe
// for concurrent invocation, so a single worker goroutine drains the queue.
// Each job gets exactly one terminal outcome: completed, failed or
// cancelled. Cancelling a running job cancels its context and reports the
// outcome only after the job's Run returns, i.e. after the underlying
// process kill has been acknowledged.
package queue

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/finchley/skilldock/internal/core"
)

// Status is a job's terminal state.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Result is a job's terminal outcome.
type Result struct {
	Status Status
	Err    error // set for StatusFailed
}

// Job is a queued unit of work. The queue only needs the id, the run
// function and the kind/skill for logging; Meta is carried through untouched
// for the caller's bookkeeping.
type Job struct {
	ID        string
	Kind      core.OperationKind
	SkillName string
	Meta      any
	Run       func(ctx context.Context) error
}

// Hooks receive job lifecycle notifications. OnStart fires when a job leaves
// the pending list and begins running; OnTerminal fires exactly once per
// enqueued job.
type Hooks struct {
	OnStart    func(job *Job)
	OnTerminal func(job *Job, res Result)
}

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("operation queue is closed")

// Queue is a FIFO, single-concurrency job queue.
type Queue struct {
	log   *zap.Logger
	hooks Hooks

	mu      sync.Mutex
	pending []*Job
	running *runningJob
	closed  bool
	idle    []chan struct{}

	wake chan struct{}
	done chan struct{}
}

type runningJob struct {
	job       *Job
	cancel    context.CancelFunc
	cancelled bool
}

// New creates a queue and starts its worker goroutine.
func New(log *zap.Logger, hooks Hooks) *Queue {
	q := &Queue{
		log:   log.Named("queue"),
		hooks: hooks,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go q.drain()
	return q
}

// Enqueue appends a job to the tail. It never blocks; completion is observed
// through the hooks, not a returned value.
func (q *Queue) Enqueue(job *Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending = append(q.pending, job)
	q.mu.Unlock()

	q.log.Debug("enqueued",
		zap.String("operationId", job.ID),
		zap.String("kind", string(job.Kind)),
		zap.String("skill", job.SkillName))

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Cancel cancels the job with the given id. Queued jobs are removed and
// reported cancelled immediately; the running job has its context cancelled
// and is reported once its run returns. Cancelling an unknown, completed or
// already-cancelled id is a no-op.
func (q *Queue) Cancel(operationID string) {
	q.mu.Lock()

	for i, job := range q.pending {
		if job.ID == operationID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			q.mu.Unlock()
			q.log.Debug("cancelled queued job", zap.String("operationId", operationID))
			q.terminal(job, Result{Status: StatusCancelled})
			q.mu.Lock()
			q.notifyIdleLocked()
			q.mu.Unlock()
			return
		}
	}

	if q.running != nil && q.running.job.ID == operationID {
		q.running.cancelled = true
		cancel := q.running.cancel
		q.mu.Unlock()
		q.log.Debug("cancelling running job", zap.String("operationId", operationID))
		cancel()
		return
	}

	q.mu.Unlock()
}

// Len returns the number of pending jobs (excluding the running one).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Idle reports whether nothing is pending or running. The running slot is
// held until the job's terminal hook has returned, so an idle queue has
// finished all bookkeeping for the jobs it ran.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0 && q.running == nil
}

// Wait blocks until the queue is idle. It does not stop further enqueues;
// a Close releases any waiters.
func (q *Queue) Wait() {
	q.mu.Lock()
	if q.closed || (len(q.pending) == 0 && q.running == nil) {
		q.mu.Unlock()
		return
	}
	ch := make(chan struct{})
	q.idle = append(q.idle, ch)
	q.mu.Unlock()
	<-ch
}

// notifyIdleLocked releases Wait callers once the queue is idle or closed.
func (q *Queue) notifyIdleLocked() {
	if !q.closed && (len(q.pending) > 0 || q.running != nil) {
		return
	}
	for _, ch := range q.idle {
		close(ch)
	}
	q.idle = nil
}

// Close stops the queue: the running job's context is cancelled, remaining
// pending jobs are reported cancelled, and the worker exits. Blocks until
// the worker has stopped. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	remaining := q.pending
	q.pending = nil
	if q.running != nil {
		q.running.cancelled = true
		q.running.cancel()
	}
	q.mu.Unlock()

	for _, job := range remaining {
		q.terminal(job, Result{Status: StatusCancelled})
	}

	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.done
}

// drain is the worker loop: at most one job runs at a time, pulled in strict
// submission order.
func (q *Queue) drain() {
	defer close(q.done)

	for {
		q.mu.Lock()
		if q.closed {
			q.notifyIdleLocked()
			q.mu.Unlock()
			return
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			<-q.wake
			continue
		}

		job := q.pending[0]
		q.pending = q.pending[1:]

		ctx, cancel := context.WithCancel(context.Background())
		q.running = &runningJob{job: job, cancel: cancel}
		q.mu.Unlock()

		if q.hooks.OnStart != nil {
			q.hooks.OnStart(job)
		}

		err := q.runJob(ctx, job)

		q.mu.Lock()
		wasCancelled := q.running.cancelled
		q.mu.Unlock()
		cancel()

		switch {
		case wasCancelled:
			q.terminal(job, Result{Status: StatusCancelled})
		case err != nil:
			q.terminal(job, Result{Status: StatusFailed, Err: err})
		default:
			q.terminal(job, Result{Status: StatusCompleted})
		}

		// The running slot clears only after the terminal hook returned, so
		// Wait cannot resolve while the last job's bookkeeping is in flight.
		q.mu.Lock()
		q.running = nil
		q.notifyIdleLocked()
		q.mu.Unlock()
	}
}

// runJob executes a job, converting panics into failures so a misbehaving
// executor can never stop the drain loop.
func (q *Queue) runJob(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("job panicked",
				zap.String("operationId", job.ID),
				zap.Any("panic", r))
			err = errors.New("internal error while running operation")
		}
	}()
	return job.Run(ctx)
}

func (q *Queue) terminal(job *Job, res Result) {
	q.log.Debug("job finished",
		zap.String("operationId", job.ID),
		zap.String("status", string(res.Status)),
		zap.Error(res.Err))
	if q.hooks.OnTerminal != nil {
		q.hooks.OnTerminal(job, res)
	}
}
