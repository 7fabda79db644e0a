package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mlevkov/clipdock/internal/domain"
	"github.com/mlevkov/clipdock/internal/infrastructure/logger"
	"github.com/mlevkov/clipdock/internal/port"
	"github.com/mlevkov/clipdock/internal/retry"
)

const DefaultQueue = "downloads"

// RetryPolicy bounds how often a failed work item is re-enqueued.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     *retry.Backoff
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     retry.NewBackoff(5*time.Second, 0, 2.0),
	}
}

// WorkItem is one queued attempt to run the processor for a job. A retry
// re-enqueues a new item carrying the incremented attempt count.
type WorkItem struct {
	Request port.ProcessRequest
	Attempt int
}

type jobQueue struct {
	items    []*WorkItem
	draining bool
}

// Runner drains named FIFO queues onto the media processor, one item at a
// time per queue, retrying failures with exponential backoff and writing all
// job state changes through the store.
type Runner struct {
	store     port.JobStore
	processor port.MediaProcessor
	events    *EventBus
	policy    RetryPolicy

	mu     sync.Mutex
	queues map[string]*jobQueue
	wg     sync.WaitGroup

	// Seam for tests; production uses time.AfterFunc.
	afterFunc func(d time.Duration, fn func())
}

func NewRunner(store port.JobStore, processor port.MediaProcessor, events *EventBus, policy RetryPolicy) *Runner {
	return &Runner{
		store:     store,
		processor: processor,
		events:    events,
		policy:    policy,
		queues:    make(map[string]*jobQueue),
		afterFunc: func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}
}

// Enqueue appends the item to the named queue and starts a drain if the
// queue is idle. The drain guard keeps one active drain per queue.
func (r *Runner) Enqueue(queueName string, item *WorkItem) {
	r.mu.Lock()
	q, ok := r.queues[queueName]
	if !ok {
		q = &jobQueue{}
		r.queues[queueName] = q
	}
	q.items = append(q.items, item)
	start := !q.draining
	if start {
		q.draining = true
		r.wg.Add(1)
	}
	r.mu.Unlock()

	if start {
		go r.drain(queueName, q)
	}
}

// Wait blocks until all active drains finish. Pending retry timers are not
// waited on.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) drain(queueName string, q *jobQueue) {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		if len(q.items) == 0 {
			q.draining = false
			r.mu.Unlock()
			return
		}
		item := q.items[0]
		q.items = q.items[1:]
		r.mu.Unlock()

		r.runItem(queueName, item)
	}
}

func (r *Runner) runItem(queueName string, item *WorkItem) {
	jobID := item.Request.JobID

	// A job cancelled or deleted while still queued is skipped; nothing has
	// started for it yet.
	job, err := r.store.Get(jobID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Error.Printf("job %s: store read failed: %v", jobID, err)
		}
		return
	}
	if job.Status.IsTerminal() {
		logger.Info.Printf("job %s: skipping %s item", jobID, job.Status)
		return
	}

	item.Attempt++
	logger.Info.Printf("job %s: attempt %d/%d", jobID, item.Attempt, r.policy.MaxAttempts)

	r.update(jobID, func(j *domain.Job) { j.MarkProcessing() })

	// No deadline: fetch/transform run until the external process exits.
	// Cancellation is non-preemptive; a late result lands on a terminal
	// record and is dropped by the store.
	result, err := r.processor.Process(context.Background(), item.Request, func(pct int, msg string) {
		r.update(jobID, func(j *domain.Job) { j.SetProgress(pct, msg) })
	})

	if err == nil {
		r.update(jobID, func(j *domain.Job) { j.MarkCompleted(result) })
		logger.Info.Printf("job %s: completed", jobID)
		return
	}

	logger.Error.Printf("job %s: attempt %d failed: %v", jobID, item.Attempt, err)

	if item.Attempt < r.policy.MaxAttempts {
		delay := r.policy.Backoff.Duration(item.Attempt)
		r.update(jobID, func(j *domain.Job) {
			j.SetProgress(j.Progress, "retrying")
		})
		// The re-enqueued item is a fresh WorkItem for the same job with the
		// attempt count threaded through; the deferred enqueue starts its
		// own drain if none is active when it fires.
		next := &WorkItem{Request: item.Request, Attempt: item.Attempt}
		r.afterFunc(delay, func() {
			r.Enqueue(queueName, next)
		})
		return
	}

	errMsg := err.Error()
	r.update(jobID, func(j *domain.Job) { j.MarkFailed(errMsg) })
	logger.Error.Printf("job %s: failed permanently after %d attempts", jobID, item.Attempt)
}

// update applies a store mutation and publishes the resulting state to the
// event bus.
func (r *Runner) update(jobID string, fn func(*domain.Job)) {
	if err := r.store.Update(jobID, fn); err != nil {
		logger.Error.Printf("job %s: store update failed: %v", jobID, err)
		return
	}
	if r.events == nil {
		return
	}
	job, err := r.store.Get(jobID)
	if err != nil {
		return
	}
	r.events.Publish(jobID, Event{
		Status:   job.Status,
		Progress: job.Progress,
		Message:  job.Message,
		Error:    job.Error,
	})
}
