// Package dispatch implements the task dispatcher: a durable priority
// queue, a worker pool pulling one task at a time per worker, per-task
// retry with linear backoff, and progress heartbeats. The broker comes in
// two interchangeable implementations: an in-memory one (tests, and the
// service binaries when no Redis address is configured) and a Redis-backed
// one (the service).
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reconctl/internal/domain"
	apperrors "reconctl/internal/platform/errors"
	"reconctl/internal/platform/logx"
	"reconctl/internal/platform/taskctx"
)

// Recognized queue names, each routing one task kind.
const (
	QueueReconFull       = "recon_full"
	QueueReconEnum       = "recon_enum"
	QueueReconCheck      = "recon_check"
	QueueReconScreenshot = "recon_screenshot"
	QueueWafCheck        = "waf_check"
	QueueLeakCheck       = "leak_check"
	QueueMaintenance     = "maintenance"
)

const (
	DefaultPriority = 5
	MinPriority     = 0
	MaxPriority     = 10

	// HardTimeout bounds each task's context: once it elapses the context
	// is cancelled, killing any subprocess started under it, and the worker
	// moves on. SoftTimeout is an advisory signal the task may
	// self-terminate cleanly before it.
	HardTimeout = 45 * time.Minute
	SoftTimeout = 40 * time.Minute

	// MaxTasksPerWorker bounds memory growth: after this many completed
	// tasks a worker is recycled.
	MaxTasksPerWorker = 50
)

// Task is one unit of work pulled from a queue.
type Task struct {
	ID          string
	Kind        string
	Queue       string
	Priority    int
	Payload     json.RawMessage
	Attempt     int
	MaxAttempts int
}

// Broker is the durable queue abstraction the dispatcher runs against.
// Implementations: InMemoryBroker (tests, and the service binaries when no
// Redis address is configured), RedisBroker (service).
type Broker interface {
	// Enqueue adds a task to its queue at its priority. Tasks with higher
	// priority values are dequeued first.
	Enqueue(ctx context.Context, t Task) error
	// Reserve blocks (respecting ctx) until a task is available on any of
	// queues, then removes it from the pending set without yet
	// acknowledging completion (acks_late semantics: a crash before Ack
	// leaves the task re-queueable).
	Reserve(ctx context.Context, queues []string) (Task, error)
	// Ack marks a reserved task complete, removing it permanently.
	Ack(ctx context.Context, t Task) error
	// Requeue returns a reserved task to its queue as given, available again
	// after delay. It does not touch Attempt: the Worker increments it
	// before requeueing a retry.
	Requeue(ctx context.Context, t Task, delay time.Duration) error
	// PublishProgress records the most recent heartbeat for a task.
	PublishProgress(ctx context.Context, taskID string, p domain.Progress, state domain.TaskState) error
	// Progress returns the most recently published heartbeat, if any.
	Progress(ctx context.Context, taskID string) (domain.Progress, domain.TaskState, bool)
	// Revoke force-terminates a task: if still pending in a queue it is
	// removed before any worker reserves it; either way its last-known
	// progress state is marked REVOKED so readers stop treating it as
	// in-flight. A task a worker has already reserved cannot be killed
	// mid-subprocess by this broker — revocation of that case is bounded
	// only by the task's own timeout.
	Revoke(ctx context.Context, taskID string) error
}

// Handler processes one task's payload. A RetryableError return triggers
// backoff; any other error is terminal for the task.
type Handler func(ctx context.Context, t Task, progress func(domain.Progress)) error

// Worker pulls tasks from a fixed set of queues and runs them through a
// registered Handler per Kind, one task at a time.
type Worker struct {
	Broker   Broker
	Queues   []string
	Handlers map[string]Handler

	// RetryBackoff computes the requeue delay for a given (post-increment)
	// attempt number. Defaults to linear 60s*attempt; tests override it to
	// avoid waiting out real backoff delays.
	RetryBackoff func(attempt int) time.Duration

	tasksHandled int
}

// Run processes tasks until ctx is cancelled or the worker has handled
// MaxTasksPerWorker tasks (at which point it returns so the caller can
// recycle it, matching worker_max_tasks_per_child).
func (w *Worker) Run(ctx context.Context) error {
	for {
		if w.tasksHandled >= MaxTasksPerWorker {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		task, err := w.Broker.Reserve(ctx, w.Queues)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			logx.Warnf("dispatch: reserve failed: %v", err)
			continue
		}

		w.handle(ctx, task)
		w.tasksHandled++
	}
}

func (w *Worker) handle(ctx context.Context, task Task) {
	handler, ok := w.Handlers[task.Kind]
	if !ok {
		logx.Warnf("dispatch: no handler registered for kind %q", task.Kind)
		_ = w.Broker.Requeue(ctx, task, 0)
		return
	}

	_ = w.Broker.PublishProgress(ctx, task.ID, domain.Progress{Status: "started"}, domain.TaskStateStarted)

	taskCtx, cancel := context.WithTimeout(ctx, HardTimeout)
	defer cancel()
	softCtx, softCancel := context.WithTimeout(ctx, SoftTimeout)
	defer softCancel()
	taskCtx = taskctx.WithSoftDeadline(taskCtx, softCtx)

	progress := func(p domain.Progress) {
		_ = w.Broker.PublishProgress(ctx, task.ID, p, domain.TaskStateProgress)
	}

	err := runHandler(taskCtx, handler, task, progress)
	if err == nil {
		_ = w.Broker.PublishProgress(ctx, task.ID, domain.Progress{Current: 100, Total: 100, Status: "done"}, domain.TaskStateSuccess)
		_ = w.Broker.Ack(ctx, task)
		return
	}

	if apperrors.IsRetryable(err) && task.Attempt < task.MaxAttempts {
		task.Attempt++
		_ = w.Broker.PublishProgress(ctx, task.ID, domain.Progress{
			Status: fmt.Sprintf("retrying (attempt %d/%d): %v", task.Attempt, task.MaxAttempts, err),
		}, domain.TaskStateRetry)
		_ = w.Broker.Requeue(ctx, task, w.retryBackoff(task.Attempt))
		return
	}

	_ = w.Broker.PublishProgress(ctx, task.ID, domain.Progress{Status: fmt.Sprintf("failed: %v", err)}, domain.TaskStateFailure)
	_ = w.Broker.Ack(ctx, task) // terminal: don't retry further, but free the slot
}

// retryBackoff applies w.RetryBackoff if set, otherwise the default linear
// 60s*attempt backoff.
func (w *Worker) retryBackoff(attempt int) time.Duration {
	if w.RetryBackoff != nil {
		return w.RetryBackoff(attempt)
	}
	return 60 * time.Second * time.Duration(attempt)
}

// runHandler recovers a handler panic into an error so one bad task can
// never take down the worker loop.
func runHandler(ctx context.Context, h Handler, t Task, progress func(domain.Progress)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewFatalError(fmt.Errorf("handler panicked: %v", r))
		}
	}()
	return h(ctx, t, progress)
}
