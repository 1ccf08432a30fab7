package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
)

type attemptInfoKey struct{}

type attemptInfo struct {
	retried  int
	maxRetry int
}

// withAttemptInfo mirrors the retry metadata an asynq server attaches to
// handler contexts, so inline delivery is indistinguishable to handlers
// that report attempt counts.
func withAttemptInfo(ctx context.Context, retried, maxRetry int) context.Context {
	return context.WithValue(ctx, attemptInfoKey{}, attemptInfo{retried: retried, maxRetry: maxRetry})
}

// attemptCounts reads the retry metadata from either an asynq server
// context or an inline-delivery context.
func attemptCounts(ctx context.Context) (retried, maxRetry int, ok bool) {
	if retried, ok := asynq.GetRetryCount(ctx); ok {
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		return retried, maxRetry, true
	}
	info, ok := ctx.Value(attemptInfoKey{}).(attemptInfo)
	return info.retried, info.maxRetry, ok
}

// AttemptRecord captures one delivery attempt made by the InlineQueue.
type AttemptRecord struct {
	TaskType string
	Err      error
}

// InlineQueue is a synchronous, in-process Enqueuer. It delivers a task to
// its handler immediately, honoring the same attempt ceiling and
// per-attempt timeout the asynq server would apply. It backs tests and a
// queueless development mode; production wiring uses asynq.Client.
type InlineQueue struct {
	handlers map[string]asynq.Handler

	maxAttempts int
	timeout     time.Duration

	mu       sync.Mutex
	attempts []AttemptRecord
}

func NewInlineQueue() *InlineQueue {
	return &InlineQueue{
		handlers:    make(map[string]asynq.Handler),
		maxAttempts: InvoiceMaxAttempts,
		timeout:     InvoiceAttemptTimeout,
	}
}

// Handle registers the handler for a task type, mirroring asynq.ServeMux.
func (q *InlineQueue) Handle(taskType string, handler asynq.Handler) {
	q.handlers[taskType] = handler
}

// HandleFunc registers a handler function for a task type.
func (q *InlineQueue) HandleFunc(taskType string, handler func(context.Context, *asynq.Task) error) {
	q.Handle(taskType, asynq.HandlerFunc(handler))
}

// EnqueueContext delivers the task synchronously. Each failed attempt is
// retried immediately until the ceiling is exhausted; the final error is
// returned once no attempts remain. A nil error means a delivery attempt
// completed the task.
func (q *InlineQueue) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	maxAttempts, timeout := q.maxAttempts, q.timeout
	for _, opt := range opts {
		switch opt.Type() {
		case asynq.MaxRetryOpt:
			maxAttempts = opt.Value().(int) + 1
		case asynq.TimeoutOpt:
			timeout = opt.Value().(time.Duration)
		}
	}

	handler, ok := q.handlers[task.Type()]
	if !ok {
		return nil, fmt.Errorf("no handler registered for task type %q", task.Type())
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = q.runAttempt(withAttemptInfo(ctx, attempt, maxAttempts-1), handler, task, timeout)
		q.record(task.Type(), lastErr)
		if lastErr == nil {
			return &asynq.TaskInfo{Type: task.Type(), Payload: task.Payload(), State: asynq.TaskStateCompleted}, nil
		}
		if errors.Is(lastErr, asynq.SkipRetry) {
			break
		}
	}
	return nil, lastErr
}

// runAttempt executes one delivery with the per-attempt timeout. A handler
// that outlives its deadline counts as a recoverable failure; its goroutine
// result is discarded.
func (q *InlineQueue) runAttempt(ctx context.Context, handler asynq.Handler, task *asynq.Task, timeout time.Duration) error {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- handler.ProcessTask(attemptCtx, task)
	}()

	select {
	case err := <-done:
		return err
	case <-attemptCtx.Done():
		return attemptCtx.Err()
	}
}

func (q *InlineQueue) record(taskType string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.attempts = append(q.attempts, AttemptRecord{TaskType: taskType, Err: err})
}

// Attempts returns a copy of every delivery attempt made so far.
func (q *InlineQueue) Attempts() []AttemptRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]AttemptRecord, len(q.attempts))
	copy(out, q.attempts)
	return out
}
