package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// MemoryQueue is an in-process queue with the same retry semantics as the
// Asynq driver: bounded attempts, exponential backoff, delete on success and
// archive on exhaustion. Jobs do not survive a restart.
type MemoryQueue struct {
	handler asynq.Handler
	policy  RetryPolicy
	logger  *slog.Logger
	sleep   func(context.Context, time.Duration) error

	ready chan *memoryTask
	open  sync.WaitGroup

	mu        sync.Mutex
	pending   int
	active    int
	retry     int
	processed int
	archived  []FailedTask
}

type memoryTask struct {
	id       string
	task     *asynq.Task
	clientID string
	retried  int
}

// MemoryOption customises a MemoryQueue.
type MemoryOption func(*MemoryQueue)

// WithSleep replaces the backoff wait, e.g. to observe delays in tests.
func WithSleep(sleep func(context.Context, time.Duration) error) MemoryOption {
	return func(q *MemoryQueue) { q.sleep = sleep }
}

// WithMemoryLogger sets the queue logger.
func WithMemoryLogger(logger *slog.Logger) MemoryOption {
	return func(q *MemoryQueue) { q.logger = logger }
}

// NewMemoryQueue builds a queue that runs handler for every task.
func NewMemoryQueue(handler asynq.Handler, policy RetryPolicy, opts ...MemoryOption) *MemoryQueue {
	if policy.MaxAttempts == 0 {
		policy = DefaultRetryPolicy
	}
	q := &MemoryQueue{
		handler: handler,
		policy:  policy,
		logger:  slog.Default(),
		sleep:   sleepContext,
		ready:   make(chan *memoryTask, 256),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// EnqueueProctoring implements Enqueuer.
func (q *MemoryQueue) EnqueueProctoring(ctx context.Context, payload ProctoringPayload) (string, error) {
	task, err := NewProctoringTask(payload)
	if err != nil {
		return "", err
	}
	t := &memoryTask{id: uuid.NewString(), task: task, clientID: payload.ClientID}
	q.open.Add(1)
	q.adjust(func() { q.pending++ })
	select {
	case q.ready <- t:
		return t.id, nil
	case <-ctx.Done():
		q.adjust(func() { q.pending-- })
		q.open.Done()
		return "", ctx.Err()
	}
}

// Run processes tasks with the given concurrency until ctx is cancelled.
func (q *MemoryQueue) Run(ctx context.Context, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t := <-q.ready:
					q.process(ctx, t)
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// Wait blocks until every enqueued task has succeeded or been archived.
func (q *MemoryQueue) Wait() {
	q.open.Wait()
}

func (q *MemoryQueue) process(ctx context.Context, t *memoryTask) {
	q.adjust(func() { q.pending--; q.active++ })
	err := q.handler.ProcessTask(ctx, t.task)
	q.adjust(func() { q.active-- })

	logger := q.logger.With(slog.String("task_id", t.id), slog.Int("attempt", t.retried+1))
	if err == nil {
		q.adjust(func() { q.processed++ })
		q.open.Done()
		return
	}
	if errors.Is(err, asynq.SkipRetry) || t.retried >= q.policy.MaxRetry() {
		logger.Error("job failed permanently, archived", slog.Any("error", err))
		q.archive(t, t.retried+1, err)
		return
	}

	delay := q.policy.Delay(t.retried)
	logger.Warn("job attempt failed, will retry", slog.Any("error", err), slog.Duration("backoff", delay))
	attempts := t.retried + 1
	t.retried++
	q.adjust(func() { q.retry++ })
	go func() {
		if err := q.sleep(ctx, delay); err != nil {
			q.adjust(func() { q.retry-- })
			q.archive(t, attempts, err)
			return
		}
		q.adjust(func() { q.retry--; q.pending++ })
		select {
		case q.ready <- t:
		case <-ctx.Done():
			q.adjust(func() { q.pending-- })
			q.archive(t, attempts, ctx.Err())
		}
	}()
}

// archive records t as failed after the given number of handler runs.
func (q *MemoryQueue) archive(t *memoryTask, attempts int, err error) {
	q.adjust(func() {
		q.archived = append(q.archived, FailedTask{
			ID:         t.id,
			ClientID:   t.clientID,
			Attempts:   attempts,
			LastError:  err.Error(),
			LastFailed: time.Now().UTC(),
		})
	})
	q.open.Done()
}

// Stats implements StatsSource.
func (q *MemoryQueue) Stats(context.Context) (QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Queue:     QueueProctoring,
		Pending:   q.pending,
		Active:    q.active,
		Retry:     q.retry,
		Archived:  len(q.archived),
		Processed: q.processed,
	}, nil
}

// Failed returns archived tasks in archive order.
func (q *MemoryQueue) Failed(context.Context, int) ([]FailedTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]FailedTask(nil), q.archived...), nil
}

func (q *MemoryQueue) adjust(fn func()) {
	q.mu.Lock()
	fn()
	q.mu.Unlock()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
