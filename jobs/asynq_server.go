package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Worker wraps the Asynq server draining the proctoring queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	Retry       RetryPolicy
	Handlers    []TaskHandler

	// PollInterval overrides how often Asynq looks for new and due retry
	// tasks. Zero keeps the Asynq defaults.
	PollInterval time.Duration
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if len(cfg.Handlers) == 0 {
		return nil, errors.New("worker: no task handlers")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueProctoring: 1,
		},
		RetryDelayFunc:           retry.RetryDelayFunc(),
		TaskCheckInterval:        cfg.PollInterval,
		DelayedTaskCheckInterval: cfg.PollInterval,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			id, _ := asynq.GetTaskID(ctx)
			attrs := []any{
				slog.String("task_id", id),
				slog.String("type", task.Type()),
				slog.Int("attempt", retried+1),
				slog.Any("error", err),
			}
			if retried >= maxRetry || errors.Is(err, asynq.SkipRetry) {
				logger.Error("job failed permanently, archived", attrs...)
				return
			}
			logger.Warn("job attempt failed, will retry", append(attrs, slog.Duration("backoff", retry.Delay(retried)))...)
		}),
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}
	return &Worker{server: srv, mux: mux, logger: logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Enqueuer hands proctoring jobs to a queue.
type Enqueuer interface {
	EnqueueProctoring(ctx context.Context, payload ProctoringPayload) (string, error)
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
	retry  RetryPolicy
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt, retry RetryPolicy) *Client {
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy
	}
	return &Client{client: asynq.NewClient(redisOpts), retry: retry}
}

// EnqueueProctoring enqueues a detection task and returns its id.
func (c *Client) EnqueueProctoring(ctx context.Context, payload ProctoringPayload) (string, error) {
	task, err := NewProctoringTask(payload)
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task, c.retry.TaskOptions()...)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
