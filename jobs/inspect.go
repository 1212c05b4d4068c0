package jobs

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/ulms/ulms-gateway/internal/platform/httpx"
)

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Processed int    `json:"processed"`
}

// FailedTask is an archived job kept for diagnostics.
type FailedTask struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"clientId"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"lastError"`
	LastFailed time.Time `json:"lastFailedAt"`
}

// StatsSource reports queue state.
type StatsSource interface {
	Stats(ctx context.Context) (QueueStats, error)
}

// Inspector reads and repairs the Asynq proctoring queue.
type Inspector struct {
	inspector *asynq.Inspector
}

// NewInspector constructs an Inspector.
func NewInspector(redisOpts asynq.RedisClientOpt) *Inspector {
	return &Inspector{inspector: asynq.NewInspector(redisOpts)}
}

// Stats reports the proctoring queue counters. A queue that has never
// received a task reports zeros.
func (i *Inspector) Stats(context.Context) (QueueStats, error) {
	stats := QueueStats{Queue: QueueProctoring}
	exists, err := i.queueExists()
	if err != nil || !exists {
		return stats, err
	}
	info, err := i.inspector.GetQueueInfo(QueueProctoring)
	if err != nil {
		return stats, err
	}
	stats.Pending = info.Pending
	stats.Active = info.Active
	stats.Scheduled = info.Scheduled
	stats.Retry = info.Retry
	stats.Archived = info.Archived
	stats.Processed = info.Processed
	return stats, nil
}

// Failed lists archived jobs, newest first as returned by Asynq.
func (i *Inspector) Failed(_ context.Context, size int) ([]FailedTask, error) {
	if size <= 0 {
		size = 20
	}
	exists, err := i.queueExists()
	if err != nil || !exists {
		return nil, err
	}
	infos, err := i.inspector.ListArchivedTasks(QueueProctoring, asynq.PageSize(size), asynq.Page(1))
	if err != nil {
		return nil, err
	}
	out := make([]FailedTask, 0, len(infos))
	for _, info := range infos {
		ft := FailedTask{ID: info.ID, Attempts: info.Retried + 1, LastError: info.LastErr, LastFailed: info.LastFailedAt}
		if payload, err := DecodeProctoringPayload(asynq.NewTask(info.Type, info.Payload)); err == nil {
			ft.ClientID = payload.ClientID
		}
		out = append(out, ft)
	}
	return out, nil
}

// Requeue moves an archived job back to pending.
func (i *Inspector) Requeue(_ context.Context, id string) error {
	return i.inspector.RunTask(QueueProctoring, id)
}

func (i *Inspector) queueExists() (bool, error) {
	queues, err := i.inspector.Queues()
	if err != nil {
		return false, err
	}
	return slices.Contains(queues, QueueProctoring), nil
}

// Close releases underlying resources.
func (i *Inspector) Close() error {
	return i.inspector.Close()
}

// Handler exposes HTTP endpoints for job observability.
type Handler struct {
	stats  StatsSource
	logger *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints.
func NewHandler(stats StatsSource, logger *slog.Logger) *Handler {
	return &Handler{stats: stats, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		httpx.JSON(w, http.StatusOK, QueueStats{Queue: QueueProctoring})
		return
	}
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		httpx.RespondError(w, httpx.Errorf(httpx.ErrServiceUnavailable, "queue unavailable"))
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}
