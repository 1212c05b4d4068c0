package proctoring

import (
	"context"
	"log/slog"
	"sync"
	"time"

	jobmetrics "github.com/ulms/ulms-gateway/internal/jobs"
	jobqueue "github.com/ulms/ulms-gateway/jobs"
)

const defaultIngestBuffer = 256

// Submission is one frame received from a connected client.
type Submission struct {
	ClientID string
	Image    string
}

// Ingest hands client submissions to the queue without ever blocking the
// connection that produced them.
type Ingest struct {
	queue     jobqueue.Enqueuer
	reference string
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
	now       func() time.Time

	pending chan Submission
	wg      sync.WaitGroup
}

// IngestOption customises an Ingest.
type IngestOption func(*Ingest)

// WithBuffer sets how many submissions may wait for the queue.
func WithBuffer(size int) IngestOption {
	return func(i *Ingest) {
		if size > 0 {
			i.pending = make(chan Submission, size)
		}
	}
}

// WithIngestMetrics sets the metrics sink for accepted and dropped frames.
func WithIngestMetrics(m *jobmetrics.Metrics) IngestOption {
	return func(i *Ingest) { i.metrics = m }
}

// WithClock overrides the submission clock.
func WithClock(now func() time.Time) IngestOption {
	return func(i *Ingest) { i.now = now }
}

// NewIngest builds an Ingest that pairs each frame with reference, which may
// be empty.
func NewIngest(queue jobqueue.Enqueuer, reference string, logger *slog.Logger, opts ...IngestOption) *Ingest {
	if logger == nil {
		logger = slog.Default()
	}
	i := &Ingest{
		queue:     queue,
		reference: reference,
		logger:    logger,
		now:       time.Now,
		pending:   make(chan Submission, defaultIngestBuffer),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.metrics == nil {
		i.metrics = jobmetrics.NewMetrics(nil)
	}
	return i
}

// Submit records a frame for analysis. It returns false when the buffer is
// full and the frame was dropped; the client is never told either way.
func (i *Ingest) Submit(clientID, image string) bool {
	select {
	case i.pending <- Submission{ClientID: clientID, Image: image}:
		return true
	default:
		i.metrics.ObserveIngest(jobmetrics.IngestDropped)
		i.logger.Warn("proctoring buffer full, frame dropped", slog.String("client_id", clientID))
		return false
	}
}

// Run drains the buffer with the given number of dispatchers until ctx is
// cancelled.
func (i *Ingest) Run(ctx context.Context, dispatchers int) {
	if dispatchers <= 0 {
		dispatchers = 1
	}
	for n := 0; n < dispatchers; n++ {
		i.wg.Add(1)
		go func() {
			defer i.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case sub := <-i.pending:
					i.dispatch(ctx, sub)
				}
			}
		}()
	}
	i.wg.Wait()
}

func (i *Ingest) dispatch(ctx context.Context, sub Submission) {
	id, err := i.queue.EnqueueProctoring(ctx, jobqueue.ProctoringPayload{
		Image:          sub.Image,
		ReferenceImage: i.reference,
		ClientID:       sub.ClientID,
		SubmittedAt:    i.now().UnixMilli(),
	})
	if err != nil {
		i.metrics.ObserveIngest(jobmetrics.IngestFailed)
		i.logger.Error("queue proctoring frame", slog.String("client_id", sub.ClientID), slog.Any("error", err))
		return
	}
	i.metrics.ObserveIngest(jobmetrics.IngestQueued)
	i.logger.Info("proctoring frame queued", slog.String("client_id", sub.ClientID), slog.String("task_id", id))
}
