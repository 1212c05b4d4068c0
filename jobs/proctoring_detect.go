package jobs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ulms/ulms-gateway/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Detector submits decoded frames to the external detection API and returns
// the HTTP status and body it answered with.
type Detector interface {
	Detect(ctx context.Context, image, reference []byte) (int, []byte, error)
}

// Outcome is the result of one detection attempt.
type Outcome struct {
	TaskID      string          `json:"taskId,omitempty"`
	ClientID    string          `json:"clientId"`
	Success     bool            `json:"success"`
	Status      int             `json:"status,omitempty"`
	Error       string          `json:"error,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	SubmittedAt time.Time       `json:"submittedAt"`
	ProcessedAt time.Time       `json:"processedAt"`
}

// OutcomeRecorder keeps detection outcomes for offline inspection. Outcomes
// are never pushed back to the submitting client.
type OutcomeRecorder interface {
	Record(ctx context.Context, outcome Outcome) error
}

// DetectCheatingJob analyses one submitted frame. Any transport failure or
// error status is returned so the queue retries the job.
type DetectCheatingJob struct {
	Detector Detector
	Outcomes OutcomeRecorder
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewDetectCheatingJob wires dependencies for the detection handler.
func NewDetectCheatingJob(detector Detector, outcomes OutcomeRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *DetectCheatingJob {
	return &DetectCheatingJob{
		Detector: detector,
		Outcomes: outcomes,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskProctoringDetect tasks.
func (j *DetectCheatingJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Detector == nil {
		return errors.New("detect cheating: handler not configured")
	}
	payload, err := DecodeProctoringPayload(t)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	taskID, _ := asynq.GetTaskID(ctx)
	logger := j.logger().With(slog.String("client_id", payload.ClientID), slog.String("task_id", taskID))

	image, err := DecodeImage(payload.Image)
	if err != nil {
		logger.Error("decode submitted image", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	var reference []byte
	if payload.ReferenceImage != "" {
		if reference, err = DecodeImage(payload.ReferenceImage); err != nil {
			logger.Warn("decode reference image, continuing without it", slog.Any("error", err))
			reference = nil
		}
	}

	tracker := j.metrics().Track(TaskProctoringDetect)
	submitted := time.UnixMilli(payload.SubmittedAt).UTC()
	logger.Info("processing detection job",
		slog.Int("image_bytes", len(image)),
		slog.Int("reference_bytes", len(reference)),
		slog.Duration("queued_for", j.now().Sub(submitted)),
	)

	status, body, err := j.Detector.Detect(ctx, image, reference)
	if err == nil && status >= 400 {
		err = fmt.Errorf("detection api returned status %d", status)
	}

	outcome := Outcome{
		TaskID:      taskID,
		ClientID:    payload.ClientID,
		Success:     err == nil,
		Status:      status,
		SubmittedAt: submitted,
		ProcessedAt: j.now(),
	}
	if json.Valid(body) {
		outcome.Response = body
	}
	if err != nil {
		outcome.Error = err.Error()
		logger.Error("detection attempt failed", slog.Int("status", status), slog.Any("error", err))
	} else {
		logger.Info("detection completed", slog.Int("status", status))
	}
	if j.Outcomes != nil {
		if recErr := j.Outcomes.Record(ctx, outcome); recErr != nil {
			logger.Warn("record detection outcome", slog.Any("error", recErr))
		}
	}
	return tracker.End(err)
}

// DecodeImage strips an optional data-URI prefix (everything through the
// first comma) and decodes the base64 remainder.
func DecodeImage(raw string) ([]byte, error) {
	if i := strings.IndexByte(raw, ','); i >= 0 {
		raw = raw[i+1:]
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("image payload empty")
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(raw); err == nil {
			return data, nil
		}
	}
	return nil, errors.New("image payload is not valid base64")
}

func (j *DetectCheatingJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *DetectCheatingJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *DetectCheatingJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
