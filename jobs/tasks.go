package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueProctoring holds image analysis jobs.
	QueueProctoring = "proctoring"
	// TaskProctoringDetect runs one cheating-detection call.
	TaskProctoringDetect = "proctoring:detect-cheating"
)

// ProctoringPayload is a submitted frame waiting for analysis. Images are
// base64 strings, optionally carrying a data-URI prefix.
type ProctoringPayload struct {
	Image          string `json:"image"`
	ReferenceImage string `json:"reference_image,omitempty"`
	ClientID       string `json:"clientId"`
	SubmittedAt    int64  `json:"timestamp"`
}

// NewProctoringTask constructs an Asynq task.
func NewProctoringTask(payload ProctoringPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProctoringDetect, data), nil
}

// DecodeProctoringPayload reads the payload back from a task.
func DecodeProctoringPayload(t *asynq.Task) (ProctoringPayload, error) {
	var payload ProctoringPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode proctoring payload: %w", err)
	}
	if payload.Image == "" {
		return payload, fmt.Errorf("decode proctoring payload: image missing")
	}
	return payload, nil
}
