package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// SetSSEHeaders prepares w for an event stream that proxies must not buffer.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// EventWriter frames payloads as server-sent events and flushes each one.
type EventWriter struct {
	w   http.ResponseWriter
	rc  *http.ResponseController
	mu  sync.Mutex
	err error
}

// NewEventWriter commits the stream headers and clears any server write
// deadline so the response can stay open for as long as the client does.
func NewEventWriter(w http.ResponseWriter) (*EventWriter, error) {
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return nil, fmt.Errorf("clear write deadline: %w", err)
	}
	SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	ew := &EventWriter{w: w, rc: rc}
	if err := ew.flush(); err != nil {
		return nil, err
	}
	return ew, nil
}

// WriteData sends payload verbatim as one event. Multi-line payloads are
// split across data lines so the framing stays intact.
func (e *EventWriter) WriteData(payload string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	var b strings.Builder
	for _, line := range strings.Split(payload, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	if _, err := e.w.Write([]byte(b.String())); err != nil {
		e.err = fmt.Errorf("write event: %w", err)
		return e.err
	}
	return e.flush()
}

type errorEvent struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// WriteError sends the terminal error event.
func (e *EventWriter) WriteError(message string) error {
	data, err := json.Marshal(errorEvent{Type: "error", Data: message})
	if err != nil {
		return err
	}
	return e.WriteData(string(data))
}

func (e *EventWriter) flush() error {
	if err := e.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		e.err = fmt.Errorf("flush event: %w", err)
		return e.err
	}
	return nil
}
