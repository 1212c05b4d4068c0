// Package assistant exposes the course assistant, including the streaming
// relay that turns an incremental backend answer into server-sent events.
package assistant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"google.golang.org/grpc/status"

	"github.com/ulms/ulms-gateway/internal/backend"
)

// Streamer opens an incremental answer for an inquiry.
type Streamer interface {
	InquireStream(ctx context.Context, q backend.Inquiry) (backend.ChunkStream, error)
}

// Relay forwards one backend stream to one client connection. The upstream
// call lives exactly as long as the client request.
type Relay struct {
	streamer Streamer
	logger   *slog.Logger
}

// NewRelay constructs a Relay.
func NewRelay(streamer Streamer, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{streamer: streamer, logger: logger}
}

type fragment struct {
	chunk string
	err   error
}

// Serve streams the answer to q. Once headers are committed every failure is
// reported in-band as a single error event.
func (rl *Relay) Serve(w http.ResponseWriter, r *http.Request, q backend.Inquiry) {
	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	events, err := NewEventWriter(w)
	if err != nil {
		rl.logger.Error("open event stream", slog.Any("error", err))
		return
	}
	logger := rl.logger.With(slog.String("chat_id", q.ChatID))

	stream, err := rl.streamer.InquireStream(ctx, q)
	if err != nil {
		logger.Error("open assistant stream", slog.Any("error", err))
		_ = events.WriteError(errorMessage(err))
		return
	}

	fragments := make(chan fragment)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			chunk, err := stream.Recv()
			select {
			case fragments <- fragment{chunk: chunk, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	sent := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("assistant stream cancelled by client", slog.Int("events", sent))
			return
		case f := <-fragments:
			if ctx.Err() != nil {
				return
			}
			if errors.Is(f.err, io.EOF) {
				logger.Debug("assistant stream completed", slog.Int("events", sent))
				return
			}
			if f.err != nil {
				logger.Warn("assistant stream failed", slog.Int("events", sent), slog.Any("error", f.err))
				_ = events.WriteError(errorMessage(f.err))
				return
			}
			if err := events.WriteData(f.chunk); err != nil {
				logger.Info("assistant stream write", slog.Any("error", err))
				return
			}
			sent++
		}
	}
}

func errorMessage(err error) string {
	if st, ok := status.FromError(err); ok {
		return st.Message()
	}
	return err.Error()
}
