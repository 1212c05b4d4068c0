package assistant

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ulms/ulms-gateway/internal/backend"
)

type scriptedStream struct {
	ctx     context.Context
	chunks  []string
	end     error
	hang    bool
	waiting chan struct{}
	closed  chan struct{}
}

func (s *scriptedStream) Recv() (string, error) {
	if len(s.chunks) > 0 {
		c := s.chunks[0]
		s.chunks = s.chunks[1:]
		return c, nil
	}
	if s.hang {
		close(s.waiting)
		<-s.ctx.Done()
		close(s.closed)
		return "", s.ctx.Err()
	}
	return "", s.end
}

type scriptedStreamer struct {
	stream  *scriptedStream
	openErr error
}

func (s *scriptedStreamer) InquireStream(ctx context.Context, _ backend.Inquiry) (backend.ChunkStream, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.stream.ctx = ctx
	return s.stream, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func relayOnce(t *testing.T, streamer Streamer) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/assistant/send-message-stream/c1", nil)
	NewRelay(streamer, quietLogger()).Serve(rec, req, backend.Inquiry{ChatID: "c1", Question: "q"})
	return rec
}

func TestRelayForwardsFragmentsThenCloses(t *testing.T) {
	rec := relayOnce(t, &scriptedStreamer{stream: &scriptedStream{chunks: []string{"a", "b", "c"}, end: io.EOF}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.Equal(t, "data: a\n\ndata: b\n\ndata: c\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestRelayEmitsOneErrorEventOnUpstreamFailure(t *testing.T) {
	rec := relayOnce(t, &scriptedStreamer{stream: &scriptedStream{
		chunks: []string{"a", "b", "c"},
		end:    status.Error(codes.Internal, "X"),
	}})

	assert.Equal(t, "data: a\n\ndata: b\n\ndata: c\n\n"+`data: {"type":"error","data":"X"}`+"\n\n", rec.Body.String())
	assert.Equal(t, 1, strings.Count(rec.Body.String(), `"type":"error"`))
}

func TestRelayReportsOpenFailureInBand(t *testing.T) {
	rec := relayOnce(t, &scriptedStreamer{openErr: status.Error(codes.Unavailable, "assistant down")})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `data: {"type":"error","data":"assistant down"}`+"\n\n", rec.Body.String())
}

func TestRelaySplitsMultilineFragments(t *testing.T) {
	rec := relayOnce(t, &scriptedStreamer{stream: &scriptedStream{chunks: []string{"line1\nline2"}, end: io.EOF}})
	assert.Equal(t, "data: line1\ndata: line2\n\n", rec.Body.String())
}

func TestRelayCancelsUpstreamOnClientDisconnect(t *testing.T) {
	stream := &scriptedStream{
		chunks:  []string{"a"},
		hang:    true,
		waiting: make(chan struct{}),
		closed:  make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/assistant/send-message-stream/c1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		NewRelay(&scriptedStreamer{stream: stream}, quietLogger()).Serve(rec, req, backend.Inquiry{ChatID: "c1"})
		close(done)
	}()

	// The first fragment has been handed over and the upstream is blocked
	// waiting for the next one.
	select {
	case <-stream.waiting:
	case <-time.After(2 * time.Second):
		t.Fatal("upstream was never asked for a second fragment")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not return after client disconnect")
	}
	select {
	case <-stream.closed:
	case <-time.After(time.Second):
		t.Fatal("upstream stream was not torn down")
	}
	assert.ErrorIs(t, stream.ctx.Err(), context.Canceled)
	assert.NotContains(t, rec.Body.String(), "error")
}

func TestRelayReleasesUpstreamContextWhenFinished(t *testing.T) {
	stream := &scriptedStream{chunks: []string{"a"}, end: io.EOF}
	relayOnce(t, &scriptedStreamer{stream: stream})

	require.NotNil(t, stream.ctx)
	assert.ErrorIs(t, stream.ctx.Err(), context.Canceled)
}
