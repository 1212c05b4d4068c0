package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulms/ulms-gateway/jobs"
)

type fakeAdmin struct {
	stats    jobs.QueueStats
	failed   []jobs.FailedTask
	limit    int
	requeued []string
	closed   bool
}

func (f *fakeAdmin) Stats(context.Context) (jobs.QueueStats, error) { return f.stats, nil }

func (f *fakeAdmin) Failed(_ context.Context, size int) ([]jobs.FailedTask, error) {
	f.limit = size
	return f.failed, nil
}

func (f *fakeAdmin) Requeue(_ context.Context, id string) error {
	if id == "missing" {
		return errors.New("task not found")
	}
	f.requeued = append(f.requeued, id)
	return nil
}

func (f *fakeAdmin) Close() error {
	f.closed = true
	return nil
}

func run(t *testing.T, admin *fakeAdmin, args ...string) (string, string, error) {
	t.Helper()
	var gotAddr string
	root := NewRootCmd(func(addr string) (QueueAdmin, error) {
		gotAddr = addr
		return admin, nil
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), gotAddr, err
}

func TestQueueStatsJSON(t *testing.T) {
	admin := &fakeAdmin{stats: jobs.QueueStats{Queue: jobs.QueueProctoring, Pending: 3, Archived: 1}}

	out, addr, err := run(t, admin, "queue", "stats", "-o", "json", "--redis", "redis:6380")
	require.NoError(t, err)

	var got jobs.QueueStats
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, admin.stats, got)
	assert.Equal(t, "redis:6380", addr)
	assert.True(t, admin.closed)
}

func TestQueueStatsTable(t *testing.T) {
	admin := &fakeAdmin{stats: jobs.QueueStats{Queue: jobs.QueueProctoring, Retry: 2}}

	out, _, err := run(t, admin, "queue", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "PENDING")
	assert.Contains(t, out, jobs.QueueProctoring)
}

func TestQueueFailedHonoursLimit(t *testing.T) {
	admin := &fakeAdmin{failed: []jobs.FailedTask{{
		ID: "t-1", ClientID: "c-1", Attempts: 3, LastError: "detection api returned status 503",
		LastFailed: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}}}

	out, _, err := run(t, admin, "queue", "failed", "--limit", "5")
	require.NoError(t, err)
	assert.Equal(t, 5, admin.limit)
	assert.Contains(t, out, "t-1")
	assert.Contains(t, out, "2024-05-01T10:00:00Z")

	out, _, err = run(t, &fakeAdmin{}, "queue", "failed")
	require.NoError(t, err)
	assert.Contains(t, out, "No failed jobs.")
}

func TestQueueRequeue(t *testing.T) {
	admin := &fakeAdmin{}

	out, _, err := run(t, admin, "queue", "requeue", "t-9")
	require.NoError(t, err)
	assert.Equal(t, []string{"t-9"}, admin.requeued)
	assert.Contains(t, out, "Requeued t-9")

	_, _, err = run(t, admin, "queue", "requeue", "missing")
	assert.ErrorContains(t, err, "task not found")

	_, _, err = run(t, admin, "queue", "requeue")
	assert.Error(t, err)
}

func TestRejectsUnknownOutput(t *testing.T) {
	_, _, err := run(t, &fakeAdmin{}, "queue", "stats", "-o", "yaml")
	assert.ErrorContains(t, err, "unsupported output format")
}
