package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delayLog struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (d *delayLog) sleep(_ context.Context, delay time.Duration) error {
	d.mu.Lock()
	d.delays = append(d.delays, delay)
	d.mu.Unlock()
	return nil
}

func (d *delayLog) snapshot() []time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Duration(nil), d.delays...)
}

func runQueue(t *testing.T, handler asynq.HandlerFunc, log *delayLog) *MemoryQueue {
	t.Helper()
	q := NewMemoryQueue(handler, DefaultRetryPolicy, WithSleep(log.sleep))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = q.Run(ctx, 2)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return q
}

func TestAlwaysFailingJobIsAttemptedThreeTimesAndArchived(t *testing.T) {
	var attempts atomic.Int32
	log := &delayLog{}
	q := runQueue(t, func(context.Context, *asynq.Task) error {
		attempts.Add(1)
		return errors.New("detection api returned status 502")
	}, log)

	id, err := q.EnqueueProctoring(context.Background(), ProctoringPayload{Image: "aGk=", ClientID: "client-1"})
	require.NoError(t, err)
	q.Wait()

	assert.Equal(t, int32(3), attempts.Load())
	delays := log.snapshot()
	require.Len(t, delays, 2)
	assert.Less(t, delays[0], delays[1])

	failed, err := q.Failed(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, id, failed[0].ID)
	assert.Equal(t, "client-1", failed[0].ClientID)
	assert.Equal(t, 3, failed[0].Attempts)

	stats, _ := q.Stats(context.Background())
	assert.Equal(t, 1, stats.Archived)
	assert.Zero(t, stats.Processed)
}

func TestJobSucceedingOnSecondAttemptIsPurged(t *testing.T) {
	var attempts atomic.Int32
	log := &delayLog{}
	q := runQueue(t, func(context.Context, *asynq.Task) error {
		if attempts.Add(1) == 1 {
			return errors.New("timeout")
		}
		return nil
	}, log)

	_, err := q.EnqueueProctoring(context.Background(), ProctoringPayload{Image: "aGk=", ClientID: "c"})
	require.NoError(t, err)
	q.Wait()

	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, []time.Duration{2 * time.Second}, log.snapshot())

	stats, _ := q.Stats(context.Background())
	assert.Equal(t, QueueStats{Queue: QueueProctoring, Processed: 1}, stats)
	failed, _ := q.Failed(context.Background(), 10)
	assert.Empty(t, failed)
}

func TestSkipRetryArchivesImmediately(t *testing.T) {
	var attempts atomic.Int32
	log := &delayLog{}
	q := runQueue(t, func(context.Context, *asynq.Task) error {
		attempts.Add(1)
		return asynq.SkipRetry
	}, log)

	_, err := q.EnqueueProctoring(context.Background(), ProctoringPayload{Image: "aGk=", ClientID: "c"})
	require.NoError(t, err)
	q.Wait()

	assert.Equal(t, int32(1), attempts.Load())
	assert.Empty(t, log.snapshot())
	stats, _ := q.Stats(context.Background())
	assert.Equal(t, 1, stats.Archived)
}

func TestShutdownDuringBackoffArchivesWithAttemptsMade(t *testing.T) {
	var attempts atomic.Int32
	q := NewMemoryQueue(asynq.HandlerFunc(func(context.Context, *asynq.Task) error {
		attempts.Add(1)
		return errors.New("detection api returned status 503")
	}), DefaultRetryPolicy, WithSleep(func(context.Context, time.Duration) error {
		return context.Canceled
	}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = q.Run(ctx, 1)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	id, err := q.EnqueueProctoring(context.Background(), ProctoringPayload{Image: "aGk=", ClientID: "c"})
	require.NoError(t, err)
	q.Wait()

	assert.Equal(t, int32(1), attempts.Load())
	failed, err := q.Failed(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, id, failed[0].ID)
	assert.Equal(t, 1, failed[0].Attempts)
	assert.Equal(t, context.Canceled.Error(), failed[0].LastError)
}
