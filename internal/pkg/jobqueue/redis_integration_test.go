package jobqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mybizz/mybizz/internal/pkg/hub"
)

func TestRetryScheduleDueOrderAndRemove(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	s := NewRetrySchedule(client)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Schedule(ctx, 3, now.Add(-time.Minute)))
	require.NoError(t, s.Schedule(ctx, 1, now.Add(-2*time.Minute)))
	require.NoError(t, s.Schedule(ctx, 2, now.Add(time.Hour)))

	due, err := s.Due(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 3}, due)

	// rescheduling overwrites the score
	require.NoError(t, s.Schedule(ctx, 3, now.Add(time.Hour)))
	due, err = s.Due(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, due)

	require.NoError(t, s.Remove(ctx, 1))
	size, err := s.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)
}

func TestQueueProcessesForwardJob(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	q := NewQueueWithClient(client, 1)

	done := make(chan hub.ForwardJob, 1)
	q.RegisterHandler(JobTypeForwardToHub, ForwardHandler(forwardRunnerFunc(func(ctx context.Context, job hub.ForwardJob) error {
		done <- job
		return nil
	})))

	require.NoError(t, q.EnqueueForward(context.Background(), hub.ForwardJob{LogID: 5, EventID: "evt_5", Payload: []byte("{}")}))

	q.Start()
	defer q.Stop()

	select {
	case job := <-done:
		assert.Equal(t, uint(5), job.LogID)
	case <-time.After(5 * time.Second):
		t.Fatal("forward job was not processed")
	}
}
