package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobQueueService_RunsJobs(t *testing.T) {
	queue := NewJobQueueService(context.Background(), 10, 2)

	var done int32
	for i := 0; i < 5; i++ {
		require.NoError(t, queue.Enqueue(func(ctx context.Context) {
			atomic.AddInt32(&done, 1)
		}))
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&done) == 5 }, time.Second, 10*time.Millisecond)

	queue.Shutdown()
	assert.ErrorIs(t, queue.Enqueue(func(ctx context.Context) {}), ErrJobQueueClosed)
}

func TestJobQueueService_Full(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	queue := NewJobQueueService(context.Background(), 1, 1)
	defer func() {
		close(release)
		queue.Shutdown()
	}()

	require.NoError(t, queue.Enqueue(func(ctx context.Context) {
		close(started)
		<-release
	}))
	<-started

	require.NoError(t, queue.Enqueue(func(ctx context.Context) {}))
	assert.ErrorIs(t, queue.Enqueue(func(ctx context.Context) {}), ErrJobQueueIsFull)
}

func TestJobQueueService_ScheduleJob(t *testing.T) {
	queue := NewJobQueueService(context.Background(), 1, 1)
	defer queue.Shutdown()

	var done int32
	queue.ScheduleJob(func(ctx context.Context) {
		atomic.StoreInt32(&done, 1)
	}, 20*time.Millisecond)

	assert.Equal(t, int32(0), atomic.LoadInt32(&done))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&done) == 1 }, time.Second, 10*time.Millisecond)
}
