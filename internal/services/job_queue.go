package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Renal37/dessert-aggregator/internal/logger"
	"go.uber.org/zap"
)

var (
	ErrJobQueueIsFull = errors.New("job queue is full")
	ErrJobQueueClosed = errors.New("job queue is closed")
)

// Job is a unit of background work executed by the queue workers.
type Job func(ctx context.Context)

// JobQueueService runs jobs on a fixed pool of workers.
type JobQueueService struct {
	jobs    chan Job       // Buffered queue of pending jobs.
	wg      sync.WaitGroup // Tracks running workers.
	mu      sync.RWMutex   // Guards sends against a concurrent close of jobs.
	closing int32          // 1 once Shutdown has started.
}

// NewJobQueueService starts workers that consume jobs until ctx is done
// or the queue is shut down.
func NewJobQueueService(ctx context.Context, capacity, workers int) *JobQueueService {
	service := &JobQueueService{
		jobs: make(chan Job, capacity),
	}
	service.start(ctx, workers)

	return service
}

func (jqs *JobQueueService) start(ctx context.Context, workers int) {
	for i := 0; i < workers; i++ {
		jqs.wg.Add(1)

		go func() {
			defer jqs.wg.Done()

			for {
				select {
				case job, ok := <-jqs.jobs:
					if !ok {
						return
					}
					job(ctx)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}

// Enqueue adds a job without blocking.
func (jqs *JobQueueService) Enqueue(job Job) error {
	jqs.mu.RLock()
	defer jqs.mu.RUnlock()

	if atomic.LoadInt32(&jqs.closing) == 1 {
		return ErrJobQueueClosed
	}

	select {
	case jqs.jobs <- job:
		return nil
	default:
		return ErrJobQueueIsFull
	}
}

// ScheduleJob enqueues job after delay.
func (jqs *JobQueueService) ScheduleJob(job Job, delay time.Duration) {
	time.AfterFunc(delay, func() {
		if err := jqs.Enqueue(job); err != nil {
			logger.Log.Error("failed to schedule job", zap.Error(err))
		}
	})
}

// Shutdown closes the queue and waits for the workers to exit.
func (jqs *JobQueueService) Shutdown() {
	if atomic.CompareAndSwapInt32(&jqs.closing, 0, 1) {
		jqs.mu.Lock()
		close(jqs.jobs)
		jqs.mu.Unlock()

		jqs.wg.Wait()
	}
}
