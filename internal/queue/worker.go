package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler processes one claimed job.
type Handler func(ctx context.Context, job Job) error

// Worker drains the Redis queue and dispatches jobs to registered handlers.
// Delivery is at-least-once; handlers own their retry policy (typically a
// delayed re-enqueue).
type Worker struct {
	queue  *RedisQueue
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[string]Handler

	pollInterval time.Duration
	batchSize    int
}

// NewWorker builds a worker over the given queue.
func NewWorker(queue *RedisQueue, logger *zap.Logger) *Worker {
	return &Worker{
		queue:        queue,
		logger:       logger,
		handlers:     make(map[string]Handler),
		pollInterval: time.Second,
		batchSize:    50,
	}
}

// Register binds a handler to a job type.
func (w *Worker) Register(jobType string, handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

// Run polls for due jobs until the context is cancelled. The default transport
// is drained before the low-priority one on every tick.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx, TransportDefault)
			w.drain(ctx, TransportLow)
		}
	}
}

func (w *Worker) drain(ctx context.Context, transport string) {
	jobs, err := w.queue.PopDue(ctx, transport, w.batchSize)
	if err != nil {
		w.logger.Error("pop due jobs", zap.String("transport", transport), zap.Error(err))
		return
	}

	for _, job := range jobs {
		w.mu.RLock()
		handler, ok := w.handlers[job.Type]
		w.mu.RUnlock()

		if !ok {
			w.logger.Warn("no handler for job", zap.String("type", job.Type), zap.String("job_id", job.ID))
			continue
		}
		if err := handler(ctx, job); err != nil {
			w.logger.Error("job handler failed",
				zap.String("type", job.Type),
				zap.String("job_id", job.ID),
				zap.Error(err))
		}
	}
}
