package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrQueueFull   = errors.New("evaluation queue is full")
	ErrPoolStopped = errors.New("worker pool is stopped")
)

type Task func() error

type PoolStats struct {
	ActiveWorkers int   `json:"active_workers"`
	MaxWorkers    int   `json:"max_workers"`
	QueueLength   int   `json:"queue_length"`
	QueueCapacity int   `json:"queue_capacity"`
	Processed     int64 `json:"processed"`
	Failed        int64 `json:"failed"`
	Rejected      int64 `json:"rejected"`
}

// WorkerPool: фиксированное число воркеров и ограниченная очередь.
// Submit ждёт не дольше enqueueTimeout, затем возвращает ErrQueueFull.
type WorkerPool struct {
	tasks          chan Task
	wg             sync.WaitGroup
	maxWorkers     int
	enqueueTimeout time.Duration
	logger         zerolog.Logger

	mu      sync.RWMutex
	started bool
	stopped bool

	active    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

func NewWorkerPool(maxWorkers, queueSize int, enqueueTimeout time.Duration, logger zerolog.Logger) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	return &WorkerPool{
		tasks:          make(chan Task, queueSize),
		maxWorkers:     maxWorkers,
		enqueueTimeout: enqueueTimeout,
		logger:         logger,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.stopped {
		return ErrPoolStopped
	}
	if wp.started {
		return nil
	}
	wp.started = true

	wp.logger.Info().Int("max_workers", wp.maxWorkers).Int("queue_size", cap(wp.tasks)).Msg("Starting worker pool")

	for i := 0; i < wp.maxWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	return nil
}

// Stop закрывает очередь и дожидается выполнения уже принятых задач.
func (wp *WorkerPool) Stop() error {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return nil
	}
	wp.stopped = true
	close(wp.tasks)
	wp.mu.Unlock()

	wp.logger.Info().Msg("Stopping worker pool")
	wp.wg.Wait()

	wp.logger.Info().
		Int64("processed", wp.processed.Load()).
		Int64("failed", wp.failed.Load()).
		Msg("Worker pool stopped")
	return nil
}

func (wp *WorkerPool) Submit(task Task) error {
	// RLock держится на время отправки, чтобы Stop не закрыл канал под нами
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped {
		return ErrPoolStopped
	}

	select {
	case wp.tasks <- task:
		return nil
	default:
	}

	wp.logger.Warn().Int("queue_length", len(wp.tasks)).Msg("Worker pool task queue is full")

	timer := time.NewTimer(wp.enqueueTimeout)
	defer timer.Stop()

	select {
	case wp.tasks <- task:
		return nil
	case <-timer.C:
		wp.rejected.Add(1)
		wp.logger.Error().Dur("timeout", wp.enqueueTimeout).Msg("Failed to submit task to worker pool (timeout)")
		return ErrQueueFull
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	wp.logger.Debug().Int("worker_id", id).Msg("Worker started")

	for task := range wp.tasks {
		wp.run(id, task)
	}

	wp.logger.Debug().Int("worker_id", id).Msg("Worker stopped")
}

func (wp *WorkerPool) run(id int, task Task) {
	wp.active.Add(1)
	defer wp.active.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			wp.failed.Add(1)
			wp.logger.Error().
				Int("worker_id", id).
				Interface("panic", r).
				Msg("Worker recovered from panic")
		}
	}()

	if err := task(); err != nil {
		wp.failed.Add(1)
		wp.logger.Error().Err(err).Int("worker_id", id).Msg("Task failed")
		return
	}

	wp.processed.Add(1)
}

func (wp *WorkerPool) Stats() PoolStats {
	return PoolStats{
		ActiveWorkers: int(wp.active.Load()),
		MaxWorkers:    wp.maxWorkers,
		QueueLength:   len(wp.tasks),
		QueueCapacity: cap(wp.tasks),
		Processed:     wp.processed.Load(),
		Failed:        wp.failed.Load(),
		Rejected:      wp.rejected.Load(),
	}
}
