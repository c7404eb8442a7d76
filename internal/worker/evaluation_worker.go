package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/worker/queue"
)

type WorkerStats struct {
	Pool           PoolStats `json:"pool"`
	TotalProcessed int       `json:"total_processed"`
	FailedJobs     int       `json:"failed_jobs"`
	Requeued       int       `json:"requeued"`
	QueueLength    int       `json:"queue_length"`
}

// EvaluationWorker читает SubmissionCreatedEvent из RabbitMQ и отдаёт их в пул.
type EvaluationWorker interface {
	Start(ctx context.Context) error
	Stop() error
	GetStats() WorkerStats
}

type evaluationWorker struct {
	workerPool    *WorkerPool
	queueConsumer queue.SubmissionConsumer
	evaluator     Evaluator
	timeout       time.Duration
	logger        zerolog.Logger

	stats      WorkerStats
	statsMutex sync.RWMutex
	startTime  time.Time
}

func NewEvaluationWorker(
	workerPool *WorkerPool,
	queueConsumer queue.SubmissionConsumer,
	evaluator Evaluator,
	timeout time.Duration,
	logger zerolog.Logger,
) EvaluationWorker {
	return &evaluationWorker{
		workerPool:    workerPool,
		queueConsumer: queueConsumer,
		evaluator:     evaluator,
		timeout:       timeout,
		logger:        logger,
		startTime:     time.Now(),
	}
}

func (w *evaluationWorker) Start(ctx context.Context) error {
	w.logger.Info().Msg("Starting evaluation worker...")

	msgs, err := w.queueConsumer.Deliveries(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}

	go w.processMessages(ctx, msgs)

	w.logger.Info().Msg("Evaluation worker started successfully")
	return nil
}

func (w *evaluationWorker) Stop() error {
	w.logger.Info().Msg("Stopping evaluation worker...")

	if err := w.queueConsumer.Close(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to close queue consumer")
	}

	stats := w.GetStats()
	w.logger.Info().
		Int("total_processed", stats.TotalProcessed).
		Int("failed_jobs", stats.FailedJobs).
		Dur("uptime", time.Since(w.startTime)).
		Msg("Evaluation worker stopped")

	return nil
}

func (w *evaluationWorker) processMessages(ctx context.Context, deliveries <-chan queue.SubmissionDelivery) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Stopping message processing")
			return
		case d, ok := <-deliveries:
			if !ok {
				w.logger.Warn().Msg("Delivery channel closed")
				return
			}
			w.handle(ctx, d)
		}
	}
}

func (w *evaluationWorker) handle(ctx context.Context, d queue.SubmissionDelivery) {
	base := context.WithoutCancel(ctx)

	err := w.workerPool.Submit(func() error {
		err := w.processDelivery(base, d)
		w.settle(d, err)
		return err
	})
	if err != nil {
		// Пул переполнен или остановлен: сообщение вернётся в очередь
		w.logger.Warn().Err(err).Msg("Failed to submit delivery to worker pool, requeueing")
		w.incr(func(s *WorkerStats) { s.Requeued++ })
		if reqErr := d.Requeue(); reqErr != nil {
			w.logger.Error().Err(reqErr).Msg("Failed to requeue delivery")
		}
	}
}

func (w *evaluationWorker) settle(d queue.SubmissionDelivery, err error) {
	if err == nil {
		if ackErr := d.Ack(); ackErr != nil {
			w.logger.Error().Err(ackErr).Msg("Failed to ack delivery")
		}
		w.incr(func(s *WorkerStats) { s.TotalProcessed++ })
		return
	}

	w.incr(func(s *WorkerStats) { s.FailedJobs++ })

	if IsPermanent(err) {
		if ackErr := d.Ack(); ackErr != nil {
			w.logger.Error().Err(ackErr).Msg("Failed to ack delivery")
		}
		return
	}

	if reqErr := d.Requeue(); reqErr != nil {
		w.logger.Error().Err(reqErr).Msg("Failed to requeue delivery")
	}
}

func (w *evaluationWorker) processDelivery(ctx context.Context, d queue.SubmissionDelivery) error {
	if d.DecodeErr != nil {
		return Permanent(fmt.Errorf("malformed submission event: %w", d.DecodeErr))
	}

	w.logger.Info().
		Str("submission_id", d.Event.SubmissionID).
		Str("assignment_id", d.Event.AssignmentID).
		Bool("redelivered", d.Redelivered).
		Dur("queued_for", time.Since(d.ReceivedAt)).
		Msg("Processing submission evaluation")

	return evaluateWithTimeout(ctx, w.evaluator, d.Event.SubmissionID, w.timeout)
}

func (w *evaluationWorker) incr(fn func(s *WorkerStats)) {
	w.statsMutex.Lock()
	fn(&w.stats)
	w.statsMutex.Unlock()
}

func (w *evaluationWorker) GetStats() WorkerStats {
	w.statsMutex.RLock()
	stats := w.stats
	w.statsMutex.RUnlock()

	if queueLength, err := w.queueConsumer.QueueLength(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to get queue length")
	} else {
		stats.QueueLength = queueLength
	}

	stats.Pool = w.workerPool.Stats()
	return stats
}
