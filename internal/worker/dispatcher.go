package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/models"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/worker/queue"
)

// Evaluator оценивает одну работу по id.
type Evaluator interface {
	Evaluate(ctx context.Context, submissionID string) error
}

// Dispatcher передаёт сохранённую pending-работу на асинхронную оценку.
// Dispatch не ждёт окончания оценки.
type Dispatcher interface {
	Dispatch(ctx context.Context, submission *models.Submission) error
}

type LocalDispatcher struct {
	pool      *WorkerPool
	evaluator Evaluator
	timeout   time.Duration
	logger    zerolog.Logger
}

func NewLocalDispatcher(pool *WorkerPool, evaluator Evaluator, timeout time.Duration, logger zerolog.Logger) *LocalDispatcher {
	return &LocalDispatcher{
		pool:      pool,
		evaluator: evaluator,
		timeout:   timeout,
		logger:    logger,
	}
}

func (d *LocalDispatcher) Dispatch(ctx context.Context, submission *models.Submission) error {
	submissionID := submission.ID
	// Оценка переживает запрос, который её создал
	base := context.WithoutCancel(ctx)

	err := d.pool.Submit(func() error {
		return evaluateWithTimeout(base, d.evaluator, submissionID, d.timeout)
	})
	if err != nil {
		return fmt.Errorf("failed to dispatch submission %s: %w", submissionID, err)
	}

	d.logger.Debug().Str("submission_id", submissionID).Msg("Submission dispatched to worker pool")
	return nil
}

func evaluateWithTimeout(ctx context.Context, evaluator Evaluator, submissionID string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return evaluator.Evaluate(ctx, submissionID)
}

type QueueDispatcher struct {
	publisher  queue.RabbitMQPublisher
	exchange   string
	routingKey string
	logger     zerolog.Logger
}

func NewQueueDispatcher(publisher queue.RabbitMQPublisher, exchange, routingKey string, logger zerolog.Logger) *QueueDispatcher {
	return &QueueDispatcher{
		publisher:  publisher,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
	}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, submission *models.Submission) error {
	event := models.SubmissionCreatedEvent{
		SubmissionID: submission.ID,
		AssignmentID: submission.AssignmentID,
		StudentID:    submission.StudentID,
		Timestamp:    time.Now().Unix(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal submission created event: %w", err)
	}

	if err := d.publisher.Publish(ctx, d.exchange, d.routingKey, body); err != nil {
		return fmt.Errorf("failed to publish submission created event: %w", err)
	}

	d.logger.Info().
		Str("submission_id", submission.ID).
		Str("routing_key", d.routingKey).
		Msg("Submission created event published")

	return nil
}
