package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/models"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/pkg/kafka"
)

// EventPublisher сообщает внешним подписчикам о завершённой оценке.
type EventPublisher interface {
	PublishEvaluationCompleted(ctx context.Context, event *models.EvaluationCompletedEvent) error
	Close() error
}

type noopEventPublisher struct{}

func NewNoopEventPublisher() EventPublisher {
	return noopEventPublisher{}
}

func (noopEventPublisher) PublishEvaluationCompleted(context.Context, *models.EvaluationCompletedEvent) error {
	return nil
}

func (noopEventPublisher) Close() error { return nil }

type rabbitMQEventPublisher struct {
	publisher  RabbitMQPublisher
	exchange   string
	routingKey string
	logger     zerolog.Logger
}

func NewRabbitMQEventPublisher(publisher RabbitMQPublisher, exchange, routingKey string, logger zerolog.Logger) EventPublisher {
	return &rabbitMQEventPublisher{
		publisher:  publisher,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
	}
}

func (p *rabbitMQEventPublisher) PublishEvaluationCompleted(ctx context.Context, event *models.EvaluationCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation completed event: %w", err)
	}

	if err := p.publisher.Publish(ctx, p.exchange, p.routingKey, body); err != nil {
		return fmt.Errorf("failed to publish evaluation completed event: %w", err)
	}

	p.logger.Debug().
		Str("submission_id", event.SubmissionID).
		Str("routing_key", p.routingKey).
		Msg("Evaluation completed event published")

	return nil
}

// Канал принадлежит RabbitMQRepository и закрывается им.
func (p *rabbitMQEventPublisher) Close() error { return nil }

type kafkaEventPublisher struct {
	producer *kafka.Producer
	topic    string
	logger   zerolog.Logger
}

func NewKafkaEventPublisher(producer *kafka.Producer, topic string, logger zerolog.Logger) EventPublisher {
	return &kafkaEventPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

func (p *kafkaEventPublisher) PublishEvaluationCompleted(ctx context.Context, event *models.EvaluationCompletedEvent) error {
	if err := p.producer.Send(ctx, p.topic, event.SubmissionID, event); err != nil {
		return fmt.Errorf("failed to send evaluation completed event: %w", err)
	}

	p.logger.Debug().
		Str("submission_id", event.SubmissionID).
		Str("topic", p.topic).
		Msg("Evaluation completed event sent")

	return nil
}

func (p *kafkaEventPublisher) Close() error {
	return p.producer.Close()
}
