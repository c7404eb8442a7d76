package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/models"
)

var ErrEmptySubmissionID = errors.New("empty submission_id")

// Settler подтверждает доставку или возвращает её брокеру.
type Settler interface {
	Ack() error
	Requeue() error
}

// SubmissionDelivery: событие о новой сдаче, уже разобранное из тела сообщения.
type SubmissionDelivery struct {
	Event models.SubmissionCreatedEvent
	// DecodeErr выставлен, если тело не разобрать: повторная доставка не поможет.
	DecodeErr   error
	Redelivered bool
	ReceivedAt  time.Time

	settler Settler
}

func NewSubmissionDelivery(event models.SubmissionCreatedEvent, decodeErr error, settler Settler) SubmissionDelivery {
	return SubmissionDelivery{
		Event:      event,
		DecodeErr:  decodeErr,
		ReceivedAt: time.Now(),
		settler:    settler,
	}
}

func (d SubmissionDelivery) Ack() error     { return d.settler.Ack() }
func (d SubmissionDelivery) Requeue() error { return d.settler.Requeue() }

func DecodeSubmissionCreated(body []byte) (models.SubmissionCreatedEvent, error) {
	var event models.SubmissionCreatedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal submission event: %w", err)
	}

	event.SubmissionID = strings.TrimSpace(event.SubmissionID)
	if event.SubmissionID == "" {
		return event, ErrEmptySubmissionID
	}

	return event, nil
}

type amqpSettler struct {
	delivery amqp.Delivery
}

func (s amqpSettler) Ack() error     { return s.delivery.Ack(false) }
func (s amqpSettler) Requeue() error { return s.delivery.Nack(false, true) }

func fromAMQP(msg amqp.Delivery) SubmissionDelivery {
	event, err := DecodeSubmissionCreated(msg.Body)

	d := NewSubmissionDelivery(event, err, amqpSettler{delivery: msg})
	d.Redelivered = msg.Redelivered
	if !msg.Timestamp.IsZero() {
		d.ReceivedAt = msg.Timestamp
	}
	return d
}

// SubmissionConsumer отдаёт события submission.created из очереди.
type SubmissionConsumer interface {
	Deliveries(ctx context.Context) (<-chan SubmissionDelivery, error)
	QueueLength() (int, error)
	Close() error
}

type rabbitMQSubmissionConsumer struct {
	channel       *amqp.Channel
	queue         string
	consumerTag   string
	prefetchCount int
	logger        zerolog.Logger
}

func NewRabbitMQConsumer(channel *amqp.Channel, queue, consumerTag string, prefetchCount int, logger zerolog.Logger) SubmissionConsumer {
	if prefetchCount < 1 {
		prefetchCount = 1
	}

	return &rabbitMQSubmissionConsumer{
		channel:       channel,
		queue:         queue,
		consumerTag:   consumerTag,
		prefetchCount: prefetchCount,
		logger:        logger.With().Str("queue", queue).Logger(),
	}
}

func (c *rabbitMQSubmissionConsumer) Deliveries(ctx context.Context) (<-chan SubmissionDelivery, error) {
	msgs, err := c.subscribe()
	if err != nil {
		return nil, err
	}

	out := make(chan SubmissionDelivery)
	go c.forward(ctx, msgs, out)

	c.logger.Info().
		Str("consumer_tag", c.consumerTag).
		Int("prefetch", c.prefetchCount).
		Msg("Submission consumer started")

	return out, nil
}

// subscribe ограничивает число неподтверждённых сообщений размером prefetch.
func (c *rabbitMQSubmissionConsumer) subscribe() (<-chan amqp.Delivery, error) {
	if err := c.channel.Qos(c.prefetchCount, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	msgs, err := c.channel.Consume(c.queue, c.consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", c.queue, err)
	}

	return msgs, nil
}

func (c *rabbitMQSubmissionConsumer) forward(ctx context.Context, msgs <-chan amqp.Delivery, out chan<- SubmissionDelivery) {
	defer close(out)

	for {
		var (
			msg amqp.Delivery
			ok  bool
		)
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Submission consumer stopped")
			return
		case msg, ok = <-msgs:
		}
		if !ok {
			c.logger.Warn().Msg("Broker closed the delivery channel")
			return
		}

		d := fromAMQP(msg)
		if d.DecodeErr != nil {
			c.logger.Warn().Err(d.DecodeErr).Uint64("delivery_tag", msg.DeliveryTag).Msg("Malformed submission event")
		}

		select {
		case out <- d:
		case <-ctx.Done():
			if err := d.Requeue(); err != nil {
				c.logger.Error().Err(err).Msg("Failed to requeue delivery on shutdown")
			}
			return
		}
	}
}

func (c *rabbitMQSubmissionConsumer) QueueLength() (int, error) {
	q, err := c.channel.QueueDeclarePassive(c.queue, true, false, false, false, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue %s: %w", c.queue, err)
	}
	return q.Messages, nil
}

func (c *rabbitMQSubmissionConsumer) Close() error {
	if c.channel == nil {
		return nil
	}
	if err := c.channel.Cancel(c.consumerTag, false); err != nil {
		return fmt.Errorf("failed to cancel consumer %s: %w", c.consumerTag, err)
	}
	c.logger.Info().Msg("Submission consumer closed")
	return nil
}
