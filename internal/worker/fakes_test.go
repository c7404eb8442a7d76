package worker

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/worker/queue"
)

type MockEvaluator struct {
	mock.Mock
}

func (m *MockEvaluator) Evaluate(ctx context.Context, submissionID string) error {
	args := m.Called(ctx, submissionID)
	return args.Error(0)
}

type MockRabbitMQPublisher struct {
	mock.Mock
}

func (m *MockRabbitMQPublisher) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	args := m.Called(ctx, exchange, routingKey, body)
	return args.Error(0)
}

// fakeConsumer отдаёт сообщения из канала, который наполняет тест.
type fakeConsumer struct {
	msgs   chan queue.SubmissionDelivery
	closed bool
	mu     sync.Mutex
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{msgs: make(chan queue.SubmissionDelivery, 10)}
}

func (c *fakeConsumer) Deliveries(context.Context) (<-chan queue.SubmissionDelivery, error) {
	return c.msgs, nil
}

func (c *fakeConsumer) QueueLength() (int, error) {
	return len(c.msgs), nil
}

func (c *fakeConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// delivery запоминает, чем закончилась обработка сообщения.
type delivery struct {
	mu      sync.Mutex
	acked   bool
	nacked  bool
	requeue bool
}

func (d *delivery) message(body []byte) queue.SubmissionDelivery {
	event, err := queue.DecodeSubmissionCreated(body)
	return queue.NewSubmissionDelivery(event, err, d)
}

func (d *delivery) Ack() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acked = true
	return nil
}

func (d *delivery) Requeue() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nacked = true
	d.requeue = true
	return nil
}

func (d *delivery) state() (acked, nacked, requeue bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acked, d.nacked, d.requeue
}
