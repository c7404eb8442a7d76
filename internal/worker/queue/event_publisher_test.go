package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/models"
)

type MockRabbitMQPublisher struct {
	mock.Mock
}

func (m *MockRabbitMQPublisher) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	args := m.Called(ctx, exchange, routingKey, body)
	return args.Error(0)
}

func TestRabbitMQEventPublisher(t *testing.T) {
	event := &models.EvaluationCompletedEvent{
		SubmissionID:   "sub-1",
		FeedbackID:     "fb-1",
		Score:          42,
		PlagiarismRisk: 3.5,
	}

	t.Run("publishes json body with configured routing", func(t *testing.T) {
		pub := new(MockRabbitMQPublisher)
		pub.On("Publish", mock.Anything, "evaluation_exchange", "submission.evaluated", mock.MatchedBy(func(body []byte) bool {
			var got models.EvaluationCompletedEvent
			return json.Unmarshal(body, &got) == nil && got == *event
		})).Return(nil)

		p := NewRabbitMQEventPublisher(pub, "evaluation_exchange", "submission.evaluated", zerolog.Nop())

		require.NoError(t, p.PublishEvaluationCompleted(context.Background(), event))
		pub.AssertExpectations(t)
	})

	t.Run("wraps publish error", func(t *testing.T) {
		pub := new(MockRabbitMQPublisher)
		boom := errors.New("channel closed")
		pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(boom)

		p := NewRabbitMQEventPublisher(pub, "ex", "rk", zerolog.Nop())

		err := p.PublishEvaluationCompleted(context.Background(), event)
		assert.ErrorIs(t, err, boom)
	})
}

func TestNoopEventPublisher(t *testing.T) {
	p := NewNoopEventPublisher()

	assert.NoError(t, p.PublishEvaluationCompleted(context.Background(), &models.EvaluationCompletedEvent{}))
	assert.NoError(t, p.Close())
}
