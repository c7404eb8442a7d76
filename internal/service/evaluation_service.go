package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/models"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/repository"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/service/scoring"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/worker"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/worker/queue"
)

const markFailedTimeout = 5 * time.Second

var unfinishedStatuses = []models.SubmissionStatus{models.SubmissionStatusPending, models.SubmissionStatusFailed}

// EvaluationService превращает pending-работу в оценённую.
type EvaluationService interface {
	Evaluate(ctx context.Context, submissionID string) error
}

type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type evaluationService struct {
	submissionRepo repository.SubmissionRepository
	feedbackRepo   repository.FeedbackRepository
	transactor     repository.Transactor
	engine         *scoring.Engine
	events         queue.EventPublisher
	retry          RetryPolicy
	logger         zerolog.Logger
}

func NewEvaluationService(
	submissionRepo repository.SubmissionRepository,
	feedbackRepo repository.FeedbackRepository,
	transactor repository.Transactor,
	engine *scoring.Engine,
	events queue.EventPublisher,
	retry RetryPolicy,
	logger zerolog.Logger,
) EvaluationService {
	if events == nil {
		events = queue.NewNoopEventPublisher()
	}

	return &evaluationService{
		submissionRepo: submissionRepo,
		feedbackRepo:   feedbackRepo,
		transactor:     transactor,
		engine:         engine,
		events:         events,
		retry:          retry,
		logger:         logger,
	}
}

func (s *evaluationService) Evaluate(ctx context.Context, submissionID string) error {
	log := s.logger.With().Str("submission_id", submissionID).Logger()
	startTime := time.Now()

	if _, err := uuid.Parse(submissionID); err != nil {
		return worker.Permanent(fmt.Errorf("%w: %s", ErrSubmissionNotFound, submissionID))
	}

	var submission *models.Submission
	err := s.withRetry(ctx, log, "load submission", func() error {
		var err error
		submission, err = s.submissionRepo.GetByID(ctx, submissionID)
		if errors.Is(err, repository.ErrNotFound) {
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrSubmissionNotFound, submissionID))
		}
		return err
	})
	if errors.Is(err, ErrSubmissionNotFound) {
		return worker.Permanent(err)
	}
	if err != nil {
		return s.fail(log, submissionID, fmt.Errorf("failed to load submission: %w", err))
	}

	done, err := s.alreadyEvaluated(ctx, log, submission)
	if err != nil {
		return s.fail(log, submissionID, err)
	}
	if done {
		return nil
	}

	peers, err := s.peers(ctx, log, submission)
	if err != nil {
		return s.fail(log, submissionID, err)
	}

	result := s.engine.Evaluate(submission.Content, peers)

	feedback := &models.Feedback{
		ID:               uuid.New().String(),
		SubmissionID:     submission.ID,
		PlagiarismRisk:   result.PlagiarismRisk,
		FeedbackSummary:  result.Summary,
		Score:            result.Score,
		DetailedFeedback: result.DetailedFeedback,
		CreatedAt:        time.Now(),
	}

	err = s.withRetry(ctx, log, "store feedback", func() error {
		err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
			// Сначала feedback, затем статус: оба коммитятся вместе
			if err := s.feedbackRepo.Create(ctx, feedback); err != nil {
				return fmt.Errorf("failed to create feedback: %w", err)
			}
			if err := s.submissionRepo.UpdateStatus(ctx, submission.ID, models.SubmissionStatusEvaluated); err != nil {
				return fmt.Errorf("failed to update submission status: %w", err)
			}
			return nil
		})
		if errors.Is(err, repository.ErrAlreadyExists) || errors.Is(err, repository.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	})
	switch {
	case errors.Is(err, repository.ErrAlreadyExists):
		// Параллельная доставка успела раньше
		log.Warn().Msg("Feedback already stored by a concurrent evaluation")
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return worker.Permanent(fmt.Errorf("%w: %s", ErrSubmissionNotFound, submissionID))
	case err != nil:
		return s.fail(log, submissionID, err)
	}

	log.Info().
		Str("assignment_id", submission.AssignmentID).
		Int("word_count", result.WordCount).
		Int("score", result.Score).
		Float64("plagiarism_risk", result.PlagiarismRisk).
		Dur("duration", time.Since(startTime)).
		Msg("Submission evaluated")

	s.publish(ctx, log, submission, feedback)
	return nil
}

// alreadyEvaluated делает повторную доставку идемпотентной.
func (s *evaluationService) alreadyEvaluated(ctx context.Context, log zerolog.Logger, submission *models.Submission) (bool, error) {
	var existing *models.Feedback
	err := s.withRetry(ctx, log, "check feedback", func() error {
		var err error
		existing, err = s.feedbackRepo.GetBySubmissionID(ctx, submission.ID)
		if errors.Is(err, repository.ErrNotFound) {
			existing = nil
			return nil
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to check existing feedback: %w", err)
	}
	if existing == nil {
		return false, nil
	}

	log.Warn().Str("feedback_id", existing.ID).Msg("Feedback already exists, skipping evaluation")

	if submission.Status == models.SubmissionStatusPending || submission.Status == models.SubmissionStatusFailed {
		err := s.withRetry(ctx, log, "repair status", func() error {
			_, err := s.submissionRepo.TransitionStatus(ctx, submission.ID, unfinishedStatuses, models.SubmissionStatusEvaluated)
			return err
		})
		if err != nil {
			return false, fmt.Errorf("failed to repair submission status: %w", err)
		}
	}

	return true, nil
}

func (s *evaluationService) peers(ctx context.Context, log zerolog.Logger, submission *models.Submission) ([]string, error) {
	if !s.engine.UsesPeers() {
		return nil, nil
	}

	var others []models.Submission
	err := s.withRetry(ctx, log, "load peers", func() error {
		var err error
		others, err = s.submissionRepo.ListByAssignment(ctx, submission.AssignmentID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load peer submissions: %w", err)
	}

	peers := make([]string, 0, len(others))
	for _, other := range others {
		if other.ID == submission.ID {
			continue
		}
		peers = append(peers, other.Content)
	}
	return peers, nil
}

func (s *evaluationService) withRetry(ctx context.Context, log zerolog.Logger, op string, fn func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.retry.InitialInterval
	exp.MaxInterval = s.retry.MaxInterval
	exp.MaxElapsedTime = 0

	maxRetries := s.retry.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(maxRetries)), ctx)

	attempt := 0
	return backoff.RetryNotify(fn, policy, func(err error, next time.Duration) {
		attempt++
		log.Warn().
			Err(err).
			Str("operation", op).
			Int("attempt", attempt).
			Dur("next_retry", next).
			Msg("Store operation failed, retrying")
	})
}

// fail переводит pending в failed, чтобы зависшая оценка была видна и могла быть перезапущена.
// Уже оценённую работу не трогает.
func (s *evaluationService) fail(log zerolog.Logger, submissionID string, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), markFailedTimeout)
	defer cancel()

	log.Error().Err(cause).Msg("Submission evaluation failed")

	marked, err := s.submissionRepo.TransitionStatus(ctx, submissionID,
		[]models.SubmissionStatus{models.SubmissionStatusPending}, models.SubmissionStatusFailed)
	switch {
	case err != nil:
		log.Error().Err(err).Msg("Failed to mark submission as failed")
	case !marked:
		log.Warn().Msg("Submission is no longer pending, status left unchanged")
	}

	return cause
}

func (s *evaluationService) publish(ctx context.Context, log zerolog.Logger, submission *models.Submission, feedback *models.Feedback) {
	event := &models.EvaluationCompletedEvent{
		SubmissionID:   submission.ID,
		FeedbackID:     feedback.ID,
		AssignmentID:   submission.AssignmentID,
		StudentID:      submission.StudentID,
		Score:          feedback.Score,
		PlagiarismRisk: feedback.PlagiarismRisk,
		Timestamp:      time.Now().Unix(),
	}

	if err := s.events.PublishEvaluationCompleted(ctx, event); err != nil {
		log.Error().Err(err).Msg("Failed to publish evaluation completed event")
	}
}
