package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/models"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/repository"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/worker"
)

type SubmissionService interface {
	Create(ctx context.Context, req *models.CreateSubmissionRequest) (*models.Submission, error)
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	GetWithFeedback(ctx context.Context, id string) (*models.SubmissionWithFeedback, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Submission, error)
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error)
	GetFeedback(ctx context.Context, submissionID string) (*models.Feedback, error)
	RetryFailed(ctx context.Context, limit int) (int, error)
}

type submissionService struct {
	submissionRepo repository.SubmissionRepository
	feedbackRepo   repository.FeedbackRepository
	assignmentRepo repository.AssignmentRepository
	storage        repository.AttachmentStorage
	dispatcher     worker.Dispatcher
	validate       *validator.Validate
	logger         zerolog.Logger
}

// storage может быть nil: тогда вложения не принимаются.
func NewSubmissionService(
	submissionRepo repository.SubmissionRepository,
	feedbackRepo repository.FeedbackRepository,
	assignmentRepo repository.AssignmentRepository,
	storage repository.AttachmentStorage,
	dispatcher worker.Dispatcher,
	validate *validator.Validate,
	logger zerolog.Logger,
) SubmissionService {
	return &submissionService{
		submissionRepo: submissionRepo,
		feedbackRepo:   feedbackRepo,
		assignmentRepo: assignmentRepo,
		storage:        storage,
		dispatcher:     dispatcher,
		validate:       validate,
		logger:         logger,
	}
}

func (s *submissionService) Create(ctx context.Context, req *models.CreateSubmissionRequest) (*models.Submission, error) {
	if req == nil {
		return nil, invalidArgument("empty request")
	}
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return nil, validationError(err)
	}
	if req.Attachment != nil && s.storage == nil {
		return nil, invalidArgument("file attachments are disabled")
	}

	// Проверяем существование задания
	exists, err := s.assignmentRepo.Exists(ctx, req.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check assignment existence: %w", err)
	}
	if !exists {
		return nil, ErrAssignmentNotFound
	}

	fileURL := req.FileURL
	if req.Attachment != nil {
		url, err := s.upload(ctx, req.StudentID, req.Attachment)
		if err != nil {
			return nil, err
		}
		fileURL = &url
	}

	now := time.Now()
	submission := &models.Submission{
		ID:           uuid.New().String(),
		AssignmentID: req.AssignmentID,
		StudentID:    req.StudentID,
		Content:      req.Content,
		FileURL:      fileURL,
		Status:       models.SubmissionStatusPending,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}

	if err := s.submissionRepo.Create(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	s.logger.Info().
		Str("submission_id", submission.ID).
		Str("student_id", submission.StudentID).
		Str("assignment_id", submission.AssignmentID).
		Msg("Submission created")

	if err := s.dispatcher.Dispatch(ctx, submission); err != nil {
		// Создание не падает: работа уходит в failed и подбирается sweeper-ом
		s.logger.Error().Err(err).Str("submission_id", submission.ID).Msg("Failed to dispatch submission for evaluation")
		if s.markFailed(ctx, submission.ID) {
			submission.Status = models.SubmissionStatusFailed
		}
	}

	return submission, nil
}

// markFailed переводит pending в failed; true, если статус изменён.
func (s *submissionService) markFailed(ctx context.Context, id string) bool {
	marked, err := s.submissionRepo.TransitionStatus(ctx, id,
		[]models.SubmissionStatus{models.SubmissionStatusPending}, models.SubmissionStatusFailed)
	if err != nil {
		s.logger.Error().Err(err).Str("submission_id", id).Msg("Failed to mark submission as failed")
		return false
	}
	return marked
}

func (s *submissionService) upload(ctx context.Context, studentID string, a *models.Attachment) (string, error) {
	if len(a.Data) == 0 {
		return "", invalidArgument("attachment is empty")
	}

	url, err := s.storage.Upload(ctx, studentID, a.FileName, a.ContentType, bytes.NewReader(a.Data), int64(len(a.Data)))
	if err != nil {
		return "", fmt.Errorf("failed to upload attachment: %w", err)
	}

	s.logger.Debug().
		Str("student_id", studentID).
		Str("file_name", a.FileName).
		Int("size", len(a.Data)).
		Msg("Attachment uploaded")

	return url, nil
}

func (s *submissionService) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	if !isID(id) {
		return nil, ErrSubmissionNotFound
	}

	submission, err := s.submissionRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return submission, nil
}

func (s *submissionService) GetWithFeedback(ctx context.Context, id string) (*models.SubmissionWithFeedback, error) {
	submission, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &models.SubmissionWithFeedback{Submission: *submission}

	feedback, err := s.feedbackRepo.GetBySubmissionID(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	default:
		result.Feedback = feedback
	}

	return result, nil
}

func (s *submissionService) ListByStudent(ctx context.Context, studentID string) ([]models.Submission, error) {
	if !isID(studentID) {
		return nil, invalidArgument("student_id must be a uuid")
	}

	submissions, err := s.submissionRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions by student: %w", err)
	}
	return submissions, nil
}

func (s *submissionService) ListByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	if !isID(assignmentID) {
		return nil, invalidArgument("assignment_id must be a uuid")
	}

	submissions, err := s.submissionRepo.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions by assignment: %w", err)
	}
	return submissions, nil
}

func (s *submissionService) GetFeedback(ctx context.Context, submissionID string) (*models.Feedback, error) {
	if !isID(submissionID) {
		return nil, ErrFeedbackNotFound
	}

	feedback, err := s.feedbackRepo.GetBySubmissionID(ctx, submissionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrFeedbackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return feedback, nil
}

// RetryFailed возвращает до limit работ из failed в pending и отправляет их на оценку.
func (s *submissionService) RetryFailed(ctx context.Context, limit int) (int, error) {
	if limit < 1 {
		return 0, invalidArgument("limit must be positive")
	}

	failed, err := s.submissionRepo.ListByStatus(ctx, models.SubmissionStatusFailed, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list failed submissions: %w", err)
	}

	requeued := 0
	for i := range failed {
		submission := &failed[i]

		reset, err := s.submissionRepo.TransitionStatus(ctx, submission.ID,
			[]models.SubmissionStatus{models.SubmissionStatusFailed}, models.SubmissionStatusPending)
		if err != nil {
			s.logger.Error().Err(err).Str("submission_id", submission.ID).Msg("Failed to reset submission status")
			continue
		}
		if !reset {
			// Между выборкой и сбросом работу успела оценить повторная доставка
			s.logger.Debug().Str("submission_id", submission.ID).Msg("Submission is no longer failed, skipping")
			continue
		}
		submission.Status = models.SubmissionStatusPending

		if err := s.dispatcher.Dispatch(ctx, submission); err != nil {
			s.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("Failed to re-dispatch submission")
			s.markFailed(ctx, submission.ID)
			if errors.Is(err, worker.ErrQueueFull) || errors.Is(err, worker.ErrPoolStopped) {
				break
			}
			continue
		}

		requeued++
	}

	return requeued, nil
}
