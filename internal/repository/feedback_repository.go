package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog"

	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/models"
)

type FeedbackRepository interface {
	Create(ctx context.Context, feedback *models.Feedback) error
	GetBySubmissionID(ctx context.Context, submissionID string) (*models.Feedback, error)
}

type feedbackRepository struct {
	*PostgresRepository
}

func NewFeedbackRepository(db *sql.DB, logger zerolog.Logger) FeedbackRepository {
	return &feedbackRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *feedbackRepository) Create(ctx context.Context, feedback *models.Feedback) error {
	query := `
		INSERT INTO feedback (id, submission_id, plagiarism_risk, feedback_summary, score, detailed_feedback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn(ctx).ExecContext(ctx, query,
		feedback.ID,
		feedback.SubmissionID,
		feedback.PlagiarismRisk,
		feedback.FeedbackSummary,
		feedback.Score,
		feedback.DetailedFeedback,
		feedback.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}

	return err
}

func (r *feedbackRepository) GetBySubmissionID(ctx context.Context, submissionID string) (*models.Feedback, error) {
	query := `
		SELECT id, submission_id, plagiarism_risk, feedback_summary, score, detailed_feedback, created_at
		FROM feedback
		WHERE submission_id = $1
	`

	feedback := &models.Feedback{}
	err := r.conn(ctx).QueryRowContext(ctx, query, submissionID).Scan(
		&feedback.ID,
		&feedback.SubmissionID,
		&feedback.PlagiarismRisk,
		&feedback.FeedbackSummary,
		&feedback.Score,
		&feedback.DetailedFeedback,
		&feedback.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return feedback, nil
}
