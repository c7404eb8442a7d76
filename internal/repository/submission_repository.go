package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/models"
)

type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Submission, error)
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error)
	ListByStatus(ctx context.Context, status models.SubmissionStatus, limit int) ([]models.Submission, error)
	UpdateStatus(ctx context.Context, id string, status models.SubmissionStatus) error
	// TransitionStatus меняет статус, только если текущий входит в from.
	// false без ошибки: строки нет или статус уже другой.
	TransitionStatus(ctx context.Context, id string, from []models.SubmissionStatus, to models.SubmissionStatus) (bool, error)
}

type submissionRepository struct {
	*PostgresRepository
}

func NewSubmissionRepository(db *sql.DB, logger zerolog.Logger) SubmissionRepository {
	return &submissionRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

const submissionColumns = `id, assignment_id, student_id, content, file_url, status, submitted_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var (
		s       models.Submission
		fileURL sql.NullString
	)

	err := row.Scan(
		&s.ID,
		&s.AssignmentID,
		&s.StudentID,
		&s.Content,
		&fileURL,
		&s.Status,
		&s.SubmittedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if fileURL.Valid {
		s.FileURL = &fileURL.String
	}

	return &s, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	query := `
		INSERT INTO submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.conn(ctx).ExecContext(ctx, query,
		submission.ID,
		submission.AssignmentID,
		submission.StudentID,
		submission.Content,
		submission.FileURL,
		submission.Status,
		submission.SubmittedAt,
		submission.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}

	return err
}

func (r *submissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`

	submission, err := scanSubmission(r.conn(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	return submission, err
}

func (r *submissionRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Submission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE student_id = $1
		ORDER BY submitted_at DESC
	`

	return r.list(ctx, query, studentID)
}

func (r *submissionRepository) ListByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE assignment_id = $1
		ORDER BY submitted_at DESC
	`

	return r.list(ctx, query, assignmentID)
}

func (r *submissionRepository) ListByStatus(ctx context.Context, status models.SubmissionStatus, limit int) ([]models.Submission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE status = $1
		ORDER BY updated_at
		LIMIT $2
	`

	return r.list(ctx, query, status, limit)
}

func (r *submissionRepository) list(ctx context.Context, query string, args ...any) ([]models.Submission, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	submissions := make([]models.Submission, 0)
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, *submission)
	}

	return submissions, rows.Err()
}

func (r *submissionRepository) UpdateStatus(ctx context.Context, id string, status models.SubmissionStatus) error {
	query := `
		UPDATE submissions
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	res, err := r.conn(ctx).ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *submissionRepository) TransitionStatus(ctx context.Context, id string, from []models.SubmissionStatus, to models.SubmissionStatus) (bool, error) {
	query := `
		UPDATE submissions
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = ANY($4)
	`

	allowed := make([]string, len(from))
	for i, status := range from {
		allowed[i] = string(status)
	}

	res, err := r.conn(ctx).ExecContext(ctx, query, to, time.Now(), id, pq.Array(allowed))
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}
