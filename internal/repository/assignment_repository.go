package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog"

	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/models"
)

type AssignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	GetByID(ctx context.Context, id string) (*models.AssignmentWithStats, error)
	GetAll(ctx context.Context, limit, offset int) ([]models.AssignmentWithStats, int, error)
	Exists(ctx context.Context, id string) (bool, error)
}

type assignmentRepository struct {
	*PostgresRepository
}

func NewAssignmentRepository(db *sql.DB, logger zerolog.Logger) AssignmentRepository {
	return &assignmentRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

const assignmentWithStatsQuery = `
	SELECT
		a.id, a.instructor_id, a.title, a.description, a.due_date, a.max_score, a.created_at,
		COUNT(s.id) AS total_submissions,
		COUNT(CASE WHEN s.status IN ('evaluated', 'reviewed') THEN 1 END) AS evaluated_submissions,
		COUNT(CASE WHEN s.status = 'pending' THEN 1 END) AS pending_submissions,
		COUNT(CASE WHEN s.status = 'failed' THEN 1 END) AS failed_submissions
	FROM assignments a
	LEFT JOIN submissions s ON a.id = s.assignment_id
`

func scanAssignmentWithStats(row rowScanner) (*models.AssignmentWithStats, error) {
	assignment := &models.AssignmentWithStats{}
	err := row.Scan(
		&assignment.ID,
		&assignment.InstructorID,
		&assignment.Title,
		&assignment.Description,
		&assignment.DueDate,
		&assignment.MaxScore,
		&assignment.CreatedAt,
		&assignment.TotalSubmissions,
		&assignment.EvaluatedSubmissions,
		&assignment.PendingSubmissions,
		&assignment.FailedSubmissions,
	)
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	query := `
		INSERT INTO assignments (id, instructor_id, title, description, due_date, max_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn(ctx).ExecContext(ctx, query,
		assignment.ID,
		assignment.InstructorID,
		assignment.Title,
		assignment.Description,
		assignment.DueDate,
		assignment.MaxScore,
		assignment.CreatedAt,
	)

	return err
}

func (r *assignmentRepository) GetByID(ctx context.Context, id string) (*models.AssignmentWithStats, error) {
	query := assignmentWithStatsQuery + `
		WHERE a.id = $1
		GROUP BY a.id
	`

	assignment, err := scanAssignmentWithStats(r.conn(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return assignment, nil
}

func (r *assignmentRepository) GetAll(ctx context.Context, limit, offset int) ([]models.AssignmentWithStats, int, error) {
	var total int
	if err := r.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM assignments`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := assignmentWithStatsQuery + `
		GROUP BY a.id
		ORDER BY a.created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.conn(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	assignments := make([]models.AssignmentWithStats, 0)
	for rows.Next() {
		assignment, err := scanAssignmentWithStats(rows)
		if err != nil {
			return nil, 0, err
		}
		assignments = append(assignments, *assignment)
	}

	return assignments, total, rows.Err()
}

func (r *assignmentRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM assignments WHERE id = $1)`
	var exists bool
	err := r.conn(ctx).QueryRowContext(ctx, query, id).Scan(&exists)
	return exists, err
}
