package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/models"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/repository"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type AssignmentService interface {
	Create(ctx context.Context, req *models.CreateAssignmentRequest) (*models.Assignment, error)
	GetByID(ctx context.Context, id string) (*models.AssignmentWithStats, error)
	List(ctx context.Context, page, limit int) (*models.AssignmentsResponse, error)
}

type assignmentService struct {
	assignmentRepo repository.AssignmentRepository
	validate       *validator.Validate
	logger         zerolog.Logger
}

func NewAssignmentService(assignmentRepo repository.AssignmentRepository, validate *validator.Validate, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		assignmentRepo: assignmentRepo,
		validate:       validate,
		logger:         logger,
	}
}

func (s *assignmentService) Create(ctx context.Context, req *models.CreateAssignmentRequest) (*models.Assignment, error) {
	if req == nil {
		return nil, invalidArgument("empty request")
	}
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return nil, validationError(err)
	}

	maxScore := req.MaxScore
	if maxScore == 0 {
		maxScore = models.DefaultMaxScore
	}

	assignment := &models.Assignment{
		ID:           uuid.New().String(),
		InstructorID: req.InstructorID,
		Title:        req.Title,
		Description:  req.Description,
		DueDate:      req.DueDate,
		MaxScore:     maxScore,
		CreatedAt:    time.Now(),
	}

	if err := s.assignmentRepo.Create(ctx, assignment); err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}

	s.logger.Info().
		Str("assignment_id", assignment.ID).
		Str("instructor_id", assignment.InstructorID).
		Str("title", assignment.Title).
		Msg("Assignment created")

	return assignment, nil
}

func (s *assignmentService) GetByID(ctx context.Context, id string) (*models.AssignmentWithStats, error) {
	if !isID(id) {
		return nil, ErrAssignmentNotFound
	}

	assignment, err := s.assignmentRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAssignmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	return assignment, nil
}

func (s *assignmentService) List(ctx context.Context, page, limit int) (*models.AssignmentsResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageLimit {
		limit = defaultPageLimit
	}

	offset := (page - 1) * limit

	assignments, total, err := s.assignmentRepo.GetAll(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get all assignments: %w", err)
	}

	return &models.AssignmentsResponse{
		Assignments: assignments,
		Total:       total,
		Page:        page,
		Limit:       limit,
	}, nil
}
