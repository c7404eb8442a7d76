package httpd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/service"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/worker"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type StatsProvider interface {
	Stats() worker.PoolStats
}

type Handler struct {
	submissionService service.SubmissionService
	assignmentService service.AssignmentService
	health            HealthChecker
	stats             StatsProvider
	maxUploadSize     int64
	logger            zerolog.Logger
}

func NewHandler(
	submissionService service.SubmissionService,
	assignmentService service.AssignmentService,
	health HealthChecker,
	stats StatsProvider,
	maxUploadSize int64,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		submissionService: submissionService,
		assignmentService: assignmentService,
		health:            health,
		stats:             stats,
		maxUploadSize:     maxUploadSize,
		logger:            logger,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.HealthCheck)

	router.Route("/api/v1", func(api chi.Router) {
		api.Get("/evaluation/stats", h.GetEvaluationStats)

		api.Route("/submissions", func(r chi.Router) {
			r.Post("/", h.CreateSubmission)
			r.Post("/retry-failed", h.RetryFailed)
			r.Get("/student/{student_id}", h.GetSubmissionsByStudent)
			r.Get("/{id}", h.GetSubmissionByID)
			r.Get("/{id}/feedback", h.GetSubmissionFeedback)
		})

		api.Get("/feedback/submission/{submission_id}", h.GetFeedbackBySubmission)

		api.Route("/assignments", func(r chi.Router) {
			r.Post("/", h.CreateAssignment)
			r.Get("/", h.GetAllAssignments)
			r.Get("/{id}", h.GetAssignmentByID)
			r.Get("/{id}/submissions", h.GetSubmissionsByAssignment)
		})
	})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSubmissionNotFound),
		errors.Is(err, service.ErrFeedbackNotFound),
		errors.Is(err, service.ErrAssignmentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrPoolStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		requestLogger(r, h.logger).Error().Err(err).Msg("Service error")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// requestLogger берёт логгер с request_id, если его положил middleware.
func requestLogger(r *http.Request, fallback zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &fallback
}

func getIntQueryParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeData(w, http.StatusOK, data)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}
