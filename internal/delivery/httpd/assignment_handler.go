package httpd

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/models"
)

func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	assignment, err := h.assignmentService.Create(r.Context(), &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, assignment)
}

func (h *Handler) GetAssignmentByID(w http.ResponseWriter, r *http.Request) {
	assignment, err := h.assignmentService.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, assignment)
}

func (h *Handler) GetAllAssignments(w http.ResponseWriter, r *http.Request) {
	page := getIntQueryParam(r, "page", 1)
	limit := getIntQueryParam(r, "limit", 20)

	response, err := h.assignmentService.List(r.Context(), page, limit)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, response)
}
