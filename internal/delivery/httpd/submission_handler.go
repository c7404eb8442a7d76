package httpd

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/models"
)

const defaultRetryLimit = 20

func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	var (
		req *models.CreateSubmissionRequest
		err error
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		req, err = h.parseMultipartSubmission(w, r)
	} else {
		req, err = h.parseJSONSubmission(r)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	submission, err := h.submissionService.Create(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, submission)
}

func (h *Handler) parseJSONSubmission(r *http.Request) (*models.CreateSubmissionRequest, error) {
	var req models.CreateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("Invalid request body")
	}
	return &req, nil
}

func (h *Handler) parseMultipartSubmission(w http.ResponseWriter, r *http.Request) (*models.CreateSubmissionRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errors.New("File is too large")
		}
		return nil, errors.New("Failed to parse form data")
	}

	req := &models.CreateSubmissionRequest{
		AssignmentID: r.FormValue("assignment_id"),
		StudentID:    r.FormValue("student_id"),
		Content:      r.FormValue("content"),
	}
	if fileURL := strings.TrimSpace(r.FormValue("file_url")); fileURL != "" {
		req.FileURL = &fileURL
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return req, nil
	case err != nil:
		return nil, errors.New("Failed to read file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.New("Failed to read file")
	}

	req.Attachment = &models.Attachment{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}

	return req, nil
}

func (h *Handler) GetSubmissionByID(w http.ResponseWriter, r *http.Request) {
	submission, err := h.submissionService.GetWithFeedback(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, submission)
}

func (h *Handler) GetSubmissionFeedback(w http.ResponseWriter, r *http.Request) {
	h.writeFeedback(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) GetFeedbackBySubmission(w http.ResponseWriter, r *http.Request) {
	h.writeFeedback(w, r, chi.URLParam(r, "submission_id"))
}

func (h *Handler) writeFeedback(w http.ResponseWriter, r *http.Request, submissionID string) {
	feedback, err := h.submissionService.GetFeedback(r.Context(), submissionID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, feedback)
}

func (h *Handler) GetSubmissionsByStudent(w http.ResponseWriter, r *http.Request) {
	submissions, err := h.submissionService.ListByStudent(r.Context(), chi.URLParam(r, "student_id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, submissions)
}

func (h *Handler) GetSubmissionsByAssignment(w http.ResponseWriter, r *http.Request) {
	submissions, err := h.submissionService.ListByAssignment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, submissions)
}

func (h *Handler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	limit := getIntQueryParam(r, "limit", defaultRetryLimit)

	requeued, err := h.submissionService.RetryFailed(r.Context(), limit)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, models.RetryFailedResponse{Requeued: requeued})
}
