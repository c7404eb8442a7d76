package models

import (
	"time"
)

type Submission struct {
	ID           string           `json:"id" db:"id"`
	AssignmentID string           `json:"assignment_id" db:"assignment_id"`
	StudentID    string           `json:"student_id" db:"student_id"`
	Content      string           `json:"content" db:"content"`
	FileURL      *string          `json:"file_url,omitempty" db:"file_url"`
	Status       SubmissionStatus `json:"status" db:"status"`
	SubmittedAt  time.Time        `json:"submitted_at" db:"submitted_at"`
	UpdatedAt    time.Time        `json:"updated_at" db:"updated_at"`
}

// SubmissionWithFeedback отдаётся клиенту, который опрашивает статус.
type SubmissionWithFeedback struct {
	Submission
	Feedback *Feedback `json:"feedback,omitempty"`
}

type SubmissionStatus string

const (
	SubmissionStatusPending   SubmissionStatus = "pending"
	SubmissionStatusEvaluated SubmissionStatus = "evaluated"
	// reviewed выставляется только человеком вне этого сервиса.
	SubmissionStatusReviewed SubmissionStatus = "reviewed"
	SubmissionStatusFailed   SubmissionStatus = "failed"
)

func (s SubmissionStatus) String() string {
	return string(s)
}

func IsValidSubmissionStatus(status string) bool {
	switch SubmissionStatus(status) {
	case SubmissionStatusPending, SubmissionStatusEvaluated, SubmissionStatusReviewed, SubmissionStatusFailed:
		return true
	default:
		return false
	}
}
