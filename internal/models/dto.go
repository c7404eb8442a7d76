package models

import "time"

// Data Transfer Objects

type CreateSubmissionRequest struct {
	AssignmentID string  `json:"assignment_id" validate:"required,uuid"`
	StudentID    string  `json:"student_id" validate:"required,uuid"`
	Content      string  `json:"content" validate:"required"`
	FileURL      *string `json:"file_url,omitempty" validate:"omitempty,url"`

	Attachment *Attachment `json:"-" validate:"-"`
}

type Attachment struct {
	FileName    string
	ContentType string
	Data        []byte
}

type CreateAssignmentRequest struct {
	InstructorID string    `json:"instructor_id" validate:"required,uuid"`
	Title        string    `json:"title" validate:"required,min=3,max=255"`
	Description  string    `json:"description" validate:"required,max=10000"`
	DueDate      time.Time `json:"due_date" validate:"required"`
	MaxScore     int       `json:"max_score" validate:"omitempty,min=1,max=1000"`
}

type AssignmentsResponse struct {
	Assignments []AssignmentWithStats `json:"assignments"`
	Total       int                   `json:"total"`
	Page        int                   `json:"page"`
	Limit       int                   `json:"limit"`
}

type RetryFailedResponse struct {
	Requeued int `json:"requeued"`
}
