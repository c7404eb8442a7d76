package models

import (
	"time"
)

type Assignment struct {
	ID           string    `json:"id" db:"id"`
	InstructorID string    `json:"instructor_id" db:"instructor_id"`
	Title        string    `json:"title" db:"title"`
	Description  string    `json:"description" db:"description"`
	DueDate      time.Time `json:"due_date" db:"due_date"`
	MaxScore     int       `json:"max_score" db:"max_score"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type AssignmentWithStats struct {
	Assignment
	TotalSubmissions     int `json:"total_submissions" db:"total_submissions"`
	EvaluatedSubmissions int `json:"evaluated_submissions" db:"evaluated_submissions"`
	PendingSubmissions   int `json:"pending_submissions" db:"pending_submissions"`
	FailedSubmissions    int `json:"failed_submissions" db:"failed_submissions"`
}

const DefaultMaxScore = 100
