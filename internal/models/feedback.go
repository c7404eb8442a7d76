package models

import (
	"time"
)

type Feedback struct {
	ID               string    `json:"id" db:"id"`
	SubmissionID     string    `json:"submission_id" db:"submission_id"`
	PlagiarismRisk   float64   `json:"plagiarism_risk" db:"plagiarism_risk"`
	FeedbackSummary  string    `json:"feedback_summary" db:"feedback_summary"`
	Score            int       `json:"score" db:"score"`
	DetailedFeedback string    `json:"detailed_feedback" db:"detailed_feedback"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
