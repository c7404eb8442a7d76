package models

type SubmissionCreatedEvent struct {
	SubmissionID string `json:"submission_id"`
	AssignmentID string `json:"assignment_id"`
	StudentID    string `json:"student_id"`
	Timestamp    int64  `json:"timestamp"`
}

type EvaluationCompletedEvent struct {
	SubmissionID   string  `json:"submission_id"`
	FeedbackID     string  `json:"feedback_id"`
	AssignmentID   string  `json:"assignment_id"`
	StudentID      string  `json:"student_id"`
	Score          int     `json:"score"`
	PlagiarismRisk float64 `json:"plagiarism_risk"`
	Timestamp      int64   `json:"timestamp"`
}
