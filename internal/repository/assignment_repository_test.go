package repository

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/models"
)

type fakeRow []any

func (r fakeRow) Scan(dest ...any) error {
	if len(dest) != len(r) {
		return fmt.Errorf("expected %d columns, got %d", len(r), len(dest))
	}
	for i, value := range r {
		switch d := dest[i].(type) {
		case *string:
			*d = value.(string)
		case *int:
			*d = value.(int)
		case *time.Time:
			*d = value.(time.Time)
		default:
			return fmt.Errorf("unsupported destination %T", d)
		}
	}
	return nil
}

func TestAssignmentStatsCoverEveryStatus(t *testing.T) {
	for _, status := range []models.SubmissionStatus{
		models.SubmissionStatusPending,
		models.SubmissionStatusEvaluated,
		models.SubmissionStatusReviewed,
		models.SubmissionStatusFailed,
	} {
		assert.True(t, strings.Contains(assignmentWithStatsQuery, "'"+status.String()+"'"), "status %s is not counted", status)
	}
	assert.Contains(t, assignmentWithStatsQuery, "AS failed_submissions")
}

func TestScanAssignmentWithStats(t *testing.T) {
	due := time.Date(2026, time.May, 1, 12, 0, 0, 0, time.UTC)
	row := fakeRow{"asg", "inst", "Essay", "Write", due, 100, due, 7, 3, 2, 2}

	got, err := scanAssignmentWithStats(row)

	require.NoError(t, err)
	assert.Equal(t, 7, got.TotalSubmissions)
	assert.Equal(t, 3, got.EvaluatedSubmissions)
	assert.Equal(t, 2, got.PendingSubmissions)
	assert.Equal(t, 2, got.FailedSubmissions)
	assert.Equal(t, got.TotalSubmissions, got.EvaluatedSubmissions+got.PendingSubmissions+got.FailedSubmissions)
}
