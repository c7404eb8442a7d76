package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/models"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/repository"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/service/scoring"
	"github.com/Hamsavall/Intelligent-Assignment-Evaluation-platform/internal/worker"
)

// memStore: хранилище в памяти, транзакция держит общий мьютекс.
type memStore struct {
	mu          sync.Mutex
	assignments map[string]bool
	submissions map[string]models.Submission
	feedback    map[string]models.Feedback
}

type memTxKey struct{}

func newMemStore() *memStore {
	return &memStore{
		assignments: make(map[string]bool),
		submissions: make(map[string]models.Submission),
		feedback:    make(map[string]models.Feedback),
	}
}

func (s *memStore) lock(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshotSubs := make(map[string]models.Submission, len(s.submissions))
	for k, v := range s.submissions {
		snapshotSubs[k] = v
	}
	snapshotFeedback := make(map[string]models.Feedback, len(s.feedback))
	for k, v := range s.feedback {
		snapshotFeedback[k] = v
	}

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.submissions = snapshotSubs
		s.feedback = snapshotFeedback
		return err
	}
	return nil
}

// observe возвращает согласованный снимок статуса и наличия feedback.
func (s *memStore) observe(id string) (models.SubmissionStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, hasFeedback := s.feedback[id]
	return s.submissions[id].Status, hasFeedback
}

type memSubmissions struct{ *memStore }

func (r memSubmissions) Create(ctx context.Context, sub *models.Submission) error {
	defer r.lock(ctx)()
	if _, ok := r.submissions[sub.ID]; ok {
		return repository.ErrAlreadyExists
	}
	r.submissions[sub.ID] = *sub
	return nil
}

func (r memSubmissions) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	defer r.lock(ctx)()
	sub, ok := r.submissions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sub, nil
}

func (r memSubmissions) filter(ctx context.Context, keep func(models.Submission) bool) []models.Submission {
	defer r.lock(ctx)()
	out := make([]models.Submission, 0)
	for _, sub := range r.submissions {
		if keep(sub) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memSubmissions) ListByStudent(ctx context.Context, studentID string) ([]models.Submission, error) {
	return r.filter(ctx, func(s models.Submission) bool { return s.StudentID == studentID }), nil
}

func (r memSubmissions) ListByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	return r.filter(ctx, func(s models.Submission) bool { return s.AssignmentID == assignmentID }), nil
}

func (r memSubmissions) ListByStatus(ctx context.Context, status models.SubmissionStatus, limit int) ([]models.Submission, error) {
	out := r.filter(ctx, func(s models.Submission) bool { return s.Status == status })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memSubmissions) UpdateStatus(ctx context.Context, id string, status models.SubmissionStatus) error {
	defer r.lock(ctx)()
	sub, ok := r.submissions[id]
	if !ok {
		return repository.ErrNotFound
	}
	sub.Status = status
	sub.UpdatedAt = time.Now()
	r.submissions[id] = sub
	return nil
}

func (r memSubmissions) TransitionStatus(ctx context.Context, id string, from []models.SubmissionStatus, to models.SubmissionStatus) (bool, error) {
	defer r.lock(ctx)()
	sub, ok := r.submissions[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if sub.Status == status {
			sub.Status = to
			sub.UpdatedAt = time.Now()
			r.submissions[id] = sub
			return true, nil
		}
	}
	return false, nil
}

type memFeedback struct{ *memStore }

func (r memFeedback) Create(ctx context.Context, fb *models.Feedback) error {
	defer r.lock(ctx)()
	if _, ok := r.feedback[fb.SubmissionID]; ok {
		return repository.ErrAlreadyExists
	}
	r.feedback[fb.SubmissionID] = *fb
	return nil
}

func (r memFeedback) GetBySubmissionID(ctx context.Context, submissionID string) (*models.Feedback, error) {
	defer r.lock(ctx)()
	fb, ok := r.feedback[submissionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &fb, nil
}

type memAssignments struct{ *memStore }

func (r memAssignments) Create(ctx context.Context, a *models.Assignment) error {
	defer r.lock(ctx)()
	r.assignments[a.ID] = true
	return nil
}

func (r memAssignments) GetByID(ctx context.Context, id string) (*models.AssignmentWithStats, error) {
	defer r.lock(ctx)()
	if !r.assignments[id] {
		return nil, repository.ErrNotFound
	}
	return &models.AssignmentWithStats{Assignment: models.Assignment{ID: id}}, nil
}

func (r memAssignments) GetAll(ctx context.Context, limit, offset int) ([]models.AssignmentWithStats, int, error) {
	return nil, 0, nil
}

func (r memAssignments) Exists(ctx context.Context, id string) (bool, error) {
	defer r.lock(ctx)()
	return r.assignments[id], nil
}

type pipeline struct {
	store       *memStore
	submissions SubmissionService
	pool        *worker.WorkerPool
}

func newPipeline(t *testing.T, workers, queue int) *pipeline {
	t.Helper()

	store := newMemStore()
	store.assignments[testAssignmentID] = true

	engine := scoring.NewEngine(scoring.NewTieredRiskEstimator(scoring.FixedSource(0.5)))
	evaluator := NewEvaluationService(memSubmissions{store}, memFeedback{store}, store, engine, nil, testRetry, zerolog.Nop())

	pool := worker.NewWorkerPool(workers, queue, 50*time.Millisecond, zerolog.Nop())
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() { _ = pool.Stop() })

	dispatcher := worker.NewLocalDispatcher(pool, evaluator, time.Second, zerolog.Nop())
	submissions := NewSubmissionService(memSubmissions{store}, memFeedback{store}, memAssignments{store}, nil, dispatcher, validator.New(), zerolog.Nop())

	return &pipeline{store: store, submissions: submissions, pool: pool}
}

func TestPipelineEvaluatesSubmissionEventually(t *testing.T) {
	p := newPipeline(t, 2, 16)
	ctx := context.Background()

	req := validRequest()
	req.Content = strings.TrimSpace(strings.Repeat("word ", 10))

	created, err := p.submissions.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusPending, created.Status)

	require.Eventually(t, func() bool {
		sub, err := p.submissions.GetByID(ctx, created.ID)
		return err == nil && sub.Status == models.SubmissionStatusEvaluated
	}, 2*time.Second, 5*time.Millisecond)

	feedback, err := p.submissions.GetFeedback(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, scoring.SummaryTooBrief, feedback.FeedbackSummary)
	assert.Equal(t, 7.5, feedback.PlagiarismRisk)
	assert.Equal(t, 2, feedback.Score)
	assert.Equal(t, scoring.DetailedFeedbackText, feedback.DetailedFeedback)

	again, err := p.submissions.GetFeedback(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, feedback, again)
}

func TestPipelineNeverExposesEvaluatedWithoutFeedback(t *testing.T) {
	p := newPipeline(t, 4, 64)
	ctx := context.Background()

	ids := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		created, err := p.submissions.Create(ctx, validRequest())
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		evaluated := 0
		for _, id := range ids {
			status, hasFeedback := p.store.observe(id)
			if status == models.SubmissionStatusEvaluated {
				require.True(t, hasFeedback, "submission %s evaluated without feedback", id)
				evaluated++
			}
			if status == models.SubmissionStatusPending {
				require.False(t, hasFeedback, "submission %s pending with feedback", id)
			}
		}
		if evaluated == len(ids) {
			break
		}
		require.True(t, time.Now().Before(deadline), "evaluations did not complete in time")
		time.Sleep(time.Millisecond)
	}
}

func TestPipelineFeedbackNotFoundBeforeEvaluation(t *testing.T) {
	p := newPipeline(t, 1, 4)

	_, err := p.submissions.GetFeedback(context.Background(), "never-created")
	assert.ErrorIs(t, err, ErrFeedbackNotFound)

	_, err = p.submissions.GetByID(context.Background(), "never-created")
	assert.ErrorIs(t, err, ErrSubmissionNotFound)
}

const stuckID = "9d8c7b6a-5f4e-4d3c-8b2a-1f0e9d8c7b6a"

func TestPipelineSweeperRecoversFailedSubmission(t *testing.T) {
	p := newPipeline(t, 1, 4)
	ctx := context.Background()

	now := time.Now()
	p.store.submissions[stuckID] = models.Submission{
		ID:           stuckID,
		AssignmentID: testAssignmentID,
		StudentID:    testStudentID,
		Content:      "recovered answer",
		Status:       models.SubmissionStatusFailed,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}

	requeued, err := p.submissions.RetryFailed(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)

	require.Eventually(t, func() bool {
		status, hasFeedback := p.store.observe(stuckID)
		return status == models.SubmissionStatusEvaluated && hasFeedback
	}, 2*time.Second, 5*time.Millisecond)
}

// brokenFeedback: чтение feedback всегда падает.
type brokenFeedback struct{ memFeedback }

func (brokenFeedback) GetBySubmissionID(context.Context, string) (*models.Feedback, error) {
	return nil, errors.New("connection reset")
}

// staleSubmissions отдаёт список failed, снятый до того, как работу оценили.
type staleSubmissions struct {
	memSubmissions
	stale []models.Submission
}

func (r staleSubmissions) ListByStatus(context.Context, models.SubmissionStatus, int) ([]models.Submission, error) {
	return r.stale, nil
}

func evaluatedSubmission(store *memStore) models.Submission {
	now := time.Now()
	sub := models.Submission{
		ID:           stuckID,
		AssignmentID: testAssignmentID,
		StudentID:    testStudentID,
		Content:      "already graded",
		Status:       models.SubmissionStatusEvaluated,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}
	store.submissions[sub.ID] = sub
	store.feedback[sub.ID] = models.Feedback{ID: "fb-1", SubmissionID: sub.ID, Score: 50}
	return sub
}

func TestEvaluationFailureDoesNotDowngradeEvaluatedSubmission(t *testing.T) {
	store := newMemStore()
	evaluatedSubmission(store)

	engine := scoring.NewEngine(scoring.NewTieredRiskEstimator(scoring.FixedSource(0.5)))
	evaluator := NewEvaluationService(memSubmissions{store}, brokenFeedback{memFeedback{store}}, store, engine, nil, testRetry, zerolog.Nop())

	err := evaluator.Evaluate(context.Background(), stuckID)
	require.Error(t, err)

	status, hasFeedback := store.observe(stuckID)
	assert.Equal(t, models.SubmissionStatusEvaluated, status)
	assert.True(t, hasFeedback)
}

func TestRetryFailedSkipsSubmissionEvaluatedMeanwhile(t *testing.T) {
	store := newMemStore()
	stale := evaluatedSubmission(store)
	stale.Status = models.SubmissionStatusFailed

	dispatcher := new(MockDispatcher)
	submissions := NewSubmissionService(
		staleSubmissions{memSubmissions: memSubmissions{store}, stale: []models.Submission{stale}},
		memFeedback{store}, memAssignments{store}, nil, dispatcher, validator.New(), zerolog.Nop(),
	)

	requeued, err := submissions.RetryFailed(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, requeued)

	status, hasFeedback := store.observe(stuckID)
	assert.Equal(t, models.SubmissionStatusEvaluated, status)
	assert.True(t, hasFeedback)
	dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}
