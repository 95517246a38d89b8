package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobfoundry/apply-cli/internal/model"
	"github.com/jobfoundry/apply-cli/internal/store"
)

// mockArchive implements store.Store for testing.
type mockArchive struct {
	runs    []store.Run
	listErr error
}

func (m *mockArchive) ListRuns(_ context.Context, filter store.RunFilter) ([]store.Run, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var filtered []store.Run
	for _, r := range m.runs {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered, nil
}

// Unused store methods — satisfy the interface.
func (m *mockArchive) SaveRun(context.Context, *store.Run) error        { return nil }
func (m *mockArchive) GetRun(context.Context, string) (*store.Run, error) { return nil, nil }
func (m *mockArchive) CountByStatus(context.Context) (map[model.TaskStatus]int, error) {
	return nil, nil
}
func (m *mockArchive) PurgeOlderThan(context.Context, time.Time) (int, error) { return 0, nil }
func (m *mockArchive) Migrate(context.Context) error                          { return nil }
func (m *mockArchive) Close() error                                           { return nil }

// mockTasks implements TaskSource for testing.
type mockTasks struct {
	states []*model.TaskState
}

func (m *mockTasks) Snapshot() []*model.TaskState {
	return m.states
}

func archivedTestRun(id string, status model.TaskStatus, age time.Duration) store.Run {
	now := time.Now().UTC()
	return store.Run{
		ID:         id,
		URL:        "https://jobs.example.com/" + id,
		Status:     status,
		DurationMS: 30000,
		CreatedAt:  now.Add(-age - time.Minute),
		FinishedAt: now.Add(-age),
	}
}

func TestCollector_Empty(t *testing.T) {
	c := NewCollector(&mockTasks{}, &mockArchive{})

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 0, snap.RunsTotal)
	assert.Equal(t, 0, snap.RunsFailed)
	assert.Equal(t, 0.0, snap.RunsFailRate)
	assert.Equal(t, 0, snap.TasksTracked)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.False(t, snap.CollectedAt.IsZero())
}

func TestCollector_RunMetrics(t *testing.T) {
	ok1 := archivedTestRun("1", model.TaskSuccess, time.Hour)
	ok1.Result = &model.JobResult{
		Status: model.ResultSuccess,
		Record: &model.JobRecord{Evaluation: model.Evaluation{Score: 85}},
	}
	ok2 := archivedTestRun("2", model.TaskSuccess, 2*time.Hour)
	ok2.Result = &model.JobResult{
		Status: model.ResultSuccess,
		Record: &model.JobRecord{Evaluation: model.Evaluation{Score: 91}},
	}
	dup := archivedTestRun("3", model.TaskSuccess, 3*time.Hour)
	dup.Result = &model.JobResult{Status: model.ResultDuplicate}

	failed := archivedTestRun("4", model.TaskFailure, 4*time.Hour)
	revoked := archivedTestRun("5", model.TaskRevoked, 5*time.Hour)

	// Outside lookback window — should be filtered out.
	old := archivedTestRun("6", model.TaskFailure, 48*time.Hour)

	arch := &mockArchive{runs: []store.Run{ok1, ok2, dup, failed, revoked, old}}
	c := NewCollector(nil, arch)

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 5, snap.RunsTotal)
	assert.Equal(t, 3, snap.RunsSucceeded)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 1, snap.RunsRevoked)
	assert.Equal(t, 1, snap.RunsDuplicate)
	assert.InDelta(t, 0.25, snap.RunsFailRate, 0.001) // 1 failed / 4 finished
	assert.InDelta(t, 88.0, snap.AvgScore, 0.001)
	assert.Equal(t, int64(30000), snap.AvgDurationMS)
}

func TestCollector_TrackerMetrics(t *testing.T) {
	tasks := &mockTasks{states: []*model.TaskState{
		{ID: "a", Status: model.TaskPending},
		{ID: "b", Status: model.TaskPending},
		{ID: "c", Status: model.TaskProcessing},
		{ID: "d", Status: model.TaskSuccess},
	}}

	c := NewCollector(tasks, nil)
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.TasksTracked)
	assert.Equal(t, 2, snap.TasksPending)
	assert.Equal(t, 1, snap.TasksProcessing)
}

func TestCollector_BusinessOutcomes(t *testing.T) {
	unavailable := archivedTestRun("1", model.TaskSuccess, time.Hour)
	unavailable.Result = &model.JobResult{Status: model.ResultUnavailable}
	restricted := archivedTestRun("2", model.TaskSuccess, time.Hour)
	restricted.Result = &model.JobResult{Status: model.ResultVisaRestricted}

	arch := &mockArchive{runs: []store.Run{unavailable, restricted}}
	c := NewCollector(nil, arch)

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 1, snap.RunsUnavailable)
	assert.Equal(t, 1, snap.RunsVisaRestricted)
	// Business outcomes count as succeeded tasks; no scores recorded.
	assert.Equal(t, 2, snap.RunsSucceeded)
	assert.Equal(t, 0.0, snap.AvgScore)
}

func TestCollector_NilArchive(t *testing.T) {
	c := NewCollector(&mockTasks{}, nil)

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.RunsTotal)
}

func TestCollector_FailureRateZeroFinished(t *testing.T) {
	revoked := archivedTestRun("1", model.TaskRevoked, time.Hour)
	arch := &mockArchive{runs: []store.Run{revoked}}

	c := NewCollector(nil, arch)
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	// No finished runs, so failure rate should be 0.
	assert.Equal(t, 0.0, snap.RunsFailRate)
}
