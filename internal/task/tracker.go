// Package task provides in-process task lifecycle tracking and the worker
// pool that executes submitted jobs.
package task

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jobfoundry/apply-cli/internal/model"
)

// DefaultRetention is how long terminal task states remain pollable.
const DefaultRetention = time.Hour

// ErrNotFound is returned when a task ID is unknown or already evicted.
var ErrNotFound = eris.New("task: not found")

// Tracker holds the state of every submitted task. All mutations go through
// its methods; states handed out are clones.
type Tracker struct {
	mu        sync.RWMutex
	tasks     map[string]*model.TaskState
	retention time.Duration
	now       func() time.Time // injectable for testing
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithRetention overrides how long terminal states are kept.
func WithRetention(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.retention = d
	}
}

// WithClock sets a fixed clock for testing.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		tasks:     make(map[string]*model.TaskState),
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Create registers a new PENDING task and returns its ID.
func (t *Tracker) Create(req model.JobRequest) string {
	id := uuid.NewString()
	now := t.now()

	t.mu.Lock()
	t.tasks[id] = &model.TaskState{
		ID:        id,
		Request:   req,
		Status:    model.TaskPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.mu.Unlock()

	return id
}

// Get returns a clone of the task state, or ErrNotFound.
func (t *Tracker) Get(id string) (*model.TaskState, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return st.Clone(), nil
}

// BatchStatus returns coarse status for each requested ID. Unknown IDs map
// to PENDING so pollers that race submission see a consistent answer.
func (t *Tracker) BatchStatus(ids []string) map[string]model.TaskStatus {
	out := make(map[string]model.TaskStatus, len(ids))

	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, id := range ids {
		if st, ok := t.tasks[id]; ok {
			out[id] = st.Status
		} else {
			out[id] = model.TaskPending
		}
	}
	return out
}

// SetProcessing moves a PENDING task to PROCESSING. Any other starting state
// is rejected.
func (t *Tracker) SetProcessing(id string) error {
	return t.update(id, func(st *model.TaskState) error {
		if st.Status != model.TaskPending {
			return eris.Errorf("task: cannot start %s from %s", id, st.Status)
		}
		st.Status = model.TaskProcessing
		return nil
	})
}

// SetStage records a stage boundary on a PROCESSING task. Progress must not
// regress.
func (t *Tracker) SetStage(id string, stage model.Stage) error {
	return t.update(id, func(st *model.TaskState) error {
		if st.Status != model.TaskProcessing {
			return eris.Errorf("task: cannot set stage on %s in %s", id, st.Status)
		}
		if stage.Progress < st.Progress {
			return eris.Errorf("task: progress regression on %s: %d -> %d", id, st.Progress, stage.Progress)
		}
		st.Stage = stage.Name
		st.Progress = stage.Progress
		return nil
	})
}

// SetResult completes a PROCESSING task as SUCCESS with its final result.
func (t *Tracker) SetResult(id string, result *model.JobResult) error {
	return t.update(id, func(st *model.TaskState) error {
		if st.Status != model.TaskProcessing {
			return eris.Errorf("task: cannot complete %s from %s", id, st.Status)
		}
		st.Status = model.TaskSuccess
		st.Stage = model.StageComplete.Name
		st.Progress = model.StageComplete.Progress
		st.Result = result
		return nil
	})
}

// SetFailure completes a PENDING or PROCESSING task as FAILURE.
func (t *Tracker) SetFailure(id string, msg string) error {
	return t.update(id, func(st *model.TaskState) error {
		if st.Status.Terminal() {
			return eris.Errorf("task: cannot fail %s from %s", id, st.Status)
		}
		st.Status = model.TaskFailure
		st.Error = msg
		return nil
	})
}

// Revoke moves a non-terminal task to REVOKED and reports the state it was
// in beforehand. Revoking a terminal task is a no-op that leaves the state
// unchanged.
func (t *Tracker) Revoke(id string) (prev, current model.TaskStatus, err error) {
	err = t.update(id, func(st *model.TaskState) error {
		prev = st.Status
		if !st.Status.Terminal() {
			st.Status = model.TaskRevoked
		}
		current = st.Status
		return nil
	})
	return prev, current, err
}

// update applies fn to the named task under lock and bumps UpdatedAt.
func (t *Tracker) update(id string, fn func(*model.TaskState) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if err := fn(st); err != nil {
		return err
	}
	st.UpdatedAt = t.now()
	return nil
}

// Sweep evicts terminal states older than the retention window and returns
// how many were removed. Called periodically by the pool's janitor.
func (t *Tracker) Sweep() int {
	cutoff := t.now().Add(-t.retention)

	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for id, st := range t.tasks {
		if st.Status.Terminal() && st.UpdatedAt.Before(cutoff) {
			delete(t.tasks, id)
			evicted++
		}
	}
	if evicted > 0 {
		zap.L().Debug("task: swept expired states", zap.Int("evicted", evicted))
	}
	return evicted
}

// Len returns the number of tracked states.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tasks)
}

// Snapshot returns clones of all tracked states, newest first not
// guaranteed; callers sort as needed.
func (t *Tracker) Snapshot() []*model.TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*model.TaskState, 0, len(t.tasks))
	for _, st := range t.tasks {
		out = append(out, st.Clone())
	}
	return out
}
