// Package store persists a local archive of finished runs so past jobs can
// be listed and inspected after the in-memory tracker has evicted them.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jobfoundry/apply-cli/internal/model"
)

// ErrNotFound is returned when a run id has no archived record.
var ErrNotFound = errors.New("store: run not found")

// Run is one archived task outcome. Result is present only when the task
// finished SUCCESS; Error only when it finished FAILURE.
type Run struct {
	ID         string           `json:"id"`
	URL        string           `json:"url"`
	Status     model.TaskStatus `json:"status"`
	Result     *model.JobResult `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	DurationMS int64            `json:"duration_ms"`
	CreatedAt  time.Time        `json:"created_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// Outcome returns the nested result status for successful runs, or the task
// status otherwise. Used for display and filtering.
func (r *Run) Outcome() string {
	if r.Result != nil {
		return string(r.Result.Status)
	}
	return string(r.Status)
}

// RunFilter specifies criteria for listing archived runs.
type RunFilter struct {
	Status  model.TaskStatus   `json:"status,omitempty"`
	Outcome model.ResultStatus `json:"outcome,omitempty"`
	URL     string             `json:"url,omitempty"`
	Limit   int                `json:"limit,omitempty"`
	Offset  int                `json:"offset,omitempty"`
}

// Store defines the run-archive persistence interface.
type Store interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)
	CountByStatus(ctx context.Context) (map[model.TaskStatus]int, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
