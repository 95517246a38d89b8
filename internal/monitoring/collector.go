// Package monitoring collects health metrics from the task tracker and run
// archive, and raises webhook alerts when thresholds are breached.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/jobfoundry/apply-cli/internal/model"
	"github.com/jobfoundry/apply-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Live tracker state.
	TasksPending    int `json:"tasks_pending"`
	TasksProcessing int `json:"tasks_processing"`
	TasksTracked    int `json:"tasks_tracked"`

	// Archived runs (within lookback window).
	RunsTotal          int     `json:"runs_total"`
	RunsSucceeded      int     `json:"runs_succeeded"`
	RunsFailed         int     `json:"runs_failed"`
	RunsRevoked        int     `json:"runs_revoked"`
	RunsFailRate       float64 `json:"runs_fail_rate"`
	RunsDuplicate      int     `json:"runs_duplicate"`
	RunsUnavailable    int     `json:"runs_unavailable"`
	RunsVisaRestricted int     `json:"runs_visa_restricted"`
	AvgScore           float64 `json:"avg_score"`
	AvgDurationMS      int64   `json:"avg_duration_ms"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// TaskSource abstracts the tracker methods needed by the collector.
type TaskSource interface {
	Snapshot() []*model.TaskState
}

// Collector gathers metrics from the tracker and run archive.
type Collector struct {
	tasks   TaskSource
	archive store.Store
}

// NewCollector creates a new metrics collector. Either source may be nil;
// its section of the snapshot is then left zero.
func NewCollector(tasks TaskSource, archive store.Store) *Collector {
	return &Collector{tasks: tasks, archive: archive}
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	if c.tasks != nil {
		for _, st := range c.tasks.Snapshot() {
			snap.TasksTracked++
			switch st.Status {
			case model.TaskPending:
				snap.TasksPending++
			case model.TaskProcessing:
				snap.TasksProcessing++
			}
		}
	}

	if c.archive == nil {
		return snap, nil
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.archive.ListRuns(ctx, store.RunFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	var totalScore float64
	var scoredRuns int
	var totalDuration int64

	for _, r := range runs {
		if r.FinishedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		totalDuration += r.DurationMS

		switch r.Status {
		case model.TaskSuccess:
			snap.RunsSucceeded++
		case model.TaskFailure:
			snap.RunsFailed++
		case model.TaskRevoked:
			snap.RunsRevoked++
		}

		if r.Result == nil {
			continue
		}
		switch r.Result.Status {
		case model.ResultDuplicate:
			snap.RunsDuplicate++
		case model.ResultUnavailable:
			snap.RunsUnavailable++
		case model.ResultVisaRestricted:
			snap.RunsVisaRestricted++
		}
		if r.Result.Record != nil {
			totalScore += float64(r.Result.Record.Evaluation.Score)
			scoredRuns++
		}
	}

	finished := snap.RunsSucceeded + snap.RunsFailed
	if finished > 0 {
		snap.RunsFailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if snap.RunsTotal > 0 {
		snap.AvgDurationMS = totalDuration / int64(snap.RunsTotal)
	}
	if scoredRuns > 0 {
		snap.AvgScore = totalScore / float64(scoredRuns)
	}

	return snap, nil
}
