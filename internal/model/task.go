package model

import "time"

// TaskStatus is the lifecycle state of one tracked task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskProcessing TaskStatus = "PROCESSING"
	TaskSuccess    TaskStatus = "SUCCESS"
	TaskFailure    TaskStatus = "FAILURE"
	TaskRevoked    TaskStatus = "REVOKED"
)

// Terminal reports whether no further transitions are allowed.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskSuccess, TaskFailure, TaskRevoked:
		return true
	}
	return false
}

// Stage is one named pipeline unit with an associated progress percentage.
type Stage struct {
	Name     string `json:"name"`
	Progress int    `json:"progress"`
}

// The fixed, ordered stage boundaries of the pipeline. Progress values are
// monotonically increasing; the tracker rejects regressions.
var (
	StageDuplicateCheck       = Stage{"duplicate_check", 10}
	StageExtracting           = Stage{"extracting", 20}
	StageEvaluating           = Stage{"evaluating", 35}
	StageTailoringResume      = Stage{"tailoring_resume", 45}
	StageRenderingResume      = Stage{"rendering_resume", 55}
	StageTailoringCoverLetter = Stage{"tailoring_cover_letter", 65}
	StageRenderingCoverLetter = Stage{"rendering_cover_letter", 75}
	StageSaving               = Stage{"saving", 85}
	StageComplete             = Stage{"complete", 100}
)

// Stages lists all stage boundaries in pipeline order.
var Stages = []Stage{
	StageDuplicateCheck,
	StageExtracting,
	StageEvaluating,
	StageTailoringResume,
	StageRenderingResume,
	StageTailoringCoverLetter,
	StageRenderingCoverLetter,
	StageSaving,
	StageComplete,
}

// TaskState is the tracked state of one asynchronous task. Mutated only by
// the owning executor; immutable once Status is terminal.
type TaskState struct {
	ID        string     `json:"id"`
	Request   JobRequest `json:"request"`
	Status    TaskStatus `json:"status"`
	Stage     string     `json:"stage,omitempty"`
	Progress  int        `json:"progress"`
	Result    *JobResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Clone returns a copy safe to hand to pollers.
func (t *TaskState) Clone() *TaskState {
	cp := *t
	return &cp
}
