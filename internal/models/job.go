package models

import "time"

// JobStatus tracks the pipeline job lifecycle. Transitions are monotonic:
// queued -> running -> completed|failed. There is no cancellation state.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether a job in this status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// RunMode selects how the fetch window is computed.
type RunMode string

const (
	// RunModeNew fetches the caller-supplied lookback window.
	RunModeNew RunMode = "new"
	// RunModeUpdate computes the window from the source's prior run.
	RunModeUpdate RunMode = "update"
)

// JobConfig is the requested configuration of one pipeline run.
type JobConfig struct {
	Source         string   `json:"source"`
	Mode           RunMode  `json:"mode"`
	LookbackDays   int      `json:"lookback_days,omitempty"`
	MaxPosts       int      `json:"max_posts"`
	MinClusterSize int      `json:"min_cluster_size"`
	NumCategories  int      `json:"num_categories,omitempty"`
	Categories     []string `json:"categories,omitempty"`
}

// Job is one in-flight or finished pipeline execution.
type Job struct {
	ID          string     `json:"id"`
	Config      JobConfig  `json:"config"`
	Status      JobStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
