// Copyright 2025 James Ross
package simjob

import (
	"time"

	"github.com/google/uuid"
)

// Job describes a simulation job targeting one registered backend adapter.
// Immutable after creation.
type Job struct {
	JobID     string                 `json:"job_id"`
	Backend   string                 `json:"backend"`
	Workdir   string                 `json:"workdir"`
	Inputs    map[string]interface{} `json:"inputs"`
	CreatedAt time.Time              `json:"created_at"`
}

// ResultStatus is the terminal outcome of a single execution attempt.
type ResultStatus string

const (
	ResultCompleted ResultStatus = "completed"
	ResultFailed    ResultStatus = "failed"
)

// Result is the outcome of running a Job's adapter. At most one per Job;
// a retry overwrites the prior Result.
type Result struct {
	JobID     string            `json:"job_id"`
	Status    ResultStatus      `json:"status"`
	Metrics   map[string]float64 `json:"metrics"`
	Artifacts map[string]string `json:"artifacts"`
	Logs      []string          `json:"logs"`
	Error     string            `json:"error,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// QueueState is a lifecycle state of a QueueRecord.
type QueueState string

const (
	StateQueued    QueueState = "queued"
	StateRunning   QueueState = "running"
	StateCompleted QueueState = "completed"
	StateFailed    QueueState = "failed"
	StateDead      QueueState = "dead"
	StateCancelled QueueState = "cancelled"
)

// QueueRecord tracks a Job's lifecycle independent of its input/output. At
// most one QueueRecord per Job.
type QueueRecord struct {
	JobID        string     `json:"job_id"`
	State        QueueState `json:"state"`
	Error        string     `json:"error,omitempty"`
	AttemptCount int        `json:"attempt_count"`
	MaxAttempts  int        `json:"max_attempts"`
	EnqueuedAt   time.Time  `json:"enqueued_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// JobSummary is the flattened view list_jobs returns: a job left-joined with
// its (possibly absent) result.
type JobSummary struct {
	JobID     string    `json:"job_id"`
	Backend   string    `json:"backend"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJobID derives a job id from a random UUIDv4, per spec: a "job-"
// prefix plus the first 8 hex characters of the UUID.
func NewJobID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return "job-" + id.String()[:8], nil
}
