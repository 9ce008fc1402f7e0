package model

import (
	"encoding/json"
	"math"
	"time"
)

// SyncJob status values. Transitions move forward only, except the
// failed -> queued retry path which the claimer takes while
// attempts < max_attempts.
const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusPartial    = "partial"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

// SyncJobItem status values.
const (
	ItemStatusQueued     = "queued"
	ItemStatusProcessing = "processing"
	ItemStatusCompleted  = "completed"
	ItemStatusFailed     = "failed"
)

// SyncJob is one request to push a batch of transactions to one accounting
// platform for one organization.
type SyncJob struct {
	JobID          string     `json:"id"`
	UserID         string     `json:"user_id"`
	OrganizationID string     `json:"organization_id"`
	Platform       string     `json:"platform"`
	TransactionIDs []string   `json:"transaction_ids"`
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	MaxAttempts    int        `json:"max_attempts"`
	NextRunAt      time.Time  `json:"next_run_at"`
	Progress       int        `json:"progress"`
	SuccessCount   int        `json:"success_count"`
	ErrorCount     int        `json:"error_count"`
	SkippedCount   int        `json:"skipped_count"`
	TotalCount     int        `json:"total_count"`
	Error          string     `json:"error,omitempty"`
	LockedAt       *time.Time `json:"locked_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// SyncJobItem is one transaction within a job. Items are cascade-deleted with
// their job and only this subsystem writes their status.
type SyncJobItem struct {
	ItemID      string                 `json:"id"`
	JobID       string                 `json:"job_id"`
	ReferenceID string                 `json:"reference_id"`
	ExternalID  string                 `json:"external_id,omitempty"`
	Status      string                 `json:"status"`
	Result      map[string]interface{} `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Cancelled reports whether the job was externally cancelled. Cancellation is
// checked once before processing begins; in-flight items run to completion.
func (j *SyncJob) Cancelled() bool {
	return j.Status == JobStatusCancelled
}

// Retryable reports whether a failed job may re-enter the queue.
func (j *SyncJob) Retryable() bool {
	return j.Status == JobStatusFailed && j.Attempts < j.MaxAttempts
}

// ProgressFor computes the percentage of completed items, rounded.
func ProgressFor(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// TerminalStatus derives the final job status from per-item results: completed
// when nothing failed, failed when nothing succeeded, partial otherwise.
func TerminalStatus(succeeded, failed int) string {
	switch {
	case failed == 0:
		return JobStatusCompleted
	case succeeded == 0:
		return JobStatusFailed
	default:
		return JobStatusPartial
	}
}

func (j *SyncJob) ToJSON() ([]byte, error) {
	return json.Marshal(j)
}
