// Package models holds the persisted and ephemeral domain types shared by
// the pipeline engine and the generation queue.
package models

import (
	"encoding/json"
	"time"
)

// Priority orders jobs within the pending queue. Lower values run first.
type Priority int

const (
	PriorityHigh   Priority = 0
	PriorityNormal Priority = 1
	PriorityLow    Priority = 2
)

// String renders the priority for logging.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Status is the lifecycle state of a Job (see invariants in spec §3).
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// bucket orders List-all results: Generating < Pending < Completed <
// Failed < Cancelled, as required by invariant 4.
func (s Status) bucket() int {
	switch s {
	case StatusGenerating:
		return 0
	case StatusPending:
		return 1
	case StatusCompleted:
		return 2
	case StatusFailed:
		return 3
	case StatusCancelled:
		return 4
	default:
		return 5
	}
}

// StatusBucket exposes the ordering bucket for a status. Store.ListAll
// encodes the same ordering in its own SQL CASE expression rather than
// calling this.
func StatusBucket(s Status) int { return s.bucket() }

// Job is the persisted queue entry describing one generation (spec §3).
type Job struct {
	ID          string
	Priority    Priority
	Status      Status
	Positive    string
	Negative    string
	Settings    json.RawMessage // opaque settings payload, see GenerationRequest
	PipelineLog json.RawMessage // optional opaque pipeline log
	OriginalIdea string

	// LinkedComparisonID is an opaque, out-of-scope comparison-session
	// reference round-tripped for the host's benefit (original_source
	// src-tauri/src/db/queue.rs carries the same field).
	LinkedComparisonID string

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	ResultImageID string // empty until a result is attached
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// NewJobParams are the caller-supplied fields for enqueuing a job; the
// manager fills in ID/Status/CreatedAt.
type NewJobParams struct {
	ID                 string
	Priority           Priority
	Positive           string
	Negative           string
	Settings           json.RawMessage
	PipelineLog        json.RawMessage
	OriginalIdea       string
	LinkedComparisonID string
}
