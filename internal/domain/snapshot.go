package domain

import (
	"time"

	"github.com/google/uuid"
)

// StreamSnapshot is a copy of one stream's progress at a point in time.
type StreamSnapshot struct {
	ID string `json:"id"`
	StreamProgress
}

// JobSnapshot is a point-in-time view of a job, safe to hand to other
// goroutines.
type JobSnapshot struct {
	ID         uuid.UUID        `json:"job_id"`
	URL        string           `json:"url,omitempty"`
	Status     JobStatus        `json:"status"`
	Streams    []StreamSnapshot `json:"streams,omitempty"`
	Current    int64            `json:"current"`
	Total      int64            `json:"total"`
	Speed      int64            `json:"speed_bytes_per_sec"`
	Percent    float64          `json:"percent"`
	Error      string           `json:"error,omitempty"`
	OutputPath string           `json:"output_path,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// FleetSnapshot is a point-in-time view of the whole scheduler.
// Byte aggregates cover the currently running jobs and are recomputed
// from scratch on every call, never accumulated incrementally.
type FleetSnapshot struct {
	Pending      int   `json:"pending"`
	Running      int   `json:"running"`
	Paused       int   `json:"paused"`
	Completed    int   `json:"completed"`
	Failed       int   `json:"failed"`
	Total        int   `json:"total"`
	CurrentBytes int64 `json:"current_bytes"`
	TotalBytes   int64 `json:"total_bytes"`
	Speed        int64 `json:"speed_bytes_per_sec"`
}
