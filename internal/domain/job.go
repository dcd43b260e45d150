package domain

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a download job.
type JobStatus string

const (
	StatusPending     JobStatus = "pending"
	StatusQueued      JobStatus = "queued"
	StatusExtracting  JobStatus = "extracting"
	StatusDownloading JobStatus = "downloading"
	StatusMerging     JobStatus = "merging"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusPaused      JobStatus = "paused"
)

// Terminal reports whether the status can never change again.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var transitions = map[JobStatus][]JobStatus{
	StatusPending:     {StatusQueued, StatusPaused, StatusFailed},
	StatusQueued:      {StatusExtracting, StatusPaused, StatusFailed},
	StatusExtracting:  {StatusDownloading, StatusPaused, StatusFailed},
	StatusDownloading: {StatusMerging, StatusPaused, StatusFailed},
	StatusMerging:     {StatusCompleted, StatusPaused, StatusFailed},
	StatusPaused:      {StatusPending, StatusFailed},
}

// Job is one logical download unit producing one final media artifact.
// Pending and Queued are scheduler-owned; all other states are driven
// by the job's own execution goroutine.
type Job struct {
	ID        uuid.UUID
	Spec      JobSpec
	CreatedAt time.Time

	mu         sync.Mutex
	status     JobStatus
	streams    map[string]*StreamProgress
	order      []string
	errMsg     string
	outputPath string
	updatedAt  time.Time
}

// NewJob creates a Job in StatusPending.
func NewJob(spec JobSpec) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.New(),
		Spec:      spec,
		CreatedAt: now,
		status:    StatusPending,
		streams:   make(map[string]*StreamProgress),
		updatedAt: now,
	}
}

// Status returns the current job status.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// SetStatus advances the state machine. Invalid transitions, including
// any transition out of a terminal state, are rejected.
func (j *Job) SetStatus(next JobStatus) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.setStatusLocked(next)
}

func (j *Job) setStatusLocked(next JobStatus) error {
	for _, allowed := range transitions[j.status] {
		if allowed == next {
			j.status = next
			j.updatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("invalid transition %s -> %s", j.status, next)
}

// Fail moves the job to StatusFailed and records a human-readable
// error. The first call wins; a terminal job is never changed.
func (j *Job) Fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	j.status = StatusFailed
	j.errMsg = err.Error()
	j.updatedAt = time.Now()
}

// Complete moves the job to StatusCompleted and records the merged
// output path.
func (j *Job) Complete(outputPath string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.setStatusLocked(StatusCompleted); err != nil {
		return err
	}
	j.outputPath = outputPath
	return nil
}

// Error returns the recorded failure message, if any.
func (j *Job) Error() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.errMsg
}

// InitStream registers (or resets) one stream's progress entry.
func (j *Job) InitStream(id string, kind StreamKind, current, total int64, complete bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, exists := j.streams[id]; !exists {
		j.order = append(j.order, id)
	}
	j.streams[id] = &StreamProgress{
		Kind:     kind,
		Current:  current,
		Total:    total,
		Speed:    0,
		Complete: complete,
	}
	j.updatedAt = time.Now()
}

// UpdateStream records new progress for one stream.
func (j *Job) UpdateStream(id string, current, total, speed int64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	p, ok := j.streams[id]
	if !ok {
		return
	}
	p.Current = current
	if total > 0 {
		p.Total = total
	}
	p.Speed = speed
	p.Complete = p.Total > 0 && p.Current >= p.Total
	j.updatedAt = time.Now()
}

// Snapshot returns a copy-out view of the job, with per-stream progress
// and the aggregate across streams. The percentage is clamped to
// [0,100] even if a stream momentarily reports more bytes than a stale
// total.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	snap := JobSnapshot{
		ID:         j.ID,
		URL:        j.Spec.URL,
		Status:     j.status,
		Error:      j.errMsg,
		OutputPath: j.outputPath,
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.updatedAt,
	}

	for _, id := range j.order {
		p := j.streams[id]
		snap.Streams = append(snap.Streams, StreamSnapshot{
			ID:             id,
			StreamProgress: *p,
		})
		snap.Current += p.Current
		snap.Total += p.Total
		snap.Speed += p.Speed
	}

	snap.Percent = percentage(snap.Current, snap.Total)
	return snap
}

func percentage(current, total int64) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(current) / float64(total) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
