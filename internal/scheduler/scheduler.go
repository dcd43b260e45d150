package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uupq/yutto-plus-sub000/internal/domain"
	errpkg "github.com/uupq/yutto-plus-sub000/internal/errors"
	"github.com/uupq/yutto-plus-sub000/internal/metrics"
	"github.com/uupq/yutto-plus-sub000/internal/repository"
	"github.com/uupq/yutto-plus-sub000/internal/validation"
)

// Runner executes one job from extraction through merge. It returns
// nil on completion, errpkg.ErrPaused when interrupted by a pause, or
// the failure otherwise.
type Runner interface {
	Run(ctx context.Context, job *domain.Job) error
}

// Scheduler is a bounded-concurrency FIFO job queue. All five job
// collections are guarded by the single mutex; promotion happens
// through promoteLocked so that the completion path never re-acquires
// the lock it already holds.
type Scheduler struct {
	limit  int
	runner Runner
	store  *repository.JobStore

	mu           sync.Mutex
	pending      []*domain.Job
	running      map[uuid.UUID]*execution
	paused       map[uuid.UUID]*domain.Job
	completed    map[uuid.UUID]*domain.Job
	failed       map[uuid.UUID]*domain.Job
	jobs         map[uuid.UUID]*domain.Job
	shuttingDown bool

	wg sync.WaitGroup
}

type execution struct {
	job    *domain.Job
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// New creates a Scheduler with at most limit concurrently running
// jobs. The store is optional; when set, terminal outcomes are
// persisted to it.
func New(limit int, runner Runner, store *repository.JobStore) *Scheduler {
	if limit <= 0 {
		limit = 1
	}
	return &Scheduler{
		limit:     limit,
		runner:    runner,
		store:     store,
		running:   make(map[uuid.UUID]*execution),
		paused:    make(map[uuid.UUID]*domain.Job),
		completed: make(map[uuid.UUID]*domain.Job),
		failed:    make(map[uuid.UUID]*domain.Job),
		jobs:      make(map[uuid.UUID]*domain.Job),
	}
}

// Submit validates the spec and enqueues a new job. A full queue is
// never an error: valid jobs always enter pending and wait their turn.
func (s *Scheduler) Submit(spec domain.JobSpec) (uuid.UUID, error) {
	if err := validation.ValidateSpec(spec); err != nil {
		return uuid.Nil, errpkg.Wrap(errpkg.KindScheduling, err)
	}

	job := domain.NewJob(spec)

	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		return uuid.Nil, errpkg.ErrShuttingDown
	}
	s.jobs[job.ID] = job
	s.pending = append(s.pending, job)
	next := s.promoteLocked()
	s.mu.Unlock()

	metrics.JobsSubmitted.Inc()
	slog.Info("job submitted", "job_id", job.ID, "streams", len(spec.Sources))

	if next != nil {
		s.start(next)
	}
	return job.ID, nil
}

// promoteLocked pops the head of pending into running if capacity
// remains. Caller must hold s.mu.
func (s *Scheduler) promoteLocked() *execution {
	if s.shuttingDown || len(s.running) >= s.limit || len(s.pending) == 0 {
		return nil
	}

	job := s.pending[0]
	s.pending = s.pending[1:]

	ctx, cancel := context.WithCancelCause(context.Background())
	e := &execution{job: job, ctx: ctx, cancel: cancel}
	s.running[job.ID] = e
	_ = job.SetStatus(domain.StatusQueued)
	return e
}

// TryPromote promotes and starts the next pending job if a slot is
// free. Normally promotion rides on submission and completion; this is
// exposed for callers that change capacity-relevant state out of band.
func (s *Scheduler) TryPromote() {
	s.mu.Lock()
	e := s.promoteLocked()
	s.mu.Unlock()

	if e != nil {
		s.start(e)
	}
}

func (s *Scheduler) start(e *execution) {
	metrics.JobsRunning.Inc()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		started := time.Now()
		err := s.runner.Run(e.ctx, e.job)
		e.cancel(nil)
		s.onJobTerminal(e.job, err, time.Since(started))
	}()
}

// onJobTerminal re-buckets the finished job, promotes the next pending
// one and starts it. This is the sole path by which queued work
// advances.
func (s *Scheduler) onJobTerminal(job *domain.Job, err error, dur time.Duration) {
	s.mu.Lock()
	delete(s.running, job.ID)

	switch {
	case errors.Is(err, errpkg.ErrPaused):
		_ = job.SetStatus(domain.StatusPaused)
		s.paused[job.ID] = job
	case err != nil:
		job.Fail(err)
		s.failed[job.ID] = job
	default:
		s.completed[job.ID] = job
	}

	next := s.promoteLocked()
	s.mu.Unlock()

	metrics.JobsRunning.Dec()

	snap := job.Snapshot()
	switch snap.Status {
	case domain.StatusCompleted:
		metrics.JobsCompleted.Inc()
		metrics.JobDuration.Observe(dur.Seconds())
		slog.Info("job completed", "job_id", job.ID, "bytes", snap.Current, "duration", dur)
		s.record(snap)
	case domain.StatusFailed:
		metrics.JobsFailed.Inc()
		slog.Error("job failed", "job_id", job.ID, "error", snap.Error)
		s.record(snap)
	case domain.StatusPaused:
		slog.Info("job paused", "job_id", job.ID, "bytes", snap.Current)
	}

	if next != nil {
		s.start(next)
	}
}

func (s *Scheduler) record(snap domain.JobSnapshot) {
	if s.store == nil {
		return
	}
	err := s.store.Append(repository.Record{
		ID:         snap.ID,
		URL:        snap.URL,
		Status:     snap.Status,
		OutputPath: snap.OutputPath,
		Error:      snap.Error,
		Bytes:      snap.Current,
		CreatedAt:  snap.CreatedAt,
		FinishedAt: time.Now(),
	})
	if err != nil {
		slog.Error("failed to persist job record", "job_id", snap.ID, "error", err)
	}
}

// Pause stops a pending or running job. A running job is interrupted
// cooperatively; its partial files stay on disk for a later resume.
func (s *Scheduler) Pause(id uuid.UUID) error {
	s.mu.Lock()

	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return errpkg.ErrJobNotFound
	}

	if e, ok := s.running[id]; ok {
		s.mu.Unlock()
		e.cancel(errpkg.ErrPaused)
		return nil
	}

	for i, j := range s.pending {
		if j.ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			_ = job.SetStatus(domain.StatusPaused)
			s.paused[id] = job
			s.mu.Unlock()
			slog.Info("job paused", "job_id", id)
			return nil
		}
	}

	if _, ok := s.paused[id]; ok {
		s.mu.Unlock()
		return nil
	}

	s.mu.Unlock()
	return errpkg.ErrJobTerminal
}

// Resume moves a paused job back to the tail of pending.
func (s *Scheduler) Resume(id uuid.UUID) error {
	s.mu.Lock()

	job, ok := s.paused[id]
	if !ok {
		s.mu.Unlock()
		if _, exists := s.jobs[id]; !exists {
			return errpkg.ErrJobNotFound
		}
		return errpkg.ErrJobNotPaused
	}

	delete(s.paused, id)
	_ = job.SetStatus(domain.StatusPending)
	s.pending = append(s.pending, job)
	next := s.promoteLocked()
	s.mu.Unlock()

	slog.Info("job resumed", "job_id", id)
	if next != nil {
		s.start(next)
	}
	return nil
}

// Cancel aborts a job. Bytes already written stay on disk so a future
// resubmission can resume.
func (s *Scheduler) Cancel(id uuid.UUID) error {
	s.mu.Lock()

	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return errpkg.ErrJobNotFound
	}

	if e, ok := s.running[id]; ok {
		s.mu.Unlock()
		e.cancel(errpkg.ErrCanceled)
		return nil
	}

	for i, j := range s.pending {
		if j.ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			s.failJobLocked(job)
			s.mu.Unlock()
			return nil
		}
	}

	if _, ok := s.paused[id]; ok {
		delete(s.paused, id)
		s.failJobLocked(job)
		s.mu.Unlock()
		return nil
	}

	s.mu.Unlock()
	return errpkg.ErrJobTerminal
}

func (s *Scheduler) failJobLocked(job *domain.Job) {
	job.Fail(errpkg.ErrCanceled)
	s.failed[job.ID] = job
	metrics.JobsFailed.Inc()
	s.record(job.Snapshot())
}

// Job returns a point-in-time snapshot of one job.
func (s *Scheduler) Job(id uuid.UUID) (domain.JobSnapshot, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	s.mu.Unlock()

	if !ok {
		return domain.JobSnapshot{}, errpkg.ErrJobNotFound
	}
	return job.Snapshot(), nil
}

// Jobs returns snapshots of every known job, oldest first.
func (s *Scheduler) Jobs() []domain.JobSnapshot {
	s.mu.Lock()
	all := make([]*domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		all = append(all, job)
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	snaps := make([]domain.JobSnapshot, 0, len(all))
	for _, job := range all {
		snaps = append(snaps, job.Snapshot())
	}
	return snaps
}

// Status returns a point-in-time fleet snapshot. Byte aggregates are
// recomputed from the running jobs on every call, never carried over
// from previous reports.
func (s *Scheduler) Status() domain.FleetSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := domain.FleetSnapshot{
		Pending:   len(s.pending),
		Running:   len(s.running),
		Paused:    len(s.paused),
		Completed: len(s.completed),
		Failed:    len(s.failed),
		Total:     len(s.jobs),
	}

	for _, e := range s.running {
		js := e.job.Snapshot()
		snap.CurrentBytes += js.Current
		snap.TotalBytes += js.Total
		snap.Speed += js.Speed
	}

	return snap
}

// Shutdown stops accepting jobs, cancels the running ones and waits
// for their goroutines, bounded by ctx.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	slog.Info("shutting down scheduler")

	s.mu.Lock()
	s.shuttingDown = true
	for _, e := range s.running {
		e.cancel(errpkg.ErrShuttingDown)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("scheduler shutdown completed")
		return nil
	case <-ctx.Done():
		slog.Warn("scheduler shutdown timed out")
		return ctx.Err()
	}
}
