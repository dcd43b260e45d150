package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/uupq/yutto-plus-sub000/internal/domain"
	errpkg "github.com/uupq/yutto-plus-sub000/internal/errors"
)

// stubRunner blocks each job until released, then walks the job through
// its remaining states and returns the configured outcome.
type stubRunner struct {
	mu      sync.Mutex
	started []uuid.UUID
	release chan struct{}
	fail    error
}

func newStubRunner() *stubRunner {
	return &stubRunner{release: make(chan struct{})}
}

func (r *stubRunner) Run(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	r.started = append(r.started, job.ID)
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		cause := context.Cause(ctx)
		if cause != nil {
			return cause
		}
		return ctx.Err()
	case <-r.release:
	}

	if r.fail != nil {
		return r.fail
	}

	for _, st := range []domain.JobStatus{domain.StatusExtracting, domain.StatusDownloading, domain.StatusMerging} {
		if err := job.SetStatus(st); err != nil {
			return err
		}
	}
	return job.Complete("/downloads/out.mp4")
}

func (r *stubRunner) startedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.started)
}

func validSpec() domain.JobSpec {
	return domain.JobSpec{
		Sources: []domain.StreamSource{
			{Kind: domain.StreamKindVideo, URL: "http://cdn.example.com/v.m4s"},
		},
		Container: "mp4",
		Resume:    true,
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestSubmit_InvalidSpec(t *testing.T) {
	s := New(1, newStubRunner(), nil)

	_, err := s.Submit(domain.JobSpec{})
	require.Error(t, err)
	require.Equal(t, errpkg.KindScheduling, errpkg.KindOf(err))
	require.Zero(t, s.Status().Total)
}

func TestSubmit_BoundedConcurrencyFIFO(t *testing.T) {
	runner := newStubRunner()
	s := New(2, runner, nil)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		id, err := s.Submit(validSpec())
		require.NoError(t, err)
		ids = append(ids, id)
	}

	waitFor(t, func() bool { return runner.startedCount() == 2 }, "two running jobs")

	status := s.Status()
	require.Equal(t, 2, status.Running)
	require.Equal(t, 1, status.Pending)

	third, err := s.Job(ids[2])
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, third.Status)

	// Releasing one job frees a slot for the third, in FIFO order.
	runner.release <- struct{}{}
	waitFor(t, func() bool { return runner.startedCount() == 3 }, "third job promoted")

	runner.mu.Lock()
	promoted := runner.started[2]
	runner.mu.Unlock()
	require.Equal(t, ids[2], promoted)

	runner.release <- struct{}{}
	runner.release <- struct{}{}
	waitFor(t, func() bool { return s.Status().Completed == 3 }, "all jobs completed")
}

func TestSubmit_FullQueueIsNotAnError(t *testing.T) {
	runner := newStubRunner()
	s := New(1, runner, nil)

	for i := 0; i < 5; i++ {
		_, err := s.Submit(validSpec())
		require.NoError(t, err)
	}
	waitFor(t, func() bool { return runner.startedCount() == 1 }, "first job running")
	require.Equal(t, 4, s.Status().Pending)
}

func TestJobFailureRecordedOnce(t *testing.T) {
	runner := newStubRunner()
	runner.fail = errors.New("stream ended early")
	s := New(1, runner, nil)

	id, err := s.Submit(validSpec())
	require.NoError(t, err)

	close(runner.release)
	waitFor(t, func() bool { return s.Status().Failed == 1 }, "job failed")

	snap, err := s.Job(id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, snap.Status)
	require.Contains(t, snap.Error, "stream ended early")
}

func TestPauseRunningJob(t *testing.T) {
	runner := newStubRunner()
	s := New(1, runner, nil)

	id, err := s.Submit(validSpec())
	require.NoError(t, err)
	waitFor(t, func() bool { return runner.startedCount() == 1 }, "job running")

	require.NoError(t, s.Pause(id))
	waitFor(t, func() bool { return s.Status().Paused == 1 }, "job paused")

	snap, err := s.Job(id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaused, snap.Status)

	// Pausing an already paused job is a no-op.
	require.NoError(t, s.Pause(id))
}

func TestPausePendingJob(t *testing.T) {
	runner := newStubRunner()
	s := New(1, runner, nil)

	_, err := s.Submit(validSpec())
	require.NoError(t, err)
	pendingID, err := s.Submit(validSpec())
	require.NoError(t, err)
	waitFor(t, func() bool { return runner.startedCount() == 1 }, "first job running")

	require.NoError(t, s.Pause(pendingID))

	status := s.Status()
	require.Equal(t, 0, status.Pending)
	require.Equal(t, 1, status.Paused)
}

func TestResumePausedJob(t *testing.T) {
	runner := newStubRunner()
	s := New(1, runner, nil)

	id, err := s.Submit(validSpec())
	require.NoError(t, err)
	waitFor(t, func() bool { return runner.startedCount() == 1 }, "job running")

	require.NoError(t, s.Pause(id))
	waitFor(t, func() bool { return s.Status().Paused == 1 }, "job paused")

	require.NoError(t, s.Resume(id))
	waitFor(t, func() bool { return runner.startedCount() == 2 }, "job restarted")

	runner.release <- struct{}{}
	waitFor(t, func() bool { return s.Status().Completed == 1 }, "job completed after resume")
}

func TestResume_NotPaused(t *testing.T) {
	runner := newStubRunner()
	s := New(1, runner, nil)

	id, err := s.Submit(validSpec())
	require.NoError(t, err)
	waitFor(t, func() bool { return runner.startedCount() == 1 }, "job running")

	require.ErrorIs(t, s.Resume(id), errpkg.ErrJobNotPaused)
	require.ErrorIs(t, s.Resume(uuid.New()), errpkg.ErrJobNotFound)
}

func TestCancelRunningJob(t *testing.T) {
	runner := newStubRunner()
	s := New(1, runner, nil)

	id, err := s.Submit(validSpec())
	require.NoError(t, err)
	waitFor(t, func() bool { return runner.startedCount() == 1 }, "job running")

	require.NoError(t, s.Cancel(id))
	waitFor(t, func() bool { return s.Status().Failed == 1 }, "job canceled")

	snap, err := s.Job(id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, snap.Status)
	require.Contains(t, snap.Error, "canceled")

	// Terminal jobs cannot be paused or canceled again.
	require.ErrorIs(t, s.Pause(id), errpkg.ErrJobTerminal)
	require.ErrorIs(t, s.Cancel(id), errpkg.ErrJobTerminal)
}

func TestCancelPendingJob(t *testing.T) {
	runner := newStubRunner()
	s := New(1, runner, nil)

	_, err := s.Submit(validSpec())
	require.NoError(t, err)
	pendingID, err := s.Submit(validSpec())
	require.NoError(t, err)
	waitFor(t, func() bool { return runner.startedCount() == 1 }, "first job running")

	require.NoError(t, s.Cancel(pendingID))

	status := s.Status()
	require.Equal(t, 0, status.Pending)
	require.Equal(t, 1, status.Failed)
	require.Equal(t, 1, runner.startedCount())
}

func TestJobs_SortedByCreation(t *testing.T) {
	runner := newStubRunner()
	s := New(1, runner, nil)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		id, err := s.Submit(validSpec())
		require.NoError(t, err)
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond)
	}

	snaps := s.Jobs()
	require.Len(t, snaps, 3)
	for i, snap := range snaps {
		require.Equal(t, ids[i], snap.ID)
	}
}

func TestJob_NotFound(t *testing.T) {
	s := New(1, newStubRunner(), nil)
	_, err := s.Job(uuid.New())
	require.ErrorIs(t, err, errpkg.ErrJobNotFound)
}

func TestShutdown(t *testing.T) {
	runner := newStubRunner()
	s := New(2, runner, nil)

	_, err := s.Submit(validSpec())
	require.NoError(t, err)
	waitFor(t, func() bool { return runner.startedCount() == 1 }, "job running")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	_, err = s.Submit(validSpec())
	require.ErrorIs(t, err, errpkg.ErrShuttingDown)
}
