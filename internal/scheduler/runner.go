package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/uupq/yutto-plus-sub000/internal/archive"
	"github.com/uupq/yutto-plus-sub000/internal/domain"
	errpkg "github.com/uupq/yutto-plus-sub000/internal/errors"
	"github.com/uupq/yutto-plus-sub000/internal/extract"
	"github.com/uupq/yutto-plus-sub000/internal/merge"
	"github.com/uupq/yutto-plus-sub000/internal/metrics"
	"github.com/uupq/yutto-plus-sub000/internal/probe"
	"github.com/uupq/yutto-plus-sub000/internal/progress"
	"github.com/uupq/yutto-plus-sub000/internal/storage"
	"github.com/uupq/yutto-plus-sub000/internal/transfer"
)

// RunnerConfig wires the collaborators a JobRunner needs.
type RunnerConfig struct {
	Resolver extract.Resolver
	Prober   *probe.Prober
	Transfer *transfer.Transfer
	Merger   merge.Merger

	// Archiver optionally uploads finished outputs; nil disables it.
	Archiver *archive.Uploader

	// DownloadDir is the default output directory for specs that do
	// not name one.
	DownloadDir string

	// ProgressInterval throttles Notify callbacks; zero means every
	// chunk.
	ProgressInterval time.Duration

	// Notify, when set, receives throttled job snapshots.
	Notify func(domain.JobSnapshot)
}

// JobRunner drives one job through extraction, download and merge.
// All streams of a job download concurrently; this fan-out is not
// bounded by the scheduler's job-level cap.
type JobRunner struct {
	cfg RunnerConfig
}

// NewJobRunner creates a JobRunner.
func NewJobRunner(cfg RunnerConfig) *JobRunner {
	return &JobRunner{cfg: cfg}
}

var kindOrder = map[domain.StreamKind]int{
	domain.StreamKindVideo:    0,
	domain.StreamKindAudio:    1,
	domain.StreamKindSubtitle: 2,
}

// Run executes the job state machine. Partial files are always
// retained on failure so a resubmission can resume.
func (r *JobRunner) Run(ctx context.Context, job *domain.Job) error {
	if err := job.SetStatus(domain.StatusExtracting); err != nil {
		return err
	}

	spec := job.Spec
	name := spec.OutputName
	if name == "" {
		name = job.ID.String()
	}
	dir := spec.OutputDir
	if dir == "" {
		dir = r.cfg.DownloadDir
	}

	fs, err := storage.NewFileStorage(dir)
	if err != nil {
		return err
	}

	descs, err := r.cfg.Resolver.Resolve(ctx, spec)
	if err != nil {
		return interrupted(ctx, fmt.Errorf("resolve streams: %w", err))
	}

	if err := job.SetStatus(domain.StatusDownloading); err != nil {
		return err
	}

	if err := r.prepareStreams(ctx, job, fs, name, descs); err != nil {
		return interrupted(ctx, err)
	}

	if err := r.downloadStreams(ctx, job, descs); err != nil {
		return interrupted(ctx, err)
	}

	if err := job.SetStatus(domain.StatusMerging); err != nil {
		return err
	}

	outputPath, err := r.mergeStreams(ctx, fs, name, spec.Container, descs)
	if err != nil {
		metrics.MergeFailures.Inc()
		return interrupted(ctx, err)
	}

	if r.cfg.Archiver != nil && outputPath != "" {
		key := filepath.Base(outputPath)
		if err := r.cfg.Archiver.Store(ctx, outputPath, key); err != nil {
			slog.Error("archive upload failed", "job_id", job.ID, "key", key, "error", err)
		}
	}

	if err := job.Complete(outputPath); err != nil {
		return err
	}
	r.notify(job)
	return nil
}

// prepareStreams assigns local paths, probes remote sizes and decides
// per stream whether resume is possible.
func (r *JobRunner) prepareStreams(ctx context.Context, job *domain.Job, fs *storage.FileStorage, name string, descs []domain.StreamDescriptor) error {
	spec := job.Spec

	for i := range descs {
		d := &descs[i]
		filename := streamFilename(name, d.ID, d.Kind)
		d.Path = fs.Path(filename)

		existing, err := fs.Size(filename)
		if err != nil {
			return fmt.Errorf("stat stream file %s: %w", filename, err)
		}
		if existing > 0 && (spec.Overwrite || !spec.Resume) {
			if err := fs.Remove(filename); err != nil {
				return fmt.Errorf("remove stale stream file %s: %w", filename, err)
			}
			existing = 0
		}

		res, err := r.cfg.Prober.Probe(ctx, d.URL, existing)
		if err != nil {
			metrics.ProbeFailures.Inc()
			return fmt.Errorf("probe stream %s: %w", d.ID, err)
		}

		if !res.RangeSupported && existing > 0 {
			// Resume would interleave bytes from two transfers; throw
			// the partial file away instead of risking corruption.
			slog.Warn("server does not honor range requests, restarting stream from zero",
				"job_id", job.ID,
				"stream", d.ID,
				"discarded_bytes", existing,
			)
			if err := fs.Remove(filename); err != nil {
				return fmt.Errorf("remove stale stream file %s: %w", filename, err)
			}
			existing = 0
		}

		d.ExistingBytes = existing
		d.TotalBytes = res.Total
		d.RangeSupported = res.RangeSupported
		d.Complete = res.Complete || (res.Total > 0 && existing >= res.Total)

		current := existing
		if d.Complete {
			current = res.Total
		}
		job.InitStream(d.ID, d.Kind, current, res.Total, d.Complete)
	}

	return nil
}

// downloadStreams runs every incomplete stream transfer concurrently.
// The first irrecoverable failure cancels the sibling transfers via
// the group context.
func (r *JobRunner) downloadStreams(ctx context.Context, job *domain.Job, descs []domain.StreamDescriptor) error {
	throttle := progress.NewThrottle(r.cfg.ProgressInterval)

	g, gctx := errgroup.WithContext(ctx)
	for i := range descs {
		d := &descs[i]
		if d.Complete {
			continue
		}

		var reported int64 = d.ExistingBytes
		g.Go(func() error {
			return r.cfg.Transfer.Run(gctx, d, func(current, total, speed int64) {
				job.UpdateStream(d.ID, current, total, speed)
				if delta := current - reported; delta > 0 {
					metrics.BytesDownloaded.Add(float64(delta))
				}
				reported = current
				if throttle.Allow() {
					r.notify(job)
				}
			})
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	return nil
}

// mergeStreams hands the mergeable stream files to the merger, then
// discards them. Side artifacts (subtitles) stay next to the output.
func (r *JobRunner) mergeStreams(ctx context.Context, fs *storage.FileStorage, name, container string, descs []domain.StreamDescriptor) (string, error) {
	mergeable := make([]domain.StreamDescriptor, 0, len(descs))
	for _, d := range descs {
		if d.Kind.Mergeable() {
			mergeable = append(mergeable, d)
		}
	}
	if len(mergeable) == 0 {
		return "", nil
	}

	sort.SliceStable(mergeable, func(i, j int) bool {
		return kindOrder[mergeable[i].Kind] < kindOrder[mergeable[j].Kind]
	})

	inputs := make([]string, len(mergeable))
	for i, d := range mergeable {
		inputs[i] = d.Path
	}

	if container == "" {
		container = "mp4"
	}
	output := fs.Path(name + "." + container)

	out, err := r.cfg.Merger.Merge(ctx, inputs, output)
	if err != nil {
		return "", err
	}

	for _, in := range inputs {
		if err := os.Remove(in); err != nil {
			slog.Warn("failed to remove merged stream file", "path", in, "error", err)
		}
	}
	return out, nil
}

func (r *JobRunner) notify(job *domain.Job) {
	if r.cfg.Notify != nil {
		r.cfg.Notify(job.Snapshot())
	}
}

func streamFilename(name, id string, kind domain.StreamKind) string {
	ext := ".m4s"
	if kind == domain.StreamKindSubtitle {
		ext = ".srt"
	}
	return fmt.Sprintf("%s.%s%s", name, id, ext)
}

// interrupted maps a failure caused by a pause or cancel request to
// its cause, so the scheduler can re-bucket the job accordingly
// instead of recording a failure.
func interrupted(ctx context.Context, err error) error {
	cause := context.Cause(ctx)
	if cause != nil && (errors.Is(cause, errpkg.ErrPaused) || errors.Is(cause, errpkg.ErrCanceled) || errors.Is(cause, errpkg.ErrShuttingDown)) {
		return cause
	}
	return err
}
