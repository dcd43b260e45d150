package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_downloader_jobs_submitted_total",
		Help: "Total number of jobs submitted",
	})

	JobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_downloader_jobs_completed_total",
		Help: "Total number of jobs completed",
	})

	JobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_downloader_jobs_failed_total",
		Help: "Total number of jobs failed",
	})

	JobsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "media_downloader_jobs_running",
		Help: "Number of jobs currently running",
	})

	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "media_downloader_job_duration_seconds",
		Help:    "Job duration from start to completion in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	BytesDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_downloader_download_bytes_total",
		Help: "Total bytes downloaded across all streams",
	})

	ProbeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_downloader_probe_failures_total",
		Help: "Total number of size probes that exhausted all strategies",
	})

	MergeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_downloader_merge_failures_total",
		Help: "Total number of failed merge invocations",
	})
)
