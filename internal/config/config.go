package config

import (
	"fmt"
	"time"

	"github.com/uupq/yutto-plus-sub000/internal/retry"
)

// Config holds all application configuration settings.
type Config struct {
	Environment string `envconfig:"YP_ENV" default:"development"`

	HTTPPort    int           `envconfig:"YP_HTTP_PORT" default:"8080"`
	HTTPTimeout time.Duration `envconfig:"YP_HTTP_TIMEOUT" default:"15s"`

	MaxConcurrentJobs int           `envconfig:"YP_MAX_CONCURRENT_JOBS" default:"3"`
	ChunkSize         int           `envconfig:"YP_CHUNK_SIZE" default:"32768"`
	ProgressInterval  time.Duration `envconfig:"YP_PROGRESS_INTERVAL" default:"1s"`
	RequestTimeout    time.Duration `envconfig:"YP_REQUEST_TIMEOUT" default:"30s"`

	RetryAttempts   int           `envconfig:"YP_RETRY_ATTEMPTS" default:"3"`
	RetryBackoff    time.Duration `envconfig:"YP_RETRY_BACKOFF" default:"500ms"`
	RetryMaxBackoff time.Duration `envconfig:"YP_RETRY_MAX_BACKOFF" default:"10s"`

	DownloadDir   string `envconfig:"YP_DOWNLOAD_DIR" default:"./downloads"`
	StateFile     string `envconfig:"YP_STATE_FILE" default:"./state/jobs.json"`
	FFmpegPath    string `envconfig:"YP_FFMPEG_PATH" default:"ffmpeg"`
	ArchiveBucket string `envconfig:"YP_ARCHIVE_BUCKET" default:""`

	ShutdownTimeout time.Duration `envconfig:"YP_SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel  string `envconfig:"YP_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"YP_LOG_FORMAT" default:"json"`

	// ConfigFile optionally points at a YAML file overlaying the
	// environment settings.
	ConfigFile string `envconfig:"YP_CONFIG_FILE" default:""`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("max concurrent jobs must be positive: %d", c.MaxConcurrentJobs)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive: %d", c.ChunkSize)
	}

	if c.RetryAttempts <= 0 {
		return fmt.Errorf("retry attempts must be positive: %d", c.RetryAttempts)
	}

	if c.DownloadDir == "" {
		return fmt.Errorf("download directory cannot be empty")
	}
	if c.StateFile == "" {
		return fmt.Errorf("state file cannot be empty")
	}

	return nil
}

// Retry returns the retry policy shared by the probe and transfer
// layers.
func (c *Config) Retry() retry.Policy {
	return retry.Policy{
		Attempts:   c.RetryAttempts,
		Backoff:    c.RetryBackoff,
		MaxBackoff: c.RetryMaxBackoff,
	}
}
