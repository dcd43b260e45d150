package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/uupq/yutto-plus-sub000/internal/progress"
)

// Load loads configuration from environment variables (with an
// optional .env file and YAML overlay), validates it, and ensures
// required directories exist.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("YP", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if cfg.ConfigFile != "" {
		if err := applyFile(&cfg, cfg.ConfigFile); err != nil {
			return nil, fmt.Errorf("failed to apply config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := createDirs(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &cfg, nil
}

// fileConfig is the YAML overlay shape. Sizes are human-readable
// strings ("64KB"); zero values leave the environment setting alone.
type fileConfig struct {
	MaxConcurrentJobs int    `yaml:"max_concurrent_jobs"`
	ChunkSize         string `yaml:"chunk_size"`
	ProgressInterval  string `yaml:"progress_interval"`
	DownloadDir       string `yaml:"download_dir"`
	FFmpegPath        string `yaml:"ffmpeg_path"`
	ArchiveBucket     string `yaml:"archive_bucket"`
	Retry             struct {
		Attempts   int    `yaml:"attempts"`
		Backoff    string `yaml:"backoff"`
		MaxBackoff string `yaml:"max_backoff"`
	} `yaml:"retry"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if fc.MaxConcurrentJobs != 0 {
		cfg.MaxConcurrentJobs = fc.MaxConcurrentJobs
	}
	if fc.ChunkSize != "" {
		size, err := progress.ParseBytes(fc.ChunkSize)
		if err != nil {
			return fmt.Errorf("parse chunk_size: %w", err)
		}
		cfg.ChunkSize = int(size)
	}
	if fc.ProgressInterval != "" {
		d, err := time.ParseDuration(fc.ProgressInterval)
		if err != nil {
			return fmt.Errorf("parse progress_interval: %w", err)
		}
		cfg.ProgressInterval = d
	}
	if fc.DownloadDir != "" {
		cfg.DownloadDir = fc.DownloadDir
	}
	if fc.FFmpegPath != "" {
		cfg.FFmpegPath = fc.FFmpegPath
	}
	if fc.ArchiveBucket != "" {
		cfg.ArchiveBucket = fc.ArchiveBucket
	}
	if fc.Retry.Attempts != 0 {
		cfg.RetryAttempts = fc.Retry.Attempts
	}
	if fc.Retry.Backoff != "" {
		d, err := time.ParseDuration(fc.Retry.Backoff)
		if err != nil {
			return fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.RetryBackoff = d
	}
	if fc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(fc.Retry.MaxBackoff)
		if err != nil {
			return fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		cfg.RetryMaxBackoff = d
	}

	return nil
}

func createDirs(cfg *Config) error {
	dirs := []string{
		cfg.DownloadDir,
		filepath.Dir(cfg.StateFile),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("directory created or verified", "path", dir)
	}
	return nil
}

// SetupLogger configures the global slog logger based on configuration.
// Supports "json" or "text" formats and log levels: debug, info, warn, error.
func SetupLogger(cfg *Config) {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
