package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("YP_DOWNLOAD_DIR", filepath.Join(dir, "downloads"))
	t.Setenv("YP_STATE_FILE", filepath.Join(dir, "state", "jobs.json"))
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("port = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.MaxConcurrentJobs != 3 {
		t.Errorf("max concurrent jobs = %d, want 3", cfg.MaxConcurrentJobs)
	}
	if cfg.ChunkSize != 32768 {
		t.Errorf("chunk size = %d, want 32768", cfg.ChunkSize)
	}
	if cfg.Retry().Attempts != 3 {
		t.Errorf("retry attempts = %d, want 3", cfg.Retry().Attempts)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("YP_HTTP_PORT", "9090")
	t.Setenv("YP_MAX_CONCURRENT_JOBS", "5")
	t.Setenv("YP_PROGRESS_INTERVAL", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("port = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.MaxConcurrentJobs != 5 {
		t.Errorf("max concurrent jobs = %d, want 5", cfg.MaxConcurrentJobs)
	}
	if cfg.ProgressInterval != 250*time.Millisecond {
		t.Errorf("progress interval = %s, want 250ms", cfg.ProgressInterval)
	}
}

func TestLoad_CreatesDirs(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if _, err := os.Stat(cfg.DownloadDir); err != nil {
		t.Errorf("download dir not created: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(cfg.StateFile)); err != nil {
		t.Errorf("state dir not created: %v", err)
	}
}

func TestLoad_YAMLOverlay(t *testing.T) {
	setBaseEnv(t)

	yamlPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
max_concurrent_jobs: 7
chunk_size: 64KB
progress_interval: 2s
retry:
  attempts: 5
  backoff: 1s
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("YP_CONFIG_FILE", yamlPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.MaxConcurrentJobs != 7 {
		t.Errorf("max concurrent jobs = %d, want 7", cfg.MaxConcurrentJobs)
	}
	if cfg.ChunkSize != 64*1024 {
		t.Errorf("chunk size = %d, want %d", cfg.ChunkSize, 64*1024)
	}
	if cfg.ProgressInterval != 2*time.Second {
		t.Errorf("progress interval = %s, want 2s", cfg.ProgressInterval)
	}
	if cfg.RetryAttempts != 5 || cfg.RetryBackoff != time.Second {
		t.Errorf("retry = %d/%s, want 5/1s", cfg.RetryAttempts, cfg.RetryBackoff)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		HTTPPort:          8080,
		MaxConcurrentJobs: 3,
		ChunkSize:         32768,
		RetryAttempts:     3,
		DownloadDir:       "./downloads",
		StateFile:         "./state/jobs.json",
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.HTTPPort = 0 }},
		{"zero jobs", func(c *Config) { c.MaxConcurrentJobs = 0 }},
		{"zero chunk", func(c *Config) { c.ChunkSize = 0 }},
		{"zero retries", func(c *Config) { c.RetryAttempts = 0 }},
		{"empty download dir", func(c *Config) { c.DownloadDir = "" }},
		{"empty state file", func(c *Config) { c.StateFile = "" }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := base
			c.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
