package repository

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uupq/yutto-plus-sub000/internal/domain"
)

// Record is the persisted terminal outcome of one job. Records serve
// history queries only; resuming a download uses bytes on disk plus
// remote probes, never this file.
type Record struct {
	ID         uuid.UUID        `json:"id"`
	URL        string           `json:"url,omitempty"`
	Status     domain.JobStatus `json:"status"`
	OutputPath string           `json:"output_path,omitempty"`
	Error      string           `json:"error,omitempty"`
	Bytes      int64            `json:"bytes"`
	CreatedAt  time.Time        `json:"created_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// JobStore keeps terminal job records in memory and mirrors them to a
// JSON state file.
type JobStore struct {
	mu      sync.RWMutex
	file    string
	records []Record
}

// NewJobStore creates a JobStore backed by filePath, loading any
// existing records.
func NewJobStore(filePath string) (*JobStore, error) {
	store := &JobStore{file: filepath.Clean(filePath)}

	if err := store.restore(); err != nil {
		return nil, fmt.Errorf("failed to load state from file: %w", err)
	}

	slog.Info("job store initialized", "file_path", store.file, "records", len(store.records))
	return store, nil
}

func (s *JobStore) restore() error {
	data, err := os.ReadFile(s.file)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("state file does not exist, starting with empty history", "file_path", s.file)
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	if len(data) == 0 {
		slog.Warn("state file is empty")
		return nil
	}

	if err := json.Unmarshal(data, &s.records); err != nil {
		return fmt.Errorf("failed to unmarshal state file: %w", err)
	}

	return nil
}

// Append adds a terminal record and persists the full set atomically
// (temp file plus rename).
func (s *JobStore) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)

	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	tempFile := s.file + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempFile, s.file); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	slog.Debug("job record saved", "job_id", rec.ID, "status", rec.Status)
	return nil
}

// Records returns a copy of all persisted records.
func (s *JobStore) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
