package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileStorage manages the files of one download directory.
type FileStorage struct {
	dir string
}

// NewFileStorage creates a FileStorage rooted at dir, creating the
// directory if needed.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

// Dir returns the root directory.
func (s *FileStorage) Dir() string {
	return s.dir
}

// Path returns the absolute path for filename inside the directory.
func (s *FileStorage) Path(filename string) string {
	return filepath.Join(s.dir, filename)
}

// Exists checks whether a file exists in the storage directory.
func (s *FileStorage) Exists(filename string) bool {
	_, err := os.Stat(s.Path(filename))
	return err == nil
}

// Size returns the size of the file in bytes, or 0 if it does not exist.
func (s *FileStorage) Size(filename string) (int64, error) {
	info, err := os.Stat(s.Path(filename))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

// Create creates (or truncates) a file.
func (s *FileStorage) Create(filename string) (*os.File, error) {
	return os.Create(s.Path(filename))
}

// OpenAppend opens an existing file for appending.
func (s *FileStorage) OpenAppend(filename string) (*os.File, error) {
	return os.OpenFile(s.Path(filename), os.O_WRONLY|os.O_APPEND, 0o644)
}

// Remove deletes a file. Missing files are not an error.
func (s *FileStorage) Remove(filename string) error {
	err := os.Remove(s.Path(filename))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
