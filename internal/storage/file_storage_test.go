package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestStorage(t *testing.T) *FileStorage {
	t.Helper()
	fs, err := NewFileStorage(filepath.Join(t.TempDir(), "downloads"))
	if err != nil {
		t.Fatalf("NewFileStorage error: %v", err)
	}
	return fs
}

func TestNewFileStorage_CreatesDir(t *testing.T) {
	fs := newTestStorage(t)
	info, err := os.Stat(fs.Dir())
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected a directory")
	}
}

func TestFileStorage_SizeAndExists(t *testing.T) {
	fs := newTestStorage(t)

	if fs.Exists("missing.m4s") {
		t.Error("missing file reported as existing")
	}
	size, err := fs.Size("missing.m4s")
	if err != nil {
		t.Fatalf("Size error: %v", err)
	}
	if size != 0 {
		t.Errorf("missing file size = %d, want 0", size)
	}

	if err := os.WriteFile(fs.Path("part.m4s"), []byte("12345"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	size, err = fs.Size("part.m4s")
	if err != nil {
		t.Fatalf("Size error: %v", err)
	}
	if size != 5 {
		t.Errorf("size = %d, want 5", size)
	}
	if !fs.Exists("part.m4s") {
		t.Error("existing file not reported")
	}
}

func TestFileStorage_CreateAndAppend(t *testing.T) {
	fs := newTestStorage(t)

	f, err := fs.Create("out.m4s")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := f.WriteString("abc"); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	f, err = fs.OpenAppend("out.m4s")
	if err != nil {
		t.Fatalf("OpenAppend error: %v", err)
	}
	if _, err := f.WriteString("def"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	data, err := os.ReadFile(fs.Path("out.m4s"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "abcdef" {
		t.Errorf("content = %q, want abcdef", data)
	}
}

func TestFileStorage_RemoveMissingOK(t *testing.T) {
	fs := newTestStorage(t)
	if err := fs.Remove("missing.m4s"); err != nil {
		t.Errorf("Remove of missing file should not error: %v", err)
	}

	if err := os.WriteFile(fs.Path("gone.m4s"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := fs.Remove("gone.m4s"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if fs.Exists("gone.m4s") {
		t.Error("file still exists after Remove")
	}
}
