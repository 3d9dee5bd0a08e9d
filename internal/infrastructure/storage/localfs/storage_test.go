package localfs

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
)

type failingReader struct{}

func (failingReader) Read(_ []byte) (int, error) {
	return 0, errors.New("source stream broke")
}

func TestSaveAndRemove(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	path, err := s.Save(context.Background(), "doc-1_notes.txt", strings.NewReader("file body"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(raw) != "file body" {
		t.Fatalf("content: got %q", raw)
	}

	if err := s.Remove("doc-1_notes.txt"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file should be gone, stat err: %v", err)
	}
}

func TestSaveCleansUpPartialFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if _, err := s.Save(context.Background(), "broken", failingReader{}); err == nil {
		t.Fatalf("expected copy error")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("partial file left behind: %v", entries)
	}
}

func TestRemoveMissingKeyIsNoop(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Remove("never-saved"); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
}

func TestNewCreatesBaseDir(t *testing.T) {
	dir := t.TempDir() + "/nested/uploads"
	if _, err := New(dir); err != nil {
		t.Fatalf("new: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("base dir missing: %v", err)
	}
}
