package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSpoolWriteAndRelease(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSpool(filepath.Join(dir, "spool"))
	if err != nil {
		t.Fatalf("NewSpool error: %v", err)
	}
	path, release, err := s.Write(context.Background(), "portrait-*.png", []byte("png"))
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if filepath.Dir(path) != s.Dir() {
		t.Fatalf("path %q outside spool %q", path, s.Dir())
	}
	if !strings.HasPrefix(filepath.Base(path), "portrait-") || !strings.HasSuffix(path, ".png") {
		t.Fatalf("unexpected name %q", path)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "png" {
		t.Fatalf("ReadFile = %q, %v", got, err)
	}
	if err := release(); err != nil {
		t.Fatalf("release error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file still present after release: %v", err)
	}
	if err := release(); err != nil {
		t.Fatalf("second release error: %v", err)
	}
}

func TestSpoolRejectsTraversal(t *testing.T) {
	s, err := NewSpool(t.TempDir())
	if err != nil {
		t.Fatalf("NewSpool error: %v", err)
	}
	for _, pattern := range []string{"../x-*", "a/b-*", `a\b`} {
		if _, _, err := s.Write(context.Background(), pattern, nil); err == nil {
			t.Fatalf("Write(%q) expected error", pattern)
		}
	}
}

func TestSpoolCanceledContext(t *testing.T) {
	s, _ := NewSpool(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := s.Write(ctx, "x-*", []byte("a")); err == nil {
		t.Fatalf("Write expected context error")
	}
}
