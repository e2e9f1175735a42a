// Package storage holds short-lived local files that outbound uploads need
// as a real file on disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Spool writes temporary files under one directory.
type Spool struct {
	dir string
}

// NewSpool initializes a Spool rooted at dir, creating it when missing.
func NewSpool(dir string) (*Spool, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("storage: ensure spool dir: %w", err)
	}
	return &Spool{dir: dir}, nil
}

// Dir returns the configured root directory.
func (s *Spool) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Write stores data in a new temp file named after pattern (os.CreateTemp
// syntax) and returns its path plus a release func that removes it. Callers
// defer release immediately so the file never outlives the upload.
func (s *Spool) Write(ctx context.Context, pattern string, data []byte) (string, func() error, error) {
	if s == nil {
		return "", nil, errors.New("storage: no spool configured")
	}
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	pattern, err := sanitizePattern(pattern)
	if err != nil {
		return "", nil, err
	}
	f, err := os.CreateTemp(s.dir, pattern)
	if err != nil {
		return "", nil, fmt.Errorf("storage: create spool file: %w", err)
	}
	path := f.Name()
	release := func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("storage: remove spool file: %w", err)
		}
		return nil
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = release()
		return "", nil, fmt.Errorf("storage: write spool file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = release()
		return "", nil, fmt.Errorf("storage: close spool file: %w", err)
	}
	return path, release, nil
}

// sanitizePattern keeps temp names inside the spool directory.
func sanitizePattern(pattern string) (string, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return "spool-*", nil
	}
	if strings.ContainsAny(pattern, `/\`) || strings.Contains(pattern, "..") {
		return "", errors.New("storage: invalid spool pattern")
	}
	return pattern, nil
}
