package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Archive keeps a copy of every generated export on disk, grouped by day.
type Archive struct {
	baseDir string
}

// NewArchive ensures the base directory exists and returns a handle.
func NewArchive(baseDir string) (*Archive, error) {
	if baseDir == "" {
		baseDir = "./exports"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create exports directory: %w", err)
	}
	return &Archive{baseDir: baseDir}, nil
}

// Save writes the export under a per-day subdirectory and returns the
// path relative to the base directory.
func (a *Archive) Save(filename string, data []byte) (string, error) {
	rel := filepath.Join(time.Now().UTC().Format("2006-01-02"), filepath.Base(filename))
	path := filepath.Join(a.baseDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare export directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return rel, nil
}

// Open returns a read-only handle for an archived export.
func (a *Archive) Open(rel string) (*os.File, error) {
	file, err := os.Open(filepath.Join(a.baseDir, rel))
	if err != nil {
		return nil, fmt.Errorf("open export file: %w", err)
	}
	return file, nil
}
