// Package filestore persists job input and output bytes on disk. Callers
// hold only the opaque location string returned by Save; each location
// belongs to exactly one job and is never shared.
package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileStore manages blobs under a single data directory.
type FileStore struct {
	dataDir string
}

// New creates a FileStore, creating the data directory if needed.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

// Save writes data to a new file and returns its opaque location.
// Writes go to a temp file first and are fsynced before an atomic rename,
// so a location either resolves to complete bytes or does not exist.
func (fs *FileStore) Save(data []byte, originalName string) (string, error) {
	location := generateLocation(originalName)
	fullPath := filepath.Join(fs.dataDir, location)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write data: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close file: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename into place: %w", err)
	}

	return location, nil
}

// Open returns a reader for the blob at location. The caller must close it.
func (fs *FileStore) Open(location string) (*os.File, error) {
	fullPath, err := fs.resolve(location)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob not found: %s", location)
		}
		return nil, fmt.Errorf("open blob %s: %w", location, err)
	}
	return f, nil
}

// Read returns the full contents of the blob at location.
func (fs *FileStore) Read(location string) ([]byte, error) {
	fullPath, err := fs.resolve(location)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob not found: %s", location)
		}
		return nil, fmt.Errorf("read blob %s: %w", location, err)
	}
	return data, nil
}

// resolve maps a location back to a path under dataDir, rejecting anything
// that would escape it.
func (fs *FileStore) resolve(location string) (string, error) {
	if location == "" || location != filepath.Base(location) || strings.Contains(location, "..") {
		return "", fmt.Errorf("invalid blob location: %q", location)
	}
	return filepath.Join(fs.dataDir, location), nil
}

// generateLocation builds a unique storage name:
// {base}_{timestamp}_{uuid}{ext}, with the base sanitized.
func generateLocation(originalName string) string {
	base := filepath.Base(originalName)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	// Keep names shell- and URL-friendly.
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" {
		name = "upload"
	}
	if len(name) > 64 {
		name = name[:64]
	}

	return fmt.Sprintf("%s_%d_%s%s", name, time.Now().UTC().Unix(), uuid.New(), ext)
}
