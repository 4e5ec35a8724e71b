// Package images hosts uploaded book cover images on the local filesystem.
package images

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// fileNamePattern matches the names Storage writes: a uuid public id plus an extension.
var fileNamePattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.(jpg|png|gif|webp)$`)

// ErrNotFound is returned when no stored image matches.
var ErrNotFound = errors.New("image not found")

// Storage manages image files in one directory.
// Safe for concurrent use.
type Storage struct {
	basePath string
	mu       sync.RWMutex
}

// NewStorageWithSubdir creates a Storage rooted at {basePath}/{subdir}.
func NewStorageWithSubdir(basePath, subdir string) (*Storage, error) {
	if basePath == "" {
		return nil, errors.New("base path cannot be empty")
	}
	if subdir == "" {
		return nil, errors.New("subdirectory cannot be empty")
	}

	storagePath := filepath.Join(basePath, subdir)
	if err := os.MkdirAll(storagePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", subdir, err)
	}

	return &Storage{basePath: storagePath}, nil
}

// ValidFileName reports whether name could have been written by Storage.
func ValidFileName(name string) bool {
	return fileNamePattern.MatchString(name)
}

// Save writes data as {publicID}{ext}.
func (s *Storage) Save(publicID, ext string, data []byte) error {
	if publicID == "" {
		return errors.New("public id cannot be empty")
	}
	if len(data) == 0 {
		return errors.New("image data cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.Path(publicID+ext) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write image file: %w", err)
	}
	if err := os.Rename(tmp, s.Path(publicID+ext)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to finalize image file: %w", err)
	}
	return nil
}

// Get reads a stored file by name.
func (s *Storage) Get(name string) ([]byte, error) {
	if !ValidFileName(name) {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return data, nil
}

// Exists reports whether any file is stored for publicID.
func (s *Storage) Exists(publicID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, _ := filepath.Glob(s.Path(publicID + ".*")) //nolint:errcheck // pattern is well-formed
	return len(matches) > 0
}

// Delete removes every file stored for publicID. Deleting a missing image is not an error.
func (s *Storage) Delete(publicID string) error {
	if publicID == "" {
		return errors.New("public id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := filepath.Glob(s.Path(publicID + ".*"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete image file: %w", err)
		}
	}
	return nil
}

// ContentHash returns the hex SHA256 of data.
func ContentHash(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// Path returns the filesystem path for a stored file name.
func (s *Storage) Path(name string) string {
	return filepath.Join(s.basePath, name)
}

// Count returns how many images are stored.
func (s *Storage) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if ValidFileName(e.Name()) {
			n++
		}
	}
	return n, nil
}
