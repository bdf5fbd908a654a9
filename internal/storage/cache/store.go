// Package cache persists whole JSON records on disk under a root directory,
// keyed by a plugin (subdirectory) and a logical slot name.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
)

// ErrNotFound is returned for entries that were never written, were
// invalidated, or can no longer be read back
var ErrNotFound = errors.New("cache entry not found")

const fileExtension = ".json"

// Store is a key-partitioned file cache. It performs no locking: callers must not
// write the same (subdir, key) from two pipelines at once.
type Store struct {
	root   string
	logger arbor.ILogger
}

// NewStore creates a store rooted at dir. The directory is created lazily on first write.
func NewStore(root string, logger arbor.ILogger) *Store {
	return &Store{
		root:   root,
		logger: logger,
	}
}

// Root returns the cache root directory
func (s *Store) Root() string {
	return s.root
}

// Path returns the file location for (subdir, key). An empty subdir maps to the root.
func (s *Store) Path(subdir, key string) string {
	name := sanitize(key) + fileExtension
	if subdir == "" {
		return filepath.Join(s.root, name)
	}
	return filepath.Join(s.root, sanitize(subdir), name)
}

// Put replaces the entry with the JSON encoding of record.
// The new content is written to a temporary file first and renamed over the target.
func (s *Store) Put(subdir, key string, record any) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s/%s: %w", subdir, key, err)
	}
	data = append(data, '\n')

	target := s.Path(subdir, key)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close cache entry: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace cache entry: %w", err)
	}

	s.logger.Debug().
		Str("path", target).
		Int("bytes", len(data)).
		Msg("Cache entry written")

	return nil
}

// Get decodes the entry into out. Missing and corrupt entries both yield ErrNotFound.
func (s *Store) Get(subdir, key string, out any) error {
	target := s.Path(subdir, key)

	data, err := os.ReadFile(target)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", target).Msg("Unreadable cache entry treated as missing")
		}
		return ErrNotFound
	}

	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn().Err(err).Str("path", target).Msg("Corrupt cache entry treated as missing")
		return ErrNotFound
	}

	return nil
}

// Exists reports whether an entry file is present. It does not validate the content.
func (s *Store) Exists(subdir, key string) bool {
	info, err := os.Stat(s.Path(subdir, key))
	return err == nil && !info.IsDir()
}

// Invalidate removes the entry. Removing a missing entry is not an error.
func (s *Store) Invalidate(subdir, key string) error {
	err := os.Remove(s.Path(subdir, key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to invalidate cache entry %s/%s: %w", subdir, key, err)
	}
	return nil
}

// Load is a typed convenience wrapper around Get
func Load[T any](s *Store, subdir, key string) (*T, error) {
	var out T
	if err := s.Get(subdir, key, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// sanitize reduces a key part to a single path element so it can never escape its directory
func sanitize(part string) string {
	part = strings.TrimSpace(part)
	part = strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(part)
	if part == "" || part == "." || part == ".." {
		return "_"
	}
	return part
}
