// Package filestore persists the latest configuration snapshot as a JSON
// document and seeds it from an optional bootstrap file. All IO goes through
// an afero filesystem so tests can run against an in-memory fs.
package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ErrNoSnapshot is returned by Read when no snapshot has been persisted yet.
var ErrNoSnapshot = errors.New("no persisted snapshot")

// Store owns the persisted snapshot file. Writes are atomic
// (temp file + rename) so readers never observe a partially written
// document.
type Store struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
	log  zerolog.Logger
}

// New returns a store persisting the snapshot at path on fs.
func New(fs afero.Fs, path string, log zerolog.Logger) *Store {
	return &Store{fs: fs, path: path, log: log}
}

// Path returns the snapshot file location.
func (s *Store) Path() string { return s.path }

// Read returns the current persisted snapshot document.
func (s *Store) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	return data, nil
}

// Write replaces the persisted snapshot with data.
func (s *Store) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create snapshot directory %s: %w", dir, err)
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot temp file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		// Best effort cleanup; the next write will overwrite the temp file anyway.
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("replace snapshot %s: %w", s.path, err)
	}

	s.log.Debug().Str("path", s.path).Int("bytes", len(data)).Msg("snapshot persisted")
	return nil
}

// Seed copies the bootstrap document at bootstrapPath into the persisted
// snapshot, letting the cache come up before any network call.
func (s *Store) Seed(bootstrapPath string) error {
	data, err := afero.ReadFile(s.fs, bootstrapPath)
	if err != nil {
		return fmt.Errorf("read bootstrap file %s: %w", bootstrapPath, err)
	}
	return s.Write(data)
}
