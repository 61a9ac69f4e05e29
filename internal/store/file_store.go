package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// FileStore keeps one JSON document per key inside a directory.
// Params: filesystem abstraction and base directory.
// Returns: file-backed store; writes go through temp file plus rename.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore prepares base directory on the given filesystem.
// Params: filesystem (nil selects OS filesystem) and directory path.
// Returns: initialized store or mkdir error.
func NewFileStore(fs afero.Fs, dir string) (*FileStore, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("file store dir is required")
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir %q: %w", dir, err)
	}
	return &FileStore{fs: fs, dir: dir}, nil
}

// Load reads snapshot file for key.
// Params: collection key.
// Returns: payload or ErrNotFound.
func (s *FileStore) Load(_ context.Context, key string) ([]byte, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	body, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return body, nil
}

// Save writes snapshot atomically.
// Params: collection key and payload.
// Returns: write or rename error.
func (s *FileStore) Save(_ context.Context, key string, value []byte) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, value, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("rename %q: %w", tmp, err)
	}
	return nil
}

// Close releases file store resources.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) pathFor(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid store key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}
