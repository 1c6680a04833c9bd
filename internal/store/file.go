package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"rcsync/internal/domain"
)

// FileStore keeps the snapshot as a JSON file, replaced atomically by
// writing a sibling temp file and renaming it over the target.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store: output path required")
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Describe() string { return "file:" + s.path }

func (s *FileStore) Load(ctx context.Context) (domain.ResultSet, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	rs, err := domain.DecodeResultSet(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.path, err)
	}
	return rs, nil
}

func (s *FileStore) Save(ctx context.Context, rs domain.ResultSet) error {
	data, err := rs.Encode()
	if err != nil {
		return persistErr(s.path, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return persistErr(s.path, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return persistErr(s.path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return persistErr(s.path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return persistErr(s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return persistErr(s.path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return persistErr(s.path, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return persistErr(s.path, err)
	}
	committed = true
	return nil
}
