package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/leeforge/thumbnail/errors"
)

// LocalStore keeps blobs as files below a base directory.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates a local store, creating basePath if needed.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

func (s *LocalStore) fullPath(p string) (string, error) {
	key, err := cleanKey(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key)), nil
}

func (s *LocalStore) Exists(ctx context.Context, p string) (bool, error) {
	full, err := s.fullPath(p)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if err == nil {
		return !info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, apperrors.NewStorage("stat", p, err)
}

func (s *LocalStore) Read(ctx context.Context, p string) ([]byte, error) {
	full, err := s.fullPath(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(p)
		}
		return nil, apperrors.NewStorage("read", p, err)
	}
	return data, nil
}

// Write stores data through a temp file in the target directory and a
// rename, so readers never observe a partial entry.
func (s *LocalStore) Write(ctx context.Context, p string, data []byte) error {
	full, err := s.fullPath(p)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.NewStorage("mkdir", p, err)
	}

	tmp, err := os.CreateTemp(dir, ".blob-*")
	if err != nil {
		return apperrors.NewStorage("write", p, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.NewStorage("write", p, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorage("write", p, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorage("rename", p, err)
	}
	return nil
}

func (s *LocalStore) Delete(ctx context.Context, p string) error {
	full, err := s.fullPath(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return apperrors.NewStorage("delete", p, err)
	}
	return nil
}

func (s *LocalStore) Name() string {
	return "local"
}
