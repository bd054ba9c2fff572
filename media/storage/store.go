package storage

import (
	"context"
	"path"
	"strings"

	apperrors "github.com/leeforge/thumbnail/errors"
)

// BlobStore is a flat key/value store for image bytes addressed by
// slash-separated paths.
type BlobStore interface {
	Exists(ctx context.Context, path string) (bool, error)
	// Read returns errors.ErrNotFound when path has no entry.
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	// Delete is a no-op for missing paths.
	Delete(ctx context.Context, path string) error
	Name() string
}

// cleanKey normalizes p to a relative slash path and rejects paths that
// escape the store root.
func cleanKey(p string) (string, error) {
	slashed := strings.ReplaceAll(p, "\\", "/")
	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return "", apperrors.NewInvalid("path", p, "blob path must stay inside the store")
		}
	}
	key := strings.TrimPrefix(path.Clean("/"+slashed), "/")
	if key == "" {
		return "", apperrors.NewInvalid("path", p, "blob path is empty")
	}
	return key, nil
}

func notFound(p string) error {
	return apperrors.NewNotFound("blob", p)
}
