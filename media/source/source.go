// Package source locates the original bytes of an image by identifier.
package source

import (
	"context"
	stderrors "errors"
	"path"

	apperrors "github.com/leeforge/thumbnail/errors"
	"github.com/leeforge/thumbnail/media/storage"
	"github.com/leeforge/thumbnail/utils"
)

// Fetcher returns the original bytes for an identifier, or errors.ErrNotFound.
type Fetcher interface {
	Fetch(ctx context.Context, id string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, id string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, id string) ([]byte, error) {
	return f(ctx, id)
}

// Config locates originals inside a blob store.
type Config struct {
	Root       string   `mapstructure:"root" json:"root" yaml:"root" default:"originals"`
	Extensions []string `mapstructure:"extensions" json:"extensions" yaml:"extensions" default:"[\"jpg\",\"jpeg\",\"png\"]"`
}

// StoreFetcher looks for {root}/{id}.{ext} for each configured extension in
// order and returns the first match.
type StoreFetcher struct {
	store      storage.BlobStore
	root       string
	extensions []string
}

func NewStoreFetcher(store storage.BlobStore, cfg Config) *StoreFetcher {
	exts := make([]string, 0, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		if folded := utils.FoldExtension(ext); folded != "" {
			exts = append(exts, folded)
		}
	}
	return &StoreFetcher{store: store, root: cfg.Root, extensions: exts}
}

// Candidates lists the paths tried for id, in order.
func (f *StoreFetcher) Candidates(id string) []string {
	paths := make([]string, 0, len(f.extensions))
	for _, ext := range f.extensions {
		paths = append(paths, path.Join(f.root, id+"."+ext))
	}
	return paths
}

func (f *StoreFetcher) Fetch(ctx context.Context, id string) ([]byte, error) {
	for _, p := range f.Candidates(id) {
		data, err := f.store.Read(ctx, p)
		if err == nil {
			return data, nil
		}
		if !stderrors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}
	return nil, apperrors.NewNotFound("image", id)
}
