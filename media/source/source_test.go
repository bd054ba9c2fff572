package source

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leeforge/thumbnail/errors"
	"github.com/leeforge/thumbnail/media/storage"
)

type failingStore struct {
	*storage.MemoryStore
}

func (failingStore) Read(context.Context, string) ([]byte, error) {
	return nil, apperrors.NewStorage("read", "x", stderrors.New("disk on fire"))
}

func TestStoreFetcher_FirstMatchingExtension(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, "originals/gallery/33.png", []byte("png")))
	require.NoError(t, store.Write(ctx, "originals/gallery/33.jpeg", []byte("jpeg")))

	f := NewStoreFetcher(store, Config{Root: "originals", Extensions: []string{".JPG", "jpeg", "png"}})
	assert.Equal(t, []string{
		"originals/gallery/33.jpg",
		"originals/gallery/33.jpeg",
		"originals/gallery/33.png",
	}, f.Candidates("gallery/33"))

	data, err := f.Fetch(ctx, "gallery/33")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)
}

func TestStoreFetcher_NotFound(t *testing.T) {
	f := NewStoreFetcher(storage.NewMemoryStore(), Config{Root: "originals", Extensions: []string{"jpg"}})

	_, err := f.Fetch(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, "missing", apperrors.FromError(err).Details["id"])
}

func TestStoreFetcher_StorageErrorStops(t *testing.T) {
	f := NewStoreFetcher(failingStore{storage.NewMemoryStore()}, Config{Extensions: []string{"jpg", "png"}})

	_, err := f.Fetch(context.Background(), "a")
	assert.True(t, stderrors.Is(err, apperrors.ErrStorage))
}

func TestFetcherFunc(t *testing.T) {
	var f Fetcher = FetcherFunc(func(_ context.Context, id string) ([]byte, error) {
		return []byte(id), nil
	})
	data, err := f.Fetch(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
}
