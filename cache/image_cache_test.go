package cache

import (
	"bytes"
	"context"
	stderrors "errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/leeforge/thumbnail/errors"
	"github.com/leeforge/thumbnail/logging"
	"github.com/leeforge/thumbnail/media/processor"
	"github.com/leeforge/thumbnail/media/source"
	"github.com/leeforge/thumbnail/media/storage"
	"github.com/leeforge/thumbnail/metrics"
)

func newTestCache(t *testing.T) (*ImageCache, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	c := NewImageCache(store, NewKeyBuilder("cache/", "jpg"),
		WithMetrics(metrics.NewCollector()),
		WithLogger(logging.FromZap(zap.NewNop())),
	)
	return c, store
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type countingFetcher struct {
	calls atomic.Int32
	data  []byte
	err   error
}

func (f *countingFetcher) Fetch(context.Context, string) ([]byte, error) {
	f.calls.Add(1)
	return f.data, f.err
}

func TestImageCache_LoadOriginalReadsThrough(t *testing.T) {
	c, store := newTestCache(t)
	ctx := context.Background()
	fetch := &countingFetcher{data: []byte("original")}

	_, ok, err := c.LookupOriginal(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	data, err := c.LoadOriginal(ctx, "a", fetch, false)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), data)

	data, err = c.LoadOriginal(ctx, "a", fetch, false)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), data)
	assert.Equal(t, int32(1), fetch.calls.Load())

	stored, err := store.Read(ctx, "cache/images/a/i.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), stored)
}

func TestImageCache_LoadOriginalBypassRefreshes(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.StoreOriginal(ctx, "a", []byte("stale")))

	fetch := &countingFetcher{data: []byte("fresh")}
	data, err := c.LoadOriginal(ctx, "a", fetch, true)
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), data)
	assert.Equal(t, int32(1), fetch.calls.Load())

	cached, ok, err := c.LookupOriginal(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("fresh"), cached)
}

func TestImageCache_LoadOriginalNotFound(t *testing.T) {
	c, store := newTestCache(t)
	fetch := source.FetcherFunc(func(_ context.Context, id string) ([]byte, error) {
		return nil, apperrors.NewNotFound("image", id)
	})

	_, err := c.LoadOriginal(context.Background(), "missing", fetch, false)
	assert.True(t, stderrors.Is(err, apperrors.ErrNotFound))
	assert.Empty(t, store.Keys())
}

func TestImageCache_DerivedRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	key := c.Keys().DerivedPath("a", specPtr("x100"), false, "png")

	_, ok, err := c.LookupDerived(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	h, err := processor.Decode(pngBytes(t, 40, 20))
	require.NoError(t, err)
	require.NoError(t, c.StoreDerived(ctx, key, h, 90))

	got, ok, err := c.LookupDerived(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "png", got.Format())
	assert.Equal(t, 40, got.Width())
	assert.Equal(t, 20, got.Height())

	data, ok, err := c.ReadDerived(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, data)
}

func TestImageCache_StoreDerivedRejectsUnknownExtension(t *testing.T) {
	c, store := newTestCache(t)
	h, err := processor.Decode(pngBytes(t, 4, 4))
	require.NoError(t, err)

	err = c.StoreDerived(context.Background(), "cache/images/a/i-x4.tiff", h, 90)
	assert.True(t, stderrors.Is(err, apperrors.ErrIllegalExtension))
	assert.Empty(t, store.Keys())
}

func TestImageCache_BuildDeduplicatesConcurrentCallers(t *testing.T) {
	c, _ := newTestCache(t)

	var builds atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	fn := func(context.Context) error {
		builds.Add(1)
		once.Do(func() { close(started) })
		<-release
		return nil
	}

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := c.Build(context.Background(), "k", fn)
		errs <- err
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Build(context.Background(), "k", fn)
			errs <- err
		}()
	}

	// give the followers time to join the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), builds.Load())
}

func TestImageCache_BuildPropagatesError(t *testing.T) {
	c, _ := newTestCache(t)
	shared, err := c.Build(context.Background(), "k", func(context.Context) error {
		return apperrors.NewStorage("write", "k", stderrors.New("disk full"))
	})
	assert.False(t, shared)
	assert.True(t, stderrors.Is(err, apperrors.ErrStorage))
}

func TestImageCache_BuildCallerCancelled(t *testing.T) {
	c, _ := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Build(ctx, "slow", func(buildCtx context.Context) error {
		defer close(done)
		<-time.After(100 * time.Millisecond)
		// the build is detached from the caller
		return buildCtx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	<-done
}
