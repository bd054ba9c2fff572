package thumbnail

import (
	"bytes"
	"context"
	stderrors "errors"
	"image"
	"image/color"
	"image/png"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/thumbnail/cache"
	"github.com/leeforge/thumbnail/config"
	apperrors "github.com/leeforge/thumbnail/errors"
	"github.com/leeforge/thumbnail/logging"
	"github.com/leeforge/thumbnail/media/processor"
	"github.com/leeforge/thumbnail/media/storage"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sourcePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeSource struct {
	calls atomic.Int32
	data  map[string][]byte
	gate  chan struct{}
}

func (f *fakeSource) Fetch(ctx context.Context, id string) ([]byte, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	data, ok := f.data[id]
	if !ok {
		return nil, apperrors.NewNotFound("image", id)
	}
	return data, nil
}

type solidMark struct{}

func (solidMark) Load(context.Context, string) (*processor.Handle, error) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return processor.FromImage(img), nil
}

func defaultOptions() Options {
	return Options{
		AllowedExtensions: []string{"jpg", "jpeg", "png"},
		DefaultExtension:  "jpg",
		AllowedFormats:    []string{"800x600", "320x320"},
		DefaultFormat:     "320x320",
		WatermarkPath:     "assets/watermark.png",
		Quality:           90,
		CacheAge:          30 * 24 * time.Hour,
	}
}

type fixture struct {
	svc    *Service
	store  *storage.MemoryStore
	source *fakeSource
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	src := &fakeSource{data: map[string][]byte{
		"gallery/33": sourcePNG(t, 400, 200),
	}}
	c := cache.NewImageCache(store, cache.NewKeyBuilder("cache/", opts.DefaultExtension),
		cache.WithLogger(logging.Nop()))
	pipeline := processor.NewPipeline(solidMark{}, processor.WatermarkOptions{
		Width:  "65%",
		Height: "40%",
	})
	svc := NewService(c, src, pipeline, opts,
		WithLogger(logging.Nop()),
		WithClock(func() time.Time { return fixedNow }),
	)
	return &fixture{svc: svc, store: store, source: src}
}

func decodeBody(t *testing.T, body []byte) *processor.Handle {
	t.Helper()
	h, err := processor.Decode(body)
	require.NoError(t, err)
	return h
}

func sortedKeys(s *storage.MemoryStore) []string {
	keys := s.Keys()
	sort.Strings(keys)
	return keys
}

func TestRender_MissThenHit(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	res, err := f.svc.Render(ctx, Request{ID: "gallery/33", Size: "x100"})
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.Equal(t, "cache/images/gallery/33/i-x100.jpg", res.Path)
	assert.Equal(t, "image/jpeg", res.ContentType)

	h := decodeBody(t, res.Body)
	assert.Equal(t, 100, h.Width())
	assert.Equal(t, 50, h.Height())

	again, err := f.svc.Render(ctx, Request{ID: "gallery/33", Size: "x100"})
	require.NoError(t, err)
	assert.True(t, again.CacheHit)
	assert.Equal(t, res.Body, again.Body)
	assert.Equal(t, int32(1), f.source.calls.Load())

	assert.Equal(t, []string{
		"cache/images/gallery/33/i-x100.jpg",
		"cache/images/gallery/33/i.jpg",
	}, sortedKeys(f.store))
}

func TestRender_FreshnessMetadata(t *testing.T) {
	f := newFixture(t, defaultOptions())

	res, err := f.svc.Render(context.Background(), Request{ID: "gallery/33", Size: "y50"})
	require.NoError(t, err)
	assert.Equal(t, fixedNow, res.LastModified)
	assert.Equal(t, fixedNow.Add(30*24*time.Hour), res.Expires)
	assert.Equal(t, 30*24*time.Hour, res.MaxAge)
}

func TestRender_WatermarkedPathExample(t *testing.T) {
	f := newFixture(t, defaultOptions())

	res, err := f.svc.Render(context.Background(), Request{ID: "gallery/33.", Size: "320x320", Watermark: true})
	require.NoError(t, err)
	assert.Equal(t, "cache/images/gallery/33/i-320x320-w.jpg", res.Path)

	h := decodeBody(t, res.Body)
	assert.Equal(t, 320, h.Width())
	assert.Equal(t, 320, h.Height())
}

func TestRender_IllegalExtensionWritesNothing(t *testing.T) {
	f := newFixture(t, defaultOptions())

	_, err := f.svc.Render(context.Background(), Request{ID: "gallery/33", Size: "x100", Extension: "gif"})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrIllegalExtension))
	assert.Empty(t, f.store.Keys())
	assert.Zero(t, f.source.calls.Load())
}

func TestRender_ClientErrorsBeforeIO(t *testing.T) {
	tests := map[string]struct {
		req  Request
		want error
	}{
		"illegal size":     {Request{ID: "gallery/33", Size: "10-10"}, apperrors.ErrIllegalSize},
		"unsupported size": {Request{ID: "gallery/33", Size: "big"}, apperrors.ErrUnsupportedSize},
		"bad identifier":   {Request{ID: "gallery/../x"}, apperrors.ErrIllegalIdentifier},
		"empty identifier": {Request{ID: "..."}, apperrors.ErrIllegalIdentifier},
		"bad extension":    {Request{ID: "gallery/33", Extension: "tiff"}, apperrors.ErrIllegalExtension},
		"missing source":   {Request{ID: "gallery/34", Size: "x10"}, apperrors.ErrNotFound},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, defaultOptions())
			_, err := f.svc.Render(context.Background(), tc.req)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, tc.want), "got %v", err)
			assert.Empty(t, f.store.Keys())
		})
	}
}

func TestRender_EnforceFormats(t *testing.T) {
	opts := defaultOptions()
	opts.EnforceFormats = true
	f := newFixture(t, opts)
	ctx := context.Background()

	_, err := f.svc.Render(ctx, Request{ID: "gallery/33", Size: "x100"})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrIllegalSize))
	assert.Empty(t, f.store.Keys())

	_, err = f.svc.Render(ctx, Request{ID: "gallery/33", Size: "800x600"})
	assert.NoError(t, err)
}

func TestRender_ExtensionOverride(t *testing.T) {
	f := newFixture(t, defaultOptions())

	res, err := f.svc.Render(context.Background(), Request{ID: "gallery/33", Size: "x200", Extension: "PNG"})
	require.NoError(t, err)
	assert.Equal(t, "cache/images/gallery/33/i-x200.png", res.Path)
	assert.Equal(t, "image/png", res.ContentType)
}

func TestRender_IdentityReencodesInCacheExtension(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	res, err := f.svc.Render(ctx, Request{ID: "gallery/33", Extension: "jpg"})
	require.NoError(t, err)
	assert.Equal(t, "cache/images/gallery/33/i.jpg", res.Path)
	assert.Equal(t, "image/jpeg", res.ContentType)
	assert.False(t, res.CacheHit)
	assert.Equal(t, []string{"cache/images/gallery/33/i.jpg"}, sortedKeys(f.store))

	h := decodeBody(t, res.Body)
	assert.Equal(t, "jpeg", h.Format())
	assert.Equal(t, 400, h.Width())
	assert.Equal(t, 200, h.Height())

	again, err := f.svc.Render(ctx, Request{ID: "gallery/33"})
	require.NoError(t, err)
	assert.True(t, again.CacheHit)
	assert.Equal(t, res.Body, again.Body)
	assert.Equal(t, int32(1), f.source.calls.Load())
}

func TestRender_IdentityAfterSizedRequest(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	// The sized build leaves the raw PNG source in the original entry.
	_, err := f.svc.Render(ctx, Request{ID: "gallery/33", Size: "x100"})
	require.NoError(t, err)

	res, err := f.svc.Render(ctx, Request{ID: "gallery/33"})
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.Equal(t, "image/jpeg", res.ContentType)

	again, err := f.svc.Render(ctx, Request{ID: "gallery/33"})
	require.NoError(t, err)
	assert.True(t, again.CacheHit)
	assert.Equal(t, "image/jpeg", again.ContentType)
	assert.Equal(t, int32(1), f.source.calls.Load())
}

func TestRender_NoCacheRefetchesAndRewrites(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	_, err := f.svc.Render(ctx, Request{ID: "gallery/33", Size: "x100"})
	require.NoError(t, err)

	f.source.data["gallery/33"] = sourcePNG(t, 800, 200)
	res, err := f.svc.Render(ctx, Request{ID: "gallery/33", Size: "x100", NoCache: true})
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.Equal(t, int32(2), f.source.calls.Load())

	h := decodeBody(t, res.Body)
	assert.Equal(t, 100, h.Width())
	assert.Equal(t, 25, h.Height())

	cached, err := f.svc.Render(ctx, Request{ID: "gallery/33", Size: "x100"})
	require.NoError(t, err)
	assert.True(t, cached.CacheHit)
	assert.Equal(t, res.Body, cached.Body)
}

func TestRender_ConcurrentMissesBuildOnce(t *testing.T) {
	f := newFixture(t, defaultOptions())
	f.source.gate = make(chan struct{})

	const callers = 6
	var wg sync.WaitGroup
	results := make([]*Result, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Render(context.Background(), Request{ID: "gallery/33", Size: "800x600"})
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(f.source.gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Body, results[i].Body)
	}
	assert.Equal(t, int32(1), f.source.calls.Load())
}

func TestRender_NoCacheDoesNotJoinRegularBuild(t *testing.T) {
	f := newFixture(t, defaultOptions())
	f.source.gate = make(chan struct{})
	ctx := context.Background()

	regular := make(chan error, 1)
	go func() {
		_, err := f.svc.Render(ctx, Request{ID: "gallery/33", Size: "x100"})
		regular <- err
	}()
	require.Eventually(t, func() bool { return f.source.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	bypass := make(chan error, 1)
	go func() {
		_, err := f.svc.Render(ctx, Request{ID: "gallery/33", Size: "x100", NoCache: true})
		bypass <- err
	}()
	require.Eventually(t, func() bool { return f.source.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	close(f.source.gate)
	require.NoError(t, <-regular)
	require.NoError(t, <-bypass)
	assert.Equal(t, int32(2), f.source.calls.Load())
}

func TestRender_CancelledContext(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Render(ctx, Request{ID: "gallery/33", Size: "x100"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWarm(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	assert.Equal(t, []string{"800x600", "320x320"}, f.svc.WarmFormats())

	report, err := f.svc.Warm(ctx, "gallery/33")
	require.NoError(t, err)
	assert.Equal(t, []string{"800x600", "320x320"}, report.Built)
	assert.Empty(t, report.Cached)
	assert.Empty(t, report.Failed)

	report, err = f.svc.Warm(ctx, "gallery/33")
	require.NoError(t, err)
	assert.Empty(t, report.Built)
	assert.Equal(t, []string{"800x600", "320x320"}, report.Cached)
}

func TestWarm_MissingSource(t *testing.T) {
	f := newFixture(t, defaultOptions())

	_, err := f.svc.Warm(context.Background(), "nope")
	assert.True(t, stderrors.Is(err, apperrors.ErrNotFound))
}

func TestWarmFormats_IncludesDefault(t *testing.T) {
	opts := defaultOptions()
	opts.DefaultFormat = "x100"
	f := newFixture(t, opts)
	assert.Equal(t, []string{"800x600", "320x320", "x100"}, f.svc.WarmFormats())
}

func TestOptionsFromConfig(t *testing.T) {
	img := config.ImagesConfig{
		AllowedExtensions:      []string{"jpg", "png"},
		DefaultThumbnailFormat: "320x320",
		AllowedFormats:         []string{"800x600"},
		EnforceFormats:         true,
		Watermark:              config.WatermarkConfig{Path: "wm.png"},
		Cache:                  config.CacheConfig{Extension: "png", Age: 60},
		ImageQuality:           75,
	}

	opts := OptionsFromConfig(img)
	assert.Equal(t, "png", opts.DefaultExtension)
	assert.Equal(t, "wm.png", opts.WatermarkPath)
	assert.Equal(t, time.Minute, opts.CacheAge)
	assert.Equal(t, 75, opts.Quality)
	assert.True(t, opts.EnforceFormats)
	assert.Equal(t, "320x320", opts.DefaultFormat)
}
