package app

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/thumbnail/config"
	"github.com/leeforge/thumbnail/logging"
	"github.com/leeforge/thumbnail/media/processor"
	"github.com/leeforge/thumbnail/thumbnail"
)

func writePNG(t *testing.T, path string, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	if path != "" {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	}
	return buf.Bytes()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	opts := config.DefaultConfigOptions()
	opts.BasePath = filepath.Join(dir, "config")
	opts.EnvPrefix = "THUMBAPPTEST"

	cfg, _, err := config.Load(opts)
	require.NoError(t, err)

	cfg.Storage.Local.BasePath = filepath.Join(dir, "storage")
	cfg.Images.Watermark.Path = filepath.Join(dir, "watermark.png")
	cfg.Server.RequestTimeout = 5 * time.Second
	cfg.Server.ShutdownTimeout = time.Second
	writePNG(t, cfg.Images.Watermark.Path, 50, 50, color.White)
	writePNG(t, filepath.Join(cfg.Storage.Local.BasePath, "originals", "gallery", "33.png"), 400, 200, color.RGBA{R: 200, A: 255})
	return cfg
}

func TestApp_RendersFromLocalDisk(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "local", a.Store.Name())

	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/images/gallery/33.?size=320x320&watermark=1", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	h, err := processor.Decode(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 320, h.Width())
	assert.Equal(t, 320, h.Height())

	derived := filepath.Join(cfg.Storage.Local.BasePath, "cache", "images", "gallery", "33", "i-320x320-w.jpg")
	_, err = os.Stat(derived)
	assert.NoError(t, err)
}

func TestApp_FingerprintChangesDerivedPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.Images.Cache.Fingerprint = true
	a, err := New(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	defer a.Close()

	fp := a.Cache.Keys().Fingerprint()
	require.Len(t, fp, 8)

	res, err := a.Service.Render(context.Background(), thumbnail.Request{ID: "gallery/33", Size: "x100"})
	require.NoError(t, err)
	assert.Equal(t, "cache/images/gallery/33/i-x100-f"+fp+".jpg", res.Path)

	cfg2 := testConfig(t)
	cfg2.Images.Cache.Fingerprint = true
	cfg2.Images.ImageQuality = 50
	b, err := New(context.Background(), cfg2, logging.Nop())
	require.NoError(t, err)
	defer b.Close()
	assert.NotEqual(t, fp, b.Cache.Keys().Fingerprint())
}

func TestApp_MemoryDisk(t *testing.T) {
	cfg := testConfig(t)
	cfg.Images.Disk = "memory"
	a, err := New(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, "memory", a.Store.Name())

	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/images/gallery/33", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	n, err := testutil.GatherAndCount(a.Metrics.Registry(), "thumbnail_cache_lookups_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
}

func TestApp_UnknownDisk(t *testing.T) {
	cfg := testConfig(t)
	cfg.Images.Disk = "s3"
	_, err := New(context.Background(), cfg, logging.Nop())
	assert.Error(t, err)
}

func TestApp_ServeShutsDownOnCancel(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/healthz")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
