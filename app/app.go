package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/leeforge/thumbnail/cache"
	"github.com/leeforge/thumbnail/config"
	"github.com/leeforge/thumbnail/http/handler"
	"github.com/leeforge/thumbnail/logging"
	"github.com/leeforge/thumbnail/media/processor"
	"github.com/leeforge/thumbnail/media/queue"
	"github.com/leeforge/thumbnail/media/source"
	"github.com/leeforge/thumbnail/media/storage"
	"github.com/leeforge/thumbnail/metrics"
	"github.com/leeforge/thumbnail/thumbnail"
)

// App owns every long lived component built from one configuration.
type App struct {
	Config  *config.Config
	Logger  logging.Logger
	Metrics *metrics.Collector
	Store   storage.BlobStore
	Cache   *cache.ImageCache
	Service *thumbnail.Service
	Warmer  *queue.Warmer

	closeStore func() error
}

// New opens the configured storage and assembles the service around it.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Global()
	}
	img := cfg.Images
	m := metrics.NewCollector()

	store, closeStore, err := storage.Open(ctx, img.Disk, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage %q: %w", img.Disk, err)
	}
	if r, ok := store.(*storage.Retrying); ok {
		r.OnRetry(m.StorageRetry)
	}

	anchor, err := processor.ParseAnchor(img.Watermark.Position)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	keys := cache.NewKeyBuilder(img.Cache.Path, img.Cache.Extension)
	if img.Cache.Fingerprint {
		keys = keys.WithFingerprint(
			img.Watermark.Path,
			img.Watermark.Width,
			img.Watermark.Height,
			string(anchor),
			strconv.Itoa(img.ImageQuality),
		)
	}

	imageCache := cache.NewImageCache(store, keys,
		cache.WithMetrics(m),
		cache.WithLogger(logger),
		cache.WithBuildTimeout(cfg.Server.RequestTimeout),
	)
	pipeline := processor.NewPipeline(processor.NewFileWatermarkLoader(), processor.WatermarkOptions{
		Width:       img.Watermark.Width,
		Height:      img.Watermark.Height,
		Position:    anchor,
		DefaultPath: img.Watermark.Path,
	})
	svc := thumbnail.NewService(imageCache, source.NewStoreFetcher(store, img.Source), pipeline,
		thumbnail.OptionsFromConfig(img), thumbnail.WithLogger(logger))

	warmer := queue.NewWarmer(queue.Config{
		Workers:    cfg.Server.Workers,
		QueueSize:  cfg.Server.QueueSize,
		JobTimeout: cfg.Server.RequestTimeout * time.Duration(len(svc.WarmFormats())+1),
	}, svc.Warm, m, logger)

	logger.Info("thumbnail service assembled",
		zap.String("disk", store.Name()),
		zap.String("cache_path", img.Cache.Path),
		zap.String("cache_extension", keys.Extension()),
		zap.String("fingerprint", keys.Fingerprint()),
		zap.Strings("warm_formats", svc.WarmFormats()),
	)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Metrics:    m,
		Store:      store,
		Cache:      imageCache,
		Service:    svc,
		Warmer:     warmer,
		closeStore: closeStore,
	}, nil
}

// Handler returns the HTTP routes.
func (a *App) Handler() http.Handler {
	return handler.NewRouter(handler.Deps{
		Service:        a.Service,
		Warmer:         a.Warmer,
		Metrics:        a.Metrics,
		Logger:         a.Logger,
		RequestTimeout: a.Config.Server.RequestTimeout,
		StorageName:    a.Store.Name(),
	})
}

// Serve listens on ln until ctx is done, then shuts down gracefully and
// drains the warm queue.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadTimeout:       a.Config.Server.ReadTimeout,
		ReadHeaderTimeout: a.Config.Server.ReadTimeout,
		WriteTimeout:      a.Config.Server.WriteTimeout,
		ErrorLog:          zap.NewStdLog(a.Logger.Zap()),
	}

	a.Warmer.Start()
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !stderrors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()

	a.Logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	if err := a.Warmer.Stop(shutdownCtx); err != nil {
		a.Logger.Warn("warm queue not drained", zap.Error(err), zap.Int("pending", a.Warmer.Pending()))
	}
	return serveErr
}

// ListenAndServe binds the configured address and calls Serve.
func (a *App) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Config.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.Config.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Close releases backend connections.
func (a *App) Close() error {
	if a.closeStore == nil {
		return nil
	}
	return a.closeStore()
}
