package cache

import (
	"context"
	stderrors "errors"
	"path"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/leeforge/thumbnail/errors"
	"github.com/leeforge/thumbnail/logging"
	"github.com/leeforge/thumbnail/media/processor"
	"github.com/leeforge/thumbnail/media/source"
	"github.com/leeforge/thumbnail/media/storage"
	"github.com/leeforge/thumbnail/metrics"
)

const defaultBuildTimeout = 30 * time.Second

// ImageCache is the two-tier cache of original and derived images over a
// BlobStore.
type ImageCache struct {
	store        storage.BlobStore
	keys         *KeyBuilder
	group        singleflight.Group
	metrics      *metrics.Collector
	logger       logging.Logger
	buildTimeout time.Duration
}

// Option configures an ImageCache.
type Option func(*ImageCache)

func WithMetrics(m *metrics.Collector) Option {
	return func(c *ImageCache) { c.metrics = m }
}

func WithLogger(l logging.Logger) Option {
	return func(c *ImageCache) { c.logger = l }
}

// WithBuildTimeout bounds a shared build independently of the caller that
// started it.
func WithBuildTimeout(d time.Duration) Option {
	return func(c *ImageCache) {
		if d > 0 {
			c.buildTimeout = d
		}
	}
}

func NewImageCache(store storage.BlobStore, keys *KeyBuilder, opts ...Option) *ImageCache {
	c := &ImageCache{
		store:        store,
		keys:         keys,
		logger:       logging.Global(),
		buildTimeout: defaultBuildTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("cache")
	return c
}

// Keys returns the key builder.
func (c *ImageCache) Keys() *KeyBuilder {
	return c.keys
}

func (c *ImageCache) read(ctx context.Context, tier, key string) ([]byte, bool, error) {
	data, err := c.store.Read(ctx, key)
	switch {
	case err == nil:
		c.metrics.CacheLookup(tier, metrics.ResultHit)
		logging.WithContext(c.logger, ctx).Debug("cache hit", zap.String("tier", tier), zap.String("path", key))
		return data, true, nil
	case stderrors.Is(err, apperrors.ErrNotFound):
		c.metrics.CacheLookup(tier, metrics.ResultMiss)
		logging.WithContext(c.logger, ctx).Debug("cache miss", zap.String("tier", tier), zap.String("path", key))
		return nil, false, nil
	default:
		c.metrics.CacheLookup(tier, metrics.ResultError)
		return nil, false, err
	}
}

// LookupOriginal returns the cached source bytes of id.
func (c *ImageCache) LookupOriginal(ctx context.Context, id string) ([]byte, bool, error) {
	return c.read(ctx, metrics.TierOriginal, c.keys.OriginalPath(id))
}

// StoreOriginal writes the source bytes of id to the original tier.
func (c *ImageCache) StoreOriginal(ctx context.Context, id string, data []byte) error {
	return c.store.Write(ctx, c.keys.OriginalPath(id), data)
}

// LoadOriginal returns the source bytes of id, reading through to fetch on a
// miss and storing what it fetched. With bypass the lookup is skipped but the
// fetched bytes still refresh the original tier.
func (c *ImageCache) LoadOriginal(ctx context.Context, id string, fetch source.Fetcher, bypass bool) ([]byte, error) {
	if bypass {
		c.metrics.CacheLookup(metrics.TierOriginal, metrics.ResultBypass)
	} else {
		data, ok, err := c.LookupOriginal(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			return data, nil
		}
	}

	data, err := fetch.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.StoreOriginal(ctx, id, data); err != nil {
		return nil, err
	}
	return data, nil
}

// ReadDerived returns the encoded bytes of a derived entry.
func (c *ImageCache) ReadDerived(ctx context.Context, key string) ([]byte, bool, error) {
	return c.read(ctx, metrics.TierDerived, key)
}

// LookupDerived returns a derived entry decoded into a handle.
func (c *ImageCache) LookupDerived(ctx context.Context, key string) (*processor.Handle, bool, error) {
	data, ok, err := c.ReadDerived(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	h, err := processor.Decode(data)
	if err != nil {
		return nil, false, err
	}
	return h, true, nil
}

// StoreDerived encodes h in the format named by the extension of key and
// writes it.
func (c *ImageCache) StoreDerived(ctx context.Context, key string, h *processor.Handle, quality int) error {
	data, err := h.Encode(path.Ext(key), quality)
	if err != nil {
		return err
	}
	return c.store.Write(ctx, key, data)
}

// Build runs fn at most once concurrently per key. Callers arriving while a
// build of key is in flight wait for it and share its result; shared reports
// that. The build runs detached from the starting caller's cancellation and
// is bounded by the build timeout instead, while every caller still returns
// as soon as its own ctx is done.
func (c *ImageCache) Build(ctx context.Context, key string, fn func(ctx context.Context) error) (shared bool, err error) {
	ch := c.group.DoChan(key, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.buildTimeout)
		defer cancel()

		start := time.Now()
		err := fn(buildCtx)
		elapsed := time.Since(start)
		c.metrics.BuildObserved(elapsed, err)

		log := logging.WithContext(c.logger, ctx).With(zap.String("path", key), zap.Duration("duration", elapsed))
		if err != nil {
			log.Warn("derived image build failed", zap.Error(err))
		} else {
			log.Info("derived image built")
		}
		return nil, err
	})

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.metrics.BuildShared()
		}
		return res.Shared, res.Err
	}
}
