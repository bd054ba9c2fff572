package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/leeforge/thumbnail/errors"
	"github.com/leeforge/thumbnail/logging"
)

// RetryConfig bounds storage retries.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" json:"max_attempts" yaml:"max_attempts" default:"3" validate:"min=1,max=10"`
	Backoff     time.Duration `mapstructure:"backoff" json:"backoff" yaml:"backoff" default:"100ms"`
}

// Retrying retries transient failures of the wrapped store. Not-found and
// other client errors, and context errors, are returned immediately.
type Retrying struct {
	inner   BlobStore
	policy  RetryConfig
	logger  logging.Logger
	onRetry func(backend, op string)
}

func NewRetrying(inner BlobStore, policy RetryConfig, logger logging.Logger) *Retrying {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if logger == nil {
		logger = logging.Global()
	}
	return &Retrying{
		inner:  inner,
		policy: policy,
		logger: logger.Named("storage").With(zap.String("backend", inner.Name())),
	}
}

// OnRetry registers fn to be called before every retried operation.
func (r *Retrying) OnRetry(fn func(backend, op string)) *Retrying {
	r.onRetry = fn
	return r
}

// Unwrap returns the wrapped store.
func (r *Retrying) Unwrap() BlobStore {
	return r.inner
}

func (r *Retrying) do(ctx context.Context, op, path string, fn func(ctx context.Context) error) error {
	retryer := apperrors.NewRetryer(r.policy.MaxAttempts).
		WithBackoff(r.policy.Backoff).
		OnRetry(func(attempt int, err error) {
			logging.WithContext(r.logger, ctx).Warn("storage operation failed, retrying",
				zap.String("op", op),
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if r.onRetry != nil {
				r.onRetry(r.inner.Name(), op)
			}
		})

	err := retryer.Do(ctx, fn)
	if err == nil {
		return nil
	}
	if _, ok := err.(*apperrors.AppError); ok || ctx.Err() != nil {
		return err
	}
	return apperrors.NewStorage(op, path, err)
}

func (r *Retrying) Exists(ctx context.Context, path string) (bool, error) {
	var ok bool
	err := r.do(ctx, "stat", path, func(ctx context.Context) error {
		var err error
		ok, err = r.inner.Exists(ctx, path)
		return err
	})
	return ok, err
}

func (r *Retrying) Read(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := r.do(ctx, "read", path, func(ctx context.Context) error {
		var err error
		data, err = r.inner.Read(ctx, path)
		return err
	})
	return data, err
}

func (r *Retrying) Write(ctx context.Context, path string, data []byte) error {
	return r.do(ctx, "write", path, func(ctx context.Context) error {
		return r.inner.Write(ctx, path, data)
	})
}

func (r *Retrying) Delete(ctx context.Context, path string) error {
	return r.do(ctx, "delete", path, func(ctx context.Context) error {
		return r.inner.Delete(ctx, path)
	})
}

func (r *Retrying) Name() string {
	return r.inner.Name()
}
