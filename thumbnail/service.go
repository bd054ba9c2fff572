package thumbnail

import (
	"context"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/leeforge/thumbnail/cache"
	"github.com/leeforge/thumbnail/config"
	apperrors "github.com/leeforge/thumbnail/errors"
	"github.com/leeforge/thumbnail/logging"
	"github.com/leeforge/thumbnail/media/processor"
	"github.com/leeforge/thumbnail/media/sizespec"
	"github.com/leeforge/thumbnail/media/source"
	"github.com/leeforge/thumbnail/utils"
)

// Options are the request-independent settings of a Service.
type Options struct {
	AllowedExtensions []string
	DefaultExtension  string
	AllowedFormats    []string
	DefaultFormat     string
	EnforceFormats    bool
	WatermarkPath     string
	Quality           int
	CacheAge          time.Duration
}

// OptionsFromConfig maps the images section onto service options.
func OptionsFromConfig(c config.ImagesConfig) Options {
	return Options{
		AllowedExtensions: c.AllowedExtensions,
		DefaultExtension:  c.Cache.Extension,
		AllowedFormats:    c.AllowedFormats,
		DefaultFormat:     c.DefaultThumbnailFormat,
		EnforceFormats:    c.EnforceFormats,
		WatermarkPath:     c.Watermark.Path,
		Quality:           c.ImageQuality,
		CacheAge:          c.CacheAge(),
	}
}

// Request is one thumbnail request. Empty Size and Extension mean none and
// the default extension.
type Request struct {
	ID        string
	Size      string
	Watermark bool
	Extension string
	NoCache   bool
}

// Result is a rendered image plus its freshness metadata.
type Result struct {
	Body         []byte
	ContentType  string
	LastModified time.Time
	Expires      time.Time
	MaxAge       time.Duration
	CacheHit     bool
	Path         string
}

// Service renders derived images through the two-tier cache.
type Service struct {
	cache    *cache.ImageCache
	fetcher  source.Fetcher
	pipeline *processor.Pipeline
	opts     Options
	logger   logging.Logger
	now      func() time.Time
}

type ServiceOption func(*Service)

func WithLogger(l logging.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for freshness headers.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(c *cache.ImageCache, fetcher source.Fetcher, pipeline *processor.Pipeline, opts Options, sopts ...ServiceOption) *Service {
	s := &Service{
		cache:    c,
		fetcher:  fetcher,
		pipeline: pipeline,
		opts:     opts,
		logger:   logging.Global(),
		now:      time.Now,
	}
	for _, o := range sopts {
		o(s)
	}
	s.logger = s.logger.Named("thumbnail")
	return s
}

// plan is a validated request: the transform to apply and where its result
// lives.
type plan struct {
	id        string
	transform *processor.Transform
	key       string
	// identity is set when key is also the original entry's path. That entry
	// may still hold the raw source bytes in another format.
	identity bool
}

// prepare validates every part of req. It performs no I/O, so a rejected
// request never touches the cache.
func (s *Service) prepare(req Request) (*plan, error) {
	id, err := cache.NormalizeID(req.ID)
	if err != nil {
		return nil, err
	}

	t, err := processor.NewTransform(id, processor.TransformOptions{
		AllowedExtensions: s.opts.AllowedExtensions,
		DefaultExtension:  s.opts.DefaultExtension,
		WatermarkPath:     s.opts.WatermarkPath,
	})
	if err != nil {
		return nil, err
	}
	if req.Extension != "" {
		if err := t.SetExtension(req.Extension); err != nil {
			return nil, err
		}
	}

	if req.Size != "" {
		spec, err := sizespec.Parse(req.Size)
		if err != nil {
			return nil, err
		}
		if s.opts.EnforceFormats && !s.formatAllowed(spec.Raw) {
			return nil, apperrors.NewIllegalSize(spec.Raw).WithDetail("allowed", s.allowedFormats())
		}
		if err := t.SetSizeSpec(spec); err != nil {
			return nil, err
		}
	}

	if req.Watermark {
		if err := t.SetWatermark(""); err != nil {
			return nil, err
		}
	}

	keys := s.cache.Keys()
	key := keys.DerivedPath(id, t.Size(), t.Watermarked(), t.Extension())
	return &plan{id: id, transform: t, key: key, identity: key == keys.OriginalPath(id)}, nil
}

func (s *Service) allowedFormats() []string {
	if s.opts.DefaultFormat == "" {
		return s.opts.AllowedFormats
	}
	return append(append([]string{}, s.opts.AllowedFormats...), s.opts.DefaultFormat)
}

func (s *Service) formatAllowed(raw string) bool {
	return utils.ContainsFold(s.allowedFormats(), raw)
}

// Render returns the derived image for req, building and caching it on a
// miss. With NoCache the derived lookup is skipped and the original is
// fetched again; both tiers are rewritten.
func (s *Service) Render(ctx context.Context, req Request) (*Result, error) {
	p, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx = logging.SetImageID(ctx, p.id)
	log := logging.WithContext(s.logger, ctx).With(zap.String("path", p.key))

	if !req.NoCache {
		data, ok, err := s.readDerived(ctx, p)
		if err != nil {
			return nil, err
		}
		if ok {
			return s.result(data, p.key, true), nil
		}
	}

	if _, err := s.cache.Build(ctx, flightKey(p.key, req.NoCache), func(ctx context.Context) error {
		return s.build(ctx, p, req.NoCache)
	}); err != nil {
		return nil, err
	}

	data, ok, err := s.cache.ReadDerived(ctx, p.key)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Error("derived entry missing after build")
		return nil, apperrors.NewInternal("derived image missing after build").WithDetail("path", p.key)
	}
	return s.result(data, p.key, false), nil
}

// readDerived reads the derived entry of p. For an identity plan, bytes not
// yet encoded in the requested format count as a miss.
func (s *Service) readDerived(ctx context.Context, p *plan) ([]byte, bool, error) {
	data, ok, err := s.cache.ReadDerived(ctx, p.key)
	if err != nil || !ok {
		return nil, false, err
	}
	if p.identity && !encodedAs(data, p.transform.Extension()) {
		return nil, false, nil
	}
	return data, true, nil
}

func encodedAs(data []byte, ext string) bool {
	return canonicalExt(mimetype.Detect(data).Extension()) == canonicalExt(ext)
}

func canonicalExt(ext string) string {
	if ext = utils.FoldExtension(ext); ext == "jpeg" {
		return "jpg"
	}
	return ext
}

// flightKey keeps bypass builds apart from regular ones, so a nocache
// request never joins a build that reads the cached original.
func flightKey(key string, noCache bool) string {
	if noCache {
		return key + "#nocache"
	}
	return key
}

// build produces the derived entry of p. The identity transform in the cache
// extension targets the original entry's path and rewrites it re-encoded.
// A caller that waited on another caller's build finds the entry and returns
// early.
func (s *Service) build(ctx context.Context, p *plan, noCache bool) error {
	if !noCache {
		if _, ok, err := s.readDerived(ctx, p); err != nil || ok {
			return err
		}
	}

	original, err := s.cache.LoadOriginal(ctx, p.id, s.fetcher, noCache)
	if err != nil {
		return err
	}

	h, err := processor.Decode(original)
	if err != nil {
		return err
	}
	h, _, err = s.pipeline.Apply(ctx, p.transform, h)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.cache.StoreDerived(ctx, p.key, h, s.opts.Quality)
}

func (s *Service) result(data []byte, key string, hit bool) *Result {
	now := s.now().UTC().Truncate(time.Second)
	return &Result{
		Body:         data,
		ContentType:  mimetype.Detect(data).String(),
		LastModified: now,
		Expires:      now.Add(s.opts.CacheAge),
		MaxAge:       s.opts.CacheAge,
		CacheHit:     hit,
		Path:         key,
	}
}

// WarmFormats lists the sizes Warm renders.
func (s *Service) WarmFormats() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, f := range s.allowedFormats() {
		if _, dup := seen[f]; dup || f == "" {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// WarmReport records what Warm did for each size.
type WarmReport struct {
	ID      string            `json:"id"`
	Built   []string          `json:"built"`
	Cached  []string          `json:"cached"`
	Failed  map[string]string `json:"failed,omitempty"`
	Elapsed time.Duration     `json:"elapsed"`
}

// Warm renders every warm format of id. It stops at the first client error,
// since those affect every size alike, and otherwise records per-size
// failures and keeps going.
func (s *Service) Warm(ctx context.Context, id string) (*WarmReport, error) {
	start := time.Now()
	report := &WarmReport{ID: id}
	for _, size := range s.WarmFormats() {
		res, err := s.Render(ctx, Request{ID: id, Size: size})
		if err != nil {
			if apperrors.IsClientError(err) || ctx.Err() != nil {
				return report, err
			}
			if report.Failed == nil {
				report.Failed = make(map[string]string)
			}
			report.Failed[size] = err.Error()
			continue
		}
		if res.CacheHit {
			report.Cached = append(report.Cached, size)
		} else {
			report.Built = append(report.Built, size)
		}
	}
	report.Elapsed = time.Since(start)

	logging.WithContext(s.logger, ctx).Info("image warmed",
		zap.String("image_id", id),
		zap.Strings("built", report.Built),
		zap.Strings("cached", report.Cached),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("duration", report.Elapsed),
	)
	return report, nil
}
