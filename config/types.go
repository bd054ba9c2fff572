package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/leeforge/thumbnail/logging"
	"github.com/leeforge/thumbnail/media/processor"
	"github.com/leeforge/thumbnail/media/sizespec"
	"github.com/leeforge/thumbnail/media/source"
	"github.com/leeforge/thumbnail/media/storage"
	"github.com/leeforge/thumbnail/utils"
)

// Config is the immutable service configuration loaded at start.
type Config struct {
	Images  ImagesConfig   `mapstructure:"images" json:"images" yaml:"images"`
	Storage storage.Config `mapstructure:"storage" json:"storage" yaml:"storage"`
	Server  ServerConfig   `mapstructure:"server" json:"server" yaml:"server"`
	Log     logging.Config `mapstructure:"log" json:"log" yaml:"log"`
}

type ImagesConfig struct {
	Disk                   string          `mapstructure:"disk" json:"disk" yaml:"disk" default:"local" validate:"oneof=local oss redis memory"`
	DefaultThumbnailFormat string          `mapstructure:"default_thumbnail_format" json:"default_thumbnail_format" yaml:"default_thumbnail_format" default:"320x320" validate:"required"`
	AllowedExtensions      []string        `mapstructure:"allowed_extensions" json:"allowed_extensions" yaml:"allowed_extensions" default:"[\"jpg\",\"jpeg\",\"png\"]" validate:"min=1,dive,required"`
	AllowedRatios          []string        `mapstructure:"allowed_ratios" json:"allowed_ratios" yaml:"allowed_ratios"`
	AllowedFormats         []string        `mapstructure:"allowed_formats" json:"allowed_formats" yaml:"allowed_formats" default:"[\"800x600\",\"320x320\"]"`
	EnforceFormats         bool            `mapstructure:"enforce_formats" json:"enforce_formats" yaml:"enforce_formats"`
	Watermark              WatermarkConfig `mapstructure:"watermark" json:"watermark" yaml:"watermark"`
	Cache                  CacheConfig     `mapstructure:"cache" json:"cache" yaml:"cache"`
	ImageQuality           int             `mapstructure:"image_quality" json:"image_quality" yaml:"image_quality" default:"90" validate:"min=0,max=100"`
	Source                 source.Config   `mapstructure:"source" json:"source" yaml:"source"`
}

type WatermarkConfig struct {
	Width    string `mapstructure:"width" json:"width" yaml:"width" default:"65%" validate:"required"`
	Height   string `mapstructure:"height" json:"height" yaml:"height" default:"40%" validate:"required"`
	Path     string `mapstructure:"path" json:"path" yaml:"path" default:"assets/watermark.png"`
	Position string `mapstructure:"position" json:"position" yaml:"position" default:"center"`
}

type CacheConfig struct {
	Path      string `mapstructure:"path" json:"path" yaml:"path" default:"cache/"`
	Extension string `mapstructure:"extension" json:"extension" yaml:"extension" default:"jpg" validate:"required"`
	// Age is the freshness lifetime in seconds.
	Age         int  `mapstructure:"age" json:"age" yaml:"age" default:"2592000" validate:"min=0"`
	Fingerprint bool `mapstructure:"fingerprint" json:"fingerprint" yaml:"fingerprint"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" json:"addr" yaml:"addr" default:":8080" validate:"required"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" json:"request_timeout" yaml:"request_timeout" default:"30s"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" json:"read_timeout" yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" yaml:"shutdown_timeout" default:"10s"`
	Workers         int           `mapstructure:"workers" json:"workers" yaml:"workers" default:"2" validate:"min=1"`
	QueueSize       int           `mapstructure:"queue_size" json:"queue_size" yaml:"queue_size" default:"100" validate:"min=1"`
}

var validate = validator.New()

// CacheAge returns the configured freshness lifetime.
func (c ImagesConfig) CacheAge() time.Duration {
	return time.Duration(c.Cache.Age) * time.Second
}

// WarmFormats returns the allowed formats followed by the default format,
// without duplicates.
func (c ImagesConfig) WarmFormats() []string {
	seen := make(map[string]struct{}, len(c.AllowedFormats)+1)
	var out []string
	for _, f := range append(append([]string{}, c.AllowedFormats...), c.DefaultThumbnailFormat) {
		if _, dup := seen[f]; dup || f == "" {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Validate checks field constraints and the values that are parsed later,
// so a bad size, percentage or anchor fails at start rather than per request.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	img := c.Images
	for _, raw := range append([]string{img.DefaultThumbnailFormat}, img.AllowedFormats...) {
		if _, err := sizespec.Parse(raw); err != nil {
			return fmt.Errorf("images: size %q: %w", raw, err)
		}
	}
	if !utils.ContainsFold(img.AllowedExtensions, img.Cache.Extension) {
		return fmt.Errorf("images.cache.extension %q is not in allowed_extensions", img.Cache.Extension)
	}
	if _, _, err := processor.ComputeWatermarkBox(img.Watermark.Width, img.Watermark.Height, 100, 100); err != nil {
		return fmt.Errorf("images.watermark: %w", err)
	}
	if _, err := processor.ParseAnchor(img.Watermark.Position); err != nil {
		return fmt.Errorf("images.watermark.position: %w", err)
	}
	return nil
}

// Load reads the configuration with opts.
func Load(opts ConfigOptions) (*Config, *Loader, error) {
	loader, err := NewLoader(opts)
	if err != nil {
		return nil, nil, err
	}
	cfg := &Config{}
	if err := loader.Bind(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}
