package processor

import (
	"strings"

	apperrors "github.com/leeforge/thumbnail/errors"
	"github.com/leeforge/thumbnail/media/sizespec"
	"github.com/leeforge/thumbnail/utils"
)

// Operation is a deferred transform step.
type Operation int

const (
	OpResize Operation = iota + 1
	OpWatermark
)

func (o Operation) String() string {
	switch o {
	case OpResize:
		return "resize"
	case OpWatermark:
		return "watermark"
	default:
		return "unknown"
	}
}

func (o Operation) valid() bool {
	return o == OpResize || o == OpWatermark
}

// ParseOperation maps an operation tag onto an Operation.
func ParseOperation(tag string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "resize":
		return OpResize, nil
	case "watermark":
		return OpWatermark, nil
	default:
		return 0, apperrors.NewUnknownOperation(tag)
	}
}

// TransformOptions carries the configuration a Transform validates against.
type TransformOptions struct {
	AllowedExtensions []string
	DefaultExtension  string
	WatermarkPath     string
}

// Transform is a request-scoped description of what to do to one image.
// Setters record state and enqueue the matching operation; nothing touches
// pixels until a Pipeline applies it.
type Transform struct {
	id            string
	size          *sizespec.Spec
	watermarkPath string
	extension     string
	queue         []Operation
	applied       bool
	opts          TransformOptions
}

// NewTransform validates the default extension eagerly.
func NewTransform(id string, opts TransformOptions) (*Transform, error) {
	t := &Transform{id: id, opts: opts}
	if err := t.SetExtension(opts.DefaultExtension); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Transform) ID() string {
	return t.id
}

// SetSize parses raw and enqueues a resize.
func (t *Transform) SetSize(raw string) error {
	spec, err := sizespec.Parse(raw)
	if err != nil {
		return err
	}
	return t.SetSizeSpec(spec)
}

// SetSizeSpec sets an already parsed size and enqueues a resize.
func (t *Transform) SetSizeSpec(spec sizespec.Spec) error {
	t.size = &spec
	return t.Enqueue(OpResize)
}

// Size returns the configured size or nil.
func (t *Transform) Size() *sizespec.Spec {
	return t.size
}

// SetWatermark enables the watermark using path, or the default path when
// path is empty, and enqueues it.
func (t *Transform) SetWatermark(path string) error {
	if path == "" {
		path = t.opts.WatermarkPath
	}
	if path == "" {
		return apperrors.NewInvalid("watermark", path, "no watermark path configured")
	}
	t.watermarkPath = path
	return t.Enqueue(OpWatermark)
}

func (t *Transform) WatermarkPath() string {
	return t.watermarkPath
}

func (t *Transform) Watermarked() bool {
	return t.watermarkPath != ""
}

// SetExtension validates ext against the allow-list.
func (t *Transform) SetExtension(ext string) error {
	checked, err := CheckExtension(t.opts.AllowedExtensions, ext)
	if err != nil {
		return err
	}
	t.extension = checked
	return nil
}

func (t *Transform) Extension() string {
	return t.extension
}

// Enqueue appends op to the queue. Duplicates are allowed.
func (t *Transform) Enqueue(op Operation) error {
	if !op.valid() {
		return apperrors.NewUnknownOperation(int(op))
	}
	t.queue = append(t.queue, op)
	return nil
}

// Queue returns a copy of the pending operations in order.
func (t *Transform) Queue() []Operation {
	return append([]Operation(nil), t.queue...)
}

// CheckExtension returns the folded extension when it is allow-listed.
func CheckExtension(allowed []string, ext string) (string, error) {
	if ext == "" || !utils.ContainsFold(allowed, ext) {
		return "", apperrors.NewIllegalExtension(ext)
	}
	return utils.FoldExtension(ext), nil
}
