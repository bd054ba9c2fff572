package processor

import (
	"context"

	apperrors "github.com/leeforge/thumbnail/errors"
	"github.com/leeforge/thumbnail/media/sizespec"
)

// Pipeline applies the operations queued on a Transform.
type Pipeline struct {
	watermarks WatermarkLoader
	watermark  WatermarkOptions
}

// NewPipeline creates a pipeline. loader may be nil when watermarks are never
// requested.
func NewPipeline(loader WatermarkLoader, opts WatermarkOptions) *Pipeline {
	if opts.Position == "" {
		opts.Position = AnchorCenter
	}
	return &Pipeline{
		watermarks: loader,
		watermark:  opts,
	}
}

// pipelineContext is threaded through every operation of one Apply call.
type pipelineContext struct {
	ctx       context.Context
	transform *Transform
	handle    *Handle
}

// Apply runs the queued operations of t against h in queue order. It reports
// false when there was nothing to do: an empty queue, or a transform that was
// already applied. Operations read their parameters from t at this point, not
// when they were queued.
func (p *Pipeline) Apply(ctx context.Context, t *Transform, h *Handle) (*Handle, bool, error) {
	if len(t.queue) == 0 || t.applied {
		return h, false, nil
	}
	t.applied = true

	pc := &pipelineContext{ctx: ctx, transform: t, handle: h}
	for _, op := range t.queue {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		var err error
		switch op {
		case OpResize:
			err = p.applyResize(pc)
		case OpWatermark:
			err = p.applyWatermark(pc)
		default:
			err = apperrors.NewUnknownOperation(int(op))
		}
		if err != nil {
			return nil, false, err
		}
	}
	return pc.handle, true, nil
}

func (p *Pipeline) applyResize(pc *pipelineContext) error {
	if pc.transform.size == nil {
		return apperrors.NewUndefinedResizeMethod(sizespec.ModeUndefined.String())
	}
	h, err := Resize(pc.handle, *pc.transform.size)
	if err != nil {
		return err
	}
	pc.handle = h
	return nil
}

// Resize applies spec to h, mutating and returning it.
func Resize(h *Handle, spec sizespec.Spec) (*Handle, error) {
	switch spec.Mode {
	case sizespec.FixedWidth:
		return h.ResizeToWidth(spec.X), nil
	case sizespec.FixedHeight:
		return h.ResizeToHeight(spec.Y), nil
	case sizespec.FixedBoth:
		return h.CropToFill(spec.X, spec.Y), nil
	case sizespec.FitEither:
		// Chooses by the requested numbers, not by the image orientation.
		if spec.X > spec.Y {
			return h.ResizeToWidth(spec.X), nil
		}
		return h.ResizeToHeight(spec.Y), nil
	default:
		return nil, apperrors.NewUndefinedResizeMethod(spec.Mode.String())
	}
}

func (p *Pipeline) applyWatermark(pc *pipelineContext) error {
	if p.watermarks == nil {
		return apperrors.NewInternal("watermark requested but no loader is configured")
	}

	path := pc.transform.watermarkPath
	if path == "" {
		path = p.watermark.DefaultPath
	}
	mark, err := p.watermarks.Load(pc.ctx, path)
	if err != nil {
		return err
	}

	w, h, err := ComputeWatermarkBox(p.watermark.Width, p.watermark.Height, pc.handle.Width(), pc.handle.Height())
	if err != nil {
		return err
	}

	mark.FitWithin(w, h)
	pc.handle = pc.handle.Composite(mark, p.watermark.Position)
	return nil
}
