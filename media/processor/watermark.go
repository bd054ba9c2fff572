package processor

import (
	"context"
	"image"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	apperrors "github.com/leeforge/thumbnail/errors"
)

// Anchor names where an overlay is placed on the canvas.
type Anchor string

const (
	AnchorTopLeft     Anchor = "top-left"
	AnchorTop         Anchor = "top"
	AnchorTopRight    Anchor = "top-right"
	AnchorLeft        Anchor = "left"
	AnchorCenter      Anchor = "center"
	AnchorRight       Anchor = "right"
	AnchorBottomLeft  Anchor = "bottom-left"
	AnchorBottom      Anchor = "bottom"
	AnchorBottomRight Anchor = "bottom-right"
)

// Anchors lists every supported anchor.
var Anchors = []Anchor{
	AnchorTopLeft, AnchorTop, AnchorTopRight,
	AnchorLeft, AnchorCenter, AnchorRight,
	AnchorBottomLeft, AnchorBottom, AnchorBottomRight,
}

// ParseAnchor validates s as an anchor name.
func ParseAnchor(s string) (Anchor, error) {
	a := Anchor(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Anchors {
		if a == known {
			return a, nil
		}
	}
	return "", apperrors.NewInvalid("watermark.position", s, "unknown anchor")
}

// Position returns the top-left point of an overlay of size over placed on a
// canvas of size canvas. Unknown anchors center the overlay.
func (a Anchor) Position(canvas, over image.Point) image.Point {
	x := (canvas.X - over.X) / 2
	y := (canvas.Y - over.Y) / 2

	switch a {
	case AnchorTopLeft, AnchorLeft, AnchorBottomLeft:
		x = 0
	case AnchorTopRight, AnchorRight, AnchorBottomRight:
		x = canvas.X - over.X
	}
	switch a {
	case AnchorTopLeft, AnchorTop, AnchorTopRight:
		y = 0
	case AnchorBottomLeft, AnchorBottom, AnchorBottomRight:
		y = canvas.Y - over.Y
	}
	return image.Pt(x, y)
}

// ComputeWatermarkBox converts percentage strings such as "65%" into a pixel
// box on a canvas of cw x ch. Percentages are truncated to whole numbers
// before scaling, so "65.9%" behaves as 65%.
func ComputeWatermarkBox(pctWidth, pctHeight string, cw, ch int) (int, int, error) {
	pw, err := ParsePercent(pctWidth)
	if err != nil {
		return 0, 0, err
	}
	ph, err := ParsePercent(pctHeight)
	if err != nil {
		return 0, 0, err
	}

	w := int(math.Round(float64(cw) * (float64(pw) / 100)))
	h := int(math.Round(float64(ch) * (float64(ph) / 100)))
	return w, h, nil
}

// ParsePercent reads the leading integer of a percentage string.
func ParsePercent(s string) (int, error) {
	v := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))

	end := 0
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, apperrors.NewInvalid("percentage", s, "expected a number such as 65%")
	}

	n, err := strconv.Atoi(v[:end])
	if err != nil {
		return 0, apperrors.NewInvalid("percentage", s, err.Error())
	}
	return n, nil
}

// WatermarkOptions holds the watermark geometry.
type WatermarkOptions struct {
	Width       string
	Height      string
	Position    Anchor
	DefaultPath string
}

// WatermarkLoader supplies decoded watermark images by path.
type WatermarkLoader interface {
	Load(ctx context.Context, path string) (*Handle, error)
}

// FileWatermarkLoader reads watermark files from the local filesystem and
// keeps the decoded images in memory. Returned handles are independent.
type FileWatermarkLoader struct {
	decoded sync.Map // path -> image.Image
}

func NewFileWatermarkLoader() *FileWatermarkLoader {
	return &FileWatermarkLoader{}
}

func (l *FileWatermarkLoader) Load(ctx context.Context, path string) (*Handle, error) {
	if img, ok := l.decoded.Load(path); ok {
		return FromImage(img.(image.Image)), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewInternal("watermark file is missing").
				WithDetail("path", path).
				WithInnerError(err)
		}
		return nil, apperrors.NewStorage("read", path, err)
	}

	h, err := Decode(data)
	if err != nil {
		return nil, err
	}
	l.decoded.Store(path, h.Image())
	return FromImage(h.Image()), nil
}
