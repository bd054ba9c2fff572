package processor

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"net/http"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"

	// extra source formats
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	apperrors "github.com/leeforge/thumbnail/errors"
	"github.com/leeforge/thumbnail/utils"
)

// Handle is a decoded image that transform operations mutate in place.
// Every mutating method also returns the handle so calls can be chained.
type Handle struct {
	img    image.Image
	format string
}

// Decode decodes data in any registered format (jpeg, png, gif, bmp, webp).
func Decode(data []byte) (*Handle, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.WrapWithType(err, apperrors.ErrorTypeInvalid, "decode image").
			WithHTTPStatus(http.StatusUnprocessableEntity)
	}
	return &Handle{img: img, format: format}, nil
}

// FromImage wraps an already decoded image.
func FromImage(img image.Image) *Handle {
	return &Handle{img: img}
}

func (h *Handle) Image() image.Image {
	return h.img
}

// Format is the source format reported by the decoder, empty for FromImage.
func (h *Handle) Format() string {
	return h.format
}

func (h *Handle) Width() int {
	return h.img.Bounds().Dx()
}

func (h *Handle) Height() int {
	return h.img.Bounds().Dy()
}

// ResizeExact scales to w x h without preserving the aspect ratio. A zero
// dimension is derived from the other one.
func (h *Handle) ResizeExact(w, hgt int) *Handle {
	if w == h.Width() && hgt == h.Height() {
		return h
	}
	h.img = resize.Resize(dim(w), dim(hgt), h.img, resize.Lanczos3)
	return h
}

// ResizeToWidth scales to width w, preserving the aspect ratio. An image
// already w wide is left untouched, as are the other resizes at their target.
func (h *Handle) ResizeToWidth(w int) *Handle {
	if w == h.Width() {
		return h
	}
	h.img = resize.Resize(dim(w), 0, h.img, resize.Lanczos3)
	return h
}

// ResizeToHeight scales to height hgt, preserving the aspect ratio.
func (h *Handle) ResizeToHeight(hgt int) *Handle {
	if hgt == h.Height() {
		return h
	}
	h.img = resize.Resize(0, dim(hgt), h.img, resize.Lanczos3)
	return h
}

// CropToFill scales the image to cover w x h and crops the centered overflow,
// so the result is exactly w x h. A non-positive dimension falls back to the
// current one.
func (h *Handle) CropToFill(w, hgt int) *Handle {
	sw, sh := h.Width(), h.Height()
	if w <= 0 {
		w = sw
	}
	if hgt <= 0 {
		hgt = sh
	}
	if sw == 0 || sh == 0 || (w == sw && hgt == sh) {
		return h
	}

	scale := math.Max(float64(w)/float64(sw), float64(hgt)/float64(sh))
	rw := max(int(math.Ceil(float64(sw)*scale)), w)
	rh := max(int(math.Ceil(float64(sh)*scale)), hgt)

	scaled := resize.Resize(uint(rw), uint(rh), h.img, resize.Lanczos3)
	offset := scaled.Bounds().Min.Add(image.Pt((rw-w)/2, (rh-hgt)/2))

	dst := image.NewRGBA(image.Rect(0, 0, w, hgt))
	draw.Draw(dst, dst.Bounds(), scaled, offset, draw.Src)
	h.img = dst
	return h
}

// FitWithin scales the image, up or down, to the largest size that fits the
// w x hgt box while preserving the aspect ratio.
func (h *Handle) FitWithin(w, hgt int) *Handle {
	sw, sh := h.Width(), h.Height()
	if sw == 0 || sh == 0 || w <= 0 || hgt <= 0 {
		return h
	}

	scale := math.Min(float64(w)/float64(sw), float64(hgt)/float64(sh))
	nw := max(int(math.Round(float64(sw)*scale)), 1)
	nh := max(int(math.Round(float64(sh)*scale)), 1)
	return h.ResizeExact(nw, nh)
}

// Composite draws overlay over the image at the given anchor.
func (h *Handle) Composite(overlay *Handle, anchor Anchor) *Handle {
	bounds := h.img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), h.img, bounds.Min, draw.Src)

	at := anchor.Position(dst.Bounds().Size(), overlay.img.Bounds().Size())
	target := image.Rectangle{Min: at, Max: at.Add(overlay.img.Bounds().Size())}
	draw.Draw(dst, target, overlay.img, overlay.img.Bounds().Min, draw.Over)

	h.img = dst
	return h
}

// Encode serializes the image. quality applies to jpeg only.
func (h *Handle) Encode(ext string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch utils.FoldExtension(ext) {
	case "jpg", "jpeg":
		err = jpeg.Encode(&buf, h.img, &jpeg.Options{Quality: clampQuality(quality)})
	case "png":
		err = png.Encode(&buf, h.img)
	case "gif":
		err = gif.Encode(&buf, h.img, nil)
	default:
		return nil, apperrors.NewIllegalExtension(ext)
	}
	if err != nil {
		return nil, apperrors.WrapWithType(err, apperrors.ErrorTypeInternal, "encode image").
			WithDetail("extension", ext).
			WithHTTPStatus(http.StatusInternalServerError)
	}
	return buf.Bytes(), nil
}

func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}

func dim(v int) uint {
	if v < 0 {
		return 0
	}
	return uint(v)
}
