package engine

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/clerkops/formbench/internal/types"
)

// cropRegion extracts the sub-image covered by bbox. The second return is
// false when the bbox does not intersect the image, which callers treat as
// an empty region rather than an error.
func cropRegion(img image.Image, bbox types.BBox) (image.Image, bool) {
	b := img.Bounds()
	rect := image.Rect(
		b.Min.X+bbox.X1,
		b.Min.Y+bbox.Y1,
		b.Min.X+bbox.X2,
		b.Min.Y+bbox.Y2,
	).Intersect(b)
	if rect.Empty() {
		return nil, false
	}

	sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return nil, false
	}
	return sub.SubImage(rect), true
}

// encodePNG renders an image to PNG bytes for engines that consume encoded
// payloads (Tesseract, remote HTTP APIs).
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
