package layout

import (
	"context"
	"image"

	"github.com/clerkops/formbench/internal/types"
)

const ProjectionDetectorName = "projection"

const (
	// inkThreshold is the grayscale value below which a pixel counts as ink.
	inkThreshold = 160

	// minInkPerRow is the minimum number of ink pixels for a row to be
	// considered part of a text band.
	minInkPerRow = 2

	// bandGap is the number of consecutive blank rows that close a band.
	bandGap = 6

	// minBandHeight filters out specks and rules.
	minBandHeight = 4
)

// ProjectionDetector is a heuristic detector that locates horizontal text
// bands from the image's ink projection profile. It needs no model backend,
// which makes it the offline fallback and the deterministic baseline in
// comparisons. Confidence reflects ink density within the band.
type ProjectionDetector struct{}

// NewProjectionDetector creates a projection-profile detector.
func NewProjectionDetector() *ProjectionDetector { return &ProjectionDetector{} }

func (d *ProjectionDetector) Name() string { return ProjectionDetectorName }

// Detect scans row ink counts and cuts regions at blank gaps.
func (d *ProjectionDetector) Detect(ctx context.Context, img image.Image) ([]types.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return []types.Region{}, nil
	}

	rowInk := make([]int, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if isInk(img, b.Min.X+x, b.Min.Y+y) {
				rowInk[y]++
			}
		}
	}

	var regions []types.Region
	bandStart := -1
	blanks := 0
	for y := 0; y <= h; y++ {
		inked := y < h && rowInk[y] >= minInkPerRow

		switch {
		case inked && bandStart < 0:
			bandStart = y
			blanks = 0
		case inked:
			blanks = 0
		case bandStart >= 0:
			blanks++
			if blanks >= bandGap || y == h {
				end := y - blanks + 1
				if end-bandStart >= minBandHeight {
					regions = append(regions, d.bandRegion(img, b, bandStart, end, rowInk))
				}
				bandStart = -1
			}
		}
	}

	if regions == nil {
		regions = []types.Region{}
	}
	return sortReadingOrder(regions), nil
}

// bandRegion trims a band to its ink column extent and scores it by density.
func (d *ProjectionDetector) bandRegion(img image.Image, b image.Rectangle, y1, y2 int, rowInk []int) types.Region {
	w := b.Dx()
	x1, x2 := w, 0
	ink := 0
	for y := y1; y < y2; y++ {
		ink += rowInk[y]
		for x := 0; x < w; x++ {
			if isInk(img, b.Min.X+x, b.Min.Y+y) {
				if x < x1 {
					x1 = x
				}
				if x+1 > x2 {
					x2 = x + 1
				}
			}
		}
	}
	if x1 >= x2 {
		x1, x2 = 0, w
	}

	area := (x2 - x1) * (y2 - y1)
	density := 0.0
	if area > 0 {
		density = float64(ink) / float64(area)
	}
	// Text bands are sparse; map density into a usable confidence range.
	conf := 0.5 + density*2
	if conf > 0.99 {
		conf = 0.99
	}

	return types.Region{
		Type:       "text",
		Confidence: conf,
		BBox:       types.BBox{X1: x1, Y1: y1, X2: x2, Y2: y2},
	}
}

func isInk(img image.Image, x, y int) bool {
	r, g, b, _ := img.At(x, y).RGBA()
	gray := (299*(r>>8) + 587*(g>>8) + 114*(b>>8)) / 1000
	return gray < inkThreshold
}

var _ Detector = (*ProjectionDetector)(nil)
