// Package layout defines the structural-region detector contract and the
// built-in detector adapters.
package layout

import (
	"context"
	"image"
	"sort"

	"github.com/clerkops/formbench/internal/types"
)

// Detector locates structural regions in a document image.
//
// Contract: Detect returns regions with ids 1..N in a detector-defined
// canonical order (top-to-bottom/left-to-right position or descending
// confidence) that is deterministic for identical input. Confidences are in
// [0, 1] and bboxes satisfy x1<=x2, y1<=y2. A call re-runs detection; results
// are never cached. An unavailable backing model fails the call, which is
// fatal to the document being processed but not to its batch.
type Detector interface {
	// Name returns the detector identifier (e.g. "tesseract").
	Name() string

	// Detect finds regions in the image.
	Detect(ctx context.Context, img image.Image) ([]types.Region, error)
}

// sortReadingOrder orders regions top-to-bottom then left-to-right and
// reassigns ids 1..N. Detectors that sort positionally share this helper.
func sortReadingOrder(regions []types.Region) []types.Region {
	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].BBox.Y1 != regions[j].BBox.Y1 {
			return regions[i].BBox.Y1 < regions[j].BBox.Y1
		}
		return regions[i].BBox.X1 < regions[j].BBox.X1
	})
	for i := range regions {
		regions[i].ID = i + 1
	}
	return regions
}

// FullPageRegion returns the single pseudo-region covering the whole image,
// used by the full-text pipeline mode to bypass detection.
func FullPageRegion(img image.Image) types.Region {
	b := img.Bounds()
	return types.Region{
		ID:         1,
		Type:       "full_page",
		Confidence: 1.0,
		BBox:       types.BBox{X1: 0, Y1: 0, X2: b.Dx(), Y2: b.Dy()},
	}
}
