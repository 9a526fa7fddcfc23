// Package engine defines the OCR engine contract and the built-in engine
// adapters.
package engine

import (
	"context"
	"image"

	"github.com/clerkops/formbench/internal/types"
)

// Engine extracts text from detected regions of a document image.
//
// Contract: Extract returns exactly one OCRResult per input region, in input
// order. A region with no recognizable text yields an OCRResult with empty
// FullText and an empty line slice, never an error. Engine failure on a
// single region likewise degrades to an empty result for that region, so one
// bad region cannot discard an otherwise usable page. Only adapter-fatal
// conditions (the backing model cannot be reached at all) return an error.
//
// FullText is always the space-joined concatenation of the emitted lines in
// reading order. Engines without native confidence report a documented
// constant in [0, 1].
type Engine interface {
	// Name returns the engine identifier (e.g. "tesseract").
	Name() string

	// Extract runs OCR over each region of the image.
	Extract(ctx context.Context, img image.Image, regions []types.Region) ([]types.OCRResult, error)
}

// regionFunc is an engine's single-image extraction primitive: it receives a
// cropped region image and returns the recognized lines.
type regionFunc func(ctx context.Context, crop image.Image) ([]types.TextLine, error)

// extractByRegion is the default cropping helper shared by engine adapters.
// It crops each region's bbox from the page, delegates to the engine's
// primitive, and downgrades per-region failures to empty results.
func extractByRegion(ctx context.Context, img image.Image, regions []types.Region, fn regionFunc) ([]types.OCRResult, error) {
	results := make([]types.OCRResult, 0, len(regions))
	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		crop, ok := cropRegion(img, region.BBox)
		if !ok {
			results = append(results, types.EmptyOCRResult(region.ID))
			continue
		}

		lines, err := fn(ctx, crop)
		if err != nil {
			// Per-region soft failure: swallow and emit an empty result.
			results = append(results, types.EmptyOCRResult(region.ID))
			continue
		}
		results = append(results, types.NewOCRResult(region.ID, lines))
	}
	return results, nil
}
