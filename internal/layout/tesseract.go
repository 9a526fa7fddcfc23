package layout

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"github.com/clerkops/formbench/internal/types"
)

const TesseractDetectorName = "tesseract"

// TesseractDetector finds text blocks using Tesseract's page segmentation.
// Regions are sorted top-to-bottom/left-to-right.
type TesseractDetector struct {
	clientFactory func() *gosseract.Client
}

// NewTesseractDetector creates a Tesseract-backed layout detector.
func NewTesseractDetector() *TesseractDetector {
	return &TesseractDetector{clientFactory: gosseract.NewClient}
}

func (d *TesseractDetector) Name() string { return TesseractDetectorName }

// Detect runs block-level segmentation on the image.
func (d *TesseractDetector) Detect(ctx context.Context, img image.Image) ([]types.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	c := d.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_BLOCK)
	if err != nil {
		return nil, fmt.Errorf("segment blocks: %w", err)
	}

	regions := make([]types.Region, 0, len(boxes))
	for _, b := range boxes {
		conf := b.Confidence / 100.0
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
		regions = append(regions, types.Region{
			Type:       "text",
			Confidence: conf,
			BBox: types.BBox{
				X1: b.Box.Min.X,
				Y1: b.Box.Min.Y,
				X2: b.Box.Max.X,
				Y2: b.Box.Max.Y,
			},
		})
	}

	return sortReadingOrder(regions), nil
}

var _ Detector = (*TesseractDetector)(nil)
