package engine

import (
	"context"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/clerkops/formbench/internal/types"
)

const TesseractEngineName = "tesseract"

// TesseractEngine runs local OCR through the Tesseract C library. Line
// confidences are Tesseract's own, normalized from percent to [0, 1].
type TesseractEngine struct {
	clientFactory func() *gosseract.Client
	languages     []string
}

// TesseractConfig configures the Tesseract engine.
type TesseractConfig struct {
	// Languages are traineddata hints, e.g. "eng". Empty uses the default.
	Languages []string
}

// NewTesseractEngine creates a Tesseract-backed OCR engine.
func NewTesseractEngine(cfg TesseractConfig) *TesseractEngine {
	return &TesseractEngine{
		clientFactory: gosseract.NewClient,
		languages:     cfg.Languages,
	}
}

func (e *TesseractEngine) Name() string { return TesseractEngineName }

// Extract OCRs each region crop with a fresh client. gosseract clients are
// not safe to share, so per-region clients keep the adapter reentrant.
func (e *TesseractEngine) Extract(ctx context.Context, img image.Image, regions []types.Region) ([]types.OCRResult, error) {
	return extractByRegion(ctx, img, regions, e.recognize)
}

func (e *TesseractEngine) recognize(ctx context.Context, crop image.Image) ([]types.TextLine, error) {
	data, err := encodePNG(crop)
	if err != nil {
		return nil, err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(data); err != nil {
		return nil, err
	}
	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return nil, err
		}
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, err
	}

	lines := make([]types.TextLine, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		conf := b.Confidence / 100.0
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
		lines = append(lines, types.TextLine{
			Text:       text,
			Confidence: conf,
			BBoxInRegion: types.BBox{
				X1: b.Box.Min.X,
				Y1: b.Box.Min.Y,
				X2: b.Box.Max.X,
				Y2: b.Box.Max.Y,
			},
		})
	}
	return lines, nil
}

var _ Engine = (*TesseractEngine)(nil)
