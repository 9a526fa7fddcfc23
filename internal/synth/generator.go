// Package synth generates filled court-form documents by overlaying
// synthetic field values on a form template.
package synth

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/clerkops/formbench/internal/scansim"
	"github.com/clerkops/formbench/internal/types"
)

// Storage is the blob backend documents are read from and written to.
type Storage interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Put(ctx context.Context, path string, data []byte) (string, error)
}

// Generator fills form templates with synthetic values and stores the
// results as a batch.
type Generator struct {
	storage Storage
	sim     *scansim.Simulator
	rng     *rand.Rand
	logger  *slog.Logger
}

// NewGenerator creates a synthetic document generator.
func NewGenerator(storage Storage, logger *slog.Logger) *Generator {
	return &Generator{
		storage: storage,
		sim:     scansim.New(),
		rng:     rand.New(rand.NewSource(rand.Int63())),
		logger:  logger.With("component", "synth"),
	}
}

// NewSeededGenerator creates a generator with deterministic value picks
// and scan effects. Used by tests.
func NewSeededGenerator(storage Storage, logger *slog.Logger, seed int64) *Generator {
	return &Generator{
		storage: storage,
		sim:     scansim.NewSeeded(seed),
		rng:     rand.New(rand.NewSource(seed)),
		logger:  logger.With("component", "synth"),
	}
}

// FilledForm renders one filled document from a template. It returns the
// PNG bytes and the ground-truth value written into each mapped field.
// Templates may be PNG, JPEG, or PDF (first page, rasterized).
func (g *Generator) FilledForm(ctx context.Context, template []byte, mappings []types.FieldMapping, options map[string][]string) ([]byte, map[string]string, error) {
	base, err := loadTemplate(ctx, template)
	if err != nil {
		return nil, nil, err
	}

	canvas := image.NewRGBA(base.Bounds())
	draw.Draw(canvas, canvas.Bounds(), base, base.Bounds().Min, draw.Src)

	fieldValues := make(map[string]string, len(mappings))
	for _, m := range mappings {
		value := syntheticValue(g.rng, m.Name, m.FieldType, options[m.Name])
		fieldValues[m.Name] = value

		face, err := fontFace(m.FontSize)
		if err != nil {
			return nil, nil, fmt.Errorf("font for field %s: %w", m.Name, err)
		}
		drawText(canvas, face, value, m.X, m.Y, parseHexColor(m.FontColor))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, nil, fmt.Errorf("encode filled form: %w", err)
	}
	return buf.Bytes(), fieldValues, nil
}

// GenerateBatch produces count filled documents from the form's template
// and writes each to storage under the new batch's prefix. A non-empty
// skewPreset runs every document through the scan simulator, and the
// returned documents are marked skewed.
func (g *Generator) GenerateBatch(ctx context.Context, form types.Form, count int, options map[string][]string, skewPreset string) ([]types.Document, string, error) {
	template, err := g.storage.Get(ctx, form.StoragePath)
	if err != nil {
		return nil, "", fmt.Errorf("load form template: %w", err)
	}

	batchID := uuid.NewString()
	documents := make([]types.Document, 0, count)

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		docID := uuid.NewString()

		data, fieldValues, err := g.FilledForm(ctx, template, form.FieldMappings, options)
		if err != nil {
			return nil, "", fmt.Errorf("generate document %d: %w", i+1, err)
		}

		if skewPreset != "" {
			data, err = g.sim.SkewedCopy(data, skewPreset)
			if err != nil {
				return nil, "", fmt.Errorf("skew document %d: %w", i+1, err)
			}
		}

		path, err := g.storage.Put(ctx, fmt.Sprintf("batches/%s/%s.png", batchID, docID), data)
		if err != nil {
			return nil, "", fmt.Errorf("store document %d: %w", i+1, err)
		}

		documents = append(documents, types.Document{
			ID:          docID,
			StoragePath: path,
			FieldValues: fieldValues,
			IsSkewed:    skewPreset != "",
		})
	}

	g.logger.Info("generated synthetic batch",
		"batch_id", batchID, "form_id", form.ID, "count", count, "skew_preset", skewPreset)
	return documents, batchID, nil
}

// GenerateHandwrittenBatch produces count skewed copies of a handwritten
// template. The template already carries its content, so no values are
// drawn and the documents have no ground truth. An empty skewPreset
// defaults to "medium".
func (g *Generator) GenerateHandwrittenBatch(ctx context.Context, form types.Form, count int, skewPreset string) ([]types.Document, string, error) {
	template, err := g.storage.Get(ctx, form.StoragePath)
	if err != nil {
		return nil, "", fmt.Errorf("load form template: %w", err)
	}

	base, err := loadTemplate(ctx, template)
	if err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, base); err != nil {
		return nil, "", fmt.Errorf("encode template: %w", err)
	}
	baseData := buf.Bytes()

	if skewPreset == "" {
		skewPreset = "medium"
	}

	batchID := uuid.NewString()
	documents := make([]types.Document, 0, count)

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		docID := uuid.NewString()

		data, err := g.sim.SkewedCopy(baseData, skewPreset)
		if err != nil {
			return nil, "", fmt.Errorf("skew document %d: %w", i+1, err)
		}

		path, err := g.storage.Put(ctx, fmt.Sprintf("batches/%s/%s.png", batchID, docID), data)
		if err != nil {
			return nil, "", fmt.Errorf("store document %d: %w", i+1, err)
		}

		documents = append(documents, types.Document{
			ID:          docID,
			StoragePath: path,
			FieldValues: map[string]string{},
			IsSkewed:    true,
		})
	}

	g.logger.Info("generated handwritten batch",
		"batch_id", batchID, "form_id", form.ID, "count", count, "skew_preset", skewPreset)
	return documents, batchID, nil
}

var (
	regularFont     *opentype.Font
	regularFontErr  error
	regularFontOnce sync.Once
)

// fontFace builds a face at the mapping's point size from the bundled Go
// Regular font, so rendering never depends on host-installed fonts.
func fontFace(size int) (font.Face, error) {
	regularFontOnce.Do(func() {
		regularFont, regularFontErr = opentype.Parse(goregular.TTF)
	})
	if regularFontErr != nil {
		return nil, regularFontErr
	}
	if size <= 0 {
		size = 12
	}
	return opentype.NewFace(regularFont, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// drawText draws value with (x, y) as the top-left corner of the text box.
func drawText(dst *image.RGBA, face font.Face, value string, x, y int, c color.Color) {
	metrics := face.Metrics()
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+metrics.Ascent.Ceil()),
	}
	d.DrawString(value)
}

// parseHexColor parses "#RRGGBB". Malformed values fall back to black,
// matching a sensible ink default for form text.
func parseHexColor(s string) color.Color {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return color.Black
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.Black
	}
	return color.RGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 255,
	}
}
