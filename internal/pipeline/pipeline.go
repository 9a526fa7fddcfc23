// Package pipeline orchestrates layout detection, OCR extraction, and
// field matching over generated document batches.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clerkops/formbench/internal/layout"
	"github.com/clerkops/formbench/internal/match"
	"github.com/clerkops/formbench/internal/registry"
	"github.com/clerkops/formbench/internal/types"
)

// BlobStore reads document images for processing.
type BlobStore interface {
	Get(ctx context.Context, path string) ([]byte, error)
}

// ResultSink persists one per-document result. ProcessBatch persists each
// result before reporting its progress, so a completed progress count never
// runs ahead of the stored results.
type ResultSink interface {
	CreateResult(ctx context.Context, result *types.PipelineRunResult) error
}

// ProgressFunc is called after each document is processed and persisted,
// with the number processed so far and the batch total.
type ProgressFunc func(processed, total int)

// DocumentResult is the in-memory outcome of processing one document.
type DocumentResult struct {
	DocumentID      string
	Layout          types.LayoutOutput
	OCR             types.OCROutput
	ExtractedFields []types.ExtractedField
	OverallAccuracy float64
}

// Pipeline runs documents through a layout detector and an OCR engine and
// scores the extracted text against ground truth.
type Pipeline struct {
	blobs    BlobStore
	registry *registry.Registry
	logger   *slog.Logger
}

// New creates a pipeline over the given blob store and adapter registry.
func New(blobs BlobStore, reg *registry.Registry, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		blobs:    blobs,
		registry: reg,
		logger:   logger.With("component", "pipeline"),
	}
}

// ProcessDocument runs one document through field-mapped mode: layout
// detection, per-region OCR, then fuzzy matching against the document's
// ground-truth field values.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc types.Document, layoutLib, ocrLib string) (*DocumentResult, error) {
	img, err := p.loadImage(ctx, doc)
	if err != nil {
		return nil, err
	}

	detector, err := p.registry.Detector(layoutLib)
	if err != nil {
		return nil, err
	}
	engine, err := p.registry.Engine(ocrLib)
	if err != nil {
		return nil, err
	}

	regions, err := detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("layout detection (%s) on document %s: %w", layoutLib, doc.ID, err)
	}

	ocrResults, err := engine.Extract(ctx, img, regions)
	if err != nil {
		return nil, fmt.Errorf("OCR (%s) on document %s: %w", ocrLib, doc.ID, err)
	}

	fields := match.Fields(doc.FieldValues, ocrResults)

	return &DocumentResult{
		DocumentID: doc.ID,
		Layout: types.LayoutOutput{
			Library:    layoutLib,
			NumRegions: len(regions),
			Regions:    regions,
		},
		OCR: types.OCROutput{
			Library:    ocrLib,
			NumRegions: len(ocrResults),
			Regions:    ocrResults,
		},
		ExtractedFields: fields,
		OverallAccuracy: match.DocumentAccuracy(fields),
	}, nil
}

// ProcessDocumentFullText runs one document through full-text mode: the
// whole page is OCRed as a single region with no layout detection and no
// field matching. Used for handwritten batches, where documents carry no
// ground truth.
func (p *Pipeline) ProcessDocumentFullText(ctx context.Context, doc types.Document, ocrLib string) (*DocumentResult, error) {
	img, err := p.loadImage(ctx, doc)
	if err != nil {
		return nil, err
	}

	engine, err := p.registry.Engine(ocrLib)
	if err != nil {
		return nil, err
	}

	regions := []types.Region{layout.FullPageRegion(img)}
	ocrResults, err := engine.Extract(ctx, img, regions)
	if err != nil {
		return nil, fmt.Errorf("OCR (%s) on document %s: %w", ocrLib, doc.ID, err)
	}

	fullParts := make([]string, 0, len(ocrResults))
	var textRegions []types.TextRegion
	for _, r := range ocrResults {
		fullParts = append(fullParts, r.FullText)
		for _, line := range r.Lines {
			textRegions = append(textRegions, types.TextRegion{
				Text:         line.Text,
				Confidence:   line.Confidence,
				Verification: types.VerificationUnverified,
			})
		}
	}

	return &DocumentResult{
		DocumentID: doc.ID,
		Layout: types.LayoutOutput{
			Library:    types.LayoutLibraryNoneLabel,
			NumRegions: 0,
			Regions:    []types.Region{},
		},
		OCR: types.OCROutput{
			Library:     ocrLib,
			NumRegions:  len(ocrResults),
			Regions:     ocrResults,
			FullText:    strings.Join(fullParts, " "),
			TextRegions: textRegions,
		},
		ExtractedFields: []types.ExtractedField{},
		OverallAccuracy: 0.0,
	}, nil
}

// ProcessBatch runs every document in the batch sequentially, persisting
// each result as it completes. Handwritten batches run full-text mode;
// synthetic batches run field-mapped mode. The first document failure
// aborts the batch: a partial run is still diagnosable from the persisted
// results, and continuing against a dead engine would burn API quota for
// nothing.
func (p *Pipeline) ProcessBatch(ctx context.Context, batch *types.Batch, layoutLib, ocrLib, testRunID string, sink ResultSink, progress ProgressFunc) ([]DocumentResult, error) {
	results := make([]DocumentResult, 0, len(batch.Documents))

	for i, doc := range batch.Documents {
		var (
			res *DocumentResult
			err error
		)
		if batch.Kind == types.BatchHandwritten {
			res, err = p.ProcessDocumentFullText(ctx, doc, ocrLib)
		} else {
			res, err = p.ProcessDocument(ctx, doc, layoutLib, ocrLib)
		}
		if err != nil {
			return results, err
		}

		record := &types.PipelineRunResult{
			ID:              uuid.NewString(),
			TestRunID:       testRunID,
			DocumentID:      doc.ID,
			BatchID:         batch.ID,
			Layout:          res.Layout,
			OCR:             res.OCR,
			ExtractedFields: res.ExtractedFields,
			OverallAccuracy: res.OverallAccuracy,
			CreatedAt:       time.Now().UTC(),
		}
		if err := sink.CreateResult(ctx, record); err != nil {
			return results, fmt.Errorf("persist result for document %s: %w", doc.ID, err)
		}

		results = append(results, *res)
		if progress != nil {
			progress(i+1, len(batch.Documents))
		}
	}

	return results, nil
}

func (p *Pipeline) loadImage(ctx context.Context, doc types.Document) (image.Image, error) {
	data, err := p.blobs.Get(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", doc.ID, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return img, nil
}
