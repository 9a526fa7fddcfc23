package engine

import (
	"context"
	"image"

	"github.com/clerkops/formbench/internal/types"
)

// MockEngine is a test double that returns canned lines per region ID.
type MockEngine struct {
	EngineName string

	// LinesByRegion maps region ID to the lines to return for it. Regions
	// with no entry yield empty results.
	LinesByRegion map[int][]types.TextLine

	// Err, when set, is returned from every Extract call.
	Err error

	// Calls records the region slices passed to Extract.
	Calls [][]types.Region
}

func (m *MockEngine) Name() string {
	if m.EngineName == "" {
		return "mock"
	}
	return m.EngineName
}

func (m *MockEngine) Extract(ctx context.Context, _ image.Image, regions []types.Region) ([]types.OCRResult, error) {
	m.Calls = append(m.Calls, regions)
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]types.OCRResult, 0, len(regions))
	for _, r := range regions {
		lines, ok := m.LinesByRegion[r.ID]
		if !ok {
			results = append(results, types.EmptyOCRResult(r.ID))
			continue
		}
		results = append(results, types.NewOCRResult(r.ID, lines))
	}
	return results, nil
}

var _ Engine = (*MockEngine)(nil)
