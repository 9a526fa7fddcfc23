package layout

import (
	"context"
	"image"

	"github.com/clerkops/formbench/internal/types"
)

// MockDetector is a configurable detector for tests.
type MockDetector struct {
	// DetectorName overrides the reported name (default "mock").
	DetectorName string

	// Regions is returned from Detect when Err is nil. IDs are reassigned
	// 1..N in slice order so fixtures don't need to maintain them.
	Regions []types.Region

	// Err, if set, is returned from every Detect call.
	Err error

	// Calls counts Detect invocations.
	Calls int
}

// NewMockDetector creates a mock returning the given regions.
func NewMockDetector(regions ...types.Region) *MockDetector {
	return &MockDetector{Regions: regions}
}

func (m *MockDetector) Name() string {
	if m.DetectorName != "" {
		return m.DetectorName
	}
	return "mock"
}

func (m *MockDetector) Detect(ctx context.Context, img image.Image) ([]types.Region, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]types.Region, len(m.Regions))
	copy(out, m.Regions)
	for i := range out {
		out[i].ID = i + 1
	}
	return out, nil
}

var _ Detector = (*MockDetector)(nil)
