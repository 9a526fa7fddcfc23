// Package types provides shared types used across multiple packages.
// This package has no dependencies on other formbench packages to avoid import cycles.
package types

import (
	"strings"
	"time"
)

// BBox is a rectangle in image pixel coordinates with origin at the top-left.
// Invariant: X1 <= X2 and Y1 <= Y2.
type BBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns the bbox width in pixels.
func (b BBox) Width() int { return b.X2 - b.X1 }

// Height returns the bbox height in pixels.
func (b BBox) Height() int { return b.Y2 - b.Y1 }

// Valid reports whether the bbox satisfies the coordinate ordering invariant.
func (b BBox) Valid() bool { return b.X1 <= b.X2 && b.Y1 <= b.Y2 }

// Region is a detected structural region in a document image.
// IDs are assigned 1..N after detector-specific canonical sorting and are
// stable for identical input. Regions live only for the duration of a single
// pipeline run; they are folded into the result record, never persisted alone.
type Region struct {
	ID         int     `json:"id"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// TextLine is one line of recognized text within a region.
// The bbox is relative to the region crop, not the page.
type TextLine struct {
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence"`
	BBoxInRegion BBox    `json:"bbox_in_region"`
}

// OCRResult aggregates the recognized lines for one region.
// Invariant: FullText equals the space-joined concatenation of the line texts
// in emission order. Use NewOCRResult to preserve this.
type OCRResult struct {
	RegionID int        `json:"region_id"`
	FullText string     `json:"full_text"`
	Lines    []TextLine `json:"lines"`
}

// NewOCRResult builds an OCRResult whose FullText is derived from lines.
func NewOCRResult(regionID int, lines []TextLine) OCRResult {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return OCRResult{
		RegionID: regionID,
		FullText: strings.Join(texts, " "),
		Lines:    lines,
	}
}

// EmptyOCRResult returns the degraded result emitted when an engine fails on
// a single region. Text absence is not an error.
func EmptyOCRResult(regionID int) OCRResult {
	return OCRResult{RegionID: regionID, FullText: "", Lines: []TextLine{}}
}

// VerificationStatus tracks the human review state of an extracted field.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationVerified   VerificationStatus = "verified"
	VerificationCorrected  VerificationStatus = "corrected"
)

// ExtractedField binds an expected field value to the best-matching OCR
// candidate. Created by the matcher; mutated only by the verification
// workflow afterwards, never by the pipeline.
type ExtractedField struct {
	FieldName      string             `json:"field_name"`
	ExpectedValue  string             `json:"expected_value"`
	ExtractedValue string             `json:"extracted_value"`
	Confidence     float64            `json:"confidence"`
	MatchScore     float64            `json:"match_score"`
	IsImportant    bool               `json:"is_important"`
	Verification   VerificationStatus `json:"verification_status"`
	CorrectedValue string             `json:"corrected_value,omitempty"`
}

// FieldType selects the synthetic value pool for a field mapping.
type FieldType string

const (
	FieldNumericShort  FieldType = "numeric_short"
	FieldTextShort     FieldType = "text_short"
	FieldSentence      FieldType = "sentence"
	FieldFullName      FieldType = "full_name"
	FieldDayMonth      FieldType = "day_month"
	FieldTwoDigitYear  FieldType = "2_digit_year"
	FieldFourDigitYear FieldType = "4_digit_year"
)

// FieldMapping places one form field on a template at pixel coordinates.
type FieldMapping struct {
	Name      string    `json:"name"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	FontSize  int       `json:"font_size"`
	FontColor string    `json:"font_color"`
	FieldType FieldType `json:"field_type"`
}

// FormKind selects how batches are generated from a template.
type FormKind string

const (
	// FormEmpty templates are filled with synthetic values at the
	// mapped coordinates.
	FormEmpty FormKind = "empty"
	// FormHandwritten templates already carry content; batches are
	// skewed copies with no ground truth.
	FormHandwritten FormKind = "handwritten"
)

// Form is an uploaded court-form template.
type Form struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Kind          FormKind       `json:"form_type"`
	StoragePath   string         `json:"storage_path"`
	FieldMappings []FieldMapping `json:"field_mappings"`
	UploadedAt    time.Time      `json:"uploaded_at"`
}

// Document is a generated test document: an image at a blob-store path plus
// the ground-truth field values drawn onto it. FieldValues is empty for
// scan-only (full-text) documents. Immutable once generated.
type Document struct {
	ID          string            `json:"id"`
	StoragePath string            `json:"storage_path"`
	FieldValues map[string]string `json:"field_values"`
	IsSkewed    bool              `json:"is_skewed"`
}

// BatchKind selects the processing mode for a batch's documents.
type BatchKind string

const (
	// BatchSynthetic documents carry field mappings and run field-mapped mode.
	BatchSynthetic BatchKind = "synthetic"
	// BatchHandwritten documents have no coordinates and run full-text mode.
	BatchHandwritten BatchKind = "handwritten"
)

// Batch is a set of documents sharing one generation configuration,
// processed together under a test run.
type Batch struct {
	ID          string     `json:"id"`
	BatchNumber string     `json:"batch_number"`
	Kind        BatchKind  `json:"batch_type"`
	FormID      string     `json:"form_id"`
	FormName    string     `json:"form_name"`
	CreatedAt   time.Time  `json:"created_at"`
	Count       int        `json:"count"`
	SkewPreset  string     `json:"skew_preset,omitempty"`
	Documents   []Document `json:"documents"`
}

// RunStatus is the lifecycle state of a test run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// TestRun tracks one evaluation run over one or more batches.
type TestRun struct {
	ID            string     `json:"id"`
	BatchIDs      []string   `json:"batch_ids"`
	LayoutLibrary string     `json:"layout_library"`
	OCRLibrary    string     `json:"ocr_library"`
	Status        RunStatus  `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	TotalDocs     int        `json:"total_documents"`
	ProcessedDocs int        `json:"processed_documents"`
}

// LayoutLibraryNone marks runs that skip layout detection entirely.
// Full-text OCR runs use it both as the requested library and, via
// LayoutLibraryNoneLabel, in the recorded result.
const (
	LayoutLibraryNone      = "none"
	LayoutLibraryNoneLabel = LayoutLibraryNone + " (full-text OCR)"
)

// LayoutOutput is the layout half of a pipeline run result.
type LayoutOutput struct {
	Library    string   `json:"library"`
	NumRegions int      `json:"num_regions"`
	Regions    []Region `json:"regions"`
}

// TextRegion is a flat OCR line reported in full-text mode. The
// verification fields are blank until a reviewer marks the line.
type TextRegion struct {
	Text           string             `json:"text"`
	Confidence     float64            `json:"confidence"`
	IsImportant    bool               `json:"is_important,omitempty"`
	Verification   VerificationStatus `json:"verification_status,omitempty"`
	CorrectedValue string             `json:"corrected_value,omitempty"`
	UserAdded      bool               `json:"user_added,omitempty"`
}

// OCROutput is the OCR half of a pipeline run result.
// FullText and TextRegions are populated only in full-text mode.
type OCROutput struct {
	Library     string       `json:"library"`
	NumRegions  int          `json:"num_regions"`
	Regions     []OCRResult  `json:"regions"`
	FullText    string       `json:"full_text,omitempty"`
	TextRegions []TextRegion `json:"text_regions,omitempty"`
}

// PipelineRunResult is the per-document bundle produced by one pipeline run.
// OverallAccuracy may later be superseded by a verified accuracy computed
// by the verification workflow; the pipeline never revisits it.
type PipelineRunResult struct {
	ID              string           `json:"id"`
	TestRunID       string           `json:"test_run_id"`
	DocumentID      string           `json:"document_id"`
	BatchID         string           `json:"batch_id"`
	Layout          LayoutOutput     `json:"layout_results"`
	OCR             OCROutput        `json:"ocr_results"`
	ExtractedFields []ExtractedField `json:"extracted_fields"`
	OverallAccuracy float64          `json:"overall_accuracy"`
	CreatedAt       time.Time        `json:"created_at"`

	// Set by the verification workflow after a reviewer confirms or
	// corrects the extracted values.
	VerifiedAccuracy *float64   `json:"verified_accuracy,omitempty"`
	VerifiedAt       *time.Time `json:"verified_at,omitempty"`
}
