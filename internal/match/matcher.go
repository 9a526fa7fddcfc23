package match

import (
	"sort"
	"strings"

	"github.com/clerkops/formbench/internal/types"
)

// Fields finds, for each expected field, the OCR candidate that best explains
// it. Every (field, OCR result) pair is scored case-insensitively against
// each individual line and against the result's full text; the single
// highest-scoring candidate across all regions and both granularities wins.
// Exact score ties keep the first candidate encountered, so output is
// deterministic for a fixed region and line enumeration order.
//
// A field with no OCR text anywhere keeps an empty extracted value and a 0.0
// score. Every produced field starts important and unverified.
//
// Expected fields are visited in sorted name order so results are stable
// regardless of map iteration.
func Fields(expected map[string]string, results []types.OCRResult) []types.ExtractedField {
	names := make([]string, 0, len(expected))
	for name := range expected {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]types.ExtractedField, 0, len(names))
	for _, name := range names {
		fields = append(fields, matchOne(name, expected[name], results))
	}
	return fields
}

func matchOne(name, expectedValue string, results []types.OCRResult) types.ExtractedField {
	want := strings.ToLower(expectedValue)

	var (
		bestText  string
		bestScore float64
		bestConf  float64
	)

	for _, res := range results {
		for _, line := range res.Lines {
			score := Similarity(want, strings.ToLower(line.Text))
			if score > bestScore {
				bestScore = score
				bestText = line.Text
				bestConf = line.Confidence
			}
		}

		score := Similarity(want, strings.ToLower(res.FullText))
		if score > bestScore {
			bestScore = score
			bestText = res.FullText
			bestConf = meanLineConfidence(res.Lines)
		}
	}

	return types.ExtractedField{
		FieldName:      name,
		ExpectedValue:  expectedValue,
		ExtractedValue: bestText,
		Confidence:     bestConf,
		MatchScore:     bestScore,
		IsImportant:    true,
		Verification:   types.VerificationUnverified,
	}
}

func meanLineConfidence(lines []types.TextLine) float64 {
	if len(lines) == 0 {
		return 0
	}
	var sum float64
	for _, l := range lines {
		sum += l.Confidence
	}
	return sum / float64(len(lines))
}

// DocumentAccuracy is the mean match score over fields flagged important.
// Legacy data with no important flags falls back to the mean over all fields;
// no fields at all (full-text mode) is defined as 0.0 pending verification.
func DocumentAccuracy(fields []types.ExtractedField) float64 {
	if len(fields) == 0 {
		return 0.0
	}

	important := fields[:0:0]
	for _, f := range fields {
		if f.IsImportant {
			important = append(important, f)
		}
	}
	if len(important) == 0 {
		important = fields
	}

	var total float64
	for _, f := range important {
		total += f.MatchScore
	}
	return total / float64(len(important))
}
