package synth

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math/rand"
	"strings"
	"testing"

	"github.com/clerkops/formbench/internal/types"
)

type memStorage struct {
	blobs map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{blobs: make(map[string][]byte)}
}

func (m *memStorage) Get(_ context.Context, path string) ([]byte, error) {
	data, ok := m.blobs[path]
	if !ok {
		return nil, fmt.Errorf("blob not found: %s", path)
	}
	return data, nil
}

func (m *memStorage) Put(_ context.Context, path string, data []byte) (string, error) {
	m.blobs[path] = data
	return path, nil
}

func templatePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode template: %v", err)
	}
	return buf.Bytes()
}

func contains(pool []string, value string) bool {
	for _, v := range pool {
		if v == value {
			return true
		}
	}
	return false
}

func TestSyntheticValue(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	t.Run("custom options win over field type", func(t *testing.T) {
		v := syntheticValue(rng, "case_number", types.FieldFullName, []string{"CUSTOM-1", "CUSTOM-2"})
		if v != "CUSTOM-1" && v != "CUSTOM-2" {
			t.Errorf("got %q, want a custom option", v)
		}
	})

	t.Run("field type pool", func(t *testing.T) {
		v := syntheticValue(rng, "anything", types.FieldFourDigitYear, nil)
		if !contains(fieldTypeData[types.FieldFourDigitYear], v) {
			t.Errorf("got %q, want a 4_digit_year value", v)
		}
	})

	t.Run("legacy name substring fallback", func(t *testing.T) {
		v := syntheticValue(rng, "Primary_Case_Number_Field", "", nil)
		if !strings.Contains(v, "-") {
			t.Errorf("got %q, want a case number", v)
		}
	})

	t.Run("default pool", func(t *testing.T) {
		v := syntheticValue(rng, "mystery_field", "", nil)
		if !contains(defaultPool, v) {
			t.Errorf("got %q, want a default pool value", v)
		}
	})
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"#000000", color.RGBA{0, 0, 0, 255}},
		{"#1A2B3C", color.RGBA{0x1A, 0x2B, 0x3C, 255}},
		{"ff0000", color.RGBA{255, 0, 0, 255}},
	}
	for _, tt := range tests {
		r, g, b, _ := parseHexColor(tt.in).RGBA()
		wr, wg, wb, _ := tt.want.RGBA()
		if r != wr || g != wg || b != wb {
			t.Errorf("parseHexColor(%q) = (%d,%d,%d), want (%d,%d,%d)", tt.in, r>>8, g>>8, b>>8, wr>>8, wg>>8, wb>>8)
		}
	}

	r, g, b, _ := parseHexColor("not-a-color").RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("malformed color should fall back to black, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestFilledForm(t *testing.T) {
	storage := newMemStorage()
	gen := NewSeededGenerator(storage, slog.Default(), 42)
	template := templatePNG(t, 400, 200)
	mappings := []types.FieldMapping{
		{Name: "defendant_name", X: 20, Y: 30, FontSize: 16, FontColor: "#000000", FieldType: types.FieldFullName},
		{Name: "case_number", X: 20, Y: 80, FontSize: 14, FontColor: "#1A1A1A"},
	}

	data, values, err := gen.FilledForm(context.Background(), template, mappings, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not valid PNG: %v", err)
	}
	if img.Bounds().Dx() != 400 || img.Bounds().Dy() != 200 {
		t.Errorf("output size = %dx%d, want 400x200", img.Bounds().Dx(), img.Bounds().Dy())
	}

	if len(values) != 2 {
		t.Fatalf("recorded %d field values, want 2", len(values))
	}
	if !contains(fieldTypeData[types.FieldFullName], values["defendant_name"]) {
		t.Errorf("defendant_name = %q, want a full_name pool value", values["defendant_name"])
	}
	if values["case_number"] == "" {
		t.Error("case_number should have a value")
	}

	// At least some pixels must differ from the blank template.
	changed := false
	for y := 0; y < 200 && !changed; y++ {
		for x := 0; x < 400; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r != 0xffff || g != 0xffff || b != 0xffff {
				changed = true
				break
			}
		}
	}
	if !changed {
		t.Error("filled form should differ from the blank template")
	}
}

func TestGenerateBatch(t *testing.T) {
	storage := newMemStorage()
	storage.blobs["forms/f1.png"] = templatePNG(t, 300, 150)
	gen := NewSeededGenerator(storage, slog.Default(), 7)

	form := types.Form{
		ID:          "f1",
		StoragePath: "forms/f1.png",
		FieldMappings: []types.FieldMapping{
			{Name: "plaintiff_name", X: 10, Y: 20, FontSize: 12, FontColor: "#000000", FieldType: types.FieldFullName},
		},
	}

	t.Run("plain batch", func(t *testing.T) {
		docs, batchID, err := gen.GenerateBatch(context.Background(), form, 3, nil, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if batchID == "" {
			t.Error("batch id should be set")
		}
		if len(docs) != 3 {
			t.Fatalf("got %d documents, want 3", len(docs))
		}
		prefix := "batches/" + batchID + "/"
		for _, d := range docs {
			if !strings.HasPrefix(d.StoragePath, prefix) {
				t.Errorf("document path %q should start with %q", d.StoragePath, prefix)
			}
			if d.IsSkewed {
				t.Error("document should not be marked skewed")
			}
			if _, ok := storage.blobs[d.StoragePath]; !ok {
				t.Errorf("document %s not written to storage", d.ID)
			}
			if len(d.FieldValues) != 1 {
				t.Errorf("document %s has %d field values, want 1", d.ID, len(d.FieldValues))
			}
		}
	})

	t.Run("skewed batch", func(t *testing.T) {
		docs, _, err := gen.GenerateBatch(context.Background(), form, 2, nil, "heavy")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, d := range docs {
			if !d.IsSkewed {
				t.Error("document should be marked skewed")
			}
			img, err := png.Decode(bytes.NewReader(storage.blobs[d.StoragePath]))
			if err != nil {
				t.Fatalf("skewed output is not valid PNG: %v", err)
			}
			if img.Bounds().Dx() != 300 || img.Bounds().Dy() != 150 {
				t.Errorf("skewed size = %dx%d, want 300x150", img.Bounds().Dx(), img.Bounds().Dy())
			}
		}
	})

	t.Run("custom value options", func(t *testing.T) {
		docs, _, err := gen.GenerateBatch(context.Background(), form, 1, map[string][]string{
			"plaintiff_name": {"State of Texas"},
		}, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if docs[0].FieldValues["plaintiff_name"] != "State of Texas" {
			t.Errorf("got %q, want the custom option", docs[0].FieldValues["plaintiff_name"])
		}
	})
}

func TestGenerateHandwrittenBatch(t *testing.T) {
	storage := newMemStorage()
	storage.blobs["forms/hw.png"] = templatePNG(t, 200, 120)
	gen := NewSeededGenerator(storage, slog.Default(), 11)

	form := types.Form{
		ID:          "hw",
		Kind:        types.FormHandwritten,
		StoragePath: "forms/hw.png",
	}

	docs, batchID, err := gen.GenerateHandwrittenBatch(context.Background(), form, 2, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	prefix := "batches/" + batchID + "/"
	for _, d := range docs {
		if !strings.HasPrefix(d.StoragePath, prefix) {
			t.Errorf("document path %q should start with %q", d.StoragePath, prefix)
		}
		if !d.IsSkewed {
			t.Error("handwritten copies are always skewed")
		}
		if len(d.FieldValues) != 0 {
			t.Errorf("handwritten document should have no ground truth, got %v", d.FieldValues)
		}
		if _, err := png.Decode(bytes.NewReader(storage.blobs[d.StoragePath])); err != nil {
			t.Fatalf("skewed output is not valid PNG: %v", err)
		}
	}
}

func TestIsPDF(t *testing.T) {
	if !isPDF([]byte("%PDF-1.7\n...")) {
		t.Error("PDF magic should be detected")
	}
	if isPDF([]byte("\x89PNG\r\n")) {
		t.Error("PNG should not be detected as PDF")
	}
	if isPDF([]byte("%PD")) {
		t.Error("short data should not be detected as PDF")
	}
}
