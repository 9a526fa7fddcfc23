package registry

import (
	"strings"
	"testing"

	"github.com/clerkops/formbench/internal/engine"
	"github.com/clerkops/formbench/internal/layout"
)

func TestRegistry(t *testing.T) {
	r := New()
	r.RegisterEngine(&engine.MockEngine{EngineName: "tesseract"})
	r.RegisterEngine(&engine.MockEngine{EngineName: "mistral"})
	r.RegisterDetector(&layout.MockDetector{DetectorName: "projection"})

	t.Run("get registered engine", func(t *testing.T) {
		e, err := r.Engine("tesseract")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if e.Name() != "tesseract" {
			t.Errorf("got engine %q, want %q", e.Name(), "tesseract")
		}
	})

	t.Run("unknown engine error lists registered names", func(t *testing.T) {
		_, err := r.Engine("paddleocr")
		if err == nil {
			t.Fatal("expected error for unknown engine")
		}
		for _, name := range []string{"paddleocr", "mistral", "tesseract"} {
			if !strings.Contains(err.Error(), name) {
				t.Errorf("error %q should mention %q", err, name)
			}
		}
	})

	t.Run("unknown detector error lists registered names", func(t *testing.T) {
		_, err := r.Detector("yolo")
		if err == nil {
			t.Fatal("expected error for unknown detector")
		}
		if !strings.Contains(err.Error(), "projection") {
			t.Errorf("error %q should mention registered detector", err)
		}
	})

	t.Run("list is sorted", func(t *testing.T) {
		names := r.ListEngines()
		if len(names) != 2 || names[0] != "mistral" || names[1] != "tesseract" {
			t.Errorf("ListEngines() = %v, want [mistral tesseract]", names)
		}
	})

	t.Run("unregister", func(t *testing.T) {
		r.UnregisterEngine("mistral")
		if r.HasEngine("mistral") {
			t.Error("mistral should be unregistered")
		}
		if !r.HasEngine("tesseract") {
			t.Error("tesseract should still be registered")
		}
	})
}
