package registry

import (
	"testing"
)

func TestNewFromConfig(t *testing.T) {
	reg := NewFromConfig(ReloadConfig{
		Engines: map[string]EngineConfig{
			"tesseract": {Type: "tesseract", Enabled: true},
			"mistral":   {Type: "mistral", Enabled: true, APIKey: "sk-test"},
			"openai":    {Type: "openai", Enabled: true}, // no API key
			"disabled":  {Type: "tesseract", Enabled: false},
		},
		Detectors: map[string]DetectorConfig{
			"projection": {Type: "projection", Enabled: true},
			"tesseract":  {Type: "tesseract", Enabled: false},
		},
	})

	wantEngines := []string{"mistral", "tesseract"}
	if got := reg.ListEngines(); len(got) != len(wantEngines) {
		t.Fatalf("engines = %v, want %v", got, wantEngines)
	}
	if reg.HasEngine("openai") {
		t.Error("remote engine without API key was registered")
	}
	if reg.HasEngine("disabled") {
		t.Error("disabled engine was registered")
	}

	if !reg.HasDetector("projection") {
		t.Error("projection detector not registered")
	}
	if reg.HasDetector("tesseract") {
		t.Error("disabled detector was registered")
	}
}

func TestReload(t *testing.T) {
	reg := NewFromConfig(ReloadConfig{
		Engines: map[string]EngineConfig{
			"tesseract": {Type: "tesseract", Enabled: true},
			"mistral":   {Type: "mistral", Enabled: true, APIKey: "sk-test"},
		},
		Detectors: map[string]DetectorConfig{
			"projection": {Type: "projection", Enabled: true},
		},
	})

	// Drop mistral, add the tesseract detector.
	reg.Reload(ReloadConfig{
		Engines: map[string]EngineConfig{
			"tesseract": {Type: "tesseract", Enabled: true},
		},
		Detectors: map[string]DetectorConfig{
			"projection": {Type: "projection", Enabled: true},
			"tesseract":  {Type: "tesseract", Enabled: true},
		},
	})

	if reg.HasEngine("mistral") {
		t.Error("unregistered engine still present after reload")
	}
	if !reg.HasEngine("tesseract") {
		t.Error("tesseract engine missing after reload")
	}
	if !reg.HasDetector("tesseract") {
		t.Error("tesseract detector missing after reload")
	}

	t.Run("engine loses API key", func(t *testing.T) {
		reg.Reload(ReloadConfig{
			Engines: map[string]EngineConfig{
				"tesseract": {Type: "tesseract", Enabled: true},
				"mistral":   {Type: "mistral", Enabled: true},
			},
		})
		if reg.HasEngine("mistral") {
			t.Error("keyless remote engine registered on reload")
		}
		if reg.HasDetector("projection") || reg.HasDetector("tesseract") {
			t.Error("detectors absent from config survived reload")
		}
	})
}
