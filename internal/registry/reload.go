package registry

import (
	"time"

	"github.com/clerkops/formbench/internal/engine"
	"github.com/clerkops/formbench/internal/layout"
)

// ReloadConfig defines the adapters to instantiate from config.
// This mirrors the config.Config structure for adapter setup.
type ReloadConfig struct {
	// Engines maps engine names to their config
	Engines map[string]EngineConfig

	// Detectors maps detector names to their config
	Detectors map[string]DetectorConfig
}

// EngineConfig matches config.EngineCfg with resolved API key.
type EngineConfig struct {
	Type       string // "tesseract", "mistral", "openai"
	Model      string // Model name (for remote engines)
	APIKey     string // Resolved API key (for remote engines)
	Languages  []string
	Timeout    time.Duration
	MaxRetries int
	Enabled    bool
}

// DetectorConfig matches config.DetectorCfg.
type DetectorConfig struct {
	Type    string // "projection", "tesseract"
	Enabled bool
}

// NewFromConfig creates a registry with adapters based on configuration.
// Only enabled adapters are registered; remote engines additionally need
// a resolved API key.
func NewFromConfig(cfg ReloadConfig) *Registry {
	r := New()
	r.applyConfig(cfg)
	return r
}

// Reload updates the registry based on new configuration. Adapters that
// are no longer configured are unregistered; adapters with changed
// settings are rebuilt. In-flight extractions keep the instance they
// looked up, so a reload never interrupts a running test.
func (r *Registry) Reload(cfg ReloadConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wantEngines := make(map[string]bool)
	wantDetectors := make(map[string]bool)

	for name, engCfg := range cfg.Engines {
		if !engineUsable(engCfg) {
			continue
		}
		wantEngines[name] = true

		_, hasExisting := r.engines[name]
		e := createEngine(engCfg)
		if e == nil {
			continue
		}
		r.engines[name] = e
		if r.logger != nil {
			if hasExisting {
				r.logger.Info("updated OCR engine", "name", name, "type", engCfg.Type)
			} else {
				r.logger.Info("registered OCR engine", "name", name, "type", engCfg.Type)
			}
		}
	}

	for name, detCfg := range cfg.Detectors {
		if !detCfg.Enabled {
			continue
		}
		wantDetectors[name] = true

		if _, hasExisting := r.detectors[name]; hasExisting {
			continue
		}
		d := createDetector(detCfg)
		if d == nil {
			continue
		}
		r.detectors[name] = d
		if r.logger != nil {
			r.logger.Info("registered layout detector", "name", name, "type", detCfg.Type)
		}
	}

	for name := range r.engines {
		if !wantEngines[name] {
			delete(r.engines, name)
			if r.logger != nil {
				r.logger.Info("unregistered OCR engine", "name", name)
			}
		}
	}
	for name := range r.detectors {
		if !wantDetectors[name] {
			delete(r.detectors, name)
			if r.logger != nil {
				r.logger.Info("unregistered layout detector", "name", name)
			}
		}
	}
}

// applyConfig applies configuration without locking (used during init).
func (r *Registry) applyConfig(cfg ReloadConfig) {
	for name, engCfg := range cfg.Engines {
		if !engineUsable(engCfg) {
			continue
		}
		if e := createEngine(engCfg); e != nil {
			r.engines[name] = e
		}
	}
	for name, detCfg := range cfg.Detectors {
		if !detCfg.Enabled {
			continue
		}
		if d := createDetector(detCfg); d != nil {
			r.detectors[name] = d
		}
	}
}

// engineUsable reports whether an engine config can produce a working
// adapter. Tesseract runs locally; the remote engines need an API key.
func engineUsable(cfg EngineConfig) bool {
	if !cfg.Enabled {
		return false
	}
	if cfg.Type == "tesseract" {
		return true
	}
	return cfg.APIKey != ""
}

// createEngine creates an OCR engine based on adapter type.
func createEngine(cfg EngineConfig) engine.Engine {
	switch cfg.Type {
	case "tesseract":
		return engine.NewTesseractEngine(engine.TesseractConfig{
			Languages: cfg.Languages,
		})
	case "mistral":
		return engine.NewMistralEngine(engine.MistralConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			MaxRetries: uint(cfg.MaxRetries),
		})
	case "openai":
		return engine.NewOpenAIEngine(engine.OpenAIConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		})
	default:
		return nil
	}
}

// createDetector creates a layout detector based on adapter type.
func createDetector(cfg DetectorConfig) layout.Detector {
	switch cfg.Type {
	case "projection":
		return layout.NewProjectionDetector()
	case "tesseract":
		return layout.NewTesseractDetector()
	default:
		return nil
	}
}
