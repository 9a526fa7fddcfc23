package config

// Config holds formbench configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Server    ServerCfg              `mapstructure:"server" yaml:"server"`
	Engines   map[string]EngineCfg   `mapstructure:"engines" yaml:"engines"`
	Detectors map[string]DetectorCfg `mapstructure:"detectors" yaml:"detectors"`
	Defaults  DefaultsCfg            `mapstructure:"defaults" yaml:"defaults"`
}

// ServerCfg configures the HTTP API server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// EngineCfg configures an OCR engine.
type EngineCfg struct {
	Type           string   `mapstructure:"type" yaml:"type"`                       // "tesseract", "mistral", "openai"
	Model          string   `mapstructure:"model" yaml:"model"`                     // Model name (remote engines)
	APIKey         string   `mapstructure:"api_key" yaml:"api_key"`                 // API key (supports ${ENV_VAR} syntax)
	Languages      []string `mapstructure:"languages" yaml:"languages"`             // Traineddata hints (tesseract)
	TimeoutSeconds int      `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // HTTP timeout (remote engines)
	MaxRetries     int      `mapstructure:"max_retries" yaml:"max_retries"`
	Enabled        bool     `mapstructure:"enabled" yaml:"enabled"`
}

// DetectorCfg configures a layout detector.
type DetectorCfg struct {
	Type    string `mapstructure:"type" yaml:"type"` // "projection", "tesseract"
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default adapter selections for new test runs.
type DefaultsCfg struct {
	LayoutLibrary string `mapstructure:"layout_library" yaml:"layout_library"`
	OCRLibrary    string `mapstructure:"ocr_library" yaml:"ocr_library"`
	SkewPreset    string `mapstructure:"skew_preset" yaml:"skew_preset"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Engines: map[string]EngineCfg{
			"tesseract": {
				Type:      "tesseract",
				Languages: []string{"eng"},
				Enabled:   true,
			},
			"mistral": {
				Type:           "mistral",
				APIKey:         "${MISTRAL_API_KEY}",
				TimeoutSeconds: 120,
				MaxRetries:     3,
				Enabled:        false,
			},
			"openai": {
				Type:           "openai",
				Model:          "gpt-4o",
				APIKey:         "${OPENAI_API_KEY}",
				TimeoutSeconds: 120,
				MaxRetries:     3,
				Enabled:        false,
			},
		},
		Detectors: map[string]DetectorCfg{
			"projection": {
				Type:    "projection",
				Enabled: true,
			},
			"tesseract": {
				Type:    "tesseract",
				Enabled: true,
			},
		},
		Defaults: DefaultsCfg{
			LayoutLibrary: "projection",
			OCRLibrary:    "tesseract",
			SkewPreset:    "medium",
		},
	}
}

// GetEngine returns an engine config by name.
func (c *Config) GetEngine(name string) (EngineCfg, bool) {
	cfg, ok := c.Engines[name]
	return cfg, ok
}

// GetDetector returns a detector config by name.
func (c *Config) GetDetector(name string) (DetectorCfg, bool) {
	cfg, ok := c.Detectors[name]
	return cfg, ok
}

// EnabledEngines returns all enabled OCR engines.
func (c *Config) EnabledEngines() map[string]EngineCfg {
	result := make(map[string]EngineCfg)
	for name, cfg := range c.Engines {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// EnabledDetectors returns all enabled layout detectors.
func (c *Config) EnabledDetectors() map[string]DetectorCfg {
	result := make(map[string]DetectorCfg)
	for name, cfg := range c.Detectors {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
