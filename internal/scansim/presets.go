// Package scansim degrades clean document images into plausible scanned
// copies for OCR robustness testing. The effect chain is fixed; presets only
// change its parameters.
package scansim

import "image/color"

// Preset fixes the degradation parameters for one intensity level.
type Preset struct {
	Name string

	// RotationRange is the maximum skew angle in degrees; the applied angle
	// is sampled uniformly from [-RotationRange, RotationRange].
	RotationRange float64

	// NoiseStdDev is the standard deviation of the zero-mean Gaussian pixel
	// noise, in 8-bit channel units.
	NoiseStdDev float64

	// MaxBlurRadius is the ceiling for the uniformly sampled blur radius.
	MaxBlurRadius float64

	// BrightnessMin/Max bound the uniformly sampled brightness factor.
	BrightnessMin, BrightnessMax float64

	// ContrastMin/Max bound the uniformly sampled contrast factor.
	ContrastMin, ContrastMax float64

	// PaperTone is blended over the page at low alpha to mimic paper stock.
	PaperTone color.RGBA
}

const (
	PresetLight  = "light"
	PresetMedium = "medium"
	PresetHeavy  = "heavy"
)

var presets = map[string]Preset{
	PresetLight: {
		Name:          PresetLight,
		RotationRange: 1.5,
		NoiseStdDev:   3,
		MaxBlurRadius: 0.3,
		BrightnessMin: 0.95, BrightnessMax: 1.05,
		ContrastMin: 0.95, ContrastMax: 1.05,
		PaperTone: color.RGBA{R: 245, G: 240, B: 230, A: 255},
	},
	PresetMedium: {
		Name:          PresetMedium,
		RotationRange: 3.0,
		NoiseStdDev:   8,
		MaxBlurRadius: 0.7,
		BrightnessMin: 0.85, BrightnessMax: 1.15,
		ContrastMin: 0.85, ContrastMax: 1.15,
		PaperTone: color.RGBA{R: 235, G: 228, B: 215, A: 255},
	},
	PresetHeavy: {
		Name:          PresetHeavy,
		RotationRange: 5.0,
		NoiseStdDev:   15,
		MaxBlurRadius: 1.2,
		BrightnessMin: 0.75, BrightnessMax: 1.25,
		ContrastMin: 0.75, ContrastMax: 1.30,
		PaperTone: color.RGBA{R: 225, G: 215, B: 200, A: 255},
	},
}

// PresetByName returns the named preset. Unknown names fall back to medium.
func PresetByName(name string) Preset {
	if p, ok := presets[name]; ok {
		return p
	}
	return presets[PresetMedium]
}

// PresetNames lists the valid preset names.
func PresetNames() []string {
	return []string{PresetLight, PresetMedium, PresetHeavy}
}
