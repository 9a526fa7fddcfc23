package scansim

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	_ "image/jpeg" // register decoders for SkewedCopy inputs
)

// paperToneAlpha is the fixed blend weight of the paper-tone wash.
const paperToneAlpha = 0.08

// Simulator applies the scan-effect chain. It is not safe for concurrent use;
// each goroutine should own its own Simulator.
type Simulator struct {
	rng *rand.Rand
}

// New creates a Simulator seeded from the current time.
func New() *Simulator {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded creates a Simulator with a fixed seed, for reproducible output.
func NewSeeded(seed int64) *Simulator {
	return &Simulator{rng: rand.New(rand.NewSource(seed))}
}

// Apply runs the effect chain on img using the named preset and returns a new
// image with the same dimensions. Effects run in fixed order: paper tone,
// rotation, brightness, contrast, blur, noise.
func (s *Simulator) Apply(img image.Image, presetName string) *image.RGBA {
	p := PresetByName(presetName)
	out := toRGBA(img)

	blendPaperTone(out, p.PaperTone)

	angle := s.uniform(-p.RotationRange, p.RotationRange)
	out = rotate(out, angle)

	brightness := s.uniform(p.BrightnessMin, p.BrightnessMax)
	scaleBrightness(out, brightness)

	contrast := s.uniform(p.ContrastMin, p.ContrastMax)
	scaleContrast(out, contrast)

	if p.MaxBlurRadius > 0 {
		radius := s.uniform(0, p.MaxBlurRadius)
		out = gaussianBlur(out, radius)
	}

	if p.NoiseStdDev > 0 {
		s.addNoise(out, p.NoiseStdDev)
	}

	return out
}

// SkewedCopy decodes image bytes, applies the preset's effects, and returns
// the result re-encoded as PNG.
func (s *Simulator) SkewedCopy(data []byte, presetName string) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	out := s.Apply(img, presetName)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		cloned := image.NewRGBA(rgba.Bounds())
		copy(cloned.Pix, rgba.Pix)
		return cloned
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(out, out.Bounds(), img, b.Min, xdraw.Src)
	return out
}

func blendPaperTone(img *image.RGBA, tone color.RGBA) {
	tr := float64(tone.R)
	tg := float64(tone.G)
	tb := float64(tone.B)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = blend(img.Pix[i], tr)
		img.Pix[i+1] = blend(img.Pix[i+1], tg)
		img.Pix[i+2] = blend(img.Pix[i+2], tb)
	}
}

func blend(c uint8, tone float64) uint8 {
	return clamp(float64(c)*(1-paperToneAlpha) + tone*paperToneAlpha)
}

// rotate turns the image by angle degrees about its center without expanding
// the canvas; uncovered corners are filled white.
func rotate(img *image.RGBA, angle float64) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	xdraw.Draw(out, b, image.NewUniform(color.White), image.Point{}, xdraw.Src)

	rad := angle * math.Pi / 180
	sin, cos := math.Sincos(rad)
	cx := float64(b.Dx()) / 2
	cy := float64(b.Dy()) / 2

	// Source-to-destination affine: rotate about the image center.
	m := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
	xdraw.BiLinear.Transform(out, m, img, b, xdraw.Over, nil)
	return out
}

func scaleBrightness(img *image.RGBA, factor float64) {
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = clamp(float64(img.Pix[i]) * factor)
		img.Pix[i+1] = clamp(float64(img.Pix[i+1]) * factor)
		img.Pix[i+2] = clamp(float64(img.Pix[i+2]) * factor)
	}
}

// scaleContrast interpolates each channel between the mean page luminance and
// its original value, so factor 1.0 is a no-op.
func scaleContrast(img *image.RGBA, factor float64) {
	var sum float64
	n := len(img.Pix) / 4
	if n == 0 {
		return
	}
	for i := 0; i < len(img.Pix); i += 4 {
		sum += 0.299*float64(img.Pix[i]) + 0.587*float64(img.Pix[i+1]) + 0.114*float64(img.Pix[i+2])
	}
	mean := sum / float64(n)

	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = clamp(mean + factor*(float64(img.Pix[i])-mean))
		img.Pix[i+1] = clamp(mean + factor*(float64(img.Pix[i+1])-mean))
		img.Pix[i+2] = clamp(mean + factor*(float64(img.Pix[i+2])-mean))
	}
}

// gaussianBlur applies a separable Gaussian kernel with sigma = radius.
// Radii too small to build a kernel return the image unchanged.
func gaussianBlur(img *image.RGBA, radius float64) *image.RGBA {
	if radius < 0.05 {
		return img
	}

	size := int(math.Ceil(radius * 3))
	if size < 1 {
		size = 1
	}
	kernel := make([]float64, 2*size+1)
	var ksum float64
	for i := -size; i <= size; i++ {
		v := math.Exp(-float64(i*i) / (2 * radius * radius))
		kernel[i+size] = v
		ksum += v
	}
	for i := range kernel {
		kernel[i] /= ksum
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	horiz := image.NewRGBA(b)
	convolve(img, horiz, kernel, size, w, h, true)
	out := image.NewRGBA(b)
	convolve(horiz, out, kernel, size, w, h, false)
	return out
}

func convolve(src, dst *image.RGBA, kernel []float64, size, w, h int, horizontal bool) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var r, g, bl float64
			for k := -size; k <= size; k++ {
				sx, sy := x, y
				if horizontal {
					sx = clampInt(x+k, 0, w-1)
				} else {
					sy = clampInt(y+k, 0, h-1)
				}
				o := src.PixOffset(sx, sy)
				kv := kernel[k+size]
				r += kv * float64(src.Pix[o])
				g += kv * float64(src.Pix[o+1])
				bl += kv * float64(src.Pix[o+2])
			}
			o := dst.PixOffset(x, y)
			dst.Pix[o] = clamp(r)
			dst.Pix[o+1] = clamp(g)
			dst.Pix[o+2] = clamp(bl)
			dst.Pix[o+3] = 255
		}
	}
}

func (s *Simulator) addNoise(img *image.RGBA, stddev float64) {
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = clamp(float64(img.Pix[i]) + s.rng.NormFloat64()*stddev)
		img.Pix[i+1] = clamp(float64(img.Pix[i+1]) + s.rng.NormFloat64()*stddev)
		img.Pix[i+2] = clamp(float64(img.Pix[i+2]) + s.rng.NormFloat64()*stddev)
	}
}

func clamp(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
