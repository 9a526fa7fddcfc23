package scansim

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	xdraw "golang.org/x/image/draw"
)

func testPage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)
	// A dark band so brightness/contrast/noise have structure to act on.
	for y := h / 3; y < h/2; y++ {
		for x := w / 4; x < 3*w/4; x++ {
			img.Set(x, y, color.RGBA{A: 255})
		}
	}
	return img
}

func TestApplyPreservesDimensions(t *testing.T) {
	for _, name := range PresetNames() {
		t.Run(name, func(t *testing.T) {
			in := testPage(120, 90)
			out := NewSeeded(1).Apply(in, name)

			if out.Bounds().Dx() != 120 || out.Bounds().Dy() != 90 {
				t.Errorf("output %dx%d, want 120x90", out.Bounds().Dx(), out.Bounds().Dy())
			}
		})
	}
}

func TestApplyChangesPixels(t *testing.T) {
	in := testPage(60, 60)
	out := NewSeeded(42).Apply(in, PresetHeavy)

	same := true
	for i := range in.Pix {
		if in.Pix[i] != out.Pix[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("heavy preset left the image byte-identical")
	}
}

func TestApplyIsDeterministicForSeed(t *testing.T) {
	in := testPage(60, 60)
	a := NewSeeded(7).Apply(in, PresetMedium)
	b := NewSeeded(7).Apply(testPage(60, 60), PresetMedium)

	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("same seed produced different output")
	}
}

func TestPresetByNameFallsBackToMedium(t *testing.T) {
	p := PresetByName("extreme")
	if p.Name != PresetMedium {
		t.Errorf("unknown preset resolved to %q, want medium", p.Name)
	}
}

func TestSkewedCopyRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testPage(80, 50)); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	out, err := NewSeeded(3).SkewedCopy(buf.Bytes(), PresetLight)
	if err != nil {
		t.Fatalf("SkewedCopy() error = %v", err)
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not valid PNG: %v", err)
	}
	if img.Bounds().Dx() != 80 || img.Bounds().Dy() != 50 {
		t.Errorf("output %dx%d, want 80x50", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestSkewedCopyRejectsGarbage(t *testing.T) {
	if _, err := New().SkewedCopy([]byte("not an image"), PresetLight); err == nil {
		t.Error("expected error for undecodable input")
	}
}
