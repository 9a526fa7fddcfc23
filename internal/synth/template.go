package synth

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// renderDPI rasterizes PDF templates at twice the PDF's native 72 DPI so
// overlay coordinates captured against the rendered image stay crisp.
const renderDPI = 144

// isPDF reports whether data starts with the PDF magic bytes.
func isPDF(data []byte) bool {
	return len(data) >= 5 && bytes.Equal(data[:5], []byte("%PDF-"))
}

// loadTemplate decodes a form template into an image. PDF templates are
// rasterized (first page only); PNG and JPEG decode directly.
func loadTemplate(ctx context.Context, data []byte) (image.Image, error) {
	if isPDF(data) {
		return rasterizePDF(ctx, data)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode template image: %w", err)
	}
	return img, nil
}

// RenderTemplatePNG decodes a form template and re-encodes it as PNG.
// Used to serve PDF templates as viewable images.
func RenderTemplatePNG(ctx context.Context, data []byte) ([]byte, error) {
	img, err := loadTemplate(ctx, data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	return buf.Bytes(), nil
}

// rasterizePDF renders the first page of a PDF using pdftoppm
// (poppler-utils). pdftoppm renders the page as displayed, unlike image
// extraction which returns embedded image objects in arbitrary order. The
// PDF is validated with pdfcpu first so a corrupt upload fails with a
// useful error instead of a renderer crash.
func rasterizePDF(ctx context.Context, data []byte) (image.Image, error) {
	pages, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return nil, fmt.Errorf("invalid PDF template: %w", err)
	}
	if pages < 1 {
		return nil, fmt.Errorf("PDF template has no pages")
	}

	tmpDir, err := os.MkdirTemp("", "formbench-template-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "template.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write temp PDF: %w", err)
	}

	outputPrefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", "1",
		"-l", "1",
		"-r", fmt.Sprintf("%d", renderDPI),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	rendered, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(rendered))
	if err != nil {
		return nil, fmt.Errorf("decode rendered page: %w", err)
	}
	return img, nil
}
