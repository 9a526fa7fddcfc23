package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/clerkops/formbench/internal/types"
)

const (
	MistralEngineName = "mistral"
	MistralBaseURL    = "https://api.mistral.ai/v1"
	MistralModel      = "mistral-ocr-latest"

	// The OCR API reports no per-line confidence, so every line carries
	// this fixed value.
	mistralLineConfidence = 0.9
)

// MistralConfig holds configuration for the Mistral OCR engine.
type MistralConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries uint
}

// MistralEngine extracts text through the Mistral OCR API. Each region
// crop is submitted as a base64 image and the returned markdown is split
// into lines; line bounding boxes are unknown and left zero.
type MistralEngine struct {
	apiKey     string
	baseURL    string
	model      string
	maxRetries uint
	client     *http.Client
}

// NewMistralEngine creates a Mistral OCR engine.
func NewMistralEngine(cfg MistralConfig) *MistralEngine {
	if cfg.BaseURL == "" {
		cfg.BaseURL = MistralBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = MistralModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	return &MistralEngine{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (e *MistralEngine) Name() string { return MistralEngineName }

// Extract OCRs every region crop through the remote API.
func (e *MistralEngine) Extract(ctx context.Context, img image.Image, regions []types.Region) ([]types.OCRResult, error) {
	return extractByRegion(ctx, img, regions, e.recognize)
}

func (e *MistralEngine) recognize(ctx context.Context, crop image.Image) ([]types.TextLine, error) {
	data, err := encodePNG(crop)
	if err != nil {
		return nil, err
	}

	reqBody := mistralOCRRequest{
		Model: e.model,
		Document: mistralDocument{
			Type: "image_url",
			ImageURL: &mistralImageURL{
				URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
			},
		},
	}

	resp, err := retry.DoWithData(
		func() (*mistralOCRResponse, error) {
			return e.doRequest(ctx, "/ocr", reqBody)
		},
		retry.Context(ctx),
		retry.Attempts(e.maxRetries),
		retry.Delay(2*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Pages) == 0 {
		return nil, fmt.Errorf("no pages in OCR response")
	}

	return markdownLines(resp.Pages[0].Markdown), nil
}

// markdownLines splits page markdown into text lines, dropping blanks and
// markdown heading markers.
func markdownLines(markdown string) []types.TextLine {
	var lines []types.TextLine
	for _, raw := range strings.Split(markdown, "\n") {
		text := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(raw), "#"))
		if text == "" {
			continue
		}
		lines = append(lines, types.TextLine{
			Text:       text,
			Confidence: mistralLineConfidence,
		})
	}
	return lines
}

// doRequest makes an HTTP request to the Mistral API.
func (e *MistralEngine) doRequest(ctx context.Context, path string, body any) (*mistralOCRResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp mistralErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("mistral OCR error (status %d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("mistral OCR error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var ocrResp mistralOCRResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &ocrResp, nil
}

// Mistral OCR API types

type mistralOCRRequest struct {
	Model    string          `json:"model"`
	Document mistralDocument `json:"document"`
	Pages    []int           `json:"pages,omitempty"`
}

type mistralDocument struct {
	Type        string           `json:"type"`
	ImageURL    *mistralImageURL `json:"image_url,omitempty"`
	DocumentURL string           `json:"document_url,omitempty"`
}

type mistralImageURL struct {
	URL string `json:"url"`
}

type mistralOCRResponse struct {
	Model string           `json:"model"`
	Pages []mistralOCRPage `json:"pages"`
}

type mistralOCRPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type mistralErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

var _ Engine = (*MistralEngine)(nil)
