package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/clerkops/formbench/internal/types"
)

const (
	OpenAIEngineName   = "openai"
	openAIDefaultModel = openai.ChatModelGPT4o

	// Chat completions report no per-line confidence, so every line
	// carries this fixed value.
	openAILineConfidence = 0.85

	openAIPrompt = "Transcribe all text visible in this image. " +
		"Output only the transcribed text, one line per visual line. " +
		"Do not add commentary or formatting."
)

// OpenAIConfig holds configuration for the OpenAI vision engine.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	BaseURL    string       // Optional (tests)
	HTTPClient *http.Client // Optional (tests)
}

// OpenAIEngine extracts text by asking a vision-capable chat model to
// transcribe each region crop. The SDK client is built on first use so
// constructing the engine never touches the network.
type OpenAIEngine struct {
	cfg OpenAIConfig

	initOnce sync.Once
	client   openai.Client
}

// NewOpenAIEngine creates an OpenAI vision OCR engine.
func NewOpenAIEngine(cfg OpenAIConfig) *OpenAIEngine {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &OpenAIEngine{cfg: cfg}
}

func (e *OpenAIEngine) Name() string { return OpenAIEngineName }

func (e *OpenAIEngine) init() {
	httpClient := e.cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: e.cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(e.cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(e.cfg.MaxRetries),
	}
	if e.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(e.cfg.BaseURL))
	}
	e.client = openai.NewClient(opts...)
}

// Extract OCRs every region crop through the chat completions API.
func (e *OpenAIEngine) Extract(ctx context.Context, img image.Image, regions []types.Region) ([]types.OCRResult, error) {
	e.initOnce.Do(e.init)
	return extractByRegion(ctx, img, regions, e.recognize)
}

func (e *OpenAIEngine) recognize(ctx context.Context, crop image.Image) ([]types.TextLine, error) {
	data, err := encodePNG(crop)
	if err != nil {
		return nil, err
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: e.cfg.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(openAIPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
			}),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in chat completion response")
	}

	var lines []types.TextLine
	for _, raw := range strings.Split(resp.Choices[0].Message.Content, "\n") {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		lines = append(lines, types.TextLine{
			Text:       text,
			Confidence: openAILineConfidence,
		})
	}
	return lines, nil
}

var _ Engine = (*OpenAIEngine)(nil)
