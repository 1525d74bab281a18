package multimodal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nikhilbhutani/docsearch/internal/apperr"
	"github.com/nikhilbhutani/docsearch/internal/llm"
	"github.com/nikhilbhutani/docsearch/internal/models"
)

// PageImage is one image sent to the vision model. Index is 1-based.
type PageImage struct {
	Data     []byte
	MimeType string
	Index    int
	Count    int
}

type VisionConfig struct {
	Provider  string
	Model     string
	MaxTokens int
}

// VisionService extracts structured content from page images using a
// vision-capable model behind the LLM gateway.
type VisionService struct {
	gateway llm.Gateway
	cfg     VisionConfig
	schema  *jsonschema.Schema
	log     *slog.Logger
}

func NewVisionService(gw llm.Gateway, cfg VisionConfig, log *slog.Logger) (*VisionService, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4000
	}
	schema, err := compilePageSchema()
	if err != nil {
		return nil, fmt.Errorf("page schema: %w", err)
	}
	return &VisionService{
		gateway: gw,
		cfg:     cfg,
		schema:  schema,
		log:     log.With("component", "vision"),
	}, nil
}

// ExtractPage sends one page in a single request and returns the validated
// result. Unparseable or off-schema output fails the page.
func (v *VisionService) ExtractPage(ctx context.Context, page PageImage, promptOverride string) (*models.PageExtraction, error) {
	resp, err := v.gateway.Chat(ctx, llm.ChatRequest{
		Provider:  v.cfg.Provider,
		Model:     v.cfg.Model,
		MaxTokens: v.cfg.MaxTokens,
		JSONMode:  true,
		Messages: []llm.Message{{
			Role:    "user",
			Content: BuildPrompt(promptOverride, page.Index, page.Count),
			Images:  []llm.Image{{MimeType: page.MimeType, Data: page.Data}},
		}},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		v.log.Error("vision.page.failed", "page", page.Index, "pages", page.Count, "error", err)
		return nil, apperr.ExternalService("Vision model", err)
	}

	result, err := parsePage(v.schema, resp.Content)
	if err != nil {
		v.log.Error("vision.page.invalid_output",
			"page", page.Index,
			"pages", page.Count,
			"error", err,
			"content_bytes", len(resp.Content),
		)
		return nil, apperr.FileProcessing(fmt.Sprintf("model returned unusable output for page %d", page.Index), err)
	}

	v.log.Info("vision.page.ok",
		"page", page.Index,
		"pages", page.Count,
		"provider", resp.Provider,
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"cost_usd", resp.CostUSD,
		"latency_ms", resp.LatencyMs,
		"cells", len(result.Tables),
	)
	return result, nil
}
