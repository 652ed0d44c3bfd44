package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider reviews decks with a Google Gemini model
type GeminiProvider struct {
	api    *restClient
	config Config
	log    *zap.Logger
}

type geminiRequest struct {
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	Contents          []geminiContent  `json:"contents"`
	GenerationConfig  geminiGeneration `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGeneration struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

// geminiErrorText reads {"error": {"status": ..., "message": ...}}
func geminiErrorText(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil || e.Error.Message == "" {
		return ""
	}
	return e.Error.Status + " - " + e.Error.Message
}

// NewGeminiProvider requires an API key
func NewGeminiProvider(config Config) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}

	header := http.Header{}
	header.Set("x-goog-api-key", config.APIKey)

	return &GeminiProvider{
		api:    newRESTClient(config, "https://generativelanguage.googleapis.com", 60*time.Second, header, geminiErrorText),
		config: config,
		log:    config.logger(),
	}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

// IsAvailable fetches the model metadata, which checks both key and model name
func (p *GeminiProvider) IsAvailable(ctx context.Context) bool {
	model := p.config.model(ReviewRequest{}, defaultGeminiModel)
	if err := p.api.get(ctx, modelPath(model)); err != nil {
		p.log.Warn("gemini availability check failed", zap.String("model", model), zap.Error(err))
		return false
	}
	return true
}

// ProposeInconsistencies asks Gemini for cross-slide inconsistencies
func (p *GeminiProvider) ProposeInconsistencies(ctx context.Context, req ReviewRequest) (*ReviewResponse, error) {
	model := p.config.model(req, defaultGeminiModel)

	var resp geminiResponse
	err := p.api.post(ctx, modelPath(model)+":generateContent", geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.prompt()}}}},
		GenerationConfig: geminiGeneration{
			Temperature:      0.2,
			MaxOutputTokens:  p.config.maxTokens(req),
			ResponseMimeType: "application/json",
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: no candidates in reply")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	if resp.ModelVersion != "" {
		model = resp.ModelVersion
	}
	return &ReviewResponse{
		Text:       strings.TrimSpace(text.String()),
		Model:      model,
		TokensUsed: resp.UsageMetadata.TotalTokenCount,
	}, nil
}

func modelPath(model string) string {
	return "/v1beta/models/" + url.PathEscape(model)
}
