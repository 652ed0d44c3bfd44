package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OllamaProvider reviews decks with a local model served by Ollama
type OllamaProvider struct {
	api    *restClient
	config Config
	log    *zap.Logger
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

func ollamaErrorText(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error
}

// NewOllamaProvider requires a model name; there is no sensible default
// across local installations
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}
	// Local models are slow on long decks
	return &OllamaProvider{
		api:    newRESTClient(config, "http://localhost:11434", 120*time.Second, nil, ollamaErrorText),
		config: config,
		log:    config.logger(),
	}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable checks that the server answers
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	if err := p.api.get(ctx, "/api/tags"); err != nil {
		p.log.Warn("ollama availability check failed", zap.String("base_url", p.api.baseURL), zap.Error(err))
		return false
	}
	return true
}

// ProposeInconsistencies asks the local model for cross-slide inconsistencies
func (p *OllamaProvider) ProposeInconsistencies(ctx context.Context, req ReviewRequest) (*ReviewResponse, error) {
	prompt := req.prompt()

	var resp ollamaResponse
	err := p.api.post(ctx, "/api/generate", ollamaRequest{
		Model:  p.config.model(req, ""),
		Prompt: prompt,
		System: systemPrompt,
		Format: "json",
		Options: ollamaOptions{
			Temperature: 0.2,
			NumPredict:  p.config.maxTokens(req),
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}

	text := strings.TrimSpace(resp.Response)
	if !resp.Done {
		p.log.Warn("ollama reply not marked done", zap.String("model", resp.Model))
	}

	// Some models report no counts; estimate at 4 characters per token
	tokens := resp.PromptEvalCount + resp.EvalCount
	if tokens == 0 {
		tokens = (len(prompt) + len(text)) / 4
	}

	return &ReviewResponse{
		Text:       text,
		Model:      resp.Model,
		TokensUsed: tokens,
	}, nil
}
