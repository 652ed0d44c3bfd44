package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/deckcheck/internal/model"
	"go.uber.org/zap"
)

// ErrMissingAPIKey is returned when a hosted provider has no API key
var ErrMissingAPIKey = errors.New("API key is required")

// ErrUnparseableOutput is returned when the model reply holds no issue list
var ErrUnparseableOutput = errors.New("model output is not a JSON issue list")

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// ProposeInconsistencies asks the model for cross-slide inconsistencies.
	// The reply text is returned as-is; ParseIssues turns it into issues.
	ProposeInconsistencies(ctx context.Context, req ReviewRequest) (*ReviewResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// ReviewRequest contains the input for one model review
type ReviewRequest struct {
	// Slides are the deck slides after OCR
	Slides []model.Slide

	// Prompt overrides BuildPrompt when set
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// prompt returns the override or the prompt built from the slides
func (r ReviewRequest) prompt() string {
	if r.Prompt != "" {
		return r.Prompt
	}
	return BuildPrompt(r.Slides)
}

// ReviewResponse contains the raw model reply
type ReviewResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "gemini", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string

	// Logger receives availability and API diagnostics
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   60,
		MaxTokens: 2000,
	}
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c Config) maxTokens(req ReviewRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 2000
}

func (c Config) model(req ReviewRequest, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}

const systemPrompt = "You are an AI that finds factual or logical inconsistencies in presentation slides. You answer with JSON only."

// BuildPrompt constructs the review prompt: the instructions followed by the
// slides as indented JSON
func BuildPrompt(slides []model.Slide) string {
	var b strings.Builder

	b.WriteString("You are an AI that finds factual or logical inconsistencies in presentation slides.\n")
	b.WriteString("Compare the slides and find:\n")
	b.WriteString("- Conflicting numbers\n")
	b.WriteString("- Contradictory statements\n")
	b.WriteString("- Timeline mismatches\n")
	b.WriteString("Return ONLY JSON in format:\n")
	b.WriteString(`[{"type": "...", "slides": [..], "summary": "...", "evidence": ["...", "..."]}]`)
	b.WriteString("\nSlides:\n")

	if slides == nil {
		slides = []model.Slide{}
	}
	data, _ := json.MarshalIndent(slides, "", "  ")
	b.Write(data)

	return b.String()
}

// ParseIssues extracts the issue list from a model reply. Code fences and
// prose around the JSON array are tolerated, as is an {"issues": [...]} object.
// Records are decoded one at a time and loosely typed fields are coerced;
// only records that are not JSON objects are skipped.
func ParseIssues(text string) ([]model.Issue, error) {
	records, ok := issueRecords(stripCodeFence(strings.TrimSpace(text)))
	if !ok {
		return nil, ErrUnparseableOutput
	}

	issues := make([]model.Issue, 0, len(records))
	for _, raw := range records {
		var rec issueRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		issues = append(issues, model.Issue{
			Type:     looseString(rec.Type),
			Slides:   looseInts(rec.Slides),
			Summary:  looseString(rec.Summary),
			Evidence: looseStrings(rec.Evidence),
		})
	}
	return normalizeIssues(issues), nil
}

// issueRecord holds one reply record before its fields are coerced
type issueRecord struct {
	Type     json.RawMessage `json:"type"`
	Slides   json.RawMessage `json:"slides"`
	Summary  json.RawMessage `json:"summary"`
	Evidence json.RawMessage `json:"evidence"`
}

// issueRecords finds the JSON array of records in the reply
func issueRecords(text string) ([]json.RawMessage, bool) {
	if start, end := strings.Index(text, "["), strings.LastIndex(text, "]"); start >= 0 && end > start {
		var records []json.RawMessage
		if err := json.Unmarshal([]byte(text[start:end+1]), &records); err == nil {
			return records, true
		}
	}

	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		var wrapped struct {
			Issues []json.RawMessage `json:"issues"`
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &wrapped); err == nil && wrapped.Issues != nil {
			return wrapped.Issues, true
		}
	}

	return nil, false
}

var digits = regexp.MustCompile(`\d+`)

// elements returns the items of a JSON array, or the value itself when it is
// a scalar. null and missing values yield nothing.
func elements(raw json.RawMessage) []json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		return items
	}
	return []json.RawMessage{raw}
}

// looseString reads a string, or the literal text of a number or boolean
func looseString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if raw[0] == '{' || raw[0] == '[' {
		return ""
	}
	return string(raw)
}

// looseInts reads slide numbers given as numbers or as text such as "Slide 3"
func looseInts(raw json.RawMessage) []int {
	var out []int
	for _, item := range elements(raw) {
		var f float64
		if err := json.Unmarshal(item, &f); err == nil {
			out = append(out, int(f))
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		if m := digits.FindString(s); m != "" {
			if n, err := strconv.Atoi(m); err == nil {
				out = append(out, n)
			}
		}
	}
	return out
}

// looseStrings reads a list of strings, wrapping a single value in a slice
func looseStrings(raw json.RawMessage) []string {
	var out []string
	for _, item := range elements(raw) {
		if s := looseString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.Index(text, "\n"); nl >= 0 {
		text = text[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}

// normalizeIssues drops empty records and fills nil slices
func normalizeIssues(issues []model.Issue) []model.Issue {
	out := make([]model.Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.Type == "" && issue.Summary == "" {
			continue
		}
		if issue.Slides == nil {
			issue.Slides = []int{}
		}
		if issue.Evidence == nil {
			issue.Evidence = []string{}
		}
		out = append(out, issue)
	}
	return out
}
