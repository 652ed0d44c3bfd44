package model

import "time"

// Report is the complete result of one deck analysis run
type Report struct {
	ID         string    `json:"id"`          // Run identifier
	Source     string    `json:"source"`      // Path or URL of the deck
	Subject    string    `json:"subject"`     // Human-readable deck name
	AnalyzedAt time.Time `json:"analyzed_at"` // When the run finished

	Slides   []Slide   `json:"slides,omitempty"`   // Slide text after OCR append
	Mentions []Mention `json:"mentions,omitempty"` // All extracted mentions

	Local []Conflict `json:"local"` // Conflicts found by the local detector
	LLM   []Issue    `json:"llm"`   // Issues proposed by the language model

	Score  Score   `json:"score"`            // Consistency index and signal breakdown
	Review *Review `json:"review,omitempty"` // LLM run metadata (separate, never affects Local)
}

// Score represents the transparent scoring breakdown
type Score struct {
	Index      int      `json:"index"`      // Consistency index (0-100)
	Confidence string   `json:"confidence"` // "low", "medium", "high"
	Conflict   bool     `json:"conflict"`   // Whether any local conflict was found
	Signals    []Signal `json:"signals"`    // Diagnostic signals with transparent data
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalMentionCoverage  SignalType = "mention_coverage"  // Share of slides with quantitative mentions
	SignalUnparsedMentions SignalType = "unparsed_mentions" // Mentions whose value could not be normalized
	SignalNumberConflict   SignalType = "number_conflict"   // Local number disagreements
	SignalModelIssues      SignalType = "model_issues"      // Issues proposed by the language model
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// Review records how the language-model pass went
// CRITICAL: model output is advisory and kept apart from local conflicts
type Review struct {
	Enabled    bool     `json:"enabled"`
	Provider   string   `json:"provider,omitempty"` // openai, anthropic, ollama, gemini
	Model      string   `json:"model,omitempty"`
	Cached     bool     `json:"cached,omitempty"`
	TokensUsed int      `json:"tokens_used,omitempty"`
	Warnings   []string `json:"warnings,omitempty"` // e.g. provider unavailable, unparseable output
}

// Totals summarizes counts for renderers and the run store
type Totals struct {
	Slides    int
	Mentions  int
	Unparsed  int
	Conflicts int
	Issues    int
}

// Totals computes summary counts for the report
func (r *Report) Totals() Totals {
	t := Totals{
		Slides:    len(r.Slides),
		Mentions:  len(r.Mentions),
		Conflicts: len(r.Local),
		Issues:    len(r.LLM),
	}
	for _, m := range r.Mentions {
		if !m.HasValue() {
			t.Unparsed++
		}
	}
	return t
}
