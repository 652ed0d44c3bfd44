package model

import (
	"encoding/json"
	"strings"
)

// Slide is one slide of a deck as handed over by the deck parser
type Slide struct {
	Index int    `json:"slide" yaml:"slide"` // 1-based, stable within a deck
	Text  string `json:"text" yaml:"text"`   // Visible text, shapes joined by newline
}

// OCRMarker separates native slide text from recognized image text
const OCRMarker = "\n[OCR]\n"

// AppendOCR appends recognized image text to the slide. Blank text is ignored.
func (s *Slide) AppendOCR(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.Text += OCRMarker + text
}

// MentionType classifies a detected mention
type MentionType string

const (
	MentionNumber  MentionType = "number"  // Plain or magnitude-suffixed number, optionally with currency
	MentionPercent MentionType = "percent" // Number followed by %
	MentionDate    MentionType = "date"    // Calendar date or month/year expression
)

// Mention is one numeric, percentage, or date occurrence within a slide
type Mention struct {
	Slide   int         `json:"slide"`
	Raw     string      `json:"raw"`  // Verbatim matched substring
	Type    MentionType `json:"type"`
	Value   *float64    `json:"-"` // Normalized scalar (number, percent); nil if unparseable
	Date    *string     `json:"-"` // ISO-8601 timestamp (date); nil if unparseable
	Context string      `json:"context"` // Window around the match, newlines collapsed
}

// HasValue reports whether the mention was normalized successfully
func (m Mention) HasValue() bool {
	if m.Type == MentionDate {
		return m.Date != nil
	}
	return m.Value != nil
}

// MarshalJSON emits a single "value" field holding a number, a string, or null
func (m Mention) MarshalJSON() ([]byte, error) {
	type plain Mention
	var value interface{}
	switch {
	case m.Type == MentionDate && m.Date != nil:
		value = *m.Date
	case m.Value != nil:
		value = *m.Value
	}
	return json.Marshal(struct {
		plain
		Value interface{} `json:"value"`
	}{plain: plain(m), Value: value})
}

// UnmarshalJSON is the inverse of MarshalJSON
func (m *Mention) UnmarshalJSON(data []byte) error {
	type plain Mention
	var aux struct {
		plain
		Value interface{} `json:"value"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = Mention(aux.plain)
	switch v := aux.Value.(type) {
	case float64:
		m.Value = &v
	case string:
		m.Date = &v
	}
	return nil
}

// CountMentions tallies mentions by type
func CountMentions(mentions []Mention) map[MentionType]int {
	counts := make(map[MentionType]int)
	for _, m := range mentions {
		counts[m.Type]++
	}
	return counts
}
