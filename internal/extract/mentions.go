package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/ppiankov/deckcheck/internal/model"
)

// DefaultContextRadius is the number of characters kept on each side of a match
const DefaultContextRadius = 50

// isoLayout is the timestamp layout used for parsed date mentions
const isoLayout = "2006-01-02T15:04:05"

var (
	// Optional currency, a digit run starting on a word boundary and ending on a
	// digit, then an optional magnitude word or letter.
	numberPattern = regexp.MustCompile(`(?i)(?:[$₹]\s*)?\b\d(?:[\d,.]*\d)?(?:\s*(?:thousand|million|billion|k|m|b)\b)?`)

	percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

	datePattern = regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec|\d{1,2})[^\n,]{0,20}\d{2,4}\b`)

	newlines = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")
)

// Extractor finds number, percent, and date mentions in slide text
type Extractor struct {
	radius int
}

// NewExtractor creates an extractor with the given context radius.
// A radius of 0 keeps only the matched text; a negative radius falls back
// to DefaultContextRadius.
func NewExtractor(radius int) *Extractor {
	if radius < 0 {
		radius = DefaultContextRadius
	}
	return &Extractor{radius: radius}
}

// Extract scans every slide with the three patterns and returns mentions in
// slide order, then number/percent/date pass order, then match order.
// The passes are independent: one span may yield mentions of several types.
func (e *Extractor) Extract(slides []model.Slide) []model.Mention {
	var mentions []model.Mention
	for _, slide := range slides {
		mentions = append(mentions, e.ExtractSlide(slide)...)
	}
	return mentions
}

// ExtractSlide runs the three passes over a single slide
func (e *Extractor) ExtractSlide(slide model.Slide) []model.Mention {
	text := slide.Text
	if text == "" {
		return nil
	}

	var mentions []model.Mention

	for _, loc := range numberPattern.FindAllStringIndex(text, -1) {
		raw := strings.TrimSpace(text[loc[0]:loc[1]])
		m := e.mention(slide, model.MentionNumber, raw, loc)
		if v, ok := Normalize(raw); ok {
			m.Value = &v
		}
		mentions = append(mentions, m)
	}

	for _, loc := range percentPattern.FindAllStringSubmatchIndex(text, -1) {
		m := e.mention(slide, model.MentionPercent, text[loc[0]:loc[1]], loc)
		if v, err := strconv.ParseFloat(text[loc[2]:loc[3]], 64); err == nil {
			v /= 100
			m.Value = &v
		}
		mentions = append(mentions, m)
	}

	for _, loc := range datePattern.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		m := e.mention(slide, model.MentionDate, raw, loc)
		if iso, ok := ParseDate(raw); ok {
			m.Date = &iso
		}
		mentions = append(mentions, m)
	}

	return mentions
}

func (e *Extractor) mention(slide model.Slide, typ model.MentionType, raw string, loc []int) model.Mention {
	return model.Mention{
		Slide:   slide.Index,
		Raw:     raw,
		Type:    typ,
		Context: contextWindow(slide.Text, loc[0], loc[1], e.radius),
	}
}

// ParseDate parses a loosely formatted date into an ISO-8601 timestamp
func ParseDate(raw string) (iso string, ok bool) {
	// dateparse can panic on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			iso, ok = "", false
		}
	}()

	t, err := dateparse.ParseAny(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return t.Format(isoLayout), true
}

// contextWindow returns up to radius runes before start and after end,
// clipped to the text, with newlines replaced by spaces
func contextWindow(text string, start, end, radius int) string {
	from := start
	for n := 0; n < radius && from > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(text[:from])
		from -= size
	}

	to := end
	for n := 0; n < radius && to < len(text); n++ {
		_, size := utf8.DecodeRuneInString(text[to:])
		to += size
	}

	return newlines.Replace(text[from:to])
}
