package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ppiankov/deckcheck/internal/model"
)

// Renderer writes reports as JSON, plain text, and Markdown
type Renderer struct {
	includeMentions bool
	includeFooter   bool
	out             io.Writer // Summary and progress lines
}

// NewRenderer creates a renderer writing its summary to stderr
func NewRenderer(includeMentions, includeFooter bool) *Renderer {
	return &Renderer{
		includeMentions: includeMentions,
		includeFooter:   includeFooter,
		out:             os.Stderr,
	}
}

// WithOutput redirects summary and progress lines
func (r *Renderer) WithOutput(w io.Writer) *Renderer {
	r.out = w
	return r
}

// Progress prints a check-marked progress line
func (r *Renderer) Progress(format string, args ...interface{}) {
	fmt.Fprintf(r.out, "✓ "+format+"\n", args...)
}

// JSON returns the report document. Slides and mentions are kept only when
// configured; "local" and "llm" are always present.
func (r *Renderer) JSON(report *model.Report) ([]byte, error) {
	doc := *report
	if !r.includeMentions {
		doc.Slides = nil
		doc.Mentions = nil
	}
	if doc.Local == nil {
		doc.Local = []model.Conflict{}
	}
	if doc.LLM == nil {
		doc.LLM = []model.Issue{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// RenderJSON writes the JSON document to path
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := r.JSON(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// Text returns the plain inconsistency report
func (r *Renderer) Text(report *model.Report) string {
	lines := []string{"Inconsistency Report", ""}
	for _, c := range report.Local {
		lines = append(lines, fmt.Sprintf("[LOCAL %s] Slides %v — %s vs %s", c.Type, c.Slides, c.ARaw, c.BRaw))
	}
	for _, issue := range report.LLM {
		lines = append(lines, fmt.Sprintf("[LLM %s] Slides %v — %s", issue.Type, issue.Slides, issue.Summary))
	}
	return strings.Join(lines, "\n")
}

// RenderText writes the plain report to path
func (r *Renderer) RenderText(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Text(report)+"\n"))
}

// Markdown returns the report as Markdown
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder
	totals := report.Totals()

	fmt.Fprintf(&b, "# Deck consistency: %s\n\n", report.Subject)
	fmt.Fprintf(&b, "- **Source:** %s\n", report.Source)
	fmt.Fprintf(&b, "- **Run:** %s\n", report.ID)
	fmt.Fprintf(&b, "- **Analyzed:** %s\n", report.AnalyzedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- **Consistency index:** %d/100 (%s confidence)\n\n", report.Score.Index, report.Score.Confidence)

	b.WriteString("## Local conflicts\n\n")
	if len(report.Local) == 0 {
		b.WriteString("No conflicting numbers found.\n\n")
	} else {
		b.WriteString("| Slides | A | B | Similarity | Difference |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, c := range report.Local {
			fmt.Fprintf(&b, "| %d, %d | %s | %s | %.2f | %.0f%% |\n",
				c.Slides[0], c.Slides[1], escapeCell(c.ARaw), escapeCell(c.BRaw), c.Similarity, c.RelativeDifference*100)
		}
		b.WriteString("\n")
		for i, c := range report.Local {
			fmt.Fprintf(&b, "%d. Slide %d: _%s_\n   Slide %d: _%s_\n", i+1, c.Slides[0], c.ContextA, c.Slides[1], c.ContextB)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Model review\n\n")
	switch {
	case report.Review == nil || !report.Review.Enabled:
		b.WriteString("Model review disabled.\n\n")
	case len(report.LLM) == 0:
		fmt.Fprintf(&b, "No issues proposed by %s.\n\n", reviewLabel(report.Review))
	default:
		fmt.Fprintf(&b, "Proposed by %s. These are unverified suggestions.\n\n", reviewLabel(report.Review))
		for _, issue := range report.LLM {
			fmt.Fprintf(&b, "- **%s** (slides %s): %s\n", issue.Type, joinInts(issue.Slides), issue.Summary)
			for _, ev := range issue.Evidence {
				fmt.Fprintf(&b, "  - %s\n", ev)
			}
		}
		b.WriteString("\n")
	}
	if report.Review != nil {
		for _, w := range report.Review.Warnings {
			fmt.Fprintf(&b, "> Warning: %s\n", w)
		}
		if len(report.Review.Warnings) > 0 {
			b.WriteString("\n")
		}
	}

	b.WriteString("## Signals\n\n")
	for _, s := range report.Score.Signals {
		fmt.Fprintf(&b, "- [%s] %s\n", s.Severity, s.Description)
	}
	b.WriteString("\n")

	if r.includeMentions && len(report.Mentions) > 0 {
		b.WriteString("## Mentions\n\n")
		b.WriteString("| Slide | Type | Raw | Value |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, m := range report.Mentions {
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", m.Slide, m.Type, escapeCell(m.Raw), mentionValue(m))
		}
		b.WriteString("\n")
	}

	if r.includeFooter {
		fmt.Fprintf(&b, "---\n_%d slides, %d mentions (%d unparsed). Generated by deckcheck._\n",
			totals.Slides, totals.Mentions, totals.Unparsed)
	}

	return b.String()
}

// RenderMarkdown writes the Markdown report to path
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// RenderSummary prints a short summary of the run
func (r *Renderer) RenderSummary(report *model.Report) {
	totals := report.Totals()
	r.Progress("Checked %s: %d slides, %d mentions", report.Subject, totals.Slides, totals.Mentions)
	r.Progress("Local conflicts: %d", totals.Conflicts)
	if report.Review != nil && report.Review.Enabled {
		r.Progress("Model issues: %d (%s)", totals.Issues, reviewLabel(report.Review))
		for _, w := range report.Review.Warnings {
			fmt.Fprintf(r.out, "⚠️  %s\n", w)
		}
	}
	r.Progress("Consistency index: %d/100 (%s confidence)", report.Score.Index, report.Score.Confidence)
}

// RenderMentions writes a tab-separated mention listing
func (r *Renderer) RenderMentions(w io.Writer, mentions []model.Mention) error {
	for _, m := range mentions {
		if _, err := fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", m.Slide, m.Type, m.Raw, mentionValue(m)); err != nil {
			return err
		}
	}
	return nil
}

func reviewLabel(review *model.Review) string {
	label := review.Provider
	if review.Model != "" {
		label += "/" + review.Model
	}
	if review.Cached {
		label += ", cached"
	}
	return label
}

func mentionValue(m model.Mention) string {
	switch {
	case m.Type == model.MentionDate && m.Date != nil:
		return *m.Date
	case m.Value != nil:
		return strconv.FormatFloat(*m.Value, 'f', -1, 64)
	}
	return "-"
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
