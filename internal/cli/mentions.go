package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ppiankov/deckcheck/internal/model"
	"github.com/spf13/cobra"
)

var mentionsJSON bool

// mentionsCmd represents the mentions command
var mentionsCmd = &cobra.Command{
	Use:   "mentions <deck>",
	Short: "List the numbers, percentages, and dates found in a deck",
	Long: `Mentions prints every extracted mention without comparing them. Useful for
tuning thresholds or checking what the extractor sees after OCR.

Columns: slide, type, raw text, normalized value ("-" when unparseable).

Example:
  deckcheck mentions pitch.pptx
  deckcheck mentions pitch.pptx --json | jq '.[] | select(.type == "date")'`,
	Args: cobra.ExactArgs(1),
	RunE: runMentions,
}

func init() {
	rootCmd.AddCommand(mentionsCmd)

	mentionsCmd.Flags().BoolVar(&mentionsJSON, "json", false, "print mentions as JSON")
	addAnalysisFlags(mentionsCmd)
}

func runMentions(cmd *cobra.Command, args []string) error {
	p, err := newPipeline(appConfig)
	if err != nil {
		return err
	}

	slides, mentions, err := p.Mentions(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("extract failed: %w", err)
	}

	if mentionsJSON {
		if mentions == nil {
			mentions = []model.Mention{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(mentions)
	}

	if err := p.Renderer().RenderMentions(os.Stdout, mentions); err != nil {
		return err
	}

	counts := model.CountMentions(mentions)
	fmt.Fprintf(os.Stderr, "✓ %d slides, %d numbers, %d percentages, %d dates\n",
		len(slides), counts[model.MentionNumber], counts[model.MentionPercent], counts[model.MentionDate])
	return nil
}
