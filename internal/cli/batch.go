package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/deckcheck/internal/deck"
	"github.com/ppiankov/deckcheck/internal/worker"
	"github.com/spf13/cobra"
)

var batchTimeout time.Duration

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file|dir>",
	Short: "Check many decks in parallel",
	Long: `Batch checks several decks concurrently:
- A directory is walked for supported decks (.pptx, .html, .json, .yaml)
- Any other file is read as a list of paths or URLs (one per line, # comments)
- Each deck gets <name>.json and <name>.txt in the output directory
- Model reviews are rate limited per provider

Example:
  deckcheck batch ./decks
  deckcheck batch decks.txt --concurrency 8 --output-dir ./reports
  deckcheck batch ./decks --llm ollama --llm-model llama3.1 --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().Int("concurrency", 0, "number of concurrent workers (default: number of CPUs)")
	batchCmd.Flags().Float64("rate", 0, "max remote requests per second per host or provider (default from config)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().Bool("save", false, "record every run in the history database")

	addAnalysisFlags(batchCmd)
	addOutputFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	input := args[0]
	cfg := appConfig
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  deckcheck Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input:        %s\n", input)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	if cfg.LLM.Provider != "" {
		fmt.Fprintf(os.Stderr, "  LLM:          %s\n", cfg.LLM.Provider)
	}
	fmt.Fprintf(os.Stderr, "\n")

	sources, err := worker.CollectSources(input, deck.Supported)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no decks found in %s", input)
	}
	fmt.Fprintf(os.Stderr, "✓ Found %d decks\n", len(sources))

	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	renderer := p.Renderer()

	fmt.Fprintf(os.Stderr, "⚙️  Checking decks with %d workers...\n\n", cfg.Concurrency.Workers)

	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers)
	processor.OnProgress(func(r *worker.AnalyzeResult) {
		if r.Error != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.Source, r.Error)
			return
		}
		fmt.Fprintf(os.Stderr, "✓ %s: %d conflicts, %d model issues (index: %d/100, %s)\n",
			r.Report.Subject, len(r.Report.Local), len(r.Report.LLM), r.Report.Score.Index, r.Duration.Round(time.Millisecond))
	})
	results := processor.ProcessSources(ctx, sources)

	// Render in input order so colliding names resolve deterministically
	successCount, failureCount, conflictCount := 0, 0, 0
	names := newNameSet()
	for _, result := range results {
		if result.Error != nil {
			failureCount++
			continue
		}
		successCount++
		conflictCount += len(result.Report.Local)

		slug := names.unique(sanitizeFilename(result.Report.Subject))
		jsonPath := filepath.Join(cfg.Output.Dir, slug+".json")
		textPath := filepath.Join(cfg.Output.Dir, slug+".txt")

		if err := renderer.RenderJSON(result.Report, jsonPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Source, err)
			continue
		}
		if err := renderer.RenderText(result.Report, textPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write report: %v\n", result.Source, err)
			continue
		}
		saveRun(ctx, cfg, result.Report)
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:      %d decks\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:    %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:   %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Conflicts:  %d\n", conflictCount)
	fmt.Fprintf(os.Stderr, "  Output:     %s\n", cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "\n")

	if successCount == 0 {
		return fmt.Errorf("all %d decks failed", failureCount)
	}
	return nil
}

// sanitizeFilename turns a deck name into a safe report base name
func sanitizeFilename(s string) string {
	s = filepath.Base(filepath.ToSlash(s))
	s = strings.TrimSuffix(s, filepath.Ext(s))

	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(s)
	s = strings.Trim(s, ".-_")

	if s == "" {
		s = "deck"
	}
	// Limit length
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// nameSet hands out unique report names within one batch
type nameSet map[string]int

func newNameSet() nameSet {
	return make(nameSet)
}

func (n nameSet) unique(name string) string {
	n[name]++
	if count := n[name]; count > 1 {
		return fmt.Sprintf("%s-%d", name, count)
	}
	return name
}

// reportPaths returns where a watched or batched deck's reports go
func reportPaths(dir, subject string) (jsonPath, textPath string) {
	slug := sanitizeFilename(subject)
	return filepath.Join(dir, slug+".json"), filepath.Join(dir, slug+".txt")
}
