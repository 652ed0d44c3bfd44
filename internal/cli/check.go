package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/deckcheck/internal/llm"
	"github.com/ppiankov/deckcheck/internal/model"
	"github.com/ppiankov/deckcheck/internal/pipeline"
	"github.com/ppiankov/deckcheck/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ErrConflictsFound is returned by check --fail-on-conflict when the deck has local conflicts
var ErrConflictsFound = errors.New("conflicts found")

var (
	outJSON        string
	outText        string
	outMD          string
	checkTimeout   time.Duration
	failOnConflict bool
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <deck>",
	Short: "Check a deck for conflicting figures across slides",
	Long: `Check loads a deck (.pptx, reveal.js .html, or a .json/.yaml slide list,
local path or http(s) URL) and:
- Extracts number, percentage, and date mentions from every slide
- Optionally OCRs slide images and appends the text to its slide
- Flags number pairs on different slides with similar context but
  different values
- Optionally asks a language model for further inconsistencies
- Writes inconsistencies.json and report.txt

Example:
  deckcheck check pitch.pptx
  deckcheck check pitch.pptx --ocr --images-dir output/images
  deckcheck check pitch.pptx --llm gemini --md output/report.md
  deckcheck check https://example.com/decks/q3.html --similarity 0.5 --rel-diff 0.2`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	// Output flags
	checkCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (default: <output-dir>/inconsistencies.json)")
	checkCmd.Flags().StringVar(&outText, "txt", "", "output text report path (default: <output-dir>/report.txt)")
	checkCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 5*time.Minute, "overall check timeout")
	checkCmd.Flags().BoolVar(&failOnConflict, "fail-on-conflict", false, "exit with an error when local conflicts are found")
	checkCmd.Flags().Bool("save", false, "record the run in the history database")

	addAnalysisFlags(checkCmd)
	addOutputFlags(checkCmd)
}

// addAnalysisFlags registers the flags shared by every command that analyzes decks
func addAnalysisFlags(cmd *cobra.Command) {
	defaults := model.DefaultConfig()
	f := cmd.Flags()

	// Heuristics
	f.Float64("similarity", defaults.Thresholds.Similarity, "context similarity above which two numbers describe the same claim")
	f.Float64("rel-diff", defaults.Thresholds.RelativeDifference, "relative difference above which a same-claim pair conflicts")
	f.Int("context", defaults.Extraction.ContextRadius, "characters of context kept on each side of a mention")

	// OCR
	f.Bool("ocr", defaults.OCR.Enabled, "OCR slide images with tesseract")
	f.String("ocr-lang", defaults.OCR.Language, "tesseract language")
	f.String("images-dir", "", "write extracted slide images to this directory")

	// HTTP
	f.Duration("http-timeout", defaults.HTTP.Timeout, "timeout for remote deck downloads")
	f.String("ua", defaults.HTTP.UserAgent, "HTTP User-Agent")
	f.Int64("max-bytes", defaults.HTTP.MaxBodyBytes, "max remote deck size in bytes")
	f.String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	f.String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	f.String("no-proxy", "", "hosts that bypass the proxy (NO_PROXY syntax)")
	f.Bool("no-robots", false, "ignore robots.txt for remote decks")
	f.Bool("no-cache", false, "disable cache (force fresh download and model review)")

	// LLM
	f.String("llm", "", "language-model provider for the extra review (openai, anthropic, ollama, gemini)")
	f.String("llm-model", "", "language-model name (provider default when empty)")
	f.String("llm-base-url", "", "provider endpoint override")
}

// addOutputFlags registers report rendering flags
func addOutputFlags(cmd *cobra.Command) {
	defaults := model.DefaultConfig()
	cmd.Flags().String("output-dir", defaults.Output.Dir, "output directory for reports")
	cmd.Flags().Bool("include-mentions", false, "include slides and mentions in JSON and Markdown reports")
	cmd.Flags().Bool("no-footer", false, "disable footer in Markdown reports")
}

// newPipeline validates the model provider settings and builds the pipeline
func newPipeline(cfg *model.Config) (*pipeline.Pipeline, error) {
	if cfg.LLM.Provider != "" {
		llmConfig := llm.ConfigFromModel(cfg.LLM, cfg.HTTP)
		if _, err := llm.NewProvider(llmConfig); err != nil {
			if errors.Is(err, llm.ErrMissingAPIKey) {
				return nil, fmt.Errorf("%w (set %s or llm.api_key)", err, apiKeyVar(cfg.LLM.Provider))
			}
			return nil, err
		}
	}
	return pipeline.NewPipeline(cfg, pipeline.WithLogger(logger)), nil
}

func apiKeyVar(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic", "claude":
		return "ANTHROPIC_API_KEY"
	case "gemini", "google":
		return "GEMINI_API_KEY"
	}
	return "the provider API key"
}

// saveRun records the report when the history store is enabled. Failures are
// reported but never fail the check.
func saveRun(ctx context.Context, cfg *model.Config, report *model.Report) {
	if !cfg.Store.Enabled {
		return
	}
	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: history unavailable: %v\n", err)
		return
	}
	defer s.Close()

	if err := s.Save(ctx, report); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record run: %v\n", err)
		return
	}
	logger.Debug("run recorded", zap.String("id", report.ID), zap.String("db", cfg.Store.Path))
}

func runCheck(cmd *cobra.Command, args []string) error {
	source := args[0]
	cfg := appConfig
	ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Checking: %s\n", source)
		fmt.Fprintf(os.Stderr, "Thresholds: similarity > %.2f, relative difference > %.2f\n",
			cfg.Thresholds.Similarity, cfg.Thresholds.RelativeDifference)
		fmt.Fprintf(os.Stderr, "OCR: %v\n", cfg.OCR.Enabled)
		if cfg.LLM.Provider != "" {
			fmt.Fprintf(os.Stderr, "LLM: %s\n", cfg.LLM.Provider)
		}
		fmt.Fprintln(os.Stderr)
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	report, err := p.Analyze(ctx, source)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	jsonPath, textPath := outJSON, outText
	if jsonPath == "" && textPath == "" && outMD == "" {
		jsonPath = filepath.Join(cfg.Output.Dir, "inconsistencies.json")
		textPath = filepath.Join(cfg.Output.Dir, "report.txt")
	}

	if err := p.RenderReport(report, jsonPath, textPath, outMD, verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	saveRun(ctx, cfg, report)

	if failOnConflict && len(report.Local) > 0 {
		return fmt.Errorf("%d local %s: %w", len(report.Local), plural(len(report.Local), "conflict", "conflicts"), ErrConflictsFound)
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
