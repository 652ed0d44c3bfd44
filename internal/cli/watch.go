package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/deckcheck/internal/deck"
	"github.com/ppiankov/deckcheck/internal/model"
	"github.com/ppiankov/deckcheck/internal/watch"
	"github.com/spf13/cobra"
)

var watchDebounce time.Duration

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Re-check decks whenever they change in a directory",
	Long: `Watch monitors a directory and checks every deck that is created or
saved there. Reports are written to the output directory as <name>.json and
<name>.txt and a summary is printed for each run. Stop with Ctrl+C.

Example:
  deckcheck watch ./decks
  deckcheck watch ./decks --debounce 2s --save`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before a changed deck is checked")
	watchCmd.Flags().Bool("save", false, "record every run in the history database")

	addAnalysisFlags(watchCmd)
	addOutputFlags(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	cfg := appConfig
	ctx := cmd.Context()

	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	renderer := p.Renderer()

	w := watch.NewWatcher(p, deck.Supported).
		WithDebounce(watchDebounce).
		WithLogger(logger).
		OnReport(func(report *model.Report) {
			jsonPath, textPath := reportPaths(cfg.Output.Dir, report.Subject)
			if err := p.RenderReport(report, jsonPath, textPath, "", verbose); err != nil {
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", report.Source, err)
				return
			}
			saveRun(ctx, cfg, report)
			fmt.Fprintln(os.Stderr)
		}).
		OnError(func(path string, err error) {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
		})

	fmt.Fprintf(os.Stderr, "Watching %s for deck changes (Ctrl+C to stop)\n\n", dir)
	if err := w.Run(ctx, dir); err != nil {
		return err
	}
	renderer.Progress("Stopped watching %s", dir)
	return nil
}
