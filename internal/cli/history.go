package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ppiankov/deckcheck/internal/store"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyRun   string
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent checks from the history database",
	Long: `History lists runs recorded with --save (or store.enabled: true), newest
first. Pass --run to print the stored report lines of one run.

Example:
  deckcheck history
  deckcheck history --limit 50
  deckcheck history --run 3f6c1c0e-...`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to list")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "show the conflicts and model issues of one run")
	historyCmd.Flags().String("db", "", "history database path (default from config)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	s, err := store.Open(appConfig.Store.Path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer s.Close()

	ctx := cmd.Context()

	if historyRun != "" {
		conflicts, err := s.Conflicts(ctx, historyRun)
		if err != nil {
			return err
		}
		issues, err := s.Issues(ctx, historyRun)
		if err != nil {
			return err
		}
		for _, c := range conflicts {
			fmt.Printf("[LOCAL %s] Slides %v — %s vs %s\n", c.Type, c.Slides, c.ARaw, c.BRaw)
		}
		for _, issue := range issues {
			fmt.Printf("[LLM %s] Slides %v — %s\n", issue.Type, issue.Slides, issue.Summary)
		}
		if len(conflicts) == 0 && len(issues) == 0 {
			fmt.Fprintf(os.Stderr, "No conflicts or issues recorded for %s\n", historyRun)
		}
		return nil
	}

	runs, err := s.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(os.Stderr, "No runs recorded in %s (use --save to record checks)\n", appConfig.Store.Path)
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tANALYZED\tDECK\tSLIDES\tCONFLICTS\tISSUES\tINDEX")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.AnalyzedAt.Local().Format("2006-01-02 15:04"), r.Subject,
			r.Totals.Slides, r.Totals.Conflicts, r.Totals.Issues, r.Index)
	}
	return tw.Flush()
}
