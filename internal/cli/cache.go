package cli

import (
	"fmt"
	"os"

	"github.com/ppiankov/deckcheck/internal/cache"
	"github.com/spf13/cobra"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached downloads and model reviews",
	Long: `Remote decks and model reviews are cached under cache.dir (default
~/.deckcheck/cache) so re-checking an unchanged deck costs no download and no
model call. Entries expire after cache.disk_ttl.`,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired cache entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pruner, ok := cache.New(appConfig.Cache).(cache.Pruner)
		if !ok {
			fmt.Fprintln(os.Stderr, "No disk cache configured")
			return nil
		}
		removed, err := pruner.Prune()
		if err != nil {
			return fmt.Errorf("prune cache: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Removed %d expired %s from %s\n", removed, plural(removed, "entry", "entries"), appConfig.Cache.Dir)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cache entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if appConfig.Cache.Dir == "" {
			fmt.Fprintln(os.Stderr, "No disk cache configured")
			return nil
		}
		if err := cache.NewDiskCache(appConfig.Cache.Dir, 0).Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Cleared %s\n", appConfig.Cache.Dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
