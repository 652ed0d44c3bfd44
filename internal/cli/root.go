package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ppiankov/deckcheck/internal/logging"
	"github.com/ppiankov/deckcheck/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool

	// Resolved in PersistentPreRunE for every subcommand
	appConfig *model.Config
	logger    = zap.NewNop()
)

// flagKeys maps command flags to configuration keys. A flag that a command
// does not define is skipped.
var flagKeys = map[string]string{
	"similarity":       "thresholds.similarity",
	"rel-diff":         "thresholds.relative_difference",
	"context":          "extraction.context_radius",
	"llm":              "llm.provider",
	"llm-model":        "llm.model",
	"llm-base-url":     "llm.base_url",
	"ocr":              "ocr.enabled",
	"ocr-lang":         "ocr.language",
	"images-dir":       "ocr.images_dir",
	"http-timeout":     "http.timeout",
	"ua":               "http.user_agent",
	"max-bytes":        "http.max_body_bytes",
	"http-proxy":       "http.http_proxy",
	"https-proxy":      "http.https_proxy",
	"no-proxy":         "http.no_proxy",
	"concurrency":      "concurrency.workers",
	"rate":             "rate_limiting.requests_per_second",
	"output-dir":       "output.dir",
	"include-mentions": "output.include_mentions",
	"save":             "store.enabled",
	"db":               "store.path",
	"verbose":          "output.verbose",
	"log-level":        "log.level",
	"log-format":       "log.format",
}

// envReplacer maps config keys to environment variable suffixes
var envReplacer = strings.NewReplacer(".", "_")

// negatedFlags turn a boolean setting off when passed
var negatedFlags = map[string]string{
	"no-cache":  "cache.enabled",
	"no-footer": "output.include_footer",
	"no-robots": "http.respect_robots",
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "deckcheck",
	Short: "deckcheck - cross-slide consistency screening for presentation decks",
	Long: `deckcheck extracts numbers, percentages, and dates from slide text and
flags pairs of figures on different slides that look like the same claim
but disagree.

Local detection is deterministic and explainable: every conflict carries the
context similarity and relative difference that triggered it. An optional
language-model review proposes further issues; those are reported
separately and never change the local results.

deckcheck is a screening aid, not a fact checker.`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	defer func() { _ = logging.Sync(logger) }()
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of deckcheck.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("deckcheck %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.deckcheck/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads .env, the config file, and DECKCHECK_* environment variables
func initConfig() {
	// API keys commonly live in a .env next to the decks
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".deckcheck"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match DECKCHECK_*, e.g.
	// DECKCHECK_THRESHOLDS_SIMILARITY
	viper.SetEnvPrefix("DECKCHECK")
	viper.SetEnvKeyReplacer(envReplacer)
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setup resolves the configuration for the running command and builds the logger
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper(), cmd.Flags())
	if err != nil {
		return err
	}

	l, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	appConfig = cfg
	logger = l
	return nil
}

// loadConfig merges defaults, config file, environment, and flags (in
// increasing priority) into a Config
func loadConfig(v *viper.Viper, flags *pflag.FlagSet) (*model.Config, error) {
	if err := setDefaults(v, model.DefaultConfig()); err != nil {
		return nil, err
	}

	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}
	for name, key := range negatedFlags {
		if f := flags.Lookup(name); f != nil && f.Changed && f.Value.String() == "true" {
			v.Set(key, false)
		}
	}

	cfg := &model.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key of the default config so that environment
// variables are honored for keys absent from the config file
func setDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}

	var walk func(prefix string, node map[string]interface{})
	walk = func(prefix string, node map[string]interface{}) {
		for k, val := range node {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := val.(map[string]interface{}); ok {
				walk(key, child)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)

	// Keys the YAML output omits
	for _, key := range []string{"llm.api_key", "llm.base_url", "http.http_proxy", "http.https_proxy", "http.no_proxy"} {
		v.SetDefault(key, "")
	}
	return nil
}

func validateConfig(cfg *model.Config) error {
	t := cfg.Thresholds
	if t.Similarity < 0 || t.Similarity > 1 {
		return fmt.Errorf("thresholds.similarity must be within [0, 1], got %g", t.Similarity)
	}
	if t.RelativeDifference < 0 {
		return fmt.Errorf("thresholds.relative_difference must not be negative, got %g", t.RelativeDifference)
	}
	if cfg.Extraction.ContextRadius < 0 {
		return fmt.Errorf("extraction.context_radius must not be negative, got %d", cfg.Extraction.ContextRadius)
	}
	if cfg.Concurrency.Workers < 1 {
		cfg.Concurrency.Workers = 1
	}
	return nil
}
