package model

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Config is the complete deckcheck configuration
type Config struct {
	Thresholds   ThresholdConfig    `yaml:"thresholds" mapstructure:"thresholds"`
	Extraction   ExtractionConfig   `yaml:"extraction" mapstructure:"extraction"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	OCR          OCRConfig          `yaml:"ocr" mapstructure:"ocr"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// ThresholdConfig holds the conflict heuristics. These are policy, not derived values.
type ThresholdConfig struct {
	Similarity         float64 `yaml:"similarity" mapstructure:"similarity"`                   // Context similarity above which two mentions are the same claim
	RelativeDifference float64 `yaml:"relative_difference" mapstructure:"relative_difference"` // Disagreement above which a same-claim pair conflicts
}

// ExtractionConfig controls mention extraction
type ExtractionConfig struct {
	ContextRadius int `yaml:"context_radius" mapstructure:"context_radius"` // Characters kept on each side of a match
}

// LLMConfig configures the optional language-model reviewer
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // "", openai, anthropic, ollama, gemini
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"` // Prefer environment variables
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OCRConfig configures image text recognition
type OCRConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Command   string `yaml:"command" mapstructure:"command"`     // tesseract binary
	Language  string `yaml:"language" mapstructure:"language"`   // tesseract -l value
	ImagesDir string `yaml:"images_dir" mapstructure:"images_dir"` // Optional dump of extracted images
}

// HTTPConfig applies to remote deck downloads and HTTP-based providers
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig controls the memory + disk cache for downloads and LLM responses
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`

	// Larger entries (whole decks, usually) skip the memory layer
	MemoryMaxEntryBytes int `yaml:"memory_max_entry_bytes" mapstructure:"memory_max_entry_bytes"`
}

// ConcurrencyConfig controls batch parallelism
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitingConfig throttles calls per remote host or provider
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Dir             string `yaml:"dir" mapstructure:"dir"`
	Verbose         bool   `yaml:"verbose" mapstructure:"verbose"`
	IncludeMentions bool   `yaml:"include_mentions" mapstructure:"include_mentions"`
	IncludeFooter   bool   `yaml:"include_footer" mapstructure:"include_footer"`
}

// StoreConfig controls the run history database
type StoreConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // console or json
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	home := homeDir()

	return &Config{
		Thresholds: ThresholdConfig{
			Similarity:         0.45,
			RelativeDifference: 0.10,
		},
		Extraction: ExtractionConfig{
			ContextRadius: 50,
		},
		LLM: LLMConfig{
			Provider:  "", // Disabled by default
			Timeout:   60,
			MaxTokens: 2000,
		},
		OCR: OCRConfig{
			Enabled:  false,
			Command:  "tesseract",
			Language: "eng",
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "deckcheck/0.1 (+https://github.com/ppiankov/deckcheck)",
			MaxBodyBytes:  100 << 20,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:             true,
			Dir:                 filepath.Join(home, ".deckcheck", "cache"),
			MemoryTTL:           15 * time.Minute,
			DiskTTL:             24 * time.Hour,
			MemoryMaxEntryBytes: 8 << 20,
		},
		Concurrency: ConcurrencyConfig{
			Workers: runtime.NumCPU(),
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
		Output: OutputConfig{
			Dir:           "output",
			IncludeFooter: true,
		},
		Store: StoreConfig{
			Enabled: false,
			Path:    filepath.Join(home, ".deckcheck", "history.db"),
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
