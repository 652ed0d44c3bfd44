package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/deckcheck/internal/model"
)

// Analyzer analyzes a single deck source (path or URL)
type Analyzer interface {
	Analyze(ctx context.Context, source string) (*model.Report, error)
}

// ErrAnalyzerPanic marks a deck whose analysis panicked
var ErrAnalyzerPanic = errors.New("analyzer panicked")

// AnalyzeJob analyzes one deck
type AnalyzeJob struct {
	Source   string
	Analyzer Analyzer
}

// Execute runs the analysis. A panic while parsing one deck becomes that
// deck's error instead of ending the batch.
func (j *AnalyzeJob) Execute(ctx context.Context) (result Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = &AnalyzeResult{
				Source:   j.Source,
				Error:    fmt.Errorf("%w: %v", ErrAnalyzerPanic, r),
				Duration: time.Since(start),
			}
		}
	}()

	report, err := j.Analyzer.Analyze(ctx, j.Source)
	return &AnalyzeResult{
		Source:   j.Source,
		Report:   report,
		Error:    err,
		Duration: time.Since(start),
	}
}

// AnalyzeResult is the outcome of one deck analysis
type AnalyzeResult struct {
	Source   string
	Report   *model.Report
	Error    error
	Duration time.Duration
}

// GetError returns the error from the analysis
func (r *AnalyzeResult) GetError() error {
	return r.Error
}

// BatchProcessor analyzes many decks concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
	progress    func(*AnalyzeResult)
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer Analyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// OnProgress registers a callback invoked as each deck finishes
func (b *BatchProcessor) OnProgress(fn func(*AnalyzeResult)) {
	b.progress = fn
}

// ProcessSources analyzes the sources and returns results in input order
func (b *BatchProcessor) ProcessSources(ctx context.Context, sources []string) []*AnalyzeResult {
	if len(sources) == 0 {
		return []*AnalyzeResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	if b.progress != nil {
		pool.OnResult(func(r Result) { b.progress(r.(*AnalyzeResult)) })
	}
	pool.Start()

	for _, source := range sources {
		pool.Submit(&AnalyzeJob{
			Source:   source,
			Analyzer: b.analyzer,
		})
	}

	results := pool.Wait()

	out := make([]*AnalyzeResult, len(results))
	for i, result := range results {
		out[i] = result.(*AnalyzeResult)
	}
	return out
}

// ProcessPath analyzes every deck listed in a file, or found under a directory
func (b *BatchProcessor) ProcessPath(ctx context.Context, path string, supported func(string) bool) ([]*AnalyzeResult, error) {
	sources, err := CollectSources(path, supported)
	if err != nil {
		return nil, err
	}
	return b.ProcessSources(ctx, sources), nil
}

// CollectSources resolves a batch argument: a directory is walked for
// supported decks, anything else is read as a list file
func CollectSources(path string, supported func(string) bool) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if info.IsDir() {
		return ExpandDir(path, supported)
	}

	sources, err := ReadSourcesFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return sources, nil
}

// ExpandDir returns supported deck files under dir, sorted by path.
// Hidden files and directories are skipped.
func ExpandDir(dir string, supported func(string) bool) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if path != dir && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || Ignored(name) {
			return nil
		}
		if supported == nil || supported(name) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// Ignored reports whether a file name is hidden or an Office lock file
// such as ~$deck.pptx
func Ignored(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$")
}

// ReadSourcesFromFile reads deck paths or URLs from a file (one per line).
// Blank lines and # comments are skipped, duplicates dropped.
func ReadSourcesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var sources []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			sources = append(sources, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return sources, nil
}
