package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/deckcheck/internal/cache"
	"github.com/ppiankov/deckcheck/internal/deck"
	"github.com/ppiankov/deckcheck/internal/extract"
	"github.com/ppiankov/deckcheck/internal/llm"
	"github.com/ppiankov/deckcheck/internal/model"
	"github.com/ppiankov/deckcheck/internal/ocr"
	"github.com/ppiankov/deckcheck/internal/score"
	"github.com/ppiankov/deckcheck/internal/worker"
	"go.uber.org/zap"
)

// Pipeline orchestrates the complete check of one deck
type Pipeline struct {
	fetcher    *Fetcher
	extractor  *extract.Extractor
	detector   *score.Detector
	scorer     *score.Scorer
	reviewer   *llm.Reviewer  // Optional model reviewer (disabled when no provider)
	recognizer ocr.Recognizer // Optional OCR (nil when disabled)
	renderer   *Renderer
	config     *model.Config
	log        *zap.Logger
}

var _ worker.Analyzer = (*Pipeline)(nil)

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithLogger sets the pipeline logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithReviewer replaces the reviewer built from configuration
func WithReviewer(r *llm.Reviewer) Option {
	return func(p *Pipeline) {
		p.reviewer = r
	}
}

// WithRecognizer replaces the OCR engine built from configuration
func WithRecognizer(r ocr.Recognizer) Option {
	return func(p *Pipeline) {
		p.recognizer = r
	}
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor: extract.NewExtractor(cfg.Extraction.ContextRadius),
		detector:  score.NewDetector(cfg.Thresholds),
		scorer:    score.NewScorer(),
		renderer:  NewRenderer(cfg.Output.IncludeMentions, cfg.Output.IncludeFooter),
		config:    cfg,
		log:       zap.NewNop(),
	}

	// Options that replace collaborators apply before defaults are built
	for _, opt := range opts {
		opt(p)
	}

	store := cache.New(cfg.Cache)
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	p.fetcher = NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes, cfg.HTTP.RespectRobots,
		cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy).
		WithCache(store, cfg.Cache.DiskTTL).
		WithLimiter(limiter).
		WithLogger(p.log)

	if p.reviewer == nil {
		llmConfig := llm.ConfigFromModel(cfg.LLM, cfg.HTTP)
		llmConfig.Logger = p.log
		r, err := llm.NewReviewer(llmConfig, llm.WithCache(store), llm.WithThrottle(limiter), llm.WithLogger(p.log))
		if err != nil {
			p.log.Warn("failed to initialize LLM provider, model review disabled", zap.Error(err))
		} else {
			p.reviewer = r
		}
	}

	if p.recognizer == nil && cfg.OCR.Enabled {
		tess := ocr.NewTesseract(cfg.OCR)
		if err := tess.Available(); err != nil {
			p.log.Warn("OCR requested but unavailable", zap.Error(err))
		} else {
			p.recognizer = tess
		}
	}

	return p
}

// Renderer returns the renderer configured for this pipeline
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}

// Load reads a local deck or downloads a remote one
func (p *Pipeline) Load(ctx context.Context, source string) (*deck.Deck, error) {
	if !IsRemote(source) {
		return deck.Load(source)
	}

	result, err := p.fetcher.FetchWithRetry(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("download deck: %w", err)
	}

	d, err := deck.Parse(result.Name, result.Data)
	if err != nil {
		return nil, err
	}
	d.Source = source
	return d, nil
}

// Prepare loads the deck, dumps its images if configured, and appends OCR text
func (p *Pipeline) Prepare(ctx context.Context, source string) (*deck.Deck, error) {
	d, err := p.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	p.log.Debug("deck loaded",
		zap.String("source", source),
		zap.Int("slides", len(d.Slides)),
		zap.Int("images", len(d.Images)))

	if dir := p.config.OCR.ImagesDir; dir != "" {
		paths, err := ocr.SaveImages(dir, d.Images)
		if err != nil {
			p.log.Warn("failed to save images", zap.String("dir", dir), zap.Error(err))
		} else if len(paths) > 0 {
			p.log.Info("images saved", zap.String("dir", dir), zap.Int("count", len(paths)))
		}
	}

	if p.recognizer != nil && len(d.Images) > 0 {
		appended, err := ocr.Apply(ctx, p.recognizer, d, p.log)
		if err != nil {
			return nil, fmt.Errorf("ocr: %w", err)
		}
		p.log.Debug("ocr complete", zap.Int("slides_with_text", appended))
	}

	return d, nil
}

// Mentions prepares the deck and returns its slides with every extracted mention
func (p *Pipeline) Mentions(ctx context.Context, source string) ([]model.Slide, []model.Mention, error) {
	d, err := p.Prepare(ctx, source)
	if err != nil {
		return nil, nil, err
	}
	return d.Slides, p.extractor.Extract(d.Slides), nil
}

// Analyze runs the full check on one deck and builds the report
func (p *Pipeline) Analyze(ctx context.Context, source string) (*model.Report, error) {
	// 1. Load (or download) and OCR
	d, err := p.Prepare(ctx, source)
	if err != nil {
		return nil, err
	}

	// 2. Extract mentions
	mentions := p.extractor.Extract(d.Slides)

	// 3. Local conflict detection
	conflicts := p.detector.Detect(mentions)

	// 4. Model review (after local detection, never affects it)
	issues := []model.Issue{}
	var review *model.Review
	if p.reviewer.IsEnabled() {
		issues, review = p.reviewer.Review(ctx, d.Slides)
		for _, w := range review.Warnings {
			p.log.Warn("model review", zap.String("warning", w))
		}
	}

	// 5. Score
	scoreResult := p.scorer.Calculate(d.Slides, mentions, conflicts, issues)

	report := &model.Report{
		ID:         uuid.NewString(),
		Source:     source,
		Subject:    d.Subject(),
		AnalyzedAt: time.Now().UTC(),
		Slides:     d.Slides,
		Mentions:   mentions,
		Local:      conflicts,
		LLM:        issues,
		Score:      scoreResult,
		Review:     review,
	}

	p.log.Info("deck analyzed",
		zap.String("id", report.ID),
		zap.String("source", source),
		zap.Int("mentions", len(mentions)),
		zap.Int("conflicts", len(conflicts)),
		zap.Int("issues", len(issues)))

	return report, nil
}

// RenderReport renders the report to the requested outputs and prints the summary
func (p *Pipeline) RenderReport(report *model.Report, jsonPath, textPath, mdPath string, verbose bool) error {
	outputs := []struct {
		path   string
		label  string
		render func(*model.Report, string) error
	}{
		{jsonPath, "JSON", p.renderer.RenderJSON},
		{textPath, "report", p.renderer.RenderText},
		{mdPath, "Markdown", p.renderer.RenderMarkdown},
	}

	for _, out := range outputs {
		if out.path == "" {
			continue
		}
		if err := out.render(report, out.path); err != nil {
			return fmt.Errorf("render %s: %w", out.label, err)
		}
		if verbose {
			p.renderer.Progress("Wrote %s: %s", out.label, out.path)
		}
	}

	p.renderer.RenderSummary(report)
	return nil
}
