package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ppiankov/deckcheck/internal/cache"
	"github.com/ppiankov/deckcheck/internal/model"
	"go.uber.org/zap"
)

// Throttle rate limits calls per key (the provider name)
type Throttle interface {
	WaitKey(ctx context.Context, key string) error
}

// Reviewer runs the optional language-model pass over a deck.
// Every failure becomes a warning on the review record; Review never errors.
type Reviewer struct {
	provider Provider
	config   Config
	cache    cache.Cache
	throttle Throttle
	log      *zap.Logger
}

// Option configures a Reviewer
type Option func(*Reviewer)

// WithCache caches model replies by provider, model and prompt
func WithCache(c cache.Cache) Option {
	return func(r *Reviewer) { r.cache = c }
}

// WithThrottle rate limits model calls
func WithThrottle(t Throttle) Option {
	return func(r *Reviewer) { r.throttle = t }
}

// WithLogger sets the reviewer logger
func WithLogger(l *zap.Logger) Option {
	return func(r *Reviewer) {
		if l != nil {
			r.log = l
		}
	}
}

// NewReviewer creates a reviewer from configuration. An empty provider
// yields a disabled reviewer.
func NewReviewer(config Config, opts ...Option) (*Reviewer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return NewReviewerWithProvider(provider, config, opts...), nil
}

// NewReviewerWithProvider wraps an existing provider, which may be nil
func NewReviewerWithProvider(provider Provider, config Config, opts ...Option) *Reviewer {
	r := &Reviewer{
		provider: provider,
		config:   config,
		cache:    cache.Nop{},
		log:      config.logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsEnabled reports whether a provider is configured
func (r *Reviewer) IsEnabled() bool {
	return r != nil && r.provider != nil
}

// ProviderName returns the configured provider name, or "" when disabled
func (r *Reviewer) ProviderName() string {
	if !r.IsEnabled() {
		return ""
	}
	return r.provider.Name()
}

type cachedReply struct {
	Text       string `json:"text"`
	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used"`
}

// Review asks the model for inconsistencies across the slides. The issues
// slice is never nil; the review record says how the pass went.
func (r *Reviewer) Review(ctx context.Context, slides []model.Slide) ([]model.Issue, *model.Review) {
	issues := []model.Issue{}

	if !r.IsEnabled() {
		return issues, &model.Review{Enabled: false}
	}

	review := &model.Review{
		Enabled:  true,
		Provider: r.provider.Name(),
		Model:    r.config.Model,
	}

	prompt := BuildPrompt(slides)
	key := cache.Key(cache.NamespaceReview, review.Provider, r.config.Model, prompt)

	if data, ok := r.cache.Get(key); ok {
		var reply cachedReply
		if err := json.Unmarshal(data, &reply); err == nil {
			if parsed, err := ParseIssues(reply.Text); err == nil {
				review.Cached = true
				review.Model = reply.Model
				review.TokensUsed = reply.TokensUsed
				r.log.Debug("model review served from cache", zap.String("provider", review.Provider))
				return parsed, review
			}
		}
	}

	if !r.provider.IsAvailable(ctx) {
		return issues, warn(review, "%s provider unavailable, skipping model review", review.Provider)
	}

	if r.throttle != nil {
		if err := r.throttle.WaitKey(ctx, review.Provider); err != nil {
			return issues, warn(review, "rate limit wait aborted: %v", err)
		}
	}

	resp, err := r.provider.ProposeInconsistencies(ctx, ReviewRequest{
		Slides: slides,
		Prompt: prompt,
		Model:  r.config.Model,
	})
	if err != nil {
		r.log.Warn("model review failed", zap.String("provider", review.Provider), zap.Error(err))
		return issues, warn(review, "model review failed: %v", err)
	}

	review.Model = resp.Model
	review.TokensUsed = resp.TokensUsed

	parsed, err := ParseIssues(resp.Text)
	if err != nil {
		r.log.Warn("unparseable model output", zap.String("provider", review.Provider), zap.Int("chars", len(resp.Text)))
		return issues, warn(review, "model output could not be parsed; no model issues reported")
	}

	if data, err := json.Marshal(cachedReply{Text: resp.Text, Model: resp.Model, TokensUsed: resp.TokensUsed}); err == nil {
		if err := r.cache.Set(key, data, 0); err != nil {
			r.log.Debug("failed to cache model review", zap.Error(err))
		}
	}

	return parsed, review
}

func warn(review *model.Review, format string, args ...interface{}) *model.Review {
	review.Warnings = append(review.Warnings, fmt.Sprintf(format, args...))
	return review
}
