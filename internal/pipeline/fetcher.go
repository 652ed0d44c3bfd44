package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ppiankov/deckcheck/internal/cache"
	"github.com/ppiankov/deckcheck/internal/deck"
	"github.com/ppiankov/deckcheck/internal/util"
	"github.com/ppiankov/deckcheck/internal/worker"
	"go.uber.org/zap"
)

const fetchAttempts = 3

// fetchSleepFunc is swapped out in tests to skip backoff
var fetchSleepFunc = time.Sleep

// ErrRobotsDisallowed is returned when robots.txt forbids the download
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// ErrTooLarge is returned when a remote deck exceeds the size limit
var ErrTooLarge = errors.New("deck exceeds size limit")

// Fetcher downloads remote decks
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker // nil when robots.txt is ignored
	limiter    *worker.Limiter     // nil disables per-host throttling
	cache      cache.Cache
	cacheTTL   time.Duration
	log        *zap.Logger
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, respectRobots bool, httpProxy, httpsProxy, noProxy string) *Fetcher {
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(httpProxy, httpsProxy, noProxy),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  userAgent,
		maxBytes:   maxBytes,
		cache:      cache.Nop{},
		log:        zap.NewNop(),
	}
	if respectRobots {
		f.robots = util.NewRobotsChecker(userAgent, client)
	}
	return f
}

// WithCache stores downloaded bytes under the deck namespace
func (f *Fetcher) WithCache(c cache.Cache, ttl time.Duration) *Fetcher {
	if c != nil {
		f.cache = c
		f.cacheTTL = ttl
	}
	return f
}

// WithLimiter throttles downloads per host
func (f *Fetcher) WithLimiter(l *worker.Limiter) *Fetcher {
	f.limiter = l
	return f
}

// WithLogger sets the logger
func (f *Fetcher) WithLogger(l *zap.Logger) *Fetcher {
	if l != nil {
		f.log = l
	}
	return f
}

// FetchResult contains the downloaded deck bytes and metadata
type FetchResult struct {
	Data        []byte
	Name        string // File name used to pick the deck format
	ContentType string
	FinalURL    string
	Cached      bool
}

// IsRemote reports whether a source should be downloaded rather than read from disk
func IsRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// FetchWithRetry fetches with backoff on transient failures (5xx, 429, network)
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			f.log.Debug("retrying download", zap.String("url", rawURL), zap.Int("attempt", attempt+1), zap.Error(lastErr))
			fetchSleepFunc(backoff)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", fetchAttempts, lastErr)
}

// isRetryableFetchError classifies errors by the prefixes Fetch produces
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "fetch:") {
		return true
	}
	if strings.HasPrefix(msg, "unexpected status: ") {
		code := strings.TrimPrefix(msg, "unexpected status: ")
		return strings.HasPrefix(code, "5") || strings.HasPrefix(code, "429")
	}
	return false
}

// Fetch downloads a deck once
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	key := cache.Key(cache.NamespaceDeck, rawURL)
	nameKey := cache.Key(cache.NamespaceDeck, rawURL, "name")
	if data, ok := f.cache.Get(key); ok {
		f.log.Debug("deck cache hit", zap.String("url", rawURL))
		name := deckName(rawURL, "")
		if cachedName, ok := f.cache.Get(nameKey); ok {
			name = string(cachedName)
		}
		return &FetchResult{
			Data:     data,
			Name:     name,
			FinalURL: rawURL,
			Cached:   true,
		}, nil
	}

	var crawlDelay time.Duration
	if f.robots != nil {
		policy, err := f.robots.Check(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("robots check: %w", err)
		}
		if !policy.Allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrRobotsDisallowed)
		}
		crawlDelay = policy.CrawlDelay
	}

	if f.limiter != nil {
		if err := f.limiter.WaitURL(ctx, rawURL, crawlDelay); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%d bytes: %w", resp.ContentLength, ErrTooLarge)
	}

	reader := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if f.maxBytes > 0 && int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("more than %d bytes: %w", f.maxBytes, ErrTooLarge)
	}

	finalURL := resp.Request.URL.String()
	contentType := resp.Header.Get("Content-Type")
	name := deckName(finalURL, contentType)
	if !deck.Supported(name) {
		name = deckName(rawURL, contentType)
	}

	if err := f.cache.Set(key, body, f.cacheTTL); err != nil {
		f.log.Warn("failed to cache deck", zap.String("url", rawURL), zap.Error(err))
	} else if err := f.cache.Set(nameKey, []byte(name), f.cacheTTL); err != nil {
		f.log.Warn("failed to cache deck name", zap.String("url", rawURL), zap.Error(err))
	}

	return &FetchResult{
		Data:        body,
		Name:        name,
		ContentType: contentType,
		FinalURL:    finalURL,
	}, nil
}

// deckName derives a file name from the URL path, falling back to the content type
func deckName(rawURL, contentType string) string {
	name := "deck"
	if parsed, err := url.Parse(rawURL); err == nil {
		if base := path.Base(parsed.Path); base != "." && base != "/" {
			name = base
		}
	}
	if deck.Supported(name) {
		return name
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "application/vnd.openxmlformats-officedocument.presentationml.presentation":
		return name + ".pptx"
	case "text/html", "application/xhtml+xml":
		return name + ".html"
	case "application/json":
		return name + ".json"
	case "application/yaml", "application/x-yaml", "text/yaml":
		return name + ".yaml"
	}
	return name
}
