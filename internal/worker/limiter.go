package worker

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces out remote calls per key. Deck downloads are keyed by host,
// model calls by provider name.
type Limiter struct {
	mu    sync.Mutex
	keys  map[string]*rate.Limiter
	limit rate.Limit
	burst int
}

// NewLimiter creates a limiter allowing requestsPerSecond per key with the
// given burst. A non-positive rate disables limiting.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &Limiter{
		keys:  make(map[string]*rate.Limiter),
		limit: limit,
		burst: burst,
	}
}

// WaitKey blocks until key may issue another call
func (l *Limiter) WaitKey(ctx context.Context, key string) error {
	return l.limiterFor(key).Wait(ctx)
}

// WaitURL blocks until the host of rawURL may be contacted. A positive
// crawlDelay caps that host at one request per delay for the rest of the run.
func (l *Limiter) WaitURL(ctx context.Context, rawURL string, crawlDelay time.Duration) error {
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}
	if crawlDelay > 0 {
		l.slowDown(host, crawlDelay)
	}
	return l.limiterFor(host).Wait(ctx)
}

// Allow spends a token for key if one is available now
func (l *Limiter) Allow(key string) bool {
	return l.limiterFor(key).Allow()
}

// SetRate overrides the rate for one key
func (l *Limiter) SetRate(key string, requestsPerSecond float64, burst int) {
	if burst <= 0 {
		burst = l.burst
	}
	l.mu.Lock()
	l.keys[key] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	l.mu.Unlock()
}

func (l *Limiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.keys[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.keys[key] = lim
	}
	return lim
}

// slowDown replaces the key's limiter when delay is stricter than its rate
func (l *Limiter) slowDown(key string, delay time.Duration) {
	every := rate.Every(delay)

	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.keys[key]; ok && lim.Limit() <= every {
		return
	}
	l.keys[key] = rate.NewLimiter(every, 1)
}

func hostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	return parsed.Host, nil
}
