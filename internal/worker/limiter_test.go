package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.burst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.burst)
	}

	l2 := NewLimiter(10, -1)
	if l2.burst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.burst)
	}
}

func TestLimiter_WaitKey(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx := context.Background()

	if err := limiter.WaitKey(ctx, "openai"); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	// the token is spent, so a short deadline expires
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := limiter.WaitKey(short, "openai"); err == nil {
		t.Error("expected second wait on the same key to hit the deadline")
	}

	if err := limiter.WaitKey(ctx, "anthropic"); err != nil {
		t.Errorf("other key should not be throttled: %v", err)
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 20; i++ {
		if !limiter.Allow("example.com") {
			t.Fatalf("expected unlimited limiter to allow request %d", i)
		}
	}
}

func TestLimiter_WaitURL_PerHost(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx := context.Background()

	if err := limiter.WaitURL(ctx, "http://example.com/q1.pptx", 0); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}
	if limiter.Allow("example.com") {
		t.Error("expected the host's token to be spent")
	}
	if !limiter.Allow("other.com") {
		t.Error("expected other host to pass")
	}
}

func TestLimiter_WaitURL_CrawlDelay(t *testing.T) {
	limiter := NewLimiter(0, 5)
	ctx := context.Background()
	deck := "http://example.com/q1.pptx"

	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := limiter.WaitURL(ctx, deck, 50*time.Millisecond); err != nil {
			t.Fatalf("wait %d failed: %v", i, err)
		}
	}
	if d := time.Since(start); d < 40*time.Millisecond {
		t.Errorf("expected the crawl delay to space requests, took %v", d)
	}

	// the delay only applies to its host
	if !limiter.Allow("other.com") {
		t.Error("expected other host to stay unlimited")
	}
}

func TestLimiter_WaitURL_InvalidURL(t *testing.T) {
	limiter := NewLimiter(10, 1)
	if err := limiter.WaitURL(context.Background(), "deck.pptx", 0); err == nil {
		t.Error("expected error for URL without host")
	}
}

func TestLimiter_SetRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	limiter.SetRate("slow.com", 0.1, 1)

	if !limiter.Allow("slow.com") {
		t.Errorf("first request should pass")
	}
	if limiter.Allow("slow.com") {
		t.Errorf("second request should fail")
	}
	if !limiter.Allow("fast.com") {
		t.Errorf("other key should pass")
	}
}
