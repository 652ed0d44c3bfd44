package util

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

const (
	robotsTTL        = 24 * time.Hour
	robotsFailureTTL = 10 * time.Minute
)

// RobotsPolicy is the robots.txt verdict for one deck URL
type RobotsPolicy struct {
	Allowed    bool
	CrawlDelay time.Duration
}

// allowAll is recorded for origins whose robots.txt cannot be fetched
var allowAll = RobotsPolicy{Allowed: true}

// RobotsChecker decides whether a remote deck may be downloaded. Rules are
// kept per origin, so one robots.txt request serves every deck on a host.
type RobotsChecker struct {
	rules      *gocache.Cache // origin -> *robotstxt.RobotsData, nil when unreachable
	httpClient *http.Client
	userAgent  string
	agent      string
}

// NewRobotsChecker creates a checker that identifies itself with userAgent
func NewRobotsChecker(userAgent string, client *http.Client) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsChecker{
		rules:      gocache.New(robotsTTL, time.Hour),
		httpClient: client,
		userAgent:  userAgent,
		agent:      NormalizeUserAgent(userAgent),
	}
}

// Check returns the policy for rawURL. An unreachable robots.txt allows the
// download; only a malformed URL is an error.
func (r *RobotsChecker) Check(ctx context.Context, rawURL string) (RobotsPolicy, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return RobotsPolicy{}, fmt.Errorf("invalid deck URL %q", rawURL)
	}

	data := r.rulesFor(ctx, parsed.Scheme+"://"+parsed.Host)
	if data == nil {
		return allowAll, nil
	}

	policy := RobotsPolicy{Allowed: data.TestAgent(parsed.EscapedPath(), r.agent)}
	if group := data.FindGroup(r.agent); group != nil {
		policy.CrawlDelay = group.CrawlDelay
	}
	return policy, nil
}

func (r *RobotsChecker) rulesFor(ctx context.Context, origin string) *robotstxt.RobotsData {
	if cached, ok := r.rules.Get(origin); ok {
		data, _ := cached.(*robotstxt.RobotsData)
		return data
	}

	data, err := r.fetch(ctx, origin+"/robots.txt")
	if err != nil {
		r.rules.Set(origin, (*robotstxt.RobotsData)(nil), robotsFailureTTL)
		return nil
	}
	r.rules.Set(origin, data, gocache.DefaultExpiration)
	return data
}

func (r *RobotsChecker) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	// 4xx allows everything, 5xx disallows everything
	return robotstxt.FromResponse(resp)
}

// NormalizeUserAgent reduces a user agent to its product token, the name
// robots.txt groups are matched against
func NormalizeUserAgent(ua string) string {
	token, _, _ := strings.Cut(strings.TrimSpace(ua), " ")
	token, _, _ = strings.Cut(token, "/")
	return token
}
