package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/deckcheck/internal/util"
)

// maxReplyBytes bounds a model API reply
const maxReplyBytes = 8 << 20

// APIError is a non-200 reply from a model API
type APIError struct {
	Status  int
	Message string // provider error text, or the raw body
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}

// errorText pulls the provider's own message out of an error body; it
// returns "" when the body has another shape
type errorText func(body []byte) string

// restClient talks JSON to the REST-only providers (anthropic, ollama, gemini)
type restClient struct {
	baseURL    string
	header     http.Header
	httpClient *http.Client
	errorText  errorText
}

func newRESTClient(config Config, defaultBaseURL string, defaultTimeout time.Duration, header http.Header, errText errorText) *restClient {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if header == nil {
		header = http.Header{}
	}
	return &restClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		header:  header,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
			},
		},
		errorText: errText,
	}
}

// get checks that path answers 200
func (c *restClient) get(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodGet, path, nil, nil)
}

// post sends in as JSON and decodes the reply into out
func (c *restClient) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *restClient) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		if c.errorText != nil {
			if msg := c.errorText(data); msg != "" {
				apiErr.Message = msg
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
