// Package jina is a client for the Jina AI Reader, used as the markdown
// fallback when a product page cannot be scraped through Firecrawl.
package jina

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://r.jina.ai"

// maxBody caps how much of a reader response is buffered.
const maxBody = 8 << 20

// Client reads a page through the Reader.
type Client interface {
	Read(ctx context.Context, targetURL string) (*ReadResponse, error)
}

// ReadResponse is the Reader's JSON envelope.
type ReadResponse struct {
	Code int      `json:"code"`
	Data ReadData `json:"data"`
}

// ReadData is the rendered page.
type ReadData struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Content     string    `json:"content"`
	Warning     string    `json:"warning,omitempty"`
	Usage       ReadUsage `json:"usage"`
}

// ReadUsage is the token count billed for the read.
type ReadUsage struct {
	Tokens int `json:"tokens"`
}

// APIError is returned for a non-200 HTTP status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jina: unexpected status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// HTTPStatus returns the provider status code.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL points the client at another Reader endpoint.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithTargetSelector limits extraction to elements matching a CSS selector,
// e.g. the product detail container of a retailer.
func WithTargetSelector(selector string) Option {
	return func(c *httpClient) { c.headers["X-Target-Selector"] = selector }
}

// WithLocale sets the browser locale used to render the page. Canadian
// retailers serve CAD prices for en-CA.
func WithLocale(locale string) Option {
	return func(c *httpClient) { c.headers["X-Locale"] = locale }
}

// WithNoCache bypasses the Reader's page cache.
func WithNoCache() Option {
	return func(c *httpClient) { c.headers["X-No-Cache"] = "true" }
}

// WithRateLimit caps requests per minute. Zero disables limiting.
func WithRateLimit(perMinute int) Option {
	return func(c *httpClient) {
		if perMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	headers map[string]string
	limiter *rate.Limiter
}

// NewClient creates a Reader client. The key is optional; keyless reads are
// limited to 20 per minute. Each Read is a single attempt.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 45 * time.Second},
		headers: map[string]string{
			"X-Return-Format": "markdown",
			"X-Locale":        "en-CA",
		},
	}
	if apiKey == "" {
		c.limiter = rate.NewLimiter(rate.Every(3*time.Second), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Read(ctx context.Context, targetURL string) (*ReadResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "jina: rate limit wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create request")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "jina: read %s", targetURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, eris.Wrap(err, "jina: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrapf(&APIError{StatusCode: resp.StatusCode, Body: string(body)}, "jina: read %s", targetURL)
	}

	var out ReadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "jina: decode response")
	}
	return &out, nil
}
