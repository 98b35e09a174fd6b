package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-api-key", WithBaseURL(srv.URL))
	return srv, c
}

func TestScrape_WithExtractSchema(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scrape", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))

		var req ScrapeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{FormatMarkdown, FormatExtract}, req.Formats)
		require.NotNil(t, req.Extract)
		assert.Equal(t, []any{"product_name", "price"}, req.Extract.Schema["required"])

		_, _ = w.Write([]byte(`{
			"success": true,
			"data": {
				"markdown": "# Omega-3 Fish Oil",
				"extract": {"product_name": "Omega-3 Fish Oil", "price": "$24.99", "brand": "Jamieson"},
				"metadata": {"title": "Omega-3 | Well.ca", "sourceURL": "https://well.ca/products/omega", "statusCode": 200}
			}
		}`))
	})

	resp, err := c.Scrape(context.Background(), ScrapeRequest{
		URL:     "https://well.ca/products/omega",
		Formats: []string{FormatMarkdown, FormatExtract},
		Extract: &ExtractConfig{Schema: map[string]any{
			"type":     "object",
			"required": []string{"product_name", "price"},
		}},
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Omega-3 Fish Oil", resp.Data.Extract["product_name"])
	assert.Equal(t, "$24.99", resp.Data.Extract["price"])
	assert.Equal(t, "Omega-3 | Well.ca", resp.Data.Metadata.Title)
	assert.Equal(t, "https://well.ca/products/omega", resp.Data.PageURL())
	assert.Equal(t, 200, resp.Data.Metadata.StatusCode)
}

func TestScrape_Errors(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantErr    string
		wantStatus int
	}{
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limited"}`))
			},
			wantErr:    "HTTP 429",
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name: "payment required",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusPaymentRequired)
				_, _ = w.Write([]byte(`{"error":"insufficient credits"}`))
			},
			wantErr:    "HTTP 402",
			wantStatus: http.StatusPaymentRequired,
		},
		{
			name: "unsuccessful body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"success": false, "error": "page blocked"}`))
			},
			wantErr: "page blocked",
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{not json`))
			},
			wantErr: "decode response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newTestServer(t, tt.handler)
			resp, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://example.com/p"})
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.Contains(t, err.Error(), tt.wantErr)
			if tt.wantStatus != 0 {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantStatus, apiErr.HTTPStatus())
			}
		})
	}
}

func TestCrawl(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantID     string
		wantStatus int
	}{
		{
			name: "happy path",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/crawl", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var req CrawlRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "https://well.ca/categories/vitamins", req.URL)
				assert.Equal(t, 2, req.MaxDepth)
				assert.Equal(t, 5, req.Limit)
				require.NotNil(t, req.ScrapeOptions)
				assert.Equal(t, []string{FormatMarkdown}, req.ScrapeOptions.Formats)

				_ = json.NewEncoder(w).Encode(CrawlResponse{Success: true, ID: "crawl-123"})
			},
			wantID: "crawl-123",
		},
		{
			name: "auth error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newTestServer(t, tt.handler)
			resp, err := c.Crawl(context.Background(), CrawlRequest{
				URL:           "https://well.ca/categories/vitamins",
				MaxDepth:      2,
				Limit:         5,
				ScrapeOptions: &ScrapeOptions{Formats: []string{FormatMarkdown}},
			})

			if tt.wantStatus != 0 {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, resp.ID)
		})
	}
}

func TestGetCrawlStatus(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/crawl/crawl-123", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"status": "completed",
			"total": 2,
			"completed": 2,
			"data": [
				{"markdown": "# Vitamins", "metadata": {"title": "Vitamins", "sourceURL": "https://well.ca/c/1", "statusCode": 200}},
				{"markdown": "# Fish oil", "metadata": {"title": "Fish oil", "sourceURL": "https://well.ca/c/2", "statusCode": 200}}
			]
		}`))
	})

	resp, err := c.GetCrawlStatus(context.Background(), "crawl-123")
	require.NoError(t, err)
	assert.Equal(t, "completed", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "https://well.ca/c/2", resp.Data[1].PageURL())
}

func TestGetCrawlStatus_Error(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	})

	_, err := c.GetCrawlStatus(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crawl status nonexistent")
}

func TestContextCancellation(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should have been cancelled")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Crawl(ctx, CrawlRequest{URL: "https://example.com"})
	require.Error(t, err)
}

func TestAPIError_Error(t *testing.T) {
	t.Parallel()
	e := &APIError{StatusCode: 502, Body: "<html>bad gateway</html>\n"}
	assert.Equal(t, "firecrawl: HTTP 502: <html>bad gateway</html>", e.Error())
	assert.Equal(t, 502, e.HTTPStatus())

	e = &APIError{StatusCode: 429, Body: `{"error":"rate limited"}`, Message: "rate limited"}
	assert.Equal(t, "firecrawl: HTTP 429: rate limited", e.Error())
}

func TestScrape_RateLimitDetails(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"success":false,"error":"Rate limit exceeded"}`))
	})

	_, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://well.ca/p"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Rate limit exceeded", apiErr.Message)
	assert.Equal(t, 12*time.Second, apiErr.RetryAfter)
	assert.Contains(t, err.Error(), "scrape https://well.ca/p")
}

func TestClientOptions(t *testing.T) {
	t.Parallel()
	customClient := &http.Client{}
	hc := NewClient("key", WithHTTPClient(customClient), WithTimeout(5*time.Second), WithBaseURL("http://localhost:3002/v1/")).(*httpClient)
	assert.Same(t, customClient, hc.http)
	assert.Equal(t, 5*time.Second, hc.http.Timeout)
	assert.Equal(t, "http://localhost:3002/v1", hc.baseURL)

	hc = NewClient("key", WithBaseURL("")).(*httpClient)
	assert.Equal(t, defaultBaseURL, hc.baseURL)
	assert.Equal(t, 90*time.Second, hc.http.Timeout)
}
