package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/pkg/firecrawl"
)

// ProductSchema is the JSON schema Firecrawl extracts product fields with.
func ProductSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"product_name":  map[string]any{"type": "string"},
			"price":         map[string]any{"type": "string"},
			"brand":         map[string]any{"type": "string"},
			"category":      map[string]any{"type": "string"},
			"description":   map[string]any{"type": "string"},
			"ingredients":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"reviews_count": map[string]any{"type": "number"},
			"rating":        map[string]any{"type": "number"},
		},
		"required": []string{"product_name", "price"},
	}
}

// FirecrawlAdapter wraps a Firecrawl client as a Scraper that extracts
// structured product fields alongside the page markdown.
type FirecrawlAdapter struct {
	client firecrawl.Client
}

// NewFirecrawlAdapter creates a FirecrawlAdapter from a Firecrawl client.
func NewFirecrawlAdapter(client firecrawl.Client) *FirecrawlAdapter {
	return &FirecrawlAdapter{client: client}
}

// Name implements Scraper.
func (f *FirecrawlAdapter) Name() string { return SourceFirecrawl }

// Supports returns true. Firecrawl can attempt any URL.
func (f *FirecrawlAdapter) Supports(_ string) bool { return true }

// Scrape fetches a single URL via Firecrawl's scrape API with extraction.
func (f *FirecrawlAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:     targetURL,
		Formats: []string{firecrawl.FormatMarkdown, firecrawl.FormatExtract},
		Extract: &firecrawl.ExtractConfig{Schema: ProductSchema()},
	})
	if err != nil {
		return nil, err
	}

	page := model.CrawledPage{
		URL:        resp.Data.PageURL(),
		Title:      resp.Data.Metadata.Title,
		Markdown:   resp.Data.Markdown,
		StatusCode: resp.Data.Metadata.StatusCode,
	}
	if page.URL == "" {
		page.URL = targetURL
	}

	product, err := productFromExtract(resp.Data.Extract, page)
	if err != nil {
		return nil, err
	}
	return &Result{Page: page, Product: product, Source: SourceFirecrawl}, nil
}

// productFromExtract builds a Product from Firecrawl's extract object. A
// missing name falls back to the page title; a missing price to the first
// dollar amount in the markdown.
func productFromExtract(extract map[string]any, page model.CrawledPage) (*model.Product, error) {
	p := &model.Product{
		Name:        stringField(extract, "product_name"),
		Brand:       stringField(extract, "brand"),
		Category:    stringField(extract, "category"),
		Description: stringField(extract, "description"),
		Ingredients: stringsField(extract, "ingredients"),
		SourceURL:   page.URL,
	}
	if p.Name == "" {
		p.Name = strings.TrimSpace(page.Title)
	}
	if p.Name == "" {
		return nil, eris.Errorf("firecrawl: no product name extracted from %s", page.URL)
	}

	price, ok := priceField(extract["price"])
	if !ok {
		price, ok = findPrice(page.Markdown)
	}
	if !ok {
		return nil, eris.Errorf("firecrawl: no price extracted from %s", page.URL)
	}
	p.PriceCAD = price

	if r, ok := numberField(extract["rating"]); ok && r >= 0 && r <= 5 {
		p.Rating = &r
	}
	if n, ok := numberField(extract["reviews_count"]); ok && n >= 0 {
		count := int(n)
		p.ReviewsCount = &count
	}
	return p, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func stringsField(m map[string]any, key string) []string {
	var out []string
	switch v := m[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func priceField(v any) (float64, bool) {
	switch p := v.(type) {
	case float64:
		return p, p >= 0
	case string:
		return ParsePrice(p)
	default:
		return 0, false
	}
}

func numberField(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		return ParsePrice(n)
	default:
		return 0, false
	}
}
