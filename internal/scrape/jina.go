package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/pkg/jina"
)

// JinaAdapter wraps a Jina Reader client as a Scraper. Jina returns page
// markdown only, so the product is assembled from the title, description
// and the first price in the text.
type JinaAdapter struct {
	client jina.Client
}

// NewJinaAdapter creates a JinaAdapter from a Jina client.
func NewJinaAdapter(client jina.Client) *JinaAdapter {
	return &JinaAdapter{client: client}
}

// Name implements Scraper.
func (j *JinaAdapter) Name() string { return SourceJina }

// Supports implements Scraper.
func (j *JinaAdapter) Supports(_ string) bool { return true }

// Scrape fetches a URL via Jina Reader and validates the response.
func (j *JinaAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := j.client.Read(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	if resp.Code != 0 && resp.Code != 200 {
		return nil, eris.Errorf("jina: reader returned code %d for %s", resp.Code, targetURL)
	}
	if blocked, kind := DetectBlock(resp.Data.Content); blocked {
		return nil, eris.Errorf("jina: page blocked (%s): %s", kind, targetURL)
	}

	page := model.CrawledPage{
		URL:        resp.Data.URL,
		Title:      strings.TrimSpace(resp.Data.Title),
		Markdown:   resp.Data.Content,
		StatusCode: resp.Code,
	}
	if page.URL == "" {
		page.URL = targetURL
	}
	if page.Title == "" {
		return nil, eris.Errorf("jina: no title for %s", targetURL)
	}

	desc := strings.TrimSpace(resp.Data.Description)
	if desc == "" {
		desc = truncateRunes(strings.TrimSpace(resp.Data.Content), 1000)
	}
	product := &model.Product{
		Name:        page.Title,
		Description: desc,
		SourceURL:   page.URL,
	}
	if price, ok := findPrice(resp.Data.Content); ok {
		product.PriceCAD = price
	}
	return &Result{Page: page, Product: product, Source: SourceJina, Tokens: resp.Data.Usage.Tokens}, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
