package scrape

import (
	"context"

	"github.com/jooke-shop/sourcing-cli/internal/model"
)

// Source names reported on results.
const (
	SourceFirecrawl = "firecrawl"
	SourceJina      = "jina"
)

// Result holds a scraped product page with its source.
type Result struct {
	Page    model.CrawledPage
	Product *model.Product
	Source  string
	// Tokens is the Reader's billed token count; zero for Firecrawl, which
	// bills one credit per scrape.
	Tokens int
}

// Scraper fetches a single product URL.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}
