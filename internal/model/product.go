package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

var validate = validator.New()

// Product is a scraped Canadian product. It is treated as immutable once
// produced by the scraper and is shared read-only by both analysis requesters.
type Product struct {
	Name         string   `json:"name" validate:"required"`
	Brand        string   `json:"brand,omitempty"`
	PriceCAD     float64  `json:"price_cad" validate:"gte=0"`
	Category     string   `json:"category,omitempty"`
	Description  string   `json:"description,omitempty"`
	Ingredients  []string `json:"ingredients,omitempty"`
	Rating       *float64 `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	ReviewsCount *int     `json:"reviews_count,omitempty" validate:"omitempty,gte=0"`
	SourceURL    string   `json:"source_url,omitempty" validate:"omitempty,url"`
}

// Validate checks the product record before it is sent for analysis.
func (p Product) Validate() error {
	if err := validate.Struct(p); err != nil {
		return eris.Wrap(err, "product: invalid record")
	}
	return nil
}

// IngredientsText joins the ingredient list for tabular output.
func (p Product) IngredientsText() string {
	return strings.Join(p.Ingredients, ", ")
}

// RatingText renders the optional rating, empty when unknown.
func (p Product) RatingText() string {
	if p.Rating == nil {
		return ""
	}
	return strconv.FormatFloat(*p.Rating, 'f', -1, 64)
}

// ScrapeStatus is the outcome of a scrape or crawl.
type ScrapeStatus string

const (
	ScrapeStatusSuccess ScrapeStatus = "success"
	ScrapeStatusFailed  ScrapeStatus = "failed"
)

// ScrapeResult wraps a single product page scrape.
type ScrapeResult struct {
	URL       string       `json:"url"`
	Timestamp time.Time    `json:"timestamp"`
	Status    ScrapeStatus `json:"status"`
	Source    string       `json:"source,omitempty"` // firecrawl or jina
	Product   *Product     `json:"product,omitempty"`
	Markdown  string       `json:"markdown,omitempty"`
	Tokens    int          `json:"tokens,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// CrawledPage is one page returned by a category crawl.
type CrawledPage struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Markdown   string `json:"markdown"`
	StatusCode int    `json:"status_code"`
}

// CrawlResult wraps a category crawl.
type CrawlResult struct {
	BaseURL      string        `json:"base_url"`
	Timestamp    time.Time     `json:"timestamp"`
	Status       ScrapeStatus  `json:"status"`
	PagesCrawled int           `json:"pages_crawled"`
	Pages        []CrawledPage `json:"pages,omitempty"`
	Error        string        `json:"error,omitempty"`
}
