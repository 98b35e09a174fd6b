package scrape

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/pkg/firecrawl"
)

// Default crawl bounds for category pages.
const (
	DefaultMaxDepth = 2
	DefaultMaxPages = 5
)

// Service scrapes product pages through a Chain and crawls category pages
// through Firecrawl.
type Service struct {
	chain     *Chain
	firecrawl firecrawl.Client
	maxDepth  int
	pollOpts  []firecrawl.PollOption
	now       func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxDepth sets the crawl depth.
func WithMaxDepth(d int) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.maxDepth = d
		}
	}
}

// WithPollOptions passes polling options to firecrawl.PollCrawl.
func WithPollOptions(opts ...firecrawl.PollOption) ServiceOption {
	return func(s *Service) {
		s.pollOpts = append(s.pollOpts, opts...)
	}
}

// NewService creates a Service. fc may be nil when only Jina is configured;
// jinaFallback may be nil when no Jina key is set.
func NewService(fc firecrawl.Client, jinaFallback Scraper, opts ...ServiceOption) *Service {
	var primary Scraper
	if fc != nil {
		primary = NewFirecrawlAdapter(fc)
	}
	s := &Service{
		chain:     NewChain(primary, jinaFallback),
		firecrawl: fc,
		maxDepth:  DefaultMaxDepth,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ScrapeProduct extracts a product record from url. It never returns an
// error; failures are reported on the result.
func (s *Service) ScrapeProduct(ctx context.Context, url string) model.ScrapeResult {
	out := model.ScrapeResult{URL: url, Timestamp: s.now()}

	res, err := s.chain.Scrape(ctx, url)
	if err == nil && res.Product == nil {
		err = eris.Errorf("scrape: %s returned no product for %s", res.Source, url)
	}
	if err == nil {
		err = res.Product.Validate()
	}
	if err != nil {
		zap.L().Warn("scrape: product scrape failed", zap.String("url", url), zap.Error(err))
		out.Status = model.ScrapeStatusFailed
		out.Error = err.Error()
		return out
	}

	out.Status = model.ScrapeStatusSuccess
	out.Source = res.Source
	out.Product = res.Product
	out.Markdown = res.Page.Markdown
	out.Tokens = res.Tokens
	zap.L().Info("scrape: product scraped",
		zap.String("url", url),
		zap.String("source", res.Source),
		zap.String("product", res.Product.Name),
	)
	return out
}

// ScrapeCategory crawls a category page and its links up to maxPages pages.
func (s *Service) ScrapeCategory(ctx context.Context, baseURL string, maxPages int) model.CrawlResult {
	out := model.CrawlResult{BaseURL: baseURL, Timestamp: s.now()}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	pages, err := s.crawl(ctx, baseURL, maxPages)
	if err != nil {
		zap.L().Warn("scrape: category crawl failed", zap.String("url", baseURL), zap.Error(err))
		out.Status = model.ScrapeStatusFailed
		out.Error = err.Error()
		return out
	}

	out.Status = model.ScrapeStatusSuccess
	out.Pages = pages
	out.PagesCrawled = len(pages)
	return out
}

func (s *Service) crawl(ctx context.Context, baseURL string, maxPages int) ([]model.CrawledPage, error) {
	if s.firecrawl == nil {
		return nil, eris.New("scrape: crawling requires a firecrawl client")
	}

	resp, err := s.firecrawl.Crawl(ctx, firecrawl.CrawlRequest{
		URL:      baseURL,
		MaxDepth: s.maxDepth,
		Limit:    maxPages,
		ScrapeOptions: &firecrawl.ScrapeOptions{
			Formats: []string{firecrawl.FormatMarkdown},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "scrape: start crawl")
	}
	if resp.ID == "" {
		return nil, eris.New("scrape: crawl returned no job id")
	}

	status, err := firecrawl.PollCrawl(ctx, s.firecrawl, resp.ID, s.pollOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: poll crawl")
	}

	var pages []model.CrawledPage
	for _, d := range status.Data {
		if d.Markdown == "" {
			continue
		}
		pages = append(pages, model.CrawledPage{
			URL:        d.PageURL(),
			Title:      d.Metadata.Title,
			Markdown:   d.Markdown,
			StatusCode: d.Metadata.StatusCode,
		})
		if len(pages) == maxPages {
			break
		}
	}
	return pages, nil
}
