// Package pipeline runs a product through scraping, both analyses, cross
// validation and persistence.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jooke-shop/sourcing-cli/internal/analysis"
	"github.com/jooke-shop/sourcing-cli/internal/cost"
	"github.com/jooke-shop/sourcing-cli/internal/crossval"
	"github.com/jooke-shop/sourcing-cli/internal/metrics"
	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/internal/resilience"
	"github.com/jooke-shop/sourcing-cli/internal/sheet"
)

// Scraper extracts a product record from a page URL.
type Scraper interface {
	ScrapeProduct(ctx context.Context, url string) model.ScrapeResult
}

// History records each analysed product for reporting.
type History interface {
	SaveAnalysis(ctx context.Context, rec *model.AnalysisRecord) (string, error)
}

// Pipeline wires the analysis flow for single products and batches.
type Pipeline struct {
	scraper   Scraper
	market    analysis.Requester
	margin    analysis.Requester
	validator *crossval.Validator
	sink      sheet.Sink
	history   History
	metrics   *metrics.Metrics
	costCalc  *cost.Calculator
	retry     resilience.RetryConfig
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHistory saves an AnalysisRecord per product.
func WithHistory(h History) Option {
	return func(p *Pipeline) { p.history = h }
}

// WithMetrics records Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithCostCalculator overrides the default pricing table.
func WithCostCalculator(c *cost.Calculator) Option {
	return func(p *Pipeline) { p.costCalc = c }
}

// WithScrapeAttempts sets how many times a failed scrape is attempted.
func WithScrapeAttempts(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.retry.MaxAttempts = n
		}
	}
}

// WithRetryConfig replaces the scrape retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(p *Pipeline) { p.retry = cfg }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline. scraper may be nil when only RunProduct is used.
func New(
	scraper Scraper,
	market, margin analysis.Requester,
	validator *crossval.Validator,
	sink sheet.Sink,
	opts ...Option,
) *Pipeline {
	if validator == nil {
		validator = crossval.New(crossval.DefaultThresholds())
	}
	retry := resilience.DefaultRetryConfig()
	// Scrape failures arrive flattened into the result, so every one is
	// considered retryable.
	retry.ShouldRetry = func(error) bool { return true }
	retry.OnRetry = resilience.RetryLogger("scrape", "scrape_product")

	p := &Pipeline{
		scraper:   scraper,
		market:    market,
		margin:    margin,
		validator: validator,
		sink:      sink,
		costCalc:  cost.NewCalculator(cost.DefaultRates()),
		retry:     retry,
		now:       time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run scrapes url and analyses the product. An error is returned only when no
// product could be extracted; the scrape outcome is still attached.
func (p *Pipeline) Run(ctx context.Context, url string) (model.PipelineResult, error) {
	if p.scraper == nil {
		return model.PipelineResult{}, resilience.NewConfigError("no scraper configured", "firecrawl.key")
	}

	sr, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) (model.ScrapeResult, error) {
		res := p.scraper.ScrapeProduct(ctx, url)
		if res.Status != model.ScrapeStatusSuccess || res.Product == nil {
			return res, eris.Errorf("pipeline: scrape %s: %s", url, res.Error)
		}
		return res, nil
	})
	if err != nil {
		failed := model.ScrapeResult{URL: url, Timestamp: p.now(), Status: model.ScrapeStatusFailed, Error: err.Error()}
		return model.PipelineResult{Scrape: &failed}, err
	}

	res := p.RunProduct(ctx, *sr.Product)
	res.Scrape = &sr

	scrapeCost := p.scrapeCost(sr)
	res.CostUSD += scrapeCost
	p.metrics.AddCost(scrapeCost)
	return res, nil
}

// scrapeCost prices a successful scrape: one Firecrawl credit, or the
// Reader's billed tokens.
func (p *Pipeline) scrapeCost(sr model.ScrapeResult) float64 {
	switch sr.Source {
	case "firecrawl":
		return p.costCalc.FirecrawlCredits(1)
	case "jina":
		return p.costCalc.Jina(sr.Tokens)
	default:
		return 0
	}
}

// RunProduct analyses an already extracted product. It never fails: every
// problem is reported inside the result.
func (p *Pipeline) RunProduct(ctx context.Context, product model.Product) model.PipelineResult {
	start := p.now()
	log := zap.L().With(zap.String("product", product.Name))
	log.Info("pipeline: analysing product")

	out := model.PipelineResult{Product: product}

	// Requesters fold errors into their results, so the group never fails.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out.Market = p.market.RequestAnalysis(gctx, product)
		return nil
	})
	g.Go(func() error {
		out.Margin = p.margin.RequestAnalysis(gctx, product)
		return nil
	})
	_ = g.Wait()

	p.metrics.ObserveAnalysis(out.Market)
	p.metrics.ObserveAnalysis(out.Margin)

	out.Verdict = p.validator.Validate(out.Market, out.Margin)
	p.metrics.ObserveVerdict(out.Verdict)

	out.Persist = sheet.Persist(ctx, p.sink, product, out.Market, out.Margin, out.Verdict)
	p.metrics.ObservePersist(out.Persist)

	out.CostUSD = p.costCalc.Claude(out.Market.Model, out.Market.Usage.InputTokens, out.Market.Usage.OutputTokens) +
		p.costCalc.OpenAI(out.Margin.Model, out.Margin.Usage.InputTokens, out.Margin.Usage.OutputTokens)
	p.metrics.AddCost(out.CostUSD)

	if p.history != nil {
		rec := &model.AnalysisRecord{
			Product:   product,
			Market:    out.Market,
			Margin:    out.Margin,
			Verdict:   out.Verdict,
			CostUSD:   out.CostUSD,
			CreatedAt: p.now(),
		}
		id, err := p.history.SaveAnalysis(ctx, rec)
		if err != nil {
			log.Warn("pipeline: save history failed", zap.Error(err))
		}
		out.RecordID = id
	}

	out.Duration = p.now().Sub(start).Milliseconds()
	log.Info("pipeline: product complete",
		zap.String("verdict", string(out.Verdict.Status)),
		zap.String("decision", string(out.Verdict.FinalRecommendation.Decision)),
		zap.Float64("final_score", out.Verdict.FinalScore),
		zap.String("persist", string(out.Persist.Status)),
		zap.Float64("cost_usd", out.CostUSD),
		zap.Int64("duration_ms", out.Duration),
	)
	return out
}
