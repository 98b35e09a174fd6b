package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jooke-shop/sourcing-cli/internal/analysis"
	"github.com/jooke-shop/sourcing-cli/internal/config"
	"github.com/jooke-shop/sourcing-cli/internal/cost"
	"github.com/jooke-shop/sourcing-cli/internal/crossval"
	"github.com/jooke-shop/sourcing-cli/internal/metrics"
	"github.com/jooke-shop/sourcing-cli/internal/pipeline"
	"github.com/jooke-shop/sourcing-cli/internal/scrape"
	"github.com/jooke-shop/sourcing-cli/internal/sheet"
	"github.com/jooke-shop/sourcing-cli/internal/store"
	anthropicpkg "github.com/jooke-shop/sourcing-cli/pkg/anthropic"
	"github.com/jooke-shop/sourcing-cli/pkg/firecrawl"
	"github.com/jooke-shop/sourcing-cli/pkg/jina"
	"github.com/jooke-shop/sourcing-cli/pkg/notion"
	"github.com/jooke-shop/sourcing-cli/pkg/openai"
)

// sinkBackend is a sheet sink that can also list its rows.
type sinkBackend interface {
	sheet.Sink
	sheet.Reader
}

// pipelineEnv holds the initialized clients and the pipeline needed by the
// analyze, batch and serve commands.
type pipelineEnv struct {
	Store    store.Store
	Sink     sinkBackend
	Scraper  *scrape.Service
	Pipeline *pipeline.Pipeline
	Metrics  *metrics.Metrics
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the configured history store and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// initSink builds the configured sheet backend.
func initSink() (sinkBackend, error) {
	if err := cfg.Validate("sheet"); err != nil {
		return nil, err
	}
	switch cfg.Sheet.Backend {
	case "notion":
		client := notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RateLimit))
		return sheet.NewNotionSink(client, cfg.Notion.DatabaseID), nil
	default:
		return sheet.NewXLSXSink(cfg.Sheet.Path, cfg.Sheet.SheetName), nil
	}
}

// initScraper builds the Firecrawl-first scrape service with the Jina Reader
// fallback. Either provider may be absent.
func initScraper() *scrape.Service {
	var fc firecrawl.Client
	if cfg.Firecrawl.Key != "" {
		fc = firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
	}
	var fallback scrape.Scraper
	if cfg.Jina.Key != "" {
		opts := []jina.Option{
			jina.WithBaseURL(cfg.Jina.BaseURL),
			jina.WithLocale(cfg.Jina.Locale),
			jina.WithRateLimit(cfg.Jina.RateLimit),
		}
		if cfg.Jina.TargetSelector != "" {
			opts = append(opts, jina.WithTargetSelector(cfg.Jina.TargetSelector))
		}
		fallback = scrape.NewJinaAdapter(jina.NewClient(cfg.Jina.Key, opts...))
	} else {
		zap.L().Debug("jina key not set, scrape fallback disabled")
	}
	return scrape.NewService(fc, fallback, scrape.WithMaxDepth(cfg.Firecrawl.MaxDepth))
}

// initRequesters builds both analysis requesters from config.
func initRequesters(c *config.Config) (analysis.Requester, analysis.Requester) {
	common := []analysis.Option{
		analysis.WithTimeout(time.Duration(c.Analysis.TimeoutSecs) * time.Second),
		analysis.WithExchangeRate(c.Analysis.ExchangeRate),
	}

	var anthropicOpts []anthropicpkg.Option
	if c.Anthropic.BaseURL != "" {
		anthropicOpts = append(anthropicOpts, anthropicpkg.WithBaseURL(c.Anthropic.BaseURL))
	}
	market := analysis.NewMarketAnalyzer(
		anthropicpkg.NewClient(c.Anthropic.Key, anthropicOpts...),
		append([]analysis.Option{
			analysis.WithModel(c.Anthropic.Model),
			analysis.WithMaxTokens(c.Anthropic.MaxTokens),
		}, common...)...,
	)

	margin := analysis.NewMarginAnalyzer(
		openai.NewClient(c.OpenAI.Key, openai.WithBaseURL(c.OpenAI.BaseURL), openai.WithModel(c.OpenAI.Model)),
		append([]analysis.Option{
			analysis.WithModel(c.OpenAI.Model),
			analysis.WithMaxTokens(int64(c.OpenAI.MaxTokens)),
		}, common...)...,
	)
	return market, margin
}

// thresholdsFromConfig maps validation settings onto the cross validator.
func thresholdsFromConfig(v config.ValidationConfig) crossval.Thresholds {
	return crossval.Thresholds{
		MarketWeight:         v.MarketWeight,
		MarginWeight:         v.MarginWeight,
		RecommendScore:       v.RecommendScore,
		RecommendConsistency: v.RecommendConsistency,
		RejectScore:          v.RejectScore,
	}
}

// initPipeline sets up the store, sink, clients and the Pipeline. Callers
// should defer env.Close().
func initPipeline(ctx context.Context, m *metrics.Metrics) (*pipelineEnv, error) {
	if err := cfg.Validate("analyze"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	sink, err := initSink()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if err := sink.EnsureHeader(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "prepare sheet")
	}

	scraper := initScraper()
	market, margin := initRequesters(cfg)

	p := pipeline.New(scraper, market, margin, crossval.New(thresholdsFromConfig(cfg.Validation)), sink,
		pipeline.WithHistory(st),
		pipeline.WithMetrics(m),
		pipeline.WithCostCalculator(cost.NewCalculator(cost.RatesFromConfig(cfg.Pricing))),
		pipeline.WithScrapeAttempts(cfg.Pipeline.ScrapeAttempts),
	)

	return &pipelineEnv{
		Store:    st,
		Sink:     sink,
		Scraper:  scraper,
		Pipeline: p,
		Metrics:  m,
	}, nil
}
