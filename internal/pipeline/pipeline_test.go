package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jooke-shop/sourcing-cli/internal/cost"
	"github.com/jooke-shop/sourcing-cli/internal/metrics"
	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/internal/resilience"
	"github.com/jooke-shop/sourcing-cli/internal/sheet"
	"github.com/jooke-shop/sourcing-cli/internal/store"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fakeRequester struct {
	name  string
	model string
	text  string
	err   error
	calls atomic.Int32
}

func (f *fakeRequester) Name() string { return f.name }

func (f *fakeRequester) RequestAnalysis(_ context.Context, _ model.Product) model.AnalysisResult {
	f.calls.Add(1)
	if f.err != nil {
		return model.FailedAnalysis(f.name, f.model, f.err, string(resilience.Classify(f.err)), fixedNow)
	}
	r := model.SuccessfulAnalysis(f.name, f.model, f.text, fixedNow)
	r.Usage = model.TokenUsage{InputTokens: 1_000_000, OutputTokens: 0}
	return r
}

type fakeScraper struct {
	mu       sync.Mutex
	failures map[string]int // url -> remaining failures
	calls    map[string]int
}

func newFakeScraper() *fakeScraper {
	return &fakeScraper{failures: map[string]int{}, calls: map[string]int{}}
}

func (f *fakeScraper) ScrapeProduct(_ context.Context, url string) model.ScrapeResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if f.failures[url] != 0 {
		f.failures[url]--
		return model.ScrapeResult{URL: url, Status: model.ScrapeStatusFailed, Error: "blocked"}
	}
	return model.ScrapeResult{
		URL:     url,
		Status:  model.ScrapeStatusSuccess,
		Source:  "firecrawl",
		Product: &model.Product{Name: "Product " + url[strings.LastIndex(url, "/")+1:], PriceCAD: 24.99, SourceURL: url},
	}
}

type recordingHistory struct {
	mu   sync.Mutex
	recs []model.AnalysisRecord
	err  error
}

func (h *recordingHistory) SaveAnalysis(_ context.Context, rec *model.AnalysisRecord) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return "", h.err
	}
	h.recs = append(h.recs, *rec)
	return "rec-" + rec.Product.Name, nil
}

func agreeing() (*fakeRequester, *fakeRequester) {
	return &fakeRequester{name: model.ProviderMarket, model: "claude-sonnet-4-5-20250929", text: `{"entry_score": 80, "margin_percent": 60, "recommend": "예"}`},
		&fakeRequester{name: model.ProviderMargin, model: "gpt-4o", text: `{"opportunity_score": 70, "net_margin_percent": 55, "recommend": "yes"}`}
}

func newSink(t *testing.T) *sheet.XLSXSink {
	t.Helper()
	return sheet.NewXLSXSink(filepath.Join(t.TempDir(), "out.xlsx"), "")
}

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		ShouldRetry:    func(error) bool { return true },
	}
}

func TestRunProduct_Recommend(t *testing.T) {
	market, margin := agreeing()
	sink := newSink(t)
	hist := &recordingHistory{}
	m := metrics.New(prometheus.NewRegistry())

	p := New(nil, market, margin, nil, sink,
		WithHistory(hist), WithMetrics(m), WithClock(func() time.Time { return fixedNow }))

	res := p.RunProduct(context.Background(), model.Product{Name: "Omega 3", PriceCAD: 24.99})

	assert.True(t, res.Market.Succeeded())
	assert.True(t, res.Margin.Succeeded())
	assert.Equal(t, model.VerdictStatusSuccess, res.Verdict.Status)
	assert.Equal(t, 75.0, res.Verdict.FinalScore)
	assert.Equal(t, model.DecisionRecommend, res.Verdict.FinalRecommendation.Decision)
	assert.Equal(t, model.PersistStatusSuccess, res.Persist.Status)
	assert.Equal(t, "2", res.Persist.Ref)
	assert.Equal(t, "rec-Omega 3", res.RecordID)
	// 1M input tokens each: $3.00 + $2.50
	assert.InDelta(t, 5.5, res.CostUSD, 1e-9)

	require.Len(t, hist.recs, 1)
	assert.InDelta(t, 5.5, hist.recs[0].CostUSD, 1e-9)
	assert.Equal(t, fixedNow, hist.recs[0].CreatedAt)

	row, err := sink.LastRow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Omega 3", row[sheet.ColProductName])
	assert.Equal(t, "recommend", row[sheet.ColFinalDecision])

	expected := `
# HELP sourcing_verdicts_total Cross validation verdicts by decision.
# TYPE sourcing_verdicts_total counter
sourcing_verdicts_total{decision="recommend"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "sourcing_verdicts_total"))
	n, err := testutil.GatherAndCount(m.Registry(), "sourcing_analyses_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunProduct_OneSideFails(t *testing.T) {
	market, margin := agreeing()
	margin.err = eris.New("openai: unexpected status 500")

	p := New(nil, market, margin, nil, newSink(t))
	res := p.RunProduct(context.Background(), model.Product{Name: "x"})

	assert.Equal(t, model.AnalysisStatusFailed, res.Margin.Status)
	assert.Equal(t, model.VerdictStatusFailed, res.Verdict.Status)
	assert.Equal(t, model.DecisionInsufficientData, res.Verdict.FinalRecommendation.Decision)
	// The failed verdict is still recorded.
	assert.Equal(t, model.PersistStatusSuccess, res.Persist.Status)
	assert.Empty(t, res.RecordID)
}

func TestRunProduct_RequestersRunConcurrently(t *testing.T) {
	gate := make(chan struct{})
	var started atomic.Int32
	market := &blockingRequester{name: model.ProviderMarket, gate: gate, started: &started}
	margin := &blockingRequester{name: model.ProviderMargin, gate: gate, started: &started}

	p := New(nil, market, margin, nil, newSink(t))

	done := make(chan model.PipelineResult, 1)
	go func() { done <- p.RunProduct(context.Background(), model.Product{Name: "x"}) }()

	require.Eventually(t, func() bool { return started.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(gate)

	select {
	case res := <-done:
		assert.True(t, res.Market.Succeeded())
		assert.True(t, res.Margin.Succeeded())
	case <-time.After(2 * time.Second):
		t.Fatal("RunProduct did not return")
	}
}

type blockingRequester struct {
	name    string
	gate    chan struct{}
	started *atomic.Int32
}

func (b *blockingRequester) Name() string { return b.name }

func (b *blockingRequester) RequestAnalysis(ctx context.Context, _ model.Product) model.AnalysisResult {
	b.started.Add(1)
	select {
	case <-b.gate:
	case <-ctx.Done():
	}
	return model.SuccessfulAnalysis(b.name, "m", `{"entry_score": 50}`, fixedNow)
}

func TestRunProduct_HistoryErrorIsLogged(t *testing.T) {
	market, margin := agreeing()
	p := New(nil, market, margin, nil, newSink(t), WithHistory(&recordingHistory{err: eris.New("db down")}))

	res := p.RunProduct(context.Background(), model.Product{Name: "x"})
	assert.Equal(t, model.VerdictStatusSuccess, res.Verdict.Status)
	assert.Empty(t, res.RecordID)
}

func TestRunProduct_NilSink(t *testing.T) {
	market, margin := agreeing()
	p := New(nil, market, margin, nil, nil)

	res := p.RunProduct(context.Background(), model.Product{Name: "x"})
	assert.Equal(t, model.PersistStatusFailed, res.Persist.Status)
	assert.Equal(t, model.VerdictStatusSuccess, res.Verdict.Status)
}

func TestRun_RetriesScrape(t *testing.T) {
	market, margin := agreeing()
	sc := newFakeScraper()
	sc.failures["https://shop.example/p/1"] = 1

	p := New(sc, market, margin, nil, newSink(t), WithRetryConfig(fastRetry(2)))
	res, err := p.Run(context.Background(), "https://shop.example/p/1")
	require.NoError(t, err)
	assert.Equal(t, 2, sc.calls["https://shop.example/p/1"])
	require.NotNil(t, res.Scrape)
	assert.Equal(t, model.ScrapeStatusSuccess, res.Scrape.Status)
	assert.Equal(t, "Product 1", res.Product.Name)
	assert.Equal(t, model.DecisionRecommend, res.Verdict.FinalRecommendation.Decision)
}

func TestPipeline_ScrapeCost(t *testing.T) {
	p := New(nil, nil, nil, nil, nil, WithCostCalculator(cost.NewCalculator(cost.Rates{
		Jina:      cost.JinaRate{PerMTok: 2},
		Firecrawl: cost.FirecrawlRate{PlanMonthly: 100, CreditsIncluded: 1000},
	})))

	assert.InDelta(t, 0.1, p.scrapeCost(model.ScrapeResult{Source: "firecrawl"}), 1e-12)
	assert.InDelta(t, 1.0, p.scrapeCost(model.ScrapeResult{Source: "jina", Tokens: 500_000}), 1e-12)
	assert.Zero(t, p.scrapeCost(model.ScrapeResult{}))
}

func TestRun_ScrapeExhausted(t *testing.T) {
	market, margin := agreeing()
	sc := newFakeScraper()
	sc.failures["https://shop.example/p/1"] = 5

	p := New(sc, market, margin, nil, newSink(t), WithRetryConfig(fastRetry(3)))
	res, err := p.Run(context.Background(), "https://shop.example/p/1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
	assert.Equal(t, 3, sc.calls["https://shop.example/p/1"])
	require.NotNil(t, res.Scrape)
	assert.Equal(t, model.ScrapeStatusFailed, res.Scrape.Status)
	assert.Zero(t, market.calls.Load())
}

func TestRun_NoScraper(t *testing.T) {
	market, margin := agreeing()
	_, err := New(nil, market, margin, nil, nil).Run(context.Background(), "https://x")
	require.Error(t, err)
	assert.Equal(t, resilience.KindConfig, resilience.Classify(err))
}

func TestWithScrapeAttempts(t *testing.T) {
	p := New(nil, nil, nil, nil, nil, WithScrapeAttempts(4))
	assert.Equal(t, 4, p.retry.MaxAttempts)

	p = New(nil, nil, nil, nil, nil, WithScrapeAttempts(0))
	assert.Equal(t, resilience.DefaultRetryConfig().MaxAttempts, p.retry.MaxAttempts)
}

func TestRunBatch(t *testing.T) {
	market, margin := agreeing()
	sc := newFakeScraper()
	sc.failures["https://shop.example/p/3"] = 10

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "batch.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	defer st.Close() //nolint:errcheck

	p := New(sc, market, margin, nil, newSink(t), WithHistory(st), WithRetryConfig(fastRetry(1)))

	urls := []string{"https://shop.example/p/1", "https://shop.example/p/2", "https://shop.example/p/3", "https://shop.example/p/4"}
	out := p.RunBatch(context.Background(), urls, 2)

	assert.Equal(t, 4, out.Total)
	assert.Equal(t, 3, out.Analysed)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, 1, out.ScrapeFailed)
	assert.Equal(t, 3, out.Recommended)
	assert.InDelta(t, 0.25, out.FailureRate(), 1e-9)
	// Three analyses at 5.5 each plus one Firecrawl credit per scrape.
	assert.InDelta(t, 16.5+3*19.0/3000, out.CostUSD, 1e-9)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "https://shop.example/p/3", out.Failures[0].URL)

	require.Len(t, out.Results, 3)
	assert.Equal(t, "Product 1", out.Results[0].Product.Name)
	assert.Equal(t, "Product 4", out.Results[2].Product.Name)

	recs, err := st.ListAnalyses(context.Background(), store.AnalysisFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestRunBatch_FailedVerdictCountsAsFailed(t *testing.T) {
	market, margin := agreeing()
	margin.err = eris.New("openai: unexpected status 500")
	sc := newFakeScraper()
	sc.failures["https://shop.example/p/2"] = 10

	p := New(sc, market, margin, nil, newSink(t), WithRetryConfig(fastRetry(1)))
	out := p.RunBatch(context.Background(), []string{"https://shop.example/p/1", "https://shop.example/p/2"}, 2)

	assert.Equal(t, 2, out.Total)
	assert.Zero(t, out.Analysed)
	assert.Equal(t, 2, out.Failed)
	assert.Equal(t, 1, out.ScrapeFailed)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "https://shop.example/p/2", out.Failures[0].URL)
	require.Len(t, out.Results, 1)
	assert.Equal(t, model.VerdictStatusFailed, out.Results[0].Verdict.Status)
	assert.InDelta(t, 1.0, out.FailureRate(), 1e-9)
}

func TestRunBatch_Empty(t *testing.T) {
	market, margin := agreeing()
	out := New(newFakeScraper(), market, margin, nil, nil).RunBatch(context.Background(), nil, 0)
	assert.Zero(t, out.Total)
	assert.Zero(t, out.FailureRate())
}
