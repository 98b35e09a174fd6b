package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jooke-shop/sourcing-cli/internal/model"
)

// DefaultConcurrency bounds RunBatch when no limit is given.
const DefaultConcurrency = 3

// URLFailure is a batch entry whose page could not be scraped.
type URLFailure struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// BatchResult summarizes a batch run. Results keep input order. Failed
// counts every URL without a usable verdict; ScrapeFailed is the subset whose
// page yielded no product and which appear in Failures.
type BatchResult struct {
	Total        int                    `json:"total"`
	Analysed     int                    `json:"analysed"`
	Failed       int                    `json:"failed"`
	ScrapeFailed int                    `json:"scrape_failed"`
	Recommended  int                    `json:"recommended"`
	CostUSD      float64                `json:"cost_usd"`
	Results      []model.PipelineResult `json:"results"`
	Failures     []URLFailure           `json:"failures,omitempty"`
	DurationMs   int64                  `json:"duration_ms"`
}

// FailureRate is the share of URLs that produced no usable verdict.
func (b BatchResult) FailureRate() float64 {
	if b.Total == 0 {
		return 0
	}
	return float64(b.Failed) / float64(b.Total)
}

// RunBatch runs up to concurrency URLs at a time. A failing URL is logged and
// counted; it never stops the batch.
func (p *Pipeline) RunBatch(ctx context.Context, urls []string, concurrency int) BatchResult {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	start := p.now()

	results := make([]model.PipelineResult, len(urls))
	errs := make([]error, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	done := 0
	for i, u := range urls {
		g.Go(func() error {
			res, err := p.Run(gctx, u)
			results[i] = res
			errs[i] = err

			mu.Lock()
			done++
			n := done
			mu.Unlock()

			if err != nil {
				zap.L().Warn("pipeline: batch url failed",
					zap.String("url", u), zap.Int("done", n), zap.Int("total", len(urls)), zap.Error(err))
			} else {
				zap.L().Info("pipeline: batch progress",
					zap.String("url", u), zap.Int("done", n), zap.Int("total", len(urls)))
			}
			return nil
		})
	}
	_ = g.Wait()

	out := BatchResult{Total: len(urls)}
	for i, res := range results {
		if errs[i] != nil {
			out.Failed++
			out.ScrapeFailed++
			out.Failures = append(out.Failures, URLFailure{URL: urls[i], Error: errs[i].Error()})
			continue
		}
		out.Results = append(out.Results, res)
		out.CostUSD += res.CostUSD
		if res.Verdict.Status == model.VerdictStatusFailed {
			out.Failed++
			continue
		}
		out.Analysed++
		if res.Verdict.FinalRecommendation.Decision == model.DecisionRecommend {
			out.Recommended++
		}
	}
	out.DurationMs = p.now().Sub(start).Milliseconds()

	zap.L().Info("pipeline: batch complete",
		zap.Int("total", out.Total),
		zap.Int("analysed", out.Analysed),
		zap.Int("failed", out.Failed),
		zap.Int("scrape_failed", out.ScrapeFailed),
		zap.Int("recommended", out.Recommended),
		zap.Float64("cost_usd", out.CostUSD),
	)
	return out
}
