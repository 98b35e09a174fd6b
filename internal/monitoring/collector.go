// Package monitoring watches analysis outcomes and spend, and posts webhook
// alerts when configured thresholds are breached.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/internal/pipeline"
	"github.com/jooke-shop/sourcing-cli/internal/store"
)

// Snapshot holds a point-in-time view of analysis health.
type Snapshot struct {
	Total        int     `json:"total"`
	Succeeded    int     `json:"succeeded"`
	Failed       int     `json:"failed"`
	Insufficient int     `json:"insufficient"`
	Recommended  int     `json:"recommended"`
	FailRate     float64 `json:"fail_rate"`
	CostUSD      float64 `json:"cost_usd"`
	AvgScore     float64 `json:"avg_score"`

	Source        string    `json:"source"` // history or batch
	LookbackHours int       `json:"lookback_hours,omitempty"`
	CollectedAt   time.Time `json:"collected_at"`
}

// AnalysisLister is the store subset the collector reads.
type AnalysisLister interface {
	ListAnalyses(ctx context.Context, filter store.AnalysisFilter) ([]model.AnalysisRecord, error)
}

// Collector gathers snapshots from the analysis history.
type Collector struct {
	store AnalysisLister
	now   func() time.Time
}

// NewCollector creates a new collector.
func NewCollector(st AnalysisLister) *Collector {
	return &Collector{store: st, now: time.Now}
}

// historyLimit caps how many records one collection reads.
const historyLimit = 10000

// Collect summarizes analyses stored within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{
		Source:        "history",
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	recs, err := c.store.ListAnalyses(ctx, store.AnalysisFilter{
		Since: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit: historyLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list analyses")
	}

	var totalScore float64
	for _, r := range recs {
		snap.Total++
		snap.CostUSD += r.CostUSD
		switch r.Verdict.Status {
		case model.VerdictStatusSuccess:
			snap.Succeeded++
			totalScore += r.Verdict.FinalScore
		case model.VerdictStatusFailed:
			snap.Failed++
		case model.VerdictStatusInsufficientData:
			snap.Insufficient++
		}
		if r.Verdict.FinalRecommendation.Decision == model.DecisionRecommend {
			snap.Recommended++
		}
	}
	if snap.Total > 0 {
		snap.FailRate = float64(snap.Failed) / float64(snap.Total)
	}
	if snap.Succeeded > 0 {
		snap.AvgScore = totalScore / float64(snap.Succeeded)
	}
	return snap, nil
}

// FromBatch summarizes a finished batch. URLs that could not be scraped count
// as failures.
func FromBatch(b pipeline.BatchResult, at time.Time) *Snapshot {
	snap := &Snapshot{
		Total:       b.Total,
		Failed:      b.Failed,
		Recommended: b.Recommended,
		FailRate:    b.FailureRate(),
		CostUSD:     b.CostUSD,
		Source:      "batch",
		CollectedAt: at.UTC(),
	}
	var totalScore float64
	for _, r := range b.Results {
		switch r.Verdict.Status {
		case model.VerdictStatusSuccess:
			snap.Succeeded++
			totalScore += r.Verdict.FinalScore
		case model.VerdictStatusInsufficientData:
			snap.Insufficient++
		}
	}
	if snap.Succeeded > 0 {
		snap.AvgScore = totalScore / float64(snap.Succeeded)
	}
	return snap
}
