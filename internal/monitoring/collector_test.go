package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/internal/pipeline"
	"github.com/jooke-shop/sourcing-cli/internal/store"
)

type mockLister struct {
	recs    []model.AnalysisRecord
	listErr error
	filter  store.AnalysisFilter
}

func (m *mockLister) ListAnalyses(_ context.Context, filter store.AnalysisFilter) ([]model.AnalysisRecord, error) {
	m.filter = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.AnalysisRecord
	for _, r := range m.recs {
		if !filter.Since.IsZero() && r.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func record(status model.VerdictStatus, decision model.Decision, score, cost float64, at time.Time) model.AnalysisRecord {
	return model.AnalysisRecord{
		Verdict: model.Verdict{
			Status:              status,
			FinalScore:          score,
			FinalRecommendation: model.Recommendation{Decision: decision},
		},
		CostUSD:   cost,
		CreatedAt: at,
	}
}

func TestCollector_Collect(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	st := &mockLister{recs: []model.AnalysisRecord{
		record(model.VerdictStatusSuccess, model.DecisionRecommend, 80, 0.02, now.Add(-time.Hour)),
		record(model.VerdictStatusSuccess, model.DecisionHold, 60, 0.03, now.Add(-2*time.Hour)),
		record(model.VerdictStatusFailed, model.DecisionInsufficientData, 0, 0.01, now.Add(-3*time.Hour)),
		record(model.VerdictStatusInsufficientData, model.DecisionInsufficientData, 0, 0.01, now.Add(-4*time.Hour)),
		record(model.VerdictStatusSuccess, model.DecisionRecommend, 90, 1.00, now.Add(-48*time.Hour)),
	}}

	c := NewCollector(st)
	c.now = func() time.Time { return now }

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Total)
	assert.Equal(t, 2, snap.Succeeded)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.Insufficient)
	assert.Equal(t, 1, snap.Recommended)
	assert.InDelta(t, 0.25, snap.FailRate, 1e-9)
	assert.InDelta(t, 0.07, snap.CostUSD, 1e-9)
	assert.InDelta(t, 70.0, snap.AvgScore, 1e-9)
	assert.Equal(t, "history", snap.Source)
	assert.Equal(t, now.Add(-24*time.Hour), st.filter.Since)
	assert.Equal(t, historyLimit, st.filter.Limit)
}

func TestCollector_Collect_Empty(t *testing.T) {
	snap, err := NewCollector(&mockLister{}).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Zero(t, snap.Total)
	assert.Zero(t, snap.FailRate)
	assert.Zero(t, snap.AvgScore)
}

func TestCollector_Collect_Error(t *testing.T) {
	_, err := NewCollector(&mockLister{listErr: errors.New("db down")}).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list analyses")
}

func TestFromBatch(t *testing.T) {
	at := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	b := pipeline.BatchResult{
		Total:       5,
		Analysed:    3,
		Failed:      2,
		Recommended: 1,
		CostUSD:     0.5,
		Results: []model.PipelineResult{
			{Verdict: model.Verdict{Status: model.VerdictStatusSuccess, FinalScore: 75}},
			{Verdict: model.Verdict{Status: model.VerdictStatusSuccess, FinalScore: 45}},
			{Verdict: model.Verdict{Status: model.VerdictStatusInsufficientData}},
			{Verdict: model.Verdict{Status: model.VerdictStatusFailed}},
		},
	}

	snap := FromBatch(b, at)
	assert.Equal(t, 5, snap.Total)
	assert.Equal(t, 2, snap.Failed)
	assert.Equal(t, 2, snap.Succeeded)
	assert.Equal(t, 1, snap.Insufficient)
	assert.InDelta(t, 0.4, snap.FailRate, 1e-9)
	assert.InDelta(t, 60.0, snap.AvgScore, 1e-9)
	assert.Equal(t, "batch", snap.Source)
	assert.Equal(t, at, snap.CollectedAt)
}
