package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/internal/store"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAnalysis(model.AnalysisResult{Provider: model.ProviderMarket, Status: model.AnalysisStatusSuccess, DurationMs: 1200})
	m.ObserveAnalysis(model.AnalysisResult{Provider: model.ProviderMarket, Status: model.AnalysisStatusFailed})
	m.ObserveAnalysis(model.AnalysisResult{Provider: model.ProviderMargin, Status: model.AnalysisStatusSuccess})
	m.ObserveVerdict(model.Verdict{FinalRecommendation: model.Recommendation{Decision: model.DecisionRecommend}})
	m.ObserveInquiry(model.InquiryClassification{Category: "shipping"})
	m.ObservePersist(model.PersistOutcome{Status: model.PersistStatusFailed})
	m.ObserveNotification(model.NotificationResult{MessageType: model.MessageShipped, Status: "success"})
	m.AddCost(0.25)
	m.AddCost(-1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.analyses.WithLabelValues(model.ProviderMarket, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.analyses.WithLabelValues(model.ProviderMarket, "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verdicts.WithLabelValues("recommend")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inquiries.WithLabelValues("shipping")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sinkAppends.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues(model.MessageShipped, "success")))
	assert.InDelta(t, 0.25, testutil.ToFloat64(m.costUSD), 1e-9)
	assert.Equal(t, 2, testutil.CollectAndCount(m.analysisTime))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAnalysis(model.AnalysisResult{})
		m.ObserveVerdict(model.Verdict{})
		m.ObserveInquiry(model.InquiryClassification{})
		m.ObservePersist(model.PersistOutcome{})
		m.ObserveNotification(model.NotificationResult{})
		m.AddCost(1)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := New(nil)
	m.ObserveInquiry(model.InquiryClassification{Category: "refund"})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sourcing_inquiries_total{category="refund"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestHistoryCollector(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	defer st.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, d := range []model.Decision{model.DecisionRecommend, model.DecisionRecommend, model.DecisionHold} {
		_, err := st.SaveAnalysis(context.Background(), &model.AnalysisRecord{
			Product:   model.Product{Name: "p"},
			Verdict:   model.Verdict{FinalRecommendation: model.Recommendation{Decision: d}},
			CreatedAt: now.Add(-time.Hour),
		})
		require.NoError(t, err)
	}

	c := NewHistoryCollector(st, 24*time.Hour)
	expected := `
# HELP sourcing_history_analyses Stored analyses in the trailing window by decision.
# TYPE sourcing_history_analyses gauge
sourcing_history_analyses{decision="hold"} 1
sourcing_history_analyses{decision="insufficient data"} 0
sourcing_history_analyses{decision="recommend"} 2
sourcing_history_analyses{decision="reject"} 0
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}
