// Package metrics exposes Prometheus instrumentation for the sourcing
// workflow.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/internal/store"
)

const namespace = "sourcing"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	analyses      *prometheus.CounterVec
	analysisTime  *prometheus.HistogramVec
	verdicts      *prometheus.CounterVec
	inquiries     *prometheus.CounterVec
	sinkAppends   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	costUSD       prometheus.Counter
}

// New creates and registers the collectors on reg. A nil reg gets a fresh
// registry with the Go and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: reg,
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Analysis requests by provider and status.",
		}, []string{"provider", "status"}),
		analysisTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Analysis request latency by provider.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"provider"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Cross validation verdicts by decision.",
		}, []string{"decision"}),
		inquiries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inquiries_total",
			Help:      "Classified customer inquiries by category.",
		}, []string{"category"}),
		sinkAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_appends_total",
			Help:      "Result sink appends by status.",
		}, []string{"status"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification dispatches by message type and status.",
		}, []string{"message_type", "status"}),
		costUSD: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_cost_usd_total",
			Help:      "Estimated provider spend in USD.",
		}),
	}
	reg.MustRegister(m.analyses, m.analysisTime, m.verdicts, m.inquiries, m.sinkAppends, m.notifications, m.costUSD)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAnalysis records one requester outcome.
func (m *Metrics) ObserveAnalysis(r model.AnalysisResult) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(r.Provider, string(r.Status)).Inc()
	m.analysisTime.WithLabelValues(r.Provider).Observe(float64(r.DurationMs) / 1000)
}

// ObserveVerdict records a cross validation decision.
func (m *Metrics) ObserveVerdict(v model.Verdict) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(string(v.FinalRecommendation.Decision)).Inc()
}

// ObserveInquiry records a classified inquiry.
func (m *Metrics) ObserveInquiry(c model.InquiryClassification) {
	if m == nil {
		return
	}
	m.inquiries.WithLabelValues(c.Category).Inc()
}

// ObservePersist records a sink append.
func (m *Metrics) ObservePersist(p model.PersistOutcome) {
	if m == nil {
		return
	}
	m.sinkAppends.WithLabelValues(string(p.Status)).Inc()
}

// ObserveNotification records a notification dispatch.
func (m *Metrics) ObserveNotification(n model.NotificationResult) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(n.MessageType, n.Status).Inc()
}

// AddCost adds estimated spend.
func (m *Metrics) AddCost(usd float64) {
	if m == nil || usd <= 0 {
		return
	}
	m.costUSD.Add(usd)
}

var historyDesc = prometheus.NewDesc(
	namespace+"_history_analyses",
	"Stored analyses in the trailing window by decision.",
	[]string{"decision"},
	nil,
)

// HistoryCollector reads stored analyses on each scrape.
type HistoryCollector struct {
	store  store.Store
	window time.Duration
	now    func() time.Time
}

// NewHistoryCollector creates a collector over the trailing window.
func NewHistoryCollector(st store.Store, window time.Duration) *HistoryCollector {
	return &HistoryCollector{store: st, window: window, now: time.Now}
}

// Describe sends the metric descriptor to the channel.
func (c *HistoryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- historyDesc
}

// Collect queries the store and emits one gauge per decision.
func (c *HistoryCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	recs, err := c.store.ListAnalyses(ctx, store.AnalysisFilter{Since: c.now().Add(-c.window)})
	if err != nil {
		zap.L().Error("metrics: collect history", zap.Error(err))
		return
	}
	counts := map[model.Decision]int{
		model.DecisionRecommend:        0,
		model.DecisionHold:             0,
		model.DecisionReject:           0,
		model.DecisionInsufficientData: 0,
	}
	for _, r := range recs {
		counts[r.Verdict.FinalRecommendation.Decision]++
	}
	for d, n := range counts {
		ch <- prometheus.MustNewConstMetric(historyDesc, prometheus.GaugeValue, float64(n), string(d))
	}
}
