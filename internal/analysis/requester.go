// Package analysis sends a product record to the two LLM providers and
// returns their raw answers as model.AnalysisResult values.
package analysis

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/internal/resilience"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 30 * time.Second

// Requester asks one provider to analyse a product. RequestAnalysis never
// returns an error: every failure is folded into a failed result.
type Requester interface {
	Name() string
	RequestAnalysis(ctx context.Context, p model.Product) model.AnalysisResult
}

type settings struct {
	model        string
	maxTokens    int64
	timeout      time.Duration
	exchangeRate float64
	now          func() time.Time
}

// Option configures a requester.
type Option func(*settings)

// WithModel overrides the provider model id.
func WithModel(m string) Option {
	return func(s *settings) {
		if m != "" {
			s.model = m
		}
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int64) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithTimeout sets the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithExchangeRate sets the KRW per CAD rate embedded in the margin prompt.
func WithExchangeRate(rate float64) Option {
	return func(s *settings) {
		if rate > 0 {
			s.exchangeRate = rate
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

func newSettings(defaultModel string, opts []Option) settings {
	s := settings{
		model:        defaultModel,
		maxTokens:    2000,
		timeout:      DefaultTimeout,
		exchangeRate: DefaultExchangeRate,
		now:          time.Now,
	}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// call runs one provider round trip under the configured deadline and turns
// the outcome into an AnalysisResult.
func call(ctx context.Context, provider string, s settings, fn func(ctx context.Context) (string, model.TokenUsage, error)) model.AnalysisResult {
	start := s.now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, usage, err := fn(ctx)
	if err == nil && text == "" {
		err = &resilience.ParseError{Err: eris.New("empty completion")}
	}

	var res model.AnalysisResult
	if err != nil {
		kind := resilience.Classify(err)
		zap.L().Warn("analysis: request failed",
			zap.String("provider", provider),
			zap.String("model", s.model),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		res = model.FailedAnalysis(provider, s.model, err, string(kind), s.now())
	} else {
		res = model.SuccessfulAnalysis(provider, s.model, text, s.now())
	}
	res.Usage = usage
	res.DurationMs = s.now().Sub(start).Milliseconds()
	return res
}
