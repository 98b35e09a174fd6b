// Package crossval reconciles the market and margin analyses of one product
// into a single verdict. Everything here is pure and deterministic.
package crossval

import (
	"math"

	"github.com/jooke-shop/sourcing-cli/internal/model"
)

// Thresholds tune the final score and the decision rule.
type Thresholds struct {
	MarketWeight         float64
	MarginWeight         float64
	RecommendScore       float64 // final score at or above which a product may be recommended
	RecommendConsistency float64 // minimum consistency for a recommendation
	RejectScore          float64 // final score below which a product is rejected
}

// DefaultThresholds returns the stock weights and cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MarketWeight:         0.5,
		MarginWeight:         0.5,
		RecommendScore:       70,
		RecommendConsistency: 0.6,
		RejectScore:          40,
	}
}

// Compared pair names, in evaluation order.
const (
	PairEntry     = "entry_score"
	PairMargin    = "margin_percent"
	PairRecommend = "recommend"
)

// Next steps attached to each decision.
var (
	StepsFailed       = []string{"retry the failed analysis", "request manual review"}
	StepsInsufficient = []string{"re-run the analyses with a stricter JSON prompt", "request manual review"}
	StepsRecommend    = []string{"schedule field verification", "negotiate wholesale terms", "confirm landed cost with the forwarder"}
	StepsHold         = []string{"collect field research for this product", "re-run analysis after price check"}
	StepsReject       = []string{"archive the product", "look for alternatives in the same category"}
)

// Validator applies a fixed set of thresholds.
type Validator struct {
	t Thresholds
}

// New creates a Validator.
func New(t Thresholds) *Validator {
	return &Validator{t: t}
}

// Validate reconciles two analyses with the default thresholds.
func Validate(market, margin model.AnalysisResult) model.Verdict {
	return New(DefaultThresholds()).Validate(market, margin)
}

// Validate reconciles two analyses. It never fabricates a decision when
// either analysis failed.
func (v *Validator) Validate(market, margin model.AnalysisResult) model.Verdict {
	at := market.Timestamp
	if margin.Timestamp.After(at) {
		at = margin.Timestamp
	}

	if !market.Succeeded() || !margin.Succeeded() {
		return model.Verdict{
			Status: model.VerdictStatusFailed,
			FinalRecommendation: model.Recommendation{
				Decision:  model.DecisionInsufficientData,
				NextSteps: clone(StepsFailed),
			},
			Errors:      failures(market, margin),
			ValidatedAt: at,
		}
	}

	ms := ExtractSignals(market.Analysis)
	gs := ExtractSignals(margin.Analysis)

	verdict := model.Verdict{
		Market:      ms,
		Margin:      gs,
		ValidatedAt: at,
	}

	consistency, compared := Consistency(ms, gs)
	verdict.ConsistencyScore = round(consistency, 4)
	verdict.Compared = compared

	final, coverage := v.finalScore(ms, gs)
	if coverage == 0 {
		verdict.Status = model.VerdictStatusInsufficientData
		verdict.FinalRecommendation = model.Recommendation{
			Decision:  model.DecisionInsufficientData,
			NextSteps: clone(StepsInsufficient),
		}
		return verdict
	}

	verdict.Status = model.VerdictStatusSuccess
	verdict.FinalScore = round(final, 2)
	decision := v.decide(verdict.FinalScore, verdict.ConsistencyScore)
	verdict.FinalRecommendation = model.Recommendation{
		Decision:   decision,
		Confidence: round(clamp(verdict.ConsistencyScore*coverage, 0, 1), 4),
		NextSteps:  nextSteps(decision),
	}
	return verdict
}

// Consistency is the mean agreement over the pairs present on both sides,
// each pair normalised to [0,1]. It returns 0 when nothing is comparable.
func Consistency(a, b model.Signals) (float64, []string) {
	var (
		sum      float64
		compared []string
	)
	if x, ok := a.EntryScore.Get(); ok {
		if y, ok := b.EntryScore.Get(); ok {
			sum += 1 - math.Abs(clamp(x/100, 0, 1)-clamp(y/100, 0, 1))
			compared = append(compared, PairEntry)
		}
	}
	if x, ok := a.MarginPercent.Get(); ok {
		if y, ok := b.MarginPercent.Get(); ok {
			sum += 1 - math.Abs(clamp(x/100, 0, 1)-clamp(y/100, 0, 1))
			compared = append(compared, PairMargin)
		}
	}
	if x, ok := a.Recommend.Get(); ok {
		if y, ok := b.Recommend.Get(); ok {
			if x == y {
				sum++
			}
			compared = append(compared, PairRecommend)
		}
	}
	if len(compared) == 0 {
		return 0, nil
	}
	return clamp(sum/float64(len(compared)), 0, 1), compared
}

// finalScore is the weighted mean of the present entry scores, renormalised
// over the sides present. coverage is the share of sides present.
func (v *Validator) finalScore(a, b model.Signals) (score, coverage float64) {
	var (
		weighted, weights float64
		present           int
		values            []float64
	)
	if x, ok := a.EntryScore.Get(); ok {
		weighted += x * v.t.MarketWeight
		weights += v.t.MarketWeight
		values = append(values, x)
		present++
	}
	if y, ok := b.EntryScore.Get(); ok {
		weighted += y * v.t.MarginWeight
		weights += v.t.MarginWeight
		values = append(values, y)
		present++
	}
	if present == 0 {
		return 0, 0
	}
	if weights <= 0 {
		weighted = 0
		for _, x := range values {
			weighted += x
		}
		weights = float64(len(values))
	}
	return clamp(weighted/weights, 0, 100), float64(present) / 2
}

func (v *Validator) decide(final, consistency float64) model.Decision {
	switch {
	case final >= v.t.RecommendScore && consistency >= v.t.RecommendConsistency:
		return model.DecisionRecommend
	case final < v.t.RejectScore:
		return model.DecisionReject
	default:
		return model.DecisionHold
	}
}

func nextSteps(d model.Decision) []string {
	switch d {
	case model.DecisionRecommend:
		return clone(StepsRecommend)
	case model.DecisionReject:
		return clone(StepsReject)
	default:
		return clone(StepsHold)
	}
}

func failures(results ...model.AnalysisResult) []string {
	var out []string
	for _, r := range results {
		if r.Succeeded() {
			continue
		}
		msg := r.Error
		if msg == "" {
			msg = "analysis failed"
		}
		out = append(out, r.Provider+": "+msg)
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	return math.Max(lo, math.Min(hi, x))
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
