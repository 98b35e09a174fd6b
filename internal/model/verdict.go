package model

import "time"

// VerdictStatus is the overall state of a cross-validation verdict.
type VerdictStatus string

const (
	VerdictStatusSuccess          VerdictStatus = "success"
	VerdictStatusFailed           VerdictStatus = "failed"
	VerdictStatusInsufficientData VerdictStatus = "insufficient_data"
)

// Decision is the closed set of final recommendations.
type Decision string

const (
	DecisionRecommend        Decision = "recommend"
	DecisionHold             Decision = "hold"
	DecisionReject           Decision = "reject"
	DecisionInsufficientData Decision = "insufficient data"
)

// Field is a tolerant-parse slot: either present with a value or absent.
type Field[T any] struct {
	Value   T    `json:"value"`
	Present bool `json:"present"`
}

// Some returns a present field.
func Some[T any](v T) Field[T] {
	return Field[T]{Value: v, Present: true}
}

// Get returns the value and whether it is present.
func (f Field[T]) Get() (T, bool) {
	return f.Value, f.Present
}

// Signals are the structured values recovered from one analysis text.
// Scores keep their source scale: EntryScore 0-100, MarketScore and
// CompetitionScore 1-10, MarginPercent in percent.
type Signals struct {
	EntryScore       Field[float64] `json:"entry_score"`
	MarketScore      Field[float64] `json:"market_score"`
	CompetitionScore Field[float64] `json:"competition_score"`
	MarginPercent    Field[float64] `json:"margin_percent"`
	LocalPriceKRW    Field[float64] `json:"local_price_krw"`
	LandedCostKRW    Field[float64] `json:"landed_cost_krw"`
	Recommend        Field[bool]    `json:"recommend"`
	Keywords         []string       `json:"keywords,omitempty"`
	Hashtags         []string       `json:"hashtags,omitempty"`
	TargetCustomer   string         `json:"target_customer,omitempty"`
}

// Recommendation is the actionable part of a verdict.
type Recommendation struct {
	Decision   Decision `json:"decision"`
	Confidence float64  `json:"confidence"`
	NextSteps  []string `json:"next_steps"`
}

// Verdict is the merged result of two analyses of the same product. It is
// derived once and never mutated.
type Verdict struct {
	Status              VerdictStatus  `json:"status"`
	ConsistencyScore    float64        `json:"consistency_score"`
	FinalScore          float64        `json:"final_score"`
	FinalRecommendation Recommendation `json:"final_recommendation"`
	Compared            []string       `json:"compared,omitempty"`
	Market              Signals        `json:"market_signals"`
	Margin              Signals        `json:"margin_signals"`
	Errors              []string       `json:"errors,omitempty"`
	ValidatedAt         time.Time      `json:"validated_at"`
}

// PersistStatus is the outcome of a sink append.
type PersistStatus string

const (
	PersistStatusSuccess PersistStatus = "success"
	PersistStatusFailed  PersistStatus = "failed"
)

// PersistOutcome reports a single append to the tabular store.
type PersistOutcome struct {
	Status    PersistStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Ref       string        `json:"ref,omitempty"` // row number or page id
	Error     string        `json:"error,omitempty"`
}

// PipelineResult is everything produced for one product.
type PipelineResult struct {
	Scrape   *ScrapeResult  `json:"scrape,omitempty"`
	Product  Product        `json:"product"`
	Market   AnalysisResult `json:"market"`
	Margin   AnalysisResult `json:"margin"`
	Verdict  Verdict        `json:"verdict"`
	Persist  PersistOutcome `json:"persist"`
	RecordID string         `json:"record_id,omitempty"`
	CostUSD  float64        `json:"cost_usd"`
	Duration int64          `json:"duration_ms"`
}

// AnalysisRecord is the history row kept for reporting.
type AnalysisRecord struct {
	ID        string         `json:"id"`
	Product   Product        `json:"product"`
	Market    AnalysisResult `json:"market"`
	Margin    AnalysisResult `json:"margin"`
	Verdict   Verdict        `json:"verdict"`
	CostUSD   float64        `json:"cost_usd"`
	CreatedAt time.Time      `json:"created_at"`
}
