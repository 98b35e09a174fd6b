package model

import "time"

// AnalysisStatus is the outcome of a single analysis request.
type AnalysisStatus string

const (
	AnalysisStatusSuccess AnalysisStatus = "success"
	AnalysisStatusFailed  AnalysisStatus = "failed"
)

// Provider names used in results, metrics and the sheet.
const (
	ProviderMarket = "market" // Anthropic structural/market analysis
	ProviderMargin = "margin" // OpenAI margin/marketing analysis
)

// TokenUsage tracks token consumption for a single completion.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Add accumulates token counts from another TokenUsage.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// AnalysisResult is the raw outcome of one analysis requester for one
// product. Analysis holds the model's text verbatim; it is interpreted only
// by the cross validator.
type AnalysisResult struct {
	Timestamp  time.Time      `json:"timestamp"`
	Provider   string         `json:"provider"`
	Model      string         `json:"model,omitempty"`
	Status     AnalysisStatus `json:"status"`
	Analysis   string         `json:"analysis,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorKind  string         `json:"error_kind,omitempty"`
	Usage      TokenUsage     `json:"usage"`
	DurationMs int64          `json:"duration_ms"`
}

// SuccessfulAnalysis builds a success result carrying the raw model text.
func SuccessfulAnalysis(provider, modelID, text string, at time.Time) AnalysisResult {
	return AnalysisResult{
		Timestamp: at,
		Provider:  provider,
		Model:     modelID,
		Status:    AnalysisStatusSuccess,
		Analysis:  text,
	}
}

// FailedAnalysis builds a failed result. A failed result never carries an
// analysis payload.
func FailedAnalysis(provider, modelID string, err error, kind string, at time.Time) AnalysisResult {
	r := AnalysisResult{
		Timestamp: at,
		Provider:  provider,
		Model:     modelID,
		Status:    AnalysisStatusFailed,
		ErrorKind: kind,
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Succeeded reports whether the result carries a usable analysis.
func (r AnalysisResult) Succeeded() bool {
	return r.Status == AnalysisStatusSuccess
}
