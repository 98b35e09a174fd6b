package analysis

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/internal/resilience"
	"github.com/jooke-shop/sourcing-cli/pkg/anthropic"
	"github.com/jooke-shop/sourcing-cli/pkg/openai"
)

type fakeAnthropic struct {
	resp *anthropic.MessageResponse
	err  error
	wait bool
	got  anthropic.MessageRequest
}

func (f *fakeAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.got = req
	if f.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.resp, f.err
}

type fakeOpenAI struct {
	resp *openai.ChatCompletionResponse
	err  error
	got  openai.ChatCompletionRequest
}

func (f *fakeOpenAI) ChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	f.got = req
	return f.resp, f.err
}

func testProduct() model.Product {
	return model.Product{
		Name:        "Maple Syrup Grade A",
		Brand:       "Canadian Gold",
		PriceCAD:    12.99,
		Category:    "food",
		Description: "Pure Canadian maple syrup",
		SourceURL:   "https://example.ca/maple",
	}
}

func TestMarketAnalyzer_Success(t *testing.T) {
	fake := &fakeAnthropic{resp: &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: `{"entry_score": 80}`}},
		Usage:   anthropic.TokenUsage{InputTokens: 120, OutputTokens: 40},
	}}
	a := NewMarketAnalyzer(fake, WithMaxTokens(1000))

	res := a.RequestAnalysis(context.Background(), testProduct())

	assert.Equal(t, model.AnalysisStatusSuccess, res.Status)
	assert.Equal(t, model.ProviderMarket, res.Provider)
	assert.Equal(t, DefaultMarketModel, res.Model)
	assert.Equal(t, `{"entry_score": 80}`, res.Analysis)
	assert.Empty(t, res.Error)
	assert.Equal(t, int64(120), res.Usage.InputTokens)
	assert.Equal(t, int64(40), res.Usage.OutputTokens)

	assert.Equal(t, int64(1000), fake.got.MaxTokens)
	assert.Equal(t, marketSystem, fake.got.System)
	require.Len(t, fake.got.Messages, 1)
	assert.Contains(t, fake.got.Messages[0].Content, "Maple Syrup Grade A")
	assert.Contains(t, fake.got.Messages[0].Content, "entry_score")
}

func TestMarketAnalyzer_ProviderError(t *testing.T) {
	fake := &fakeAnthropic{err: &anthropic.APIError{StatusCode: http.StatusInternalServerError, Message: "overloaded"}}
	res := NewMarketAnalyzer(fake).RequestAnalysis(context.Background(), testProduct())

	assert.Equal(t, model.AnalysisStatusFailed, res.Status)
	assert.Empty(t, res.Analysis)
	assert.Contains(t, res.Error, "overloaded")
	assert.Equal(t, string(resilience.KindProvider), res.ErrorKind)
}

func TestMarketAnalyzer_AuthError(t *testing.T) {
	fake := &fakeAnthropic{err: &anthropic.APIError{StatusCode: http.StatusUnauthorized, Message: "invalid x-api-key"}}
	res := NewMarketAnalyzer(fake).RequestAnalysis(context.Background(), testProduct())

	assert.Equal(t, model.AnalysisStatusFailed, res.Status)
	assert.Equal(t, string(resilience.KindAuth), res.ErrorKind)
}

func TestMarketAnalyzer_Timeout(t *testing.T) {
	fake := &fakeAnthropic{wait: true}
	res := NewMarketAnalyzer(fake, WithTimeout(20*time.Millisecond)).
		RequestAnalysis(context.Background(), testProduct())

	assert.Equal(t, model.AnalysisStatusFailed, res.Status)
	assert.Equal(t, string(resilience.KindTransport), res.ErrorKind)
	assert.Empty(t, res.Analysis)
}

func TestMarketAnalyzer_EmptyCompletion(t *testing.T) {
	fake := &fakeAnthropic{resp: &anthropic.MessageResponse{}}
	res := NewMarketAnalyzer(fake).RequestAnalysis(context.Background(), testProduct())

	assert.Equal(t, model.AnalysisStatusFailed, res.Status)
	assert.Equal(t, string(resilience.KindParse), res.ErrorKind)
	assert.Contains(t, res.Error, "empty completion")
}

func TestMarginAnalyzer_Success(t *testing.T) {
	fake := &fakeOpenAI{resp: &openai.ChatCompletionResponse{
		Choices: []openai.Choice{{Message: openai.Message{Role: "assistant", Content: `{"opportunity_score": 70}`}}},
		Usage:   openai.Usage{PromptTokens: 200, CompletionTokens: 80},
	}}
	a := NewMarginAnalyzer(fake, WithExchangeRate(1000), WithModel("gpt-4o-mini"))

	res := a.RequestAnalysis(context.Background(), testProduct())

	assert.Equal(t, model.AnalysisStatusSuccess, res.Status)
	assert.Equal(t, model.ProviderMargin, res.Provider)
	assert.Equal(t, "gpt-4o-mini", res.Model)
	assert.Equal(t, `{"opportunity_score": 70}`, res.Analysis)
	assert.Equal(t, int64(200), res.Usage.InputTokens)
	assert.Equal(t, int64(80), res.Usage.OutputTokens)

	require.Len(t, fake.got.Messages, 2)
	assert.Equal(t, "system", fake.got.Messages[0].Role)
	assert.Contains(t, fake.got.Messages[1].Content, "1 CAD = 1000 원")
	require.NotNil(t, fake.got.ResponseFormat)
	assert.Equal(t, "json_object", fake.got.ResponseFormat.Type)
	assert.Equal(t, "gpt-4o-mini", fake.got.Model)
}

func TestMarginAnalyzer_Failures(t *testing.T) {
	tests := []struct {
		name string
		resp *openai.ChatCompletionResponse
		err  error
		kind resilience.Kind
	}{
		{"rate limited", nil, &openai.APIError{StatusCode: http.StatusTooManyRequests, Body: "slow down"}, resilience.KindProvider},
		{"forbidden", nil, &openai.APIError{StatusCode: http.StatusForbidden, Body: "nope"}, resilience.KindAuth},
		{"network", nil, errors.New("dial tcp: connection refused"), resilience.KindTransport},
		{"no choices", &openai.ChatCompletionResponse{}, nil, resilience.KindParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeOpenAI{resp: tt.resp, err: tt.err}
			res := NewMarginAnalyzer(fake).RequestAnalysis(context.Background(), testProduct())

			assert.Equal(t, model.AnalysisStatusFailed, res.Status)
			assert.Empty(t, res.Analysis)
			assert.NotEmpty(t, res.Error)
			assert.Equal(t, string(tt.kind), res.ErrorKind)
		})
	}
}

func TestRequestAnalysis_Duration(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 250 * time.Millisecond)
	}
	fake := &fakeAnthropic{resp: &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "{}"}},
	}}
	res := NewMarketAnalyzer(fake, WithClock(clock)).RequestAnalysis(context.Background(), testProduct())

	assert.Equal(t, int64(500), res.DurationMs)
	assert.False(t, res.Timestamp.IsZero())
}

func TestBuildMarginPrompt_Rate(t *testing.T) {
	assert.Contains(t, BuildMarginPrompt(testProduct(), DefaultExchangeRate), "1 CAD = 1350 원")
	assert.Contains(t, BuildMarginPrompt(testProduct(), 1012.5), "1 CAD = 1012.5 원")
}

func TestRequesters_Interface(t *testing.T) {
	var _ Requester = NewMarketAnalyzer(&fakeAnthropic{})
	var _ Requester = NewMarginAnalyzer(&fakeOpenAI{})
}
