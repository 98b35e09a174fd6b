package analysis

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/pkg/openai"
)

// DefaultMarginModel is the OpenAI model used for margin analysis.
const DefaultMarginModel = "gpt-4o"

// MarginAnalyzer computes pricing, margin and marketing material through an
// OpenAI-compatible chat completions endpoint.
type MarginAnalyzer struct {
	client openai.Client
	s      settings
}

// NewMarginAnalyzer creates the margin requester.
func NewMarginAnalyzer(client openai.Client, opts ...Option) *MarginAnalyzer {
	return &MarginAnalyzer{client: client, s: newSettings(DefaultMarginModel, opts)}
}

// Name implements Requester.
func (a *MarginAnalyzer) Name() string { return model.ProviderMargin }

// RequestAnalysis implements Requester.
func (a *MarginAnalyzer) RequestAnalysis(ctx context.Context, p model.Product) model.AnalysisResult {
	return call(ctx, a.Name(), a.s, func(ctx context.Context) (string, model.TokenUsage, error) {
		maxTokens := int(a.s.maxTokens)
		temp := 0.2
		resp, err := a.client.ChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: a.s.model,
			Messages: []openai.Message{
				{Role: "system", Content: marginSystem},
				{Role: "user", Content: BuildMarginPrompt(p, a.s.exchangeRate)},
			},
			Temperature:    &temp,
			MaxTokens:      &maxTokens,
			ResponseFormat: &openai.ResponseFormat{Type: "json_object"},
		})
		if err != nil {
			return "", model.TokenUsage{}, eris.Wrap(err, "analysis: margin request")
		}
		usage := model.TokenUsage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
		}
		return resp.Content(), usage, nil
	})
}
