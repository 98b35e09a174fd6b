package analysis

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/pkg/anthropic"
)

// DefaultMarketModel is the Anthropic model used for market analysis.
const DefaultMarketModel = "claude-sonnet-4-5-20250929"

// MarketAnalyzer scores Korean market fit through the Anthropic Messages API.
type MarketAnalyzer struct {
	client anthropic.Client
	s      settings
}

// NewMarketAnalyzer creates the market requester.
func NewMarketAnalyzer(client anthropic.Client, opts ...Option) *MarketAnalyzer {
	return &MarketAnalyzer{client: client, s: newSettings(DefaultMarketModel, opts)}
}

// Name implements Requester.
func (a *MarketAnalyzer) Name() string { return model.ProviderMarket }

// RequestAnalysis implements Requester.
func (a *MarketAnalyzer) RequestAnalysis(ctx context.Context, p model.Product) model.AnalysisResult {
	return call(ctx, a.Name(), a.s, func(ctx context.Context) (string, model.TokenUsage, error) {
		resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     a.s.model,
			MaxTokens: a.s.maxTokens,
			System:    marketSystem,
			Messages: []anthropic.Message{
				{Role: "user", Content: BuildMarketPrompt(p)},
			},
		})
		if err != nil {
			return "", model.TokenUsage{}, eris.Wrap(err, "analysis: market request")
		}
		usage := model.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		}
		return resp.Text(), usage, nil
	})
}
