package main

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jooke-shop/sourcing-cli/internal/resilience"
	anthropicpkg "github.com/jooke-shop/sourcing-cli/pkg/anthropic"
	"github.com/jooke-shop/sourcing-cli/pkg/firecrawl"
	"github.com/jooke-shop/sourcing-cli/pkg/openai"
)

const checkCheckURL = "https://example.com"

// connCheck is one provider connectivity test.
type connCheck struct {
	Name string
	Fn   func(ctx context.Context) error
}

// connResult is the outcome of one connCheck.
type connResult struct {
	Name      string          `json:"name"`
	OK        bool            `json:"ok"`
	Kind      resilience.Kind `json:"kind,omitempty"`
	Error     string          `json:"error,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
}

var (
	checkTimeout time.Duration
	checkJSON    bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test the configured API keys against each provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		checks, skipped := configuredChecks()
		results := runChecks(cmd.Context(), checks, checkTimeout)
		for _, name := range skipped {
			results = append(results, connResult{Name: name, Kind: resilience.KindConfig, Error: "key not set"})
		}

		if checkJSON {
			if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
		} else {
			printCheckResults(cmd.OutOrStdout(), results)
		}

		for _, r := range results {
			if !r.OK {
				return eris.New("one or more providers failed the check")
			}
		}
		return nil
	},
}

// configuredChecks returns a connCheck per provider with a key, plus the names
// of providers that have none.
func configuredChecks() ([]connCheck, []string) {
	var checks []connCheck
	var skipped []string

	if cfg.Anthropic.Key != "" {
		var opts []anthropicpkg.Option
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicpkg.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		client := anthropicpkg.NewClient(cfg.Anthropic.Key, opts...)
		checks = append(checks, connCheck{Name: "anthropic", Fn: func(ctx context.Context) error {
			_, err := client.CreateMessage(ctx, anthropicpkg.MessageRequest{
				Model:     cfg.Anthropic.Model,
				MaxTokens: 16,
				Messages:  []anthropicpkg.Message{{Role: "user", Content: "Hello"}},
			})
			return err
		}})
	} else {
		skipped = append(skipped, "anthropic")
	}

	if cfg.OpenAI.Key != "" {
		client := openai.NewClient(cfg.OpenAI.Key, openai.WithBaseURL(cfg.OpenAI.BaseURL), openai.WithModel(cfg.OpenAI.Model))
		maxTokens := 16
		checks = append(checks, connCheck{Name: "openai", Fn: func(ctx context.Context) error {
			_, err := client.ChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:     cfg.OpenAI.Model,
				Messages:  []openai.Message{{Role: "user", Content: "Hello"}},
				MaxTokens: &maxTokens,
			})
			return err
		}})
	} else {
		skipped = append(skipped, "openai")
	}

	if cfg.Firecrawl.Key != "" {
		client := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
		checks = append(checks, connCheck{Name: "firecrawl", Fn: func(ctx context.Context) error {
			_, err := client.Scrape(ctx, firecrawl.ScrapeRequest{URL: checkCheckURL, Formats: []string{"markdown"}})
			return err
		}})
	} else {
		skipped = append(skipped, "firecrawl")
	}

	return checks, skipped
}

// runChecks runs every connCheck concurrently, each under its own timeout.
// Results keep the connCheck order.
func runChecks(ctx context.Context, checks []connCheck, timeout time.Duration) []connResult {
	results := make([]connResult, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range checks {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			start := time.Now()
			err := p.Fn(pctx)
			res := connResult{Name: p.Name, OK: err == nil, LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				res.Kind = resilience.Classify(err)
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func printCheckResults(w io.Writer, results []connResult) {
	table := newTable(w, "Provider", "Status", "Latency ms", "Error")
	for _, r := range results {
		status := "ok"
		if !r.OK {
			status = "failed (" + string(r.Kind) + ")"
		}
		table.Append([]string{r.Name, status, ftoa(float64(r.LatencyMs), 0), r.Error})
	}
	table.Render()
}

func init() {
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 30*time.Second, "per-provider timeout")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(checkCmd)
}
