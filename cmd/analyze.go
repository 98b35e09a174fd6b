package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/jooke-shop/sourcing-cli/internal/model"
)

var (
	analyzeURL         string
	analyzeProductFile string
	analyzeName        string
	analyzePrice       float64
	analyzeCategory    string
	analyzeBrand       string
	analyzeJSON        bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyse one product from a URL or a product record",
	Long:  "Scrapes --url (or reads --product / --name), runs both analyses concurrently, cross-validates them and appends the verdict to the sheet.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		product, err := productFromFlags()
		if err != nil {
			return err
		}
		if product == nil && analyzeURL == "" {
			return eris.New("one of --url, --product or --name is required")
		}

		env, err := initPipeline(ctx, nil)
		if err != nil {
			return err
		}
		defer env.Close()

		var res model.PipelineResult
		if product != nil {
			res = env.Pipeline.RunProduct(ctx, *product)
		} else {
			res, err = env.Pipeline.Run(ctx, analyzeURL)
			if err != nil {
				return eris.Wrap(err, "analyze")
			}
		}

		if analyzeJSON {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		printPipelineResult(cmd.OutOrStdout(), res)
		return nil
	},
}

// productFromFlags reads the product from --product or the inline flags. It
// returns nil when neither is set.
func productFromFlags() (*model.Product, error) {
	switch {
	case analyzeProductFile != "":
		data, err := os.ReadFile(analyzeProductFile)
		if err != nil {
			return nil, eris.Wrapf(err, "read product file %s", analyzeProductFile)
		}
		var p model.Product
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "parse product file")
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return &p, nil
	case analyzeName != "":
		p := model.Product{
			Name:      analyzeName,
			Brand:     analyzeBrand,
			PriceCAD:  analyzePrice,
			Category:  analyzeCategory,
			SourceURL: analyzeURL,
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return &p, nil
	}
	return nil, nil
}

func printPipelineResult(w io.Writer, res model.PipelineResult) {
	table := newTable(w, "Field", "Value")
	table.Append([]string{"product", res.Product.Name})
	table.Append([]string{"price_cad", ftoa(res.Product.PriceCAD, 2)})
	table.Append([]string{"market", string(res.Market.Status) + " " + res.Market.Error})
	table.Append([]string{"margin", string(res.Margin.Status) + " " + res.Margin.Error})
	table.Append([]string{"verdict", string(res.Verdict.Status)})
	table.Append([]string{"decision", string(res.Verdict.FinalRecommendation.Decision)})
	table.Append([]string{"final_score", ftoa(res.Verdict.FinalScore, 1)})
	table.Append([]string{"consistency", ftoa(res.Verdict.ConsistencyScore, 2)})
	table.Append([]string{"confidence", ftoa(res.Verdict.FinalRecommendation.Confidence, 2)})
	table.Append([]string{"sheet", string(res.Persist.Status) + " " + res.Persist.Ref + res.Persist.Error})
	table.Append([]string{"cost_usd", ftoa(res.CostUSD, 4)})
	table.Render()
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeURL, "url", "", "product page URL to scrape")
	analyzeCmd.Flags().StringVar(&analyzeProductFile, "product", "", "path to a product JSON record (skips scraping)")
	analyzeCmd.Flags().StringVar(&analyzeName, "name", "", "product name (skips scraping)")
	analyzeCmd.Flags().Float64Var(&analyzePrice, "price", 0, "price in CAD, with --name")
	analyzeCmd.Flags().StringVar(&analyzeCategory, "category", "", "product category, with --name")
	analyzeCmd.Flags().StringVar(&analyzeBrand, "brand", "", "brand, with --name")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(analyzeCmd)
}
