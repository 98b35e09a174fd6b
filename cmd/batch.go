package main

import (
	"bufio"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jooke-shop/sourcing-cli/internal/monitoring"
	"github.com/jooke-shop/sourcing-cli/internal/pipeline"
)

var (
	batchFile        string
	batchLimit       int
	batchConcurrency int
	batchJSON        bool
)

var batchCmd = &cobra.Command{
	Use:   "batch [url...]",
	Short: "Analyse many product URLs",
	Long:  "Runs the pipeline over URLs given as arguments or read from --file (one per line, # comments allowed). A failing URL never stops the batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		urls := args
		if batchFile != "" {
			f, err := os.Open(batchFile)
			if err != nil {
				return eris.Wrapf(err, "open %s", batchFile)
			}
			fromFile, err := readURLs(f)
			f.Close() //nolint:errcheck
			if err != nil {
				return err
			}
			urls = append(urls, fromFile...)
		}
		if batchLimit > 0 && len(urls) > batchLimit {
			urls = urls[:batchLimit]
		}
		if len(urls) == 0 {
			return eris.New("no urls to process")
		}

		env, err := initPipeline(ctx, nil)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrent
		}
		res := env.Pipeline.RunBatch(ctx, urls, concurrency)

		alerter := monitoring.NewAlerter(cfg.Monitoring)
		if alerts := alerter.Evaluate(monitoring.FromBatch(res, time.Now())); len(alerts) > 0 {
			for _, a := range alerts {
				zap.L().Warn("batch: threshold breached", zap.String("type", string(a.Type)), zap.String("message", a.Message))
			}
			alerter.SendAlerts(ctx, alerts)
		}

		if batchJSON {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		printBatchResult(cmd.OutOrStdout(), res)
		return nil
	},
}

// readURLs reads one URL per line, skipping blanks and # comments.
func readURLs(r io.Reader) ([]string, error) {
	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, eris.Wrap(sc.Err(), "read urls")
}

func printBatchResult(w io.Writer, res pipeline.BatchResult) {
	table := newTable(w, "Product", "Verdict", "Decision", "Score", "Sheet")
	for _, r := range res.Results {
		table.Append([]string{
			r.Product.Name,
			string(r.Verdict.Status),
			string(r.Verdict.FinalRecommendation.Decision),
			ftoa(r.Verdict.FinalScore, 1),
			string(r.Persist.Status),
		})
	}
	for _, f := range res.Failures {
		table.Append([]string{f.URL, "scrape failed", "", "", ""})
	}
	table.Render()

	summary := newTable(w, "Total", "Analysed", "Failed", "Recommended", "Cost USD")
	summary.Append([]string{
		ftoa(float64(res.Total), 0),
		ftoa(float64(res.Analysed), 0),
		ftoa(float64(res.Failed), 0),
		ftoa(float64(res.Recommended), 0),
		ftoa(res.CostUSD, 4),
	})
	summary.Render()
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "file with one product URL per line")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of urls to process")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "parallel products (default from config)")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "print the batch result as JSON")
	rootCmd.AddCommand(batchCmd)
}
