package main

import (
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/internal/report"
	"github.com/jooke-shop/sourcing-cli/internal/store"
)

var (
	reportDays   int
	reportSource string
	reportJSON   bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print KPIs and the weekly performance report",
	Long:  "Builds the report from the analysis history (--source store) or from the sheet rows including reviewer notes (--source sheet).",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		since := time.Now().AddDate(0, 0, -reportDays)

		var records []model.KPIRecord
		switch reportSource {
		case "store":
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			recs, err := st.ListAnalyses(ctx, store.AnalysisFilter{Since: since})
			if err != nil {
				return eris.Wrap(err, "report: list analyses")
			}
			records = report.FromAnalyses(recs)
		case "sheet":
			sink, err := initSink()
			if err != nil {
				return err
			}
			rows, err := sink.Rows(ctx)
			if err != nil {
				return eris.Wrap(err, "report: read sheet")
			}
			for _, r := range report.FromRows(rows) {
				if r.Timestamp.IsZero() || !r.Timestamp.Before(since) {
					records = append(records, r)
				}
			}
		default:
			return eris.Errorf("unknown --source %q, want store or sheet", reportSource)
		}

		rep := report.WeeklyReport(records)
		if reportJSON {
			return writeJSON(cmd.OutOrStdout(), rep)
		}
		printReport(cmd.OutOrStdout(), rep)
		return nil
	},
}

func printReport(w io.Writer, rep model.WeeklyReport) {
	k := rep.Summary
	kpis := newTable(w, "Analyses", "Recommended", "Success %", "Avg margin %", "Avg score")
	kpis.Append([]string{
		ftoa(float64(k.AnalysisCount), 0),
		ftoa(float64(k.Recommended), 0),
		ftoa(k.SuccessRate, 1),
		ftoa(k.AvgMargin, 1),
		ftoa(k.AvgFinalScore, 1),
	})
	kpis.Render()

	top := newTable(w, "Top product", "Category", "Margin %", "Score")
	for _, r := range rep.TopProducts {
		margin := ""
		if r.MarginPercent != nil {
			margin = ftoa(*r.MarginPercent, 1)
		}
		top.Append([]string{r.ProductName, r.Category, margin, ftoa(r.FinalScore, 1)})
	}
	top.Render()

	for _, s := range rep.Insights {
		_, _ = io.WriteString(w, "- "+s+"\n")
	}
}

func init() {
	reportCmd.Flags().IntVar(&reportDays, "days", 7, "reporting window in days")
	reportCmd.Flags().StringVar(&reportSource, "source", "store", "record source: store or sheet")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(reportCmd)
}
