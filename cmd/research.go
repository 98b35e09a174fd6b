package main

import (
	"github.com/spf13/cobra"

	"github.com/jooke-shop/sourcing-cli/internal/research"
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Record and summarize in-store field research",
}

var researchInput research.Input

var researchAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Append one field observation",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ack, err := research.New(st, cfg.Research.Researcher).Add(cmd.Context(), researchInput)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), ack)
	},
}

var researchDays int

var researchSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize recent field research",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sum, err := research.New(st, cfg.Research.Researcher).Summary(cmd.Context(), researchDays)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), sum)
	},
}

func init() {
	f := researchAddCmd.Flags()
	f.StringVar(&researchInput.ProductName, "product", "", "product name")
	f.StringVar(&researchInput.StoreLocation, "store", "", "store and city")
	f.Float64Var(&researchInput.PriceCAD, "price", 0, "shelf price in CAD")
	f.StringVar(&researchInput.DiscountInfo, "discount", "", "discount information")
	f.StringVar(&researchInput.StockStatus, "stock", "", "stock status")
	f.StringSliceVar(&researchInput.PhotoURLs, "photo", nil, "photo URL (repeatable)")
	f.StringVar(&researchInput.Notes, "notes", "", "free-form notes")
	f.IntVar(&researchInput.QualityScore, "quality", 0, "quality score 1-5")
	f.StringVar(&researchInput.Recommendation, "recommendation", "", "추천, 보류 or 비추천")
	_ = researchAddCmd.MarkFlagRequired("product")
	_ = researchAddCmd.MarkFlagRequired("store")

	researchSummaryCmd.Flags().IntVar(&researchDays, "days", research.DefaultSummaryDays, "recency window in days")

	researchCmd.AddCommand(researchAddCmd, researchSummaryCmd)
	rootCmd.AddCommand(researchCmd)
}
