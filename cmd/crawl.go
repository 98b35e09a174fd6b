package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/jooke-shop/sourcing-cli/internal/model"
)

var (
	crawlMaxPages int
	crawlJSON     bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <category-url>",
	Short: "Crawl a category page and list the pages found",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("crawl"); err != nil {
			return err
		}

		maxPages := crawlMaxPages
		if maxPages <= 0 {
			maxPages = cfg.Firecrawl.MaxPages
		}
		res := initScraper().ScrapeCategory(ctx, args[0], maxPages)

		if crawlJSON {
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
		} else {
			table := newTable(cmd.OutOrStdout(), "URL", "Title", "Chars")
			for _, p := range res.Pages {
				table.Append([]string{p.URL, p.Title, ftoa(float64(len(p.Markdown)), 0)})
			}
			table.Render()
		}
		if res.Status != model.ScrapeStatusSuccess {
			return eris.New("crawl failed: " + res.Error)
		}
		return nil
	},
}

func init() {
	crawlCmd.Flags().IntVar(&crawlMaxPages, "max-pages", 0, "max pages to crawl (default from config)")
	crawlCmd.Flags().BoolVar(&crawlJSON, "json", false, "print the crawl result as JSON")
	rootCmd.AddCommand(crawlCmd)
}
