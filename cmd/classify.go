package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/jooke-shop/sourcing-cli/internal/inquiry"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <message>",
	Short: "Classify a customer inquiry and print the auto response",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := inquiry.FromFile(cfg.Inquiry.CategoriesFile)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), c.Classify(strings.Join(args, " ")))
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
