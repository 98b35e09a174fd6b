package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jooke-shop/sourcing-cli/internal/sheet"
)

var sheetCmd = &cobra.Command{
	Use:   "sheet",
	Short: "Manage the result sheet",
}

var sheetInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the sheet and write the header row",
	RunE: func(cmd *cobra.Command, args []string) error {
		sink, err := initSink()
		if err != nil {
			return err
		}
		if err := sink.EnsureHeader(cmd.Context()); err != nil {
			return err
		}
		cmd.Printf("sheet ready (%s backend)\n", cfg.Sheet.Backend)
		return nil
	},
}

var sheetLastCmd = &cobra.Command{
	Use:   "last",
	Short: "Print the most recently appended row",
	RunE: func(cmd *cobra.Command, args []string) error {
		sink, err := initSink()
		if err != nil {
			return err
		}
		row, err := sink.LastRow(cmd.Context())
		if errors.Is(err, sheet.ErrNoRows) {
			cmd.Println("sheet is empty")
			return nil
		}
		if err != nil {
			return err
		}

		table := newTable(cmd.OutOrStdout(), "Column", "Value")
		for i, c := range sheet.Columns {
			table.Append([]string{sheet.Headers[i], row[c]})
		}
		table.Render()
		return nil
	},
}

func init() {
	sheetCmd.AddCommand(sheetInitCmd, sheetLastCmd)
	rootCmd.AddCommand(sheetCmd)
}
