package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [catalog]",
	Short: "Check the catalog for consistency",
	Long:  `Loads the catalog and reports dangling targets, malformed options and unreachable menus.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := openEngine(cmd, args)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		out := cmd.OutOrStdout()
		for _, w := range eng.Catalog().Warnings() {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		fmt.Fprintf(out, "Catalog is valid! %d menus\n", len(eng.Catalog().IDs()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
