package main

import (
	"fmt"

	"github.com/aretw0/callflow/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [catalog]",
	Short: "Export the menu graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of the menus and the actions bound to each token.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := openEngine(cmd, args)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(eng.Catalog().Nodes(), nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
