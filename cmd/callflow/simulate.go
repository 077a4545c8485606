package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/callflow"
	"github.com/aretw0/callflow/internal/presentation/tui"
	"github.com/aretw0/callflow/pkg/runner"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:     "simulate [catalog]",
	Aliases: []string{"run"},
	Short:   "Place a simulated call from the terminal",
	Long: `Starts a call against the catalog and reads keypad input from stdin.
Type digits (several per line are fed one by one), "say <utterance>" for speech,
or "hangup" to abandon the call.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, logger, err := openEngine(cmd, args)
		if err != nil {
			return err
		}
		jsonMode, _ := cmd.Flags().GetBool("json")
		caller, _ := cmd.Flags().GetString("caller")

		var handler runner.IOHandler
		if jsonMode {
			handler = runner.NewJSONHandler(os.Stdin, os.Stdout)
		} else {
			if tui.IsInteractive(os.Stdout) {
				tui.PrintBanner(os.Stdout, callflow.Version)
			}
			handler = runner.NewTextHandler(os.Stdin, os.Stdout,
				runner.WithTextHandlerRenderer(tui.NewRenderer()),
			)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		r := runner.NewRunner(eng.Manager(),
			runner.WithLogger(logger),
			runner.WithInputHandler(handler),
			runner.WithCaller(caller),
		)
		last, err := r.Run(ctx)
		if err != nil {
			return err
		}
		if !jsonMode && last.Terminated {
			fmt.Fprintf(os.Stdout, "call finished: %s\n", last.Kind)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	simulateCmd.Flags().String("caller", "simulator", "Caller address recorded on the session")
}
