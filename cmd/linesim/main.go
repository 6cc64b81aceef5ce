// Command linesim runs assembly-line simulations from the terminal and
// serves the HTTP gateway.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

func main() {
	root := &cobra.Command{
		Use:   "linesim",
		Short: "Discrete-event assembly line simulator",
		Long: `linesim schedules a process graph across a bounded worker pool and
capacity-limited equipment, with rest rules and stochastic rework, and
reports throughput, utilisation, quality and fatigue statistics.`,
		SilenceUsage: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newTemplateCmd())

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
