package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nfrund/eventsys/internal/config"
	"github.com/nfrund/eventsys/internal/logging"
)

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "eventsys-cli",
	Short: "eventsys CLI tool",
	Long: `eventsys-cli exercises the eventsys registry from the command line.

Available commands:
  demo      Subscribe a few listeners, revoke one and broadcast
  stress    Hammer one registry from many goroutines and report violations
  version   Print the version number

Use "eventsys-cli [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		logging.Configure(cfg.LogFormat, cfg.LogLevel)
		return nil
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
