package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/keygate/cmd/keygate/commands"
	"github.com/systmms/keygate/internal/config"
	"github.com/systmms/keygate/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile string
		debug      bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "keygate",
		Short: "Gateway API credential lifecycle manager",
		Long: `keygate issues, rotates and tracks per-application API credential pairs
for a gateway platform, backed by Google Cloud Secret Manager or an
in-process store for local development.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "keygate.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewServeCommand(cfg),
		commands.NewVerifyCommand(cfg),
		commands.NewListCommand(cfg),
	)

	return rootCmd.Execute()
}
