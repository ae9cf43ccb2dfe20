package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/care-api/internal/config"
	"github.com/jwalitptl/care-api/pkg/logger"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "careworker",
		Short:         "Care event relay and schema tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ./config.yml)")

	rootCmd.AddCommand(relayCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tailCmd())
	rootCmd.AddCommand(dueCmd())

	if err := rootCmd.Execute(); err != nil {
		logger.NewLogger(&logger.Config{Level: logger.ParseLevel("error")}).Error(err, "command failed")
		os.Exit(1)
	}
}

// setup loads configuration and builds the process logger.
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.NewLogger(cfg.Log.ToLoggerConfig()), nil
}
