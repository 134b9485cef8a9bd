package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitegauge/sitegauge/internal/app"
	"github.com/sitegauge/sitegauge/internal/logging"
)

var configFile string

// NewRootCommand builds the bare root; subcommands are attached in main.
func NewRootCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sitegauge",
		Short:         "sitegauge - heuristic website auditing service",
		Long:          "sitegauge fetches a page, runs six heuristic analyzers over it,\naggregates one 0-100 health score with a ranked issue list, and\noptionally summarizes the findings through a text-completion API.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (YAML; env vars SITEGAUGE_* override)")

	return cmd
}

// loadApp resolves config and a logger for a subcommand run.
func loadApp() (*app.Config, logging.Logger, error) {
	cfg, err := app.Load(configFile)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.NewZapLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, logger, nil
}
