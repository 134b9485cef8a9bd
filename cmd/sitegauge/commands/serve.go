package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitegauge/sitegauge/internal/app"
	"github.com/sitegauge/sitegauge/internal/server"
	"github.com/sitegauge/sitegauge/internal/store"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scan API server",
		RunE:  runServe,
	}

	cmd.Flags().String("addr", "", "listen address (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadApp()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.ServerAddr = addr
	}

	st, err := store.Open(store.Config{Path: cfg.StoragePath}, logger)
	if err != nil {
		return fmt.Errorf("open scan store: %w", err)
	}
	defer st.Close()

	runner, err := app.NewRunner(cfg, st, logger)
	if err != nil {
		return fmt.Errorf("build runner: %w", err)
	}

	srv, err := server.NewServer(server.Config{Addr: cfg.ServerAddr}, runner, logger)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	return srv.Start()
}
