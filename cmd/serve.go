package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/rightsguard-cli/internal/api"
	"github.com/xkilldash9x/rightsguard-cli/internal/observability"
)

func newServeCmd() *cobra.Command {
	var listen string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the local control API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.SetAPIListenAddr(listen)
			}

			components, err := componentFactory.Create(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			fmt.Fprintf(cmd.OutOrStdout(), "Control API listening on http://%s\n", cfg.API().ListenAddr)
			return api.NewServer(cfg.API(), components.Orchestrator, components.Store, logger).Run(ctx)
		},
	}

	serveCmd.Flags().StringVar(&listen, "listen", "", "Address to listen on (overrides config/env)")
	return serveCmd
}
