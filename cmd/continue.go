package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/rightsguard-cli/internal/gate"
	"github.com/xkilldash9x/rightsguard-cli/internal/observability"
	"github.com/xkilldash9x/rightsguard-cli/internal/service"
)

func newContinueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "continue",
		Short: "Signals that identity verification is done, from any terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}

			g, err := service.InitializeGate(cfg.Verification(), observability.GetLogger())
			if err != nil {
				return err
			}
			wasWaiting := g.State() == gate.StateWaiting
			if err := g.SignalComplete(); err != nil {
				return fmt.Errorf("failed to signal verification: %w", err)
			}

			if wasWaiting {
				fmt.Fprintln(cmd.OutOrStdout(), "Verification signalled. The run will continue.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Verification signalled. No run is waiting right now; the signal is cleared when the next run starts.")
			}
			return nil
		},
	}
}
