package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/rightsguard-cli/internal/browser"
	"github.com/xkilldash9x/rightsguard-cli/internal/locator"
	"github.com/xkilldash9x/rightsguard-cli/internal/observability"
	"github.com/xkilldash9x/rightsguard-cli/internal/orchestrator"
	"github.com/xkilldash9x/rightsguard-cli/internal/service"
)

// errNotReady is returned by doctor when a check failed.
var errNotReady = errors.New("environment not ready")

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Checks that the browser, script runner, database and directories are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			var db service.Pinger
			pool, err := service.InitializeDatabase(ctx, cfg.Database(), logger)
			if err != nil {
				db = service.UnreachableDatabase(err)
			} else {
				defer pool.Close()
				db = pool
			}

			loc := locator.New(cfg.Browser().BinaryPath, cfg.Engine().RunnerPath)
			prober := browser.NewHTTPProber(cfg.Browser().DebugAddr(), cfg.Browser().ProbeTimeout)
			report := orchestrator.RunChecks(ctx, service.EnvironmentChecks(cfg, loc, prober, db))

			fmt.Fprint(cmd.OutOrStdout(), report)
			if !strings.HasSuffix(report, "Environment ready.\n") {
				return errNotReady
			}
			return nil
		},
	}
}
