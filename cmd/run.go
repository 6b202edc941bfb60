package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rightsguard-cli/api/schemas"
	"github.com/xkilldash9x/rightsguard-cli/internal/observability"
	"github.com/xkilldash9x/rightsguard-cli/internal/service"
)

const (
	statusPollInterval = 500 * time.Millisecond
	stopTimeout        = 10 * time.Second
)

// componentFactory is swapped in tests.
var componentFactory = service.NewComponentFactory()

func newRunCmd() *cobra.Command {
	var (
		infringingURL string
		originalURL   string
		assetID       string
		debugPort     int
		engineKind    string
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Files one appeal and follows it until it finishes",
		Long: `Files one appeal against --url. Progress is printed as the run advances.
When the form asks for identity verification, finish it in the browser and
press Enter here (or run "rightsguard continue" from another terminal).
Ctrl+C stops the run and closes any browser it launched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("debug-port") {
				cfg.SetBrowserDebugPort(debugPort)
			}
			if cmd.Flags().Changed("engine") {
				cfg.SetEngineKind(engineKind)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			req := schemas.AppealRequest{InfringingURL: infringingURL, OriginalURL: originalURL}
			if assetID != "" {
				id, err := uuid.Parse(assetID)
				if err != nil {
					return fmt.Errorf("invalid --ip-asset %q: %w", assetID, err)
				}
				req.IPAssetID = &id
			}

			components, err := componentFactory.Create(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			return runAppeal(ctx, components.Orchestrator, req, cmd.InOrStdin(), cmd.OutOrStdout(), statusPollInterval)
		},
	}

	runCmd.Flags().StringVar(&infringingURL, "url", "", "URL of the infringing content (required)")
	runCmd.Flags().StringVar(&originalURL, "original-url", "", "URL of the original work")
	runCmd.Flags().StringVar(&assetID, "ip-asset", "", "ID of the IP asset to file as rights holder")
	runCmd.Flags().IntVar(&debugPort, "debug-port", 0, "Browser remote debugging port (overrides config/env)")
	runCmd.Flags().StringVar(&engineKind, "engine", "", `Automation engine, "process" or "cdp" (overrides config/env)`)
	_ = runCmd.MarkFlagRequired("url")
	return runCmd
}

// runAppeal starts one run and follows it until it ends. A cancelled ctx
// stops the run.
func runAppeal(ctx context.Context, a schemas.Automation, req schemas.AppealRequest, in io.Reader, out io.Writer, poll time.Duration) error {
	if err := a.Start(ctx, req); err != nil {
		return fmt.Errorf("failed to start appeal: %w", err)
	}

	st, err := watchRun(ctx, a, in, out, poll)
	if err != nil {
		return err
	}

	switch {
	case st.Error != "":
		return fmt.Errorf("appeal failed: %s", st.Error)
	case st.Guide != "":
		fmt.Fprintln(out)
		fmt.Fprintln(out, st.Guide)
		fmt.Fprintln(out, "The form could not be filled automatically. Follow the guide above in the open browser tab.")
	default:
		fmt.Fprintln(out, "Appeal workflow completed. Review the form in the browser and submit it.")
	}
	return nil
}

// watchRun prints each step change and forwards Enter presses to the gate.
func watchRun(ctx context.Context, a schemas.Automation, in io.Reader, out io.Writer, poll time.Duration) (schemas.RunStatus, error) {
	logger := observability.GetLogger()

	done := make(chan struct{})
	defer close(done)
	enter := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case enter <- struct{}{}:
			case <-done:
				return
			}
		}
	}()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	lastStep := ""
	for {
		st := a.Status()
		if st.CurrentStep != lastStep {
			lastStep = st.CurrentStep
			fmt.Fprintf(out, "[%3.0f%%] %s\n", st.ProgressValue(), st.CurrentStep)
			if strings.HasSuffix(st.CurrentStep, "verification") {
				fmt.Fprintln(out, "       Complete the verification in the browser, then press Enter.")
			}
		}
		if !st.IsRunning {
			return st, nil
		}

		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "Stopping...")
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
			defer cancel()
			if err := a.Stop(stopCtx); err != nil {
				logger.Warn("Stop completed with errors.", zap.Error(err))
			}
			return a.Status(), fmt.Errorf("appeal stopped: %w", context.Cause(ctx))
		case <-enter:
			if err := a.SignalVerificationComplete(); err != nil {
				fmt.Fprintf(out, "Failed to signal verification: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "Verification signalled.")
		case <-ticker.C:
		}
	}
}
