package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const checkTimeout = 10 * time.Second

type checkResult struct {
	detail string
	err    error
}

// CheckEnvironment runs the registered readiness checks.
func (o *Orchestrator) CheckEnvironment(ctx context.Context) string {
	return RunChecks(ctx, o.checks)
}

// RunChecks runs checks concurrently and reports one line per check, in
// registration order.
func RunChecks(ctx context.Context, checks []Check) string {
	results := make([]checkResult, len(checks))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, checkTimeout)
			defer cancel()
			detail, err := c.Run(cctx)
			results[i] = checkResult{detail: detail, err: err}
			// Failures are reported, not propagated, so the other checks still finish.
			return nil
		})
	}
	_ = g.Wait()

	var b strings.Builder
	ready := true
	for i, c := range checks {
		r := results[i]
		if r.err != nil {
			ready = false
			fmt.Fprintf(&b, "[FAIL] %s: %v\n", c.Name, r.err)
			continue
		}
		fmt.Fprintf(&b, "[ OK ] %s", c.Name)
		if r.detail != "" {
			fmt.Fprintf(&b, ": %s", r.detail)
		}
		b.WriteByte('\n')
	}
	if ready {
		b.WriteString("Environment ready.\n")
	} else {
		b.WriteString("Environment not ready.\n")
	}
	return b.String()
}
