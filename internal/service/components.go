// File: internal/service/components.go
package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rightsguard-cli/internal/browser"
	"github.com/xkilldash9x/rightsguard-cli/internal/gate"
	"github.com/xkilldash9x/rightsguard-cli/internal/observability"
	"github.com/xkilldash9x/rightsguard-cli/internal/orchestrator"
	"github.com/xkilldash9x/rightsguard-cli/internal/store"
)

// runDrainTimeout bounds how long Shutdown waits for a stopped run to unwind.
const runDrainTimeout = 10 * time.Second

// Components holds all the initialized services required for an appeal run.
// This struct centralizes the lifecycle management of the dependencies.
type Components struct {
	Store          *store.Store
	Gate           *gate.Gate
	BrowserManager *browser.Manager
	Orchestrator   *orchestrator.Orchestrator
	DBPool         *pgxpool.Pool
}

// Shutdown stops any in-flight run and releases resources in reverse order of creation.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()
	logger.Debug("Beginning components shutdown sequence.")

	// 1. Stop the orchestrator and let the run goroutine unwind.
	if c.Orchestrator != nil {
		if c.Orchestrator.Status().IsRunning {
			stopCtx, cancel := context.WithTimeout(context.Background(), runDrainTimeout)
			if err := c.Orchestrator.Stop(stopCtx); err != nil {
				logger.Warn("Error while stopping the active run.", zap.Error(err))
			}
			cancel()
		}
		if !timedWait(c.Orchestrator.Wait, runDrainTimeout) {
			logger.Warn("Timed out waiting for the active run to finish.")
		}
	}

	// 2. Kill a browser this process launched.
	if c.BrowserManager != nil {
		if err := c.BrowserManager.Release(); err != nil {
			logger.Warn("Error during browser release.", zap.Error(err))
		} else {
			logger.Debug("Browser manager released.")
		}
	}

	// 3. Close the database connection pool.
	if c.DBPool != nil {
		c.DBPool.Close()
		logger.Debug("Database connection pool closed.")
	}

	logger.Info("All components shut down successfully.")
}

// timedWait runs wait and reports whether it returned within d.
func timedWait(wait func(), d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
