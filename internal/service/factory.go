// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rightsguard-cli/internal/browser"
	"github.com/xkilldash9x/rightsguard-cli/internal/config"
	"github.com/xkilldash9x/rightsguard-cli/internal/executor"
	"github.com/xkilldash9x/rightsguard-cli/internal/gate"
	"github.com/xkilldash9x/rightsguard-cli/internal/locator"
	"github.com/xkilldash9x/rightsguard-cli/internal/orchestrator"
	"github.com/xkilldash9x/rightsguard-cli/internal/store"
	"github.com/xkilldash9x/rightsguard-cli/internal/workflow"
)

// ComponentFactory defines the interface for creating the set of components needed for an appeal run.
// This abstraction is the key to making the commands' logic testable.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error)
}

// concreteFactory is the production implementation of the ComponentFactory.
type concreteFactory struct{}

// NewComponentFactory creates a new production-ready component factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create handles the full dependency injection and initialization of the components.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error) {
	components := &Components{}

	// Ensure cleanup happens if initialization fails midway.
	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. Database Pool
	dbPool, err := InitializeDatabase(ctx, cfg.Database(), logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	// Add to components immediately so the deferred Shutdown can close it if later steps fail.
	components.DBPool = dbPool

	// 2. Store
	dbStore, err := store.New(ctx, dbPool, logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to initialize database store: %w", err)
		return nil, initializationErr
	}
	if err := dbStore.Migrate(ctx); err != nil {
		initializationErr = fmt.Errorf("failed to migrate database: %w", err)
		return nil, initializationErr
	}
	components.Store = dbStore
	logger.Debug("Store service initialized.")

	// 3. Verification Gate
	g, err := InitializeGate(cfg.Verification(), logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.Gate = g

	// 4. Browser Session Manager
	loc := locator.New(cfg.Browser().BinaryPath, cfg.Engine().RunnerPath)
	prober := browser.NewHTTPProber(cfg.Browser().DebugAddr(), cfg.Browser().ProbeTimeout)
	manager := browser.NewManager(cfg.Browser(), logger, prober, browser.OSProcessControl{}, loc, locator.BrowserProcessName())
	components.BrowserManager = manager
	logger.Debug("Browser manager initialized.", zap.String("debug_addr", cfg.Browser().DebugAddr()))

	// 5. Workflow Generator
	generator := NewGenerator(cfg, g)

	// 6. Engine and Executor
	engine, err := NewEngine(cfg, loc, manager, g, logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	exec := executor.New(engine, manager, logger)
	logger.Debug("Executor initialized.", zap.String("engine", engine.Name()))

	// 7. Orchestrator
	checks := EnvironmentChecks(cfg, loc, prober, dbStore)
	orch, err := orchestrator.New(logger, orchestrator.NewStatusStore(), dbStore, generator, manager, exec, g, checks...)
	if err != nil {
		initializationErr = fmt.Errorf("failed to create orchestrator: %w", err)
		return nil, initializationErr
	}
	components.Orchestrator = orch
	logger.Debug("Orchestrator initialized.")

	logger.Info("All components initialized successfully.")
	return components, nil
}

// NewGenerator builds the workflow generator from the appeal, browser and
// verification settings.
func NewGenerator(cfg config.Interface, g *gate.Gate) *workflow.Generator {
	waiting, completed := g.Paths()
	return workflow.NewGenerator(workflow.Options{
		TargetURL:           cfg.Appeal().TargetURL,
		DebugURL:            cfg.Browser().DebugURL(),
		ComplaintText:       cfg.Appeal().ComplaintText,
		FilesRoot:           cfg.Appeal().FilesRoot,
		WaitingPath:         waiting,
		CompletedPath:       completed,
		VerificationTimeout: cfg.Verification().Timeout,
	})
}

// NewEngine selects the automation engine named by the configuration.
func NewEngine(cfg config.Interface, finder Finder, tabs executor.TabProvider, g *gate.Gate, logger *zap.Logger) (executor.Engine, error) {
	switch cfg.Engine().Kind {
	case config.EngineCDP:
		return executor.NewCDPEngine(tabs, g, logger), nil
	case config.EngineProcess:
		runner, err := finder.FindRunner()
		if err != nil {
			// Reported by the environment check; the attempt itself then fails
			// with a "not found" classification.
			logger.Warn("Script runner not found, falling back to PATH lookup at run time.", zap.Error(err))
			runner = "npx"
		}
		engineCfg := cfg.Engine()
		if engineCfg.WorkDir != "" {
			if engineCfg.WorkDir, err = homedir.Expand(engineCfg.WorkDir); err != nil {
				return nil, fmt.Errorf("invalid engine work dir: %w", err)
			}
		}
		return executor.NewProcessEngine(engineCfg, runner, logger), nil
	default:
		return nil, fmt.Errorf("unsupported engine kind: %q", cfg.Engine().Kind)
	}
}
