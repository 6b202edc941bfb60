// File: internal/orchestrator/orchestrator.go
// Description: Owns the lifecycle of one appeal run. Collaborators are injected
// as interfaces so every step can be replaced in tests.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rightsguard-cli/api/schemas"
	"github.com/xkilldash9x/rightsguard-cli/internal/executor"
	"github.com/xkilldash9x/rightsguard-cli/internal/validation"
	"github.com/xkilldash9x/rightsguard-cli/internal/workflow"
)

var (
	// ErrAlreadyRunning is returned by Start while a run is in flight.
	ErrAlreadyRunning = errors.New("automation is already running")
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid appeal request")
)

// SessionManager provides a debuggable browser and cleans it up. Release
// kills a browser the manager launched; Detach leaves it running for the user.
type SessionManager interface {
	EnsureDebuggableSession(ctx context.Context) error
	Release() error
	Detach()
}

// Generator builds the workflow for a run.
type Generator interface {
	Generate(profile *schemas.Profile, asset *schemas.IPAsset, req schemas.AppealRequest) (*workflow.Workflow, error)
}

// Executor drives the workflow through the fallback ladder.
type Executor interface {
	Execute(ctx context.Context, w *workflow.Workflow, report executor.ProgressFunc) (executor.Outcome, error)
}

// Gate is the verification flag.
type Gate interface {
	Reset() error
	SignalComplete() error
}

// Check is one environment readiness probe.
type Check struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

// Orchestrator implements schemas.Automation.
type Orchestrator struct {
	logger    *zap.Logger
	status    *StatusStore
	repo      schemas.Repository
	generator Generator
	session   SessionManager
	executor  Executor
	gate      Gate
	checks    []Check

	// now is swapped in tests.
	now func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	// active is true from Start until the run goroutine has released the
	// browser, which can be after Stop already marked the status idle.
	active bool
	wg     sync.WaitGroup
}

var _ schemas.Automation = (*Orchestrator)(nil)

// New wires an orchestrator. All collaborators are required; checks may be empty.
func New(
	logger *zap.Logger,
	status *StatusStore,
	repo schemas.Repository,
	generator Generator,
	session SessionManager,
	exec Executor,
	gate Gate,
	checks ...Check,
) (*Orchestrator, error) {
	if logger == nil ||
		status == nil ||
		repo == nil ||
		generator == nil ||
		session == nil ||
		exec == nil ||
		gate == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	return &Orchestrator{
		logger:    logger.Named("orchestrator"),
		status:    status,
		repo:      repo,
		generator: generator,
		session:   session,
		executor:  exec,
		gate:      gate,
		checks:    checks,
		now:       time.Now,
	}, nil
}

// Start validates req and launches a run in the background. It returns
// ErrAlreadyRunning without touching the status when a run is in flight.
func (o *Orchestrator) Start(ctx context.Context, req schemas.AppealRequest) error {
	if err := validation.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active {
		// A stopped run still owns the browser until it unwinds.
		return fmt.Errorf("%w: the previous run is still shutting down", ErrAlreadyRunning)
	}

	runID := uuid.NewString()
	if !o.status.TryBegin(runID, o.now()) {
		return ErrAlreadyRunning
	}

	// The run outlives the caller's request context.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancel = cancel
	o.active = true

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			o.mu.Lock()
			o.active = false
			o.cancel = nil
			o.mu.Unlock()
		}()
		defer cancel()
		o.run(runCtx, runID, req)
	}()

	o.logger.Info("Automation started.", zap.String("run_id", runID), zap.String("infringing_url", req.InfringingURL))
	return nil
}

// run is the body of one automation run. It always leaves the status idle.
func (o *Orchestrator) run(ctx context.Context, runID string, req schemas.AppealRequest) {
	logger := o.logger.With(zap.String("run_id", runID))

	// A finished form is left in the browser for the user to review and
	// submit, so a successful run hands the browser over instead of killing it.
	handOver := false
	defer func() {
		if handOver && ctx.Err() == nil {
			o.session.Detach()
			return
		}
		if err := o.session.Release(); err != nil {
			logger.Warn("Failed to release browser.", zap.Error(err))
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Run panicked.", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			o.status.Fail(runID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	outcome, err := o.execute(ctx, logger, runID, &req)
	if err != nil {
		logger.Error("Run failed.", zap.Error(err))
		o.status.Fail(runID, err.Error())
		o.saveCase(ctx, logger, req, schemas.CaseFailed)
		return
	}

	handOver = true
	if outcome.Strategy == executor.StrategyManual {
		logger.Info("Run ended with manual guidance.")
		o.status.Succeed(runID, StepManual, outcome.Guide)
		o.saveCase(ctx, logger, req, schemas.CaseManual)
		return
	}

	o.status.Advance(runID, StepFinished)
	o.saveCase(ctx, logger, req, schemas.CaseSubmitted)
	o.status.Succeed(runID, StepSubmitted, "")
	logger.Info("Run completed.", zap.String("strategy", string(outcome.Strategy)))
}

// execute runs the steps of one run. It clears req.IPAssetID when the id does
// not resolve, so the case record never references a missing asset.
func (o *Orchestrator) execute(ctx context.Context, logger *zap.Logger, runID string, req *schemas.AppealRequest) (executor.Outcome, error) {
	// 1. Fresh gate so a signal from an earlier run cannot leak into this one.
	if err := o.gate.Reset(); err != nil {
		return executor.Outcome{}, fmt.Errorf("failed to reset verification gate: %w", err)
	}

	// 2. Preconditions.
	o.status.Advance(runID, StepLoadingData)
	profile, err := o.repo.GetProfile(ctx)
	if err != nil {
		return executor.Outcome{}, fmt.Errorf("failed to load profile: %w", err)
	}
	var asset *schemas.IPAsset
	if req.IPAssetID != nil {
		asset, err = o.repo.GetIPAsset(ctx, *req.IPAssetID)
		if err != nil {
			return executor.Outcome{}, fmt.Errorf("failed to load IP asset: %w", err)
		}
		if asset == nil {
			id := *req.IPAssetID
			req.IPAssetID = nil
			return executor.Outcome{}, fmt.Errorf("IP asset %s: %w", id, workflow.ErrPreconditionMissing)
		}
	}

	// 3. Generation, before any browser work.
	o.status.Advance(runID, StepGenerating)
	w, err := o.generator.Generate(profile, asset, *req)
	if err != nil {
		return executor.Outcome{}, err
	}
	logger.Debug("Workflow generated.", zap.Int("stages", len(w.Stages)))

	// 4. Browser.
	o.status.Advance(runID, StepLaunching)
	if err := o.session.EnsureDebuggableSession(ctx); err != nil {
		return executor.Outcome{}, err
	}

	// 5. Execution.
	o.status.Advance(runID, StepRunning)
	return o.executor.Execute(ctx, w, func(stage string) {
		o.status.Stage(runID, stage)
	})
}

func (o *Orchestrator) saveCase(ctx context.Context, logger *zap.Logger, req schemas.AppealRequest, status schemas.CaseStatus) {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.repo.SaveCaseRecord(saveCtx, req, status); err != nil {
		logger.Warn("Failed to save case record.", zap.Error(err))
	}
}

// Stop marks the run stopped, cancels it and releases the browser.
func (o *Orchestrator) Stop(ctx context.Context) error {
	wasRunning := o.status.Stop()

	o.mu.Lock()
	cancel := o.cancel
	o.cancel = nil
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	o.logger.Info("Automation stopped.", zap.Bool("was_running", wasRunning))
	if err := o.session.Release(); err != nil {
		return fmt.Errorf("failed to release browser: %w", err)
	}
	return nil
}

// Status returns a snapshot of the run status.
func (o *Orchestrator) Status() schemas.RunStatus {
	return o.status.Snapshot()
}

// SignalVerificationComplete releases a workflow waiting on verification.
func (o *Orchestrator) SignalVerificationComplete() error {
	return o.gate.SignalComplete()
}

// Wait blocks until the background run, if any, has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
