// Package executor drives a generated workflow through an automation engine
// and degrades through a fixed ladder of strategies when an attempt fails.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/target"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rightsguard-cli/internal/workflow"
)

// ErrExecution is wrapped by every ExecutionError.
var ErrExecution = errors.New("workflow execution failed")

// Result is what an engine reports for one attempt.
type Result struct {
	ExitCode int
	Output   string
}

// ProgressFunc receives stage names as the engine enters them.
type ProgressFunc func(stage string)

// Engine runs a workflow against the live browser.
type Engine interface {
	Name() string
	Run(ctx context.Context, w *workflow.Workflow, report ProgressFunc) (Result, error)
}

// PageOpener shows a page in the live browser for the manual rung.
type PageOpener interface {
	OpenPage(ctx context.Context, url string) (target.ID, error)
}

// Strategy is one rung of the fallback ladder.
type Strategy string

const (
	StrategyPrimary    Strategy = "primary"
	StrategySimplified Strategy = "simplified"
	StrategyManual     Strategy = "manual"
)

// Attempt records the classified failure of one rung.
type Attempt struct {
	Strategy Strategy
	Message  string
}

// Outcome describes the rung that succeeded.
type Outcome struct {
	Strategy Strategy
	// Guide is set when the manual rung produced instructions.
	Guide    string
	Attempts []Attempt
}

// ExecutionError is returned when every rung failed.
type ExecutionError struct {
	Attempts []Attempt
	Err      error
}

func (e *ExecutionError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Strategy, a.Message))
	}
	return "all strategies failed; " + strings.Join(parts, "; ")
}

func (e *ExecutionError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrExecution, e.Err}
	}
	return []error{ErrExecution}
}

// Executor applies the primary, simplified and manual strategies in order,
// each at most once, stopping at the first success.
type Executor struct {
	engine Engine
	opener PageOpener
	logger *zap.Logger
}

// New returns an executor. opener may be nil, in which case the manual rung
// only publishes the guide.
func New(engine Engine, opener PageOpener, logger *zap.Logger) *Executor {
	return &Executor{
		engine: engine,
		opener: opener,
		logger: logger.Named("executor"),
	}
}

// Execute runs the ladder for w.
func (e *Executor) Execute(ctx context.Context, w *workflow.Workflow, report ProgressFunc) (Outcome, error) {
	if report == nil {
		report = func(string) {}
	}
	var attempts []Attempt

	rungs := []struct {
		strategy Strategy
		run      func() error
	}{
		{StrategyPrimary, func() error { return e.runEngine(ctx, w, report) }},
		{StrategySimplified, func() error { return e.runEngine(ctx, workflow.Simplify(w), report) }},
	}

	for _, r := range rungs {
		e.logger.Info("Attempting strategy.", zap.String("strategy", string(r.strategy)), zap.String("engine", e.engine.Name()))
		err := r.run()
		if err == nil {
			return Outcome{Strategy: r.strategy, Attempts: attempts}, nil
		}
		msg := err.Error()
		attempts = append(attempts, Attempt{Strategy: r.strategy, Message: msg})
		e.logger.Warn("Strategy failed.", zap.String("strategy", string(r.strategy)), zap.String("reason", msg))

		// A stopped run does not degrade any further.
		if ctx.Err() != nil {
			return Outcome{}, &ExecutionError{Attempts: attempts, Err: ctx.Err()}
		}
	}

	guide := workflow.Guide(w)
	if e.opener != nil {
		if _, err := e.opener.OpenPage(ctx, w.TargetURL); err != nil {
			attempts = append(attempts, Attempt{Strategy: StrategyManual, Message: Classify("", err)})
			return Outcome{}, &ExecutionError{Attempts: attempts}
		}
	}
	e.logger.Info("Falling back to manual guidance.")
	return Outcome{Strategy: StrategyManual, Guide: guide, Attempts: attempts}, nil
}

func (e *Executor) runEngine(ctx context.Context, w *workflow.Workflow, report ProgressFunc) error {
	res, err := e.engine.Run(ctx, w, report)
	if err == nil && res.ExitCode == 0 {
		return nil
	}
	e.logger.Warn("Engine attempt failed.",
		zap.Int("exit_code", res.ExitCode),
		zap.String("output_tail", tailText(strings.TrimSpace(res.Output), tailLen)),
		zap.Error(err),
	)
	return errors.New(Classify(res.Output, err))
}
