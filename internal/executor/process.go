package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/hpcloud/tail"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rightsguard-cli/internal/config"
	"github.com/xkilldash9x/rightsguard-cli/internal/workflow"
)

const (
	scriptName   = "appeal.spec.js"
	manifestName = "workflow.json"
	runLogName   = "run.log"

	// tailStopAtEOF is the reason tail reports after a clean StopAtEOF.
	tailStopAtEOF = "tail: stop at eof"
)

// ProcessEngine renders the workflow as a Playwright test and runs it with
// the external test runner.
type ProcessEngine struct {
	runner        string
	workDir       string
	timeout       time.Duration
	keepArtifacts bool
	// waitDelay bounds how long Run waits for output pipes after the runner
	// was killed.
	waitDelay time.Duration
	logger    *zap.Logger

	// command builds the child process; replaced in tests.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewProcessEngine returns an engine that invokes runner ("npx") from a fresh
// directory under cfg.WorkDir for every attempt.
func NewProcessEngine(cfg config.EngineConfig, runner string, logger *zap.Logger) *ProcessEngine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &ProcessEngine{
		runner:        runner,
		workDir:       cfg.WorkDir,
		timeout:       timeout,
		keepArtifacts: cfg.KeepArtifacts,
		waitDelay:     5 * time.Second,
		logger:        logger.Named("process_engine"),
		command:       exec.CommandContext,
	}
}

func (e *ProcessEngine) Name() string { return "playwright" }

// Run implements Engine.
func (e *ProcessEngine) Run(ctx context.Context, w *workflow.Workflow, report ProgressFunc) (Result, error) {
	runDir, err := e.prepare(w)
	if err != nil {
		return Result{ExitCode: -1}, err
	}
	defer func() {
		if e.keepArtifacts {
			e.logger.Info("Keeping run artifacts.", zap.String("dir", runDir))
			return
		}
		if err := os.RemoveAll(runDir); err != nil {
			e.logger.Warn("Failed to remove run directory.", zap.String("dir", runDir), zap.Error(err))
		}
	}()

	logPath := filepath.Join(runDir, runLogName)
	logFile, err := os.Create(logPath)
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("failed to create run log: %w", err)
	}
	defer logFile.Close()

	stopFollow, err := e.follow(logPath, report)
	if err != nil {
		return Result{ExitCode: -1}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := []string{"playwright", "test", scriptName,
		"--timeout=" + strconv.FormatInt(e.timeout.Milliseconds(), 10),
		"--reporter=line",
		"--workers=1",
	}
	cmd := e.command(runCtx, e.runner, args...)
	cmd.Dir = runDir
	cmd.Env = append(cmd.Environ(), "PLAYWRIGHT_BROWSERS_PATH=0")
	// npx runs node as a child; cancellation has to take the whole tree down.
	killProcessTree(cmd)
	cmd.WaitDelay = e.waitDelay

	var out bytes.Buffer
	sink := io.MultiWriter(logFile, &out)
	cmd.Stdout = sink
	cmd.Stderr = sink

	e.logger.Info("Starting workflow runner.", zap.String("runner", e.runner), zap.Strings("args", args), zap.Bool("simplified", w.Simplified))
	runErr := cmd.Run()
	stopFollow()

	res := Result{Output: out.String()}
	if runErr == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	} else {
		res.ExitCode = -1
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return res, fmt.Errorf("workflow runner timed out after %s: %w", e.timeout, runErr)
	}
	return res, fmt.Errorf("workflow runner failed: %w", runErr)
}

// prepare writes the script and manifest into a new run directory.
func (e *ProcessEngine) prepare(w *workflow.Workflow) (string, error) {
	base, err := homedir.Expand(e.workDir)
	if err != nil {
		return "", fmt.Errorf("could not expand work dir %q: %w", e.workDir, err)
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("could not create work dir: %w", err)
	}
	runDir, err := os.MkdirTemp(base, "run-")
	if err != nil {
		return "", fmt.Errorf("could not create run dir: %w", err)
	}

	script, err := workflow.RenderScript(w)
	if err != nil {
		os.RemoveAll(runDir)
		return "", err
	}
	if err := os.WriteFile(filepath.Join(runDir, scriptName), []byte(script), 0o600); err != nil {
		os.RemoveAll(runDir)
		return "", fmt.Errorf("failed to write script: %w", err)
	}

	manifest, err := workflow.Manifest(w)
	if err != nil {
		os.RemoveAll(runDir)
		return "", err
	}
	if err := os.WriteFile(filepath.Join(runDir, manifestName), manifest, 0o600); err != nil {
		os.RemoveAll(runDir)
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return runDir, nil
}

// follow tails the run log and forwards stage markers. The returned func
// drains the remaining lines and stops the follower.
func (e *ProcessEngine) follow(path string, report ProgressFunc) (func(), error) {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to follow run log: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for line := range t.Lines {
			if line.Err != nil {
				continue
			}
			if stage, ok := workflow.ParseMarker(line.Text); ok {
				e.logger.Debug("Runner entered stage.", zap.String("stage", stage))
				if report != nil {
					report(stage)
				}
			}
		}
	}()

	return func() {
		if err := t.StopAtEOF(); err != nil && err.Error() != tailStopAtEOF {
			e.logger.Debug("Run log follower stopped.", zap.Error(err))
		}
		wg.Wait()
		t.Cleanup()
	}, nil
}
