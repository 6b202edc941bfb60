// internal/browser/process.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// Process is a spawned browser the manager owns.
type Process interface {
	Pid() int
	// Kill terminates the process and reaps it. Killing a process that already
	// exited is not an error.
	Kill() error
}

// ProcessControl abstracts the OS process operations the manager needs.
type ProcessControl interface {
	IsRunning(ctx context.Context, name string) bool
	KillByName(ctx context.Context, name string) error
	Start(path string, args []string) (Process, error)
}

// OSProcessControl implements ProcessControl with tasklist/taskkill on Windows
// and pgrep/pkill elsewhere.
type OSProcessControl struct{}

// IsRunning implements ProcessControl.
func (OSProcessControl) IsRunning(ctx context.Context, name string) bool {
	if runtime.GOOS == "windows" {
		out, err := exec.CommandContext(ctx, "tasklist", "/FI", "IMAGENAME eq "+name).Output()
		return err == nil && strings.Contains(strings.ToLower(string(out)), strings.ToLower(name))
	}
	return exec.CommandContext(ctx, "pgrep", name).Run() == nil
}

// KillByName implements ProcessControl.
func (OSProcessControl) KillByName(ctx context.Context, name string) error {
	if runtime.GOOS == "windows" {
		if out, err := exec.CommandContext(ctx, "taskkill", "/F", "/IM", name).CombinedOutput(); err != nil {
			return fmt.Errorf("taskkill %s failed: %w (%s)", name, err, strings.TrimSpace(string(out)))
		}
		return nil
	}
	// pkill exits 1 when nothing matched; the caller only cares that nothing is left.
	err := exec.CommandContext(ctx, "pkill", "-KILL", name).Run()
	var exitErr *exec.ExitError
	if err != nil && !(errors.As(err, &exitErr) && exitErr.ExitCode() == 1) {
		return fmt.Errorf("pkill %s failed: %w", name, err)
	}
	return nil
}

// Start implements ProcessControl. The child is detached from any context so a
// finished run does not take a reused browser down with it.
func (OSProcessControl) Start(path string, args []string) (Process, error) {
	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &osProcess{cmd: cmd, done: make(chan struct{})}
	go p.reap()
	return p, nil
}

type osProcess struct {
	cmd      *exec.Cmd
	done     chan struct{}
	killOnce sync.Once
	killErr  error
}

func (p *osProcess) reap() {
	_ = p.cmd.Wait()
	close(p.done)
}

func (p *osProcess) Pid() int { return p.cmd.Process.Pid }

func (p *osProcess) Kill() error {
	p.killOnce.Do(func() {
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.killErr = err
			return
		}
		<-p.done
	})
	return p.killErr
}
