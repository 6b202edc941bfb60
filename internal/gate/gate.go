// Package gate implements the human verification handshake between a running
// workflow and whoever completes the CAPTCHA/SMS step. State lives in two
// sentinel files so the signal can come from another process.
package gate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	WaitingFile   = "waiting_for_verification.txt"
	CompletedFile = "verification_completed.txt"
)

// ErrVerificationTimeout is returned by Wait when the ceiling elapses.
var ErrVerificationTimeout = errors.New("verification timed out")

// State of the gate as observed on disk.
type State int

const (
	StateReset State = iota
	StateWaiting
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateCompleted:
		return "completed"
	default:
		return "reset"
	}
}

// Gate is a file-backed verification flag rooted in a runtime directory.
type Gate struct {
	dir          string
	logger       *zap.Logger
	pollInterval time.Duration
}

// New returns a gate using dir for its sentinels. The directory is created lazily.
func New(dir string, logger *zap.Logger) *Gate {
	return &Gate{
		dir:          dir,
		logger:       logger.Named("gate"),
		pollInterval: time.Second,
	}
}

// Dir is the runtime directory holding the sentinels.
func (g *Gate) Dir() string { return g.dir }

// Paths returns the waiting and completed sentinel paths.
func (g *Gate) Paths() (waiting, completed string) {
	return filepath.Join(g.dir, WaitingFile), filepath.Join(g.dir, CompletedFile)
}

// Reset clears both sentinels. Called at the start of every run so a signal
// left over from a previous run cannot release the next one.
func (g *Gate) Reset() error {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create gate dir %s: %w", g.dir, err)
	}
	waiting, completed := g.Paths()
	for _, p := range []string{waiting, completed} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to clear %s: %w", p, err)
		}
	}
	return nil
}

// MarkWaiting records that a workflow is blocked on verification.
func (g *Gate) MarkWaiting() error {
	waiting, _ := g.Paths()
	return g.touch(waiting, "waiting")
}

// SignalComplete releases a waiting workflow. Calling it more than once, or
// when nothing is waiting, is harmless.
func (g *Gate) SignalComplete() error {
	_, completed := g.Paths()
	if err := g.touch(completed, "completed"); err != nil {
		return err
	}
	g.logger.Info("Verification signalled complete.")
	return nil
}

// State reads the gate from disk. Completed wins over waiting.
func (g *Gate) State() State {
	waiting, completed := g.Paths()
	if exists(completed) {
		return StateCompleted
	}
	if exists(waiting) {
		return StateWaiting
	}
	return StateReset
}

// Wait blocks until the completed sentinel appears, ctx is done, or ceiling
// elapses. On success both sentinels are consumed.
func (g *Gate) Wait(ctx context.Context, ceiling time.Duration) error {
	_, completed := g.Paths()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		g.logger.Warn("fsnotify unavailable, polling only.", zap.Error(err))
		watcher = nil
	} else {
		defer watcher.Close()
		if err := watcher.Add(g.dir); err != nil {
			g.logger.Warn("Could not watch gate dir, polling only.", zap.String("dir", g.dir), zap.Error(err))
		}
	}

	var events <-chan fsnotify.Event
	var errs <-chan error
	if watcher != nil {
		events, errs = watcher.Events, watcher.Errors
	}

	deadline := time.NewTimer(ceiling)
	defer deadline.Stop()
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		if exists(completed) {
			return g.consume()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w after %s", ErrVerificationTimeout, ceiling)
		case <-ticker.C:
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			g.logger.Debug("Gate dir event.", zap.String("event", ev.String()))
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			g.logger.Warn("Gate watcher error.", zap.Error(err))
		}
	}
}

func (g *Gate) consume() error {
	if err := g.Reset(); err != nil {
		return err
	}
	g.logger.Info("Verification complete, resuming workflow.")
	return nil
}

func (g *Gate) touch(path, what string) error {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create gate dir %s: %w", g.dir, err)
	}
	body := fmt.Sprintf("%s %s\n", what, time.Now().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
