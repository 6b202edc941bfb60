// internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/rightsguard-cli/internal/config"
	"github.com/xkilldash9x/rightsguard-cli/internal/observability"
)

var (
	// ErrLaunch covers a missing browser binary or a spawn failure.
	ErrLaunch = errors.New("browser launch failed")
	// ErrTimeout is returned when the debug endpoint never became reachable.
	ErrTimeout = errors.New("timed out waiting for browser debug endpoint")
)

// BinaryFinder locates a launchable browser.
type BinaryFinder interface {
	FindBrowser() (string, error)
}

// Manager owns at most one debug-enabled browser process and decides whether
// to reuse a live session or launch a fresh one.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	prober      Prober
	procs       ProcessControl
	finder      BinaryFinder
	processName string

	// sleep is swapped in tests to skip the settle delay.
	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	owned Process
}

// NewManager wires a session manager. processName is the image name matched
// when killing a browser that runs without the debug flag.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger, prober Prober, procs ProcessControl, finder BinaryFinder, processName string) *Manager {
	if cfg.ProcessName != "" {
		processName = cfg.ProcessName
	}
	return &Manager{
		cfg:         cfg,
		logger:      logger.Named("browser_manager"),
		prober:      prober,
		procs:       procs,
		finder:      finder,
		processName: processName,
		sleep:       sleepCtx,
	}
}

// EnsureDebuggableSession makes sure a debug endpoint is reachable, launching
// a browser on an app-private profile when needed.
func (m *Manager) EnsureDebuggableSession(ctx context.Context) error {
	// 1. Reuse a working session; never relaunch it.
	if m.prober.Probe(ctx) {
		m.logger.Info("Debug endpoint already live, reusing session.", zap.String("addr", m.cfg.DebugAddr()))
		return nil
	}

	// 2. A browser running without the debug flag holds the profile lock.
	if m.procs.IsRunning(ctx, m.processName) {
		m.logger.Warn("Browser running without debug port, terminating it.", zap.String("process", m.processName))
		if err := m.procs.KillByName(ctx, m.processName); err != nil {
			return fmt.Errorf("%w: could not close running browser: %v", ErrLaunch, err)
		}
		if err := m.sleep(ctx, m.cfg.SettleDelay); err != nil {
			return err
		}
	}

	// 3. Locate the binary.
	path, err := m.finder.FindBrowser()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	// 4. Spawn on the private profile.
	if err := m.launch(path); err != nil {
		return err
	}

	// 5. Wait for the endpoint; a timeout is a hard failure.
	return m.WaitForEndpoint(ctx)
}

func (m *Manager) launch(path string) error {
	userDataDir, err := m.userDataDir()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.owned != nil {
		// A stale handle from an aborted run.
		if err := m.owned.Kill(); err != nil {
			m.logger.Warn("Failed to kill stale browser process.", zap.Error(err))
		}
		m.owned = nil
	}

	args := m.LaunchArgs(userDataDir)
	proc, err := m.procs.Start(path, args)
	if err != nil {
		return fmt.Errorf("%w: could not start %s: %v", ErrLaunch, path, err)
	}
	m.owned = proc
	m.logger.Info("Browser launched.", zap.String("path", path), zap.Int("pid", proc.Pid()), zap.String("user_data_dir", userDataDir))
	return nil
}

// LaunchArgs builds the command line for a debug-enabled browser.
func (m *Manager) LaunchArgs(userDataDir string) []string {
	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", m.cfg.DebugPort),
		"--user-data-dir=" + userDataDir,
		"--no-first-run",
		"--no-default-browser-check",
	}
	return append(args, m.cfg.Args...)
}

func (m *Manager) userDataDir() (string, error) {
	dir, err := homedir.Expand(m.cfg.UserDataDir)
	if err != nil {
		return "", fmt.Errorf("could not expand user data dir %q: %w", m.cfg.UserDataDir, err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("could not create user data dir %q: %w", dir, err)
	}
	return dir, nil
}

// WaitForEndpoint polls the debug endpoint until it answers or the launch timeout elapses.
func (m *Manager) WaitForEndpoint(ctx context.Context) error {
	interval := m.cfg.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	waitCtx, cancel := context.WithTimeout(ctx, m.cfg.LaunchTimeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	for {
		if err := limiter.Wait(waitCtx); err != nil {
			// Wait fails early when the next tick would overshoot the deadline.
			<-waitCtx.Done()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w (%s after %s)", ErrTimeout, m.cfg.DebugAddr(), m.cfg.LaunchTimeout)
		}
		if m.prober.Probe(waitCtx) {
			m.logger.Info("Debug endpoint is reachable.", zap.String("addr", m.cfg.DebugAddr()))
			return nil
		}
	}
}

// Owned reports whether the manager currently holds a spawned browser.
func (m *Manager) Owned() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owned != nil
}

// Release kills the owned browser, if any. Safe to call repeatedly.
func (m *Manager) Release() error {
	m.mu.Lock()
	proc := m.owned
	m.owned = nil
	m.mu.Unlock()

	if proc == nil {
		return nil
	}
	if err := proc.Kill(); err != nil {
		m.logger.Error("Failed to kill browser process.", zap.Int("pid", proc.Pid()), zap.Error(err))
		return fmt.Errorf("failed to kill browser process %d: %w", proc.Pid(), err)
	}
	m.logger.Info("Browser process released.", zap.Int("pid", proc.Pid()))
	return nil
}

// Detach gives up ownership of the launched browser without killing it, so a
// page left for the user survives the end of the run.
func (m *Manager) Detach() {
	m.mu.Lock()
	proc := m.owned
	m.owned = nil
	m.mu.Unlock()

	if proc != nil {
		m.logger.Info("Browser left running for the user.", zap.Int("pid", proc.Pid()))
	}
}

// Version returns the handshake payload of the live endpoint.
func (m *Manager) Version(ctx context.Context) (VersionInfo, error) {
	return m.prober.Version(ctx)
}

// Attach connects chromedp to the live endpoint and returns a tab context.
// Cancelling the returned func closes the tab and the connection, not the browser.
func (m *Manager) Attach(ctx context.Context) (context.Context, context.CancelFunc, error) {
	info, err := m.prober.Version(ctx)
	if err != nil {
		return nil, nil, err
	}
	if info.WebSocketDebuggerURL == "" {
		return nil, nil, fmt.Errorf("debug endpoint %s did not advertise a websocket url", m.cfg.DebugAddr())
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, info.WebSocketDebuggerURL)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(observability.Logf(m.logger)))
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	var product string
	err = chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		_, product, _, _, _, err = browser.GetVersion().Do(ctx)
		return err
	}))
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to attach to %s: %w", info.WebSocketDebuggerURL, err)
	}
	m.logger.Debug("Attached over CDP.", zap.String("product", product))
	return tabCtx, cancel, nil
}

// OpenPage creates a new tab showing url. The tab belongs to the browser, so it
// stays open after ctx and the CDP connection go away.
func (m *Manager) OpenPage(ctx context.Context, url string) (target.ID, error) {
	tabCtx, cancel, err := m.Attach(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	var id target.ID
	err = chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		var err error
		id, err = target.CreateTarget(url).Do(cdp.WithExecutor(ctx, c.Browser))
		return err
	}))
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", url, err)
	}
	m.logger.Info("Opened page.", zap.String("url", url), zap.String("target_id", string(id)))
	return id, nil
}

// AttachTarget connects chromedp to an existing tab.
func (m *Manager) AttachTarget(ctx context.Context, id target.ID) (context.Context, context.CancelFunc, error) {
	info, err := m.prober.Version(ctx)
	if err != nil {
		return nil, nil, err
	}
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, info.WebSocketDebuggerURL)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithTargetID(id),
		chromedp.WithLogf(observability.Logf(m.logger)),
	)
	return tabCtx, func() {
		tabCancel()
		allocCancel()
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
