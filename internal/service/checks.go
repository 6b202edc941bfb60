package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/rightsguard-cli/internal/browser"
	"github.com/xkilldash9x/rightsguard-cli/internal/config"
	"github.com/xkilldash9x/rightsguard-cli/internal/orchestrator"
)

// Pinger is anything whose connectivity can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Finder resolves the external tools.
type Finder interface {
	FindBrowser() (string, error)
	FindRunner() (string, error)
}

// errNoDatabase reports a database that could not be reached at startup.
type errNoDatabase struct{ err error }

func (e errNoDatabase) Ping(context.Context) error { return e.err }

// UnreachableDatabase returns a Pinger that always fails with err. It lets the
// doctor command report a broken database instead of aborting.
func UnreachableDatabase(err error) Pinger { return errNoDatabase{err: err} }

// EnvironmentChecks returns the readiness checks for cfg, in report order.
func EnvironmentChecks(cfg config.Interface, finder Finder, prober browser.Prober, db Pinger) []orchestrator.Check {
	checks := []orchestrator.Check{
		{
			Name: "browser",
			Run: func(context.Context) (string, error) {
				return finder.FindBrowser()
			},
		},
	}

	if cfg.Engine().Kind == config.EngineProcess {
		checks = append(checks, orchestrator.Check{
			Name: "script runner",
			Run: func(context.Context) (string, error) {
				return finder.FindRunner()
			},
		})
	}

	checks = append(checks,
		orchestrator.Check{
			Name: "debug endpoint",
			Run: func(ctx context.Context) (string, error) {
				info, err := prober.Version(ctx)
				if err != nil {
					// Not an error: a browser is launched on demand.
					return fmt.Sprintf("not running at %s, will launch on demand", cfg.Browser().DebugAddr()), nil
				}
				return fmt.Sprintf("%s at %s", info.Browser, cfg.Browser().DebugAddr()), nil
			},
		},
		orchestrator.Check{
			Name: "database",
			Run: func(ctx context.Context) (string, error) {
				if db == nil {
					return "", errors.New("not configured")
				}
				if err := db.Ping(ctx); err != nil {
					return "", err
				}
				return "reachable", nil
			},
		},
		orchestrator.Check{
			Name: "runtime dir",
			Run: func(context.Context) (string, error) {
				return writableDir(cfg.Verification().RuntimeDir)
			},
		},
		orchestrator.Check{
			Name: "files root",
			Run: func(context.Context) (string, error) {
				return existingDir(cfg.Appeal().FilesRoot)
			},
		},
	)
	return checks
}

func writableDir(dir string) (string, error) {
	expanded, err := expandDir(dir)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp(expanded, ".probe-*")
	if err != nil {
		return "", fmt.Errorf("%s is not writable: %w", expanded, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return expanded, nil
}

func existingDir(dir string) (string, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		return "", fmt.Errorf("%s: %w", expanded, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", expanded)
	}
	return expanded, nil
}
