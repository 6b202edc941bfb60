// Package locator finds the external tools the automation depends on: a
// Chromium-family browser and the script runner for the automation engine.
package locator

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// ErrNotFound is returned when no candidate location resolves to an executable.
var ErrNotFound = errors.New("executable not found")

// Seams for tests.
var (
	statFn     = os.Stat
	lookPathFn = exec.LookPath
	goos       = runtime.GOOS
)

// Locator resolves tool paths, honoring explicit overrides first.
type Locator struct {
	BrowserOverride string
	RunnerOverride  string
}

// New returns a Locator with optional override paths. Empty overrides fall
// back to the well-known install locations of the host OS.
func New(browserOverride, runnerOverride string) *Locator {
	return &Locator{BrowserOverride: browserOverride, RunnerOverride: runnerOverride}
}

// FindBrowser returns the path of a launchable browser binary.
func (l *Locator) FindBrowser() (string, error) {
	return resolve("browser", l.BrowserOverride, browserPaths(), browserCommands())
}

// FindRunner returns the path of the script runner (npx) used by the process engine.
func (l *Locator) FindRunner() (string, error) {
	return resolve("script runner", l.RunnerOverride, runnerPaths(), []string{"npx"})
}

// BrowserProcessName is the image name used when looking for, or killing, a
// browser that was started without the debug flag.
func BrowserProcessName() string {
	if goos == "windows" {
		return "chrome.exe"
	}
	return "chrome"
}

func resolve(what, override string, paths, commands []string) (string, error) {
	if override != "" {
		expanded, err := homedir.Expand(override)
		if err != nil {
			return "", fmt.Errorf("could not expand %s path %q: %w", what, override, err)
		}
		if isFile(expanded) {
			return expanded, nil
		}
		// An override may also be a bare command name on PATH.
		if p, err := lookPathFn(expanded); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured %s %q: %w", what, override, ErrNotFound)
	}

	for _, p := range paths {
		if isFile(p) {
			return p, nil
		}
	}
	for _, c := range commands {
		if p, err := lookPathFn(c); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s not found in %s: %w", what, strings.Join(append(paths, commands...), ", "), ErrNotFound)
}

func isFile(p string) bool {
	info, err := statFn(p)
	return err == nil && !info.IsDir()
}

func browserPaths() []string {
	switch goos {
	case "windows":
		paths := []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			paths = append(paths, filepath.Join(local, "Google", "Chrome", "Application", "chrome.exe"))
		}
		return paths
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	default:
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	}
}

func browserCommands() []string {
	if goos == "windows" {
		return []string{"chrome.exe"}
	}
	return []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"}
}

func runnerPaths() []string {
	if goos == "windows" {
		return []string{
			`C:\Program Files\nodejs\npx.cmd`,
			`C:\Program Files (x86)\nodejs\npx.cmd`,
		}
	}
	return []string{"/usr/local/bin/npx", "/opt/homebrew/bin/npx"}
}
