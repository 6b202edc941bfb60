// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/rightsguard-cli/internal/gate"
	"github.com/xkilldash9x/rightsguard-cli/internal/observability"
)

// isolate points every configured path into a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("RIGHTSGUARD_LOGGER_LOG_FILE", filepath.Join(dir, "test.log"))
	t.Setenv("RIGHTSGUARD_LOGGER_LEVEL", "fatal")
	t.Setenv("RIGHTSGUARD_VERIFICATION_RUNTIME_DIR", filepath.Join(dir, "runtime"))
	t.Setenv("RIGHTSGUARD_APPEAL_FILES_ROOT", dir)
	t.Setenv("RIGHTSGUARD_DATABASE_URL", "")
	t.Cleanup(observability.ResetForTest)
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "rightsguard version "+Version)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "rightsguard "+Version)
}

func TestRootCmd_NoArgs(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "rightsguard files copyright appeals")
}

func TestRootCmd_BadConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger: [unclosed\n"), 0o644))

	_, err := execute(t, "--config", path, "continue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize configuration")
}

func TestContinueCmd(t *testing.T) {
	dir := isolate(t)

	out, err := execute(t, "continue")
	require.NoError(t, err)
	assert.Contains(t, out, "No run is waiting")

	g := gate.New(filepath.Join(dir, "runtime"), observability.GetLogger())
	assert.Equal(t, gate.StateCompleted, g.State())
}

func TestContinueCmd_ReleasesWaitingRun(t *testing.T) {
	dir := isolate(t)
	g := gate.New(filepath.Join(dir, "runtime"), observability.GetLogger())
	require.NoError(t, g.Reset())
	require.NoError(t, g.MarkWaiting())

	out, err := execute(t, "continue")
	require.NoError(t, err)
	assert.Contains(t, out, "The run will continue.")
	assert.Equal(t, gate.StateCompleted, g.State())
}

func TestRunCmd_FlagValidation(t *testing.T) {
	isolate(t)

	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"url"`)

	_, err = execute(t, "run", "--url", "https://v.example.com/x", "--ip-asset", "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --ip-asset")

	_, err = execute(t, "run", "--url", "https://v.example.com/x", "--engine", "selenium")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRunCmd_NoDatabase(t *testing.T) {
	isolate(t)

	_, err := execute(t, "run", "--url", "https://v.example.com/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is not configured")
}

func TestDoctorCmd_ReportsFailures(t *testing.T) {
	isolate(t)
	t.Setenv("RIGHTSGUARD_BROWSER_DEBUG_PORT", "1")

	out, err := execute(t, "doctor")
	require.ErrorIs(t, err, errNotReady)
	assert.Contains(t, out, "[FAIL] database: database URL is not configured")
	assert.Contains(t, out, "[ OK ] runtime dir:")
	assert.Contains(t, out, "Environment not ready.")
}
