package orchestrator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusStore_Lifecycle(t *testing.T) {
	s := NewStatusStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.True(t, s.TryBegin("run-1", now))
	assert.False(t, s.TryBegin("run-2", now), "only one run at a time")

	st := s.Snapshot()
	assert.True(t, st.IsRunning)
	assert.Equal(t, "run-1", st.RunID)
	assert.Equal(t, StepInitializing, st.CurrentStep)
	assert.Equal(t, 0.0, st.ProgressValue())
	assert.Equal(t, now, *st.StartedAt)

	s.Advance("run-1", StepLaunching)
	assert.Equal(t, 25.0, s.Snapshot().ProgressValue())

	s.Succeed("run-1", StepSubmitted, "")
	st = s.Snapshot()
	assert.False(t, st.IsRunning)
	assert.Equal(t, 100.0, st.ProgressValue())

	// Late writes from a finished run are ignored.
	s.Fail("run-1", "late")
	assert.Empty(t, s.Snapshot().Error)
}

func TestStatusStore_FailAlwaysHasMessage(t *testing.T) {
	s := NewStatusStore()
	require.True(t, s.TryBegin("r", time.Now()))
	s.Fail("r", "")
	st := s.Snapshot()
	assert.False(t, st.IsRunning)
	assert.NotEmpty(t, st.Error)
	assert.Equal(t, StepFailed, st.CurrentStep)
}

func TestStatusStore_SnapshotIsACopy(t *testing.T) {
	s := NewStatusStore()
	require.True(t, s.TryBegin("r", time.Now()))

	st := s.Snapshot()
	*st.Progress = 77
	assert.Equal(t, 0.0, s.Snapshot().ProgressValue())
}

func TestStatusStore_StopDetachesRun(t *testing.T) {
	s := NewStatusStore()
	require.True(t, s.TryBegin("r", time.Now()))

	assert.True(t, s.Stop())
	s.Advance("r", StepRunning)
	s.Succeed("r", StepSubmitted, "")

	st := s.Snapshot()
	assert.Equal(t, StepStopped, st.CurrentStep)
	assert.False(t, st.IsRunning)
	assert.NotEmpty(t, st.Error)
	assert.False(t, s.Stop())
}

func TestStatusStore_StageRestartShowsVerification(t *testing.T) {
	s := NewStatusStore()
	require.True(t, s.TryBegin("r", time.Now()))

	for _, stage := range []string{"identity", "verification", "appeal"} {
		s.Stage("r", stage)
	}
	// The next rung starts over.
	s.Stage("r", "identity")
	s.Stage("r", "verification")

	st := s.Snapshot()
	assert.Equal(t, "running workflow: verification", st.CurrentStep)
	assert.Equal(t, 80.0, st.ProgressValue(), "progress does not move backwards")

	s.Stage("r", "unknown")
	assert.Equal(t, "running workflow: verification", s.Snapshot().CurrentStep)
}

func TestStatusStore_ConcurrentAccess(t *testing.T) {
	s := NewStatusStore()
	require.True(t, s.TryBegin("r", time.Now()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for _, stage := range []string{"identity", "verification", "appeal"} {
				s.Stage("r", stage)
			}
		}()
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()
	assert.Equal(t, 80.0, s.Snapshot().ProgressValue())
}
