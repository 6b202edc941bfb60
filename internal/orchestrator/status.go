package orchestrator

import (
	"sync"
	"time"

	"github.com/xkilldash9x/rightsguard-cli/api/schemas"
)

// Step labels and the progress each one reports.
const (
	StepInitializing = "initializing"
	StepLoadingData  = "loading data"
	StepGenerating   = "generating workflow"
	StepLaunching    = "launching browser"
	StepRunning      = "running workflow"
	StepFinished     = "workflow finished"
	StepSubmitted    = "appeal submitted"
	StepManual       = "manual guidance issued"
	StepFailed       = "failed"
	StepStopped      = "stopped"
)

var stepProgress = map[string]float64{
	StepInitializing: 0,
	StepLoadingData:  5,
	StepGenerating:   10,
	StepLaunching:    25,
	StepRunning:      35,
	StepFinished:     90,
	StepSubmitted:    100,
	StepManual:       100,
}

// stageProgress maps workflow stage markers onto the running band.
var stageProgress = map[string]float64{
	"identity":      40,
	"verification":  50,
	"rights-holder": 65,
	"appeal":        80,
	"done":          88,
}

// StatusStore is the single source of truth for the run status. The lock is
// held only for the read-modify-write itself.
type StatusStore struct {
	mu     sync.Mutex
	status schemas.RunStatus
	// runID is the run allowed to write; an empty value blocks all run writes.
	runID string
}

// NewStatusStore returns an idle store.
func NewStatusStore() *StatusStore {
	return &StatusStore{}
}

// Snapshot returns a deep copy of the current status.
func (s *StatusStore) Snapshot() schemas.RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Clone()
}

// TryBegin atomically moves an idle store into the running state.
func (s *StatusStore) TryBegin(runID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsRunning {
		return false
	}
	p := 0.0
	s.status = schemas.RunStatus{
		IsRunning:   true,
		RunID:       runID,
		CurrentStep: StepInitializing,
		Progress:    &p,
		StartedAt:   &now,
	}
	s.runID = runID
	return true
}

// Step records progress for runID. Writes from a run that is no longer
// current are dropped.
func (s *StatusStore) Step(runID, step string, progress float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID != runID {
		return
	}
	s.status.CurrentStep = step
	s.status.Progress = &progress
}

// Advance records a named step with its standard progress.
func (s *StatusStore) Advance(runID, step string) {
	s.Step(runID, step, stepProgress[step])
}

// Stage records a workflow stage marker. The step always names the latest
// stage, so a fallback rung that starts over still shows its verification
// wait; progress never goes backwards.
func (s *StatusStore) Stage(runID, stage string) {
	p, ok := stageProgress[stage]
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID != runID {
		return
	}
	s.status.CurrentStep = StepRunning + ": " + stage
	if s.status.Progress == nil || *s.status.Progress < p {
		s.status.Progress = &p
	}
}

// Succeed ends runID at 100 percent.
func (s *StatusStore) Succeed(runID, step, guide string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID != runID {
		return
	}
	p := 100.0
	s.status.IsRunning = false
	s.status.CurrentStep = step
	s.status.Progress = &p
	s.status.Error = ""
	s.status.Guide = guide
	s.runID = ""
}

// Fail ends runID with msg. An empty message is replaced so a failed run is
// always distinguishable from a successful one.
func (s *StatusStore) Fail(runID, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID != runID {
		return
	}
	if msg == "" {
		msg = "unknown error"
	}
	s.status.IsRunning = false
	s.status.CurrentStep = StepFailed
	s.status.Error = msg
	s.runID = ""
}

// Stop marks the store stopped and detaches the current run so its late
// writes cannot overwrite the stopped state.
func (s *StatusStore) Stop() (wasRunning bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasRunning = s.status.IsRunning
	s.status.IsRunning = false
	s.status.CurrentStep = StepStopped
	if wasRunning && s.status.Error == "" {
		s.status.Error = "stopped by user"
	}
	s.runID = ""
	return wasRunning
}
