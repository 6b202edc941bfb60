// Package workflow turns a profile, an optional IP asset and an appeal request
// into a staged, engine-neutral description of the appeal form fill. The
// description can be rendered as a Playwright script, serialized as a
// manifest, reduced for a fallback attempt, or explained as manual steps.
package workflow

import (
	"time"
)

// StageKind names a logical stage of the appeal form.
type StageKind string

const (
	StageIdentity     StageKind = "identity"
	StageVerification StageKind = "verification"
	StageRightsHolder StageKind = "rights-holder"
	StageAppeal       StageKind = "appeal"
)

// FieldKind tells the engine how a value is entered.
type FieldKind string

const (
	FieldText   FieldKind = "text"
	FieldSelect FieldKind = "select"
)

// Field is one form input. Label is the visible caption the engines use to
// find the control.
type Field struct {
	Name  string    `json:"name"`
	Label string    `json:"label"`
	Kind  FieldKind `json:"kind"`
	Value string    `json:"value"`
}

// Upload is one file input and the absolute paths attached to it.
type Upload struct {
	Name  string   `json:"name"`
	Label string   `json:"label"`
	Files []string `json:"files"`
}

// Stage groups what happens on one page of the form.
type Stage struct {
	Kind       StageKind `json:"kind"`
	Fields     []Field   `json:"fields,omitempty"`
	Uploads    []Upload  `json:"uploads,omitempty"`
	Checkboxes []string  `json:"checkboxes,omitempty"`
	// Next is the caption of the button that advances past this stage, empty on the last one.
	Next string `json:"next,omitempty"`
}

// Files flattens every upload of the stage, in order.
func (s Stage) Files() []string {
	var out []string
	for _, u := range s.Uploads {
		out = append(out, u.Files...)
	}
	return out
}

// Field returns the named field and whether it exists.
func (s Stage) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Gate carries what the verification stage needs to block on the human signal.
type Gate struct {
	WaitingPath   string        `json:"waitingPath"`
	CompletedPath string        `json:"completedPath"`
	Ceiling       time.Duration `json:"ceiling"`
}

// Workflow is the request-scoped automation plan. It is never persisted
// beyond the run.
type Workflow struct {
	TargetURL string  `json:"targetUrl"`
	DebugURL  string  `json:"debugUrl"`
	Stages    []Stage `json:"stages"`
	Gate      Gate    `json:"gate"`
	// Simplified is set on the reduced variant that skips file uploads.
	Simplified bool `json:"simplified"`
}

// Stage returns the first stage of the given kind.
func (w *Workflow) Stage(kind StageKind) (Stage, bool) {
	for _, s := range w.Stages {
		if s.Kind == kind {
			return s, true
		}
	}
	return Stage{}, false
}

// Kinds lists the stage kinds in order.
func (w *Workflow) Kinds() []StageKind {
	out := make([]StageKind, 0, len(w.Stages))
	for _, s := range w.Stages {
		out = append(out, s.Kind)
	}
	return out
}

// Clone returns a deep copy.
func (w *Workflow) Clone() *Workflow {
	out := *w
	out.Stages = make([]Stage, len(w.Stages))
	for i, s := range w.Stages {
		c := s
		c.Fields = append([]Field(nil), s.Fields...)
		c.Checkboxes = append([]string(nil), s.Checkboxes...)
		if s.Uploads != nil {
			c.Uploads = make([]Upload, len(s.Uploads))
			for j, u := range s.Uploads {
				c.Uploads[j] = Upload{Name: u.Name, Label: u.Label, Files: append([]string(nil), u.Files...)}
			}
		}
		out.Stages[i] = c
	}
	return &out
}
