package workflow

import (
	"fmt"
	"strings"
)

var stageTitles = map[StageKind]string{
	StageIdentity:     "Identity",
	StageVerification: "Verification",
	StageRightsHolder: "Rights holder",
	StageAppeal:       "Appeal",
}

// Simplify returns a copy of w without file uploads. The stages and field
// values are unchanged; the human attaches documents by hand.
func Simplify(w *Workflow) *Workflow {
	out := w.Clone()
	for i := range out.Stages {
		out.Stages[i].Uploads = nil
	}
	out.Simplified = true
	return out
}

// Guide renders w as numbered manual instructions, used when no automated
// attempt succeeded.
func Guide(w *Workflow) string {
	var b strings.Builder
	step := 1
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, "%d. ", step)
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
		step++
	}

	fmt.Fprintf(&b, "Manual appeal guide\n\n")
	line("Open %s in the browser.", w.TargetURL)

	for _, s := range w.Stages {
		title := stageTitles[s.Kind]
		if s.Kind == StageVerification {
			line("[%s] Complete the CAPTCHA / SMS verification shown on the page.", title)
		}
		for _, f := range s.Fields {
			if f.Value == "" {
				continue
			}
			if f.Kind == FieldSelect {
				line("[%s] Choose %q for %q.", title, f.Value, f.Label)
			} else {
				line("[%s] Enter %q in %q.", title, f.Value, f.Label)
			}
		}
		for _, u := range s.Uploads {
			for _, f := range u.Files {
				line("[%s] Upload %s to %q.", title, f, u.Label)
			}
		}
		for _, c := range s.Checkboxes {
			line("[%s] Tick %q.", title, c)
		}
		if s.Next != "" {
			line("[%s] Click %q.", title, s.Next)
		}
	}
	line("Review the form and submit it.")
	return b.String()
}
