package executor

import (
	"strings"
	"unicode/utf8"
)

const (
	tailLen       = 500
	hintDetailLen = 300
)

var classes = []struct {
	needles []string
	message string
}{
	{
		needles: []string{"executable file not found", "enoent", "command not found", "is not recognized"},
		message: "automation tool not found: install Node.js and run `npx playwright install`, or set engine.runner_path",
	},
	{
		needles: []string{"timeout", "timed out", "etimedout", "deadline exceeded"},
		message: "timed out: check the network connection, and finish the verification step before the ceiling",
	},
	{
		needles: []string{"permission", "eacces", "access denied", "operation not permitted"},
		message: "permission denied: check access to the browser profile, the work directory and the uploaded files",
	},
	{
		needles: []string{"network", "econnrefused", "econnreset", "net::"},
		message: "network error: check the connection and that the browser debug port is reachable",
	},
}

// Classify turns raw engine output and error into a user-facing message: a
// hint when the failure is recognised, followed by the tail of what the
// engine printed.
func Classify(output string, err error) string {
	text := output
	if err != nil {
		text += "\n" + err.Error()
	}
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)
	for _, c := range classes {
		for _, n := range c.needles {
			if strings.Contains(lower, n) {
				if text == "" {
					return c.message
				}
				return c.message + "\nlast output: " + tailText(text, hintDetailLen)
			}
		}
	}

	if text == "" {
		return "workflow failed: no output"
	}
	return "workflow failed: " + tailText(text, tailLen)
}

// tailText keeps the last n bytes of s, cut on a rune boundary.
func tailText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	for len(s) > 0 && !utf8.RuneStart(s[0]) {
		s = s[1:]
	}
	return "..." + s
}
