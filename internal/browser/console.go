// internal/browser/console.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// maxConsoleEntries caps memory use on chatty pages; the oldest entries are dropped.
const maxConsoleEntries = 500

// ConsoleEntry is one line of page output.
type ConsoleEntry struct {
	Time time.Time
	Kind string
	Text string
}

// ConsoleRecorder collects console messages, uncaught exceptions and failed
// loads from one tab. The transcript explains failures the automation itself
// cannot see, such as a form script throwing or the network dropping.
type ConsoleRecorder struct {
	logger *zap.Logger
	tabCtx context.Context

	listenerCtx    context.Context
	cancelListener context.CancelFunc

	mu      sync.Mutex
	entries []ConsoleEntry
	started bool
}

// NewConsoleRecorder returns a recorder for the tab behind tabCtx.
func NewConsoleRecorder(tabCtx context.Context, logger *zap.Logger) *ConsoleRecorder {
	return &ConsoleRecorder{
		tabCtx: tabCtx,
		logger: logger.Named("console"),
	}
}

// Start subscribes to the tab's events.
func (r *ConsoleRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}

	// Derived from the tab, so the listener dies with it.
	r.listenerCtx, r.cancelListener = context.WithCancel(r.tabCtx)
	chromedp.ListenTarget(r.listenerCtx, r.handle)

	if err := chromedp.Run(r.tabCtx, runtime.Enable(), log.Enable(), network.Enable()); err != nil {
		r.cancelListener()
		return fmt.Errorf("failed to enable console domains: %w", err)
	}
	r.started = true
	return nil
}

// Stop unsubscribes. Entries stay readable.
func (r *ConsoleRecorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelListener != nil {
		r.cancelListener()
	}
	r.started = false
}

// Entries returns a copy of what was recorded so far.
func (r *ConsoleRecorder) Entries() []ConsoleEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ConsoleEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Transcript renders the entries one per line as "[kind] text".
func (r *ConsoleRecorder) Transcript() string {
	var b strings.Builder
	for _, e := range r.Entries() {
		fmt.Fprintf(&b, "[%s] %s\n", e.Kind, e.Text)
	}
	return b.String()
}

func (r *ConsoleRecorder) handle(ev interface{}) {
	switch e := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		r.add(string(e.Type), consoleText(e.Args))
	case *runtime.EventExceptionThrown:
		if e.ExceptionDetails == nil {
			return
		}
		// The description carries the message and stack.
		text := e.ExceptionDetails.Text
		if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
			text = e.ExceptionDetails.Exception.Description
		}
		r.add("exception", text)
	case *log.EventEntryAdded:
		if e.Entry == nil {
			return
		}
		r.add(string(e.Entry.Level), e.Entry.Text)
	case *network.EventLoadingFailed:
		if e.Canceled {
			return
		}
		r.add("network", fmt.Sprintf("%s load failed: %s", e.Type, e.ErrorText))
	}
}

func (r *ConsoleRecorder) add(kind, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) >= maxConsoleEntries {
		r.entries = r.entries[1:]
	}
	r.entries = append(r.entries, ConsoleEntry{Time: time.Now(), Kind: kind, Text: text})
	r.logger.Debug("Page output.", zap.String("kind", kind), zap.String("text", text))
}

func consoleText(args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == nil {
			continue
		}
		var val interface{}
		switch {
		case len(arg.Value) > 0 && json.Unmarshal([]byte(arg.Value), &val) == nil:
			parts = append(parts, fmt.Sprintf("%v", val))
		case arg.Description != "":
			parts = append(parts, arg.Description)
		default:
			parts = append(parts, fmt.Sprintf("[%s]", arg.Type))
		}
	}
	return strings.Join(parts, " ")
}
