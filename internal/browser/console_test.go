package browser

import (
	"context"
	"fmt"
	"testing"

	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestConsoleRecorder_Handle(t *testing.T) {
	r := NewConsoleRecorder(context.Background(), zap.NewNop())

	r.handle(&runtime.EventConsoleAPICalled{
		Type: runtime.APITypeError,
		Args: []*runtime.RemoteObject{
			{Type: runtime.TypeString, Description: "upload"},
			{Type: runtime.TypeObject},
		},
	})
	r.handle(&runtime.EventExceptionThrown{
		ExceptionDetails: &runtime.ExceptionDetails{
			Text:      "Uncaught",
			Exception: &runtime.RemoteObject{Description: "TypeError: item is null"},
		},
	})
	r.handle(&log.EventEntryAdded{Entry: &log.Entry{Level: log.LevelWarning, Text: "deprecated API"}})
	r.handle(&network.EventLoadingFailed{Type: network.ResourceTypeXHR, ErrorText: "net::ERR_CONNECTION_RESET"})
	r.handle(&network.EventLoadingFailed{Type: network.ResourceTypeImage, ErrorText: "net::ERR_ABORTED", Canceled: true})
	r.handle(&runtime.EventExceptionThrown{})
	r.handle("unrelated event")

	entries := r.Entries()
	if assert.Len(t, entries, 4) {
		assert.Equal(t, "error", entries[0].Kind)
		assert.Equal(t, "upload [object]", entries[0].Text)
		assert.Equal(t, "TypeError: item is null", entries[1].Text)
		assert.Equal(t, "warning", entries[2].Kind)
		assert.Equal(t, "network", entries[3].Kind)
	}

	transcript := r.Transcript()
	assert.Contains(t, transcript, "[exception] TypeError: item is null\n")
	assert.Contains(t, transcript, "[network] XHR load failed: net::ERR_CONNECTION_RESET\n")
}

func TestConsoleRecorder_CapsEntries(t *testing.T) {
	r := NewConsoleRecorder(context.Background(), zap.NewNop())
	for i := 0; i < maxConsoleEntries+10; i++ {
		r.add("log", fmt.Sprintf("line %d", i))
	}
	entries := r.Entries()
	assert.Len(t, entries, maxConsoleEntries)
	assert.Equal(t, "line 10", entries[0].Text)
}

func TestConsoleRecorder_StopWithoutStart(t *testing.T) {
	r := NewConsoleRecorder(context.Background(), zap.NewNop())
	assert.NotPanics(t, r.Stop)
	assert.Empty(t, r.Transcript())
}
