// internal/browser/probe.go
package browser

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// VersionInfo is the payload served at /json/version by a debug-enabled browser.
type VersionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Prober checks whether a remote debugging endpoint is live.
type Prober interface {
	// Probe reports whether the endpoint accepts connections and answers the version handshake.
	Probe(ctx context.Context) bool
	// Version fetches the handshake payload.
	Version(ctx context.Context) (VersionInfo, error)
}

// HTTPProber probes host:port with a TCP dial followed by GET /json/version.
type HTTPProber struct {
	addr   string
	client *http.Client
	dialer net.Dialer
}

// NewHTTPProber returns a prober for addr ("127.0.0.1:9222") with the given
// per-request timeout.
func NewHTTPProber(addr string, timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProber{
		addr:   addr,
		client: &http.Client{Timeout: timeout},
		dialer: net.Dialer{Timeout: timeout},
	}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	conn, err := p.dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return false
	}
	_ = conn.Close()

	_, err = p.Version(ctx)
	return err == nil
}

// Version implements Prober.
func (p *HTTPProber) Version(ctx context.Context) (VersionInfo, error) {
	var info VersionInfo
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+p.addr+"/json/version", nil)
	if err != nil {
		return info, fmt.Errorf("failed to build version request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return info, fmt.Errorf("debug endpoint %s unreachable: %w", p.addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return info, fmt.Errorf("debug endpoint %s answered %s", p.addr, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return info, fmt.Errorf("failed to decode /json/version: %w", err)
	}
	return info, nil
}
