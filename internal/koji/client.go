// Package koji is a read-only XML-RPC client for a Koji hub: typed call
// wrappers for the handful of hub methods the dump pipeline consumes, plus a
// batching aggregator over the hub's multiCall primitive.
package koji

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/kolo/xmlrpc"
	"go.uber.org/zap"
)

// ErrHubTooOld is returned by CheckCapabilities when the hub does not expose
// a usable multiCall primitive (minimum supported hub API version not met).
var ErrHubTooOld = errors.New("koji hub too old: multiCall not supported")

// minAPIVersion is the oldest hub API version whose multiCall semantics
// (submission-order results, inline fault structs) this client relies on.
const minAPIVersion = 1

// Caller issues a single XML-RPC call against the hub. *Client implements it;
// tests substitute fakes.
type Caller interface {
	Call(method string, args []any, reply any) error
}

// Client is an anonymous session against one Koji hub. All calls are
// read-only; authentication is out of scope. Timeouts live entirely in the
// HTTP transport: an expired round trip surfaces as a call error and is
// never retried.
type Client struct {
	hub    *xmlrpc.Client
	url    string
	logger *zap.Logger
}

// NewClient connects to the hub at url. No network traffic happens until the
// first call.
func NewClient(url string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   30 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	hub, err := xmlrpc.NewClient(url, transport)
	if err != nil {
		return nil, fmt.Errorf("failed to create hub client for %s: %w", url, err)
	}

	return &Client{
		hub:    hub,
		url:    url,
		logger: logger,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() error {
	return c.hub.Close()
}

// Call issues one XML-RPC call. args are positional parameters; keyword
// arguments go through Kwargs.
func (c *Client) Call(method string, args []any, reply any) error {
	c.logger.Debug("hub call", zap.String("method", method))
	if err := c.hub.Call(method, args, reply); err != nil {
		return fmt.Errorf("hub call %s failed: %w", method, err)
	}
	return nil
}

// Kwargs packs keyword arguments the way the Koji wire protocol expects:
// a trailing struct parameter carrying the __starstar marker.
func Kwargs(kv map[string]any) map[string]any {
	m := make(map[string]any, len(kv)+1)
	m["__starstar"] = true
	for k, v := range kv {
		m[k] = v
	}
	return m
}
