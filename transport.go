// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Transport types
const (
	TransportHTTP    = "http"    // One POST per message, path is the request name
	TransportJSONRPC = "jsonrpc" // JSON-RPC 2.0 envelope over HTTP
	TransportGRPC    = "grpc"    // Google RPC, requires build tag
)

// DefaultTransport is the default transport type (HTTP)
const DefaultTransport = TransportHTTP

// Reply is what a transport received for one message.
type Reply struct {
	Status int
	Body   []byte
}

// Transport is the client side of a transport. Post blocks until a reply
// arrives; a non-nil error means no reply was received at all.
type Transport interface {
	io.Closer
	Post(ctx context.Context, name string, body []byte) (*Reply, error)
}

// Server is the serving side of a transport.
type Server interface {
	// Serve accepts connections until Stop is called or ctx is cancelled,
	// then waits for in-flight requests to complete.
	Serve(ctx context.Context) error

	// Stop stops accepting connections. It is idempotent and safe to call
	// from concurrent request handlers.
	Stop()

	// Done is closed once Serve has returned.
	Done() <-chan struct{}

	// Addr returns the server's listen address
	Addr() string
}

// DialOption configures client transports
type DialOption func(*dialOptions)

type dialOptions struct {
	transport string
	logger    zerolog.Logger
}

// WithDialTransport explicitly sets the transport type
func WithDialTransport(t string) DialOption {
	return func(o *dialOptions) { o.transport = t }
}

// WithDialLogger sets the logger used by the transport
func WithDialLogger(l zerolog.Logger) DialOption {
	return func(o *dialOptions) { o.logger = l }
}

// ServerOption configures servers
type ServerOption func(*serverOptions)

type serverOptions struct {
	transport   string
	logger      zerolog.Logger
	metrics     *Metrics
	metricsPath string
}

// WithServerTransport explicitly sets the transport type for the server
func WithServerTransport(t string) ServerOption {
	return func(o *serverOptions) { o.transport = t }
}

// WithServerLogger sets the logger used for access and lifecycle logs
func WithServerLogger(l zerolog.Logger) ServerOption {
	return func(o *serverOptions) { o.logger = l }
}

// WithServerMetrics exposes m on path (DefaultMetricsPath when empty)
func WithServerMetrics(m *Metrics, path string) ServerOption {
	return func(o *serverOptions) {
		o.metrics = m
		o.metricsPath = path
	}
}

type dialFunc func(ctx context.Context, addr string, o *dialOptions) (Transport, error)
type listenFunc func(addr string, d *Dispatcher, o *serverOptions) (Server, error)

var (
	transportsMu sync.RWMutex
	transports   = map[string]struct {
		dial   dialFunc
		listen listenFunc
	}{
		TransportHTTP:    {dialHTTP, listenHTTP},
		TransportJSONRPC: {dialJSONRPC, listenHTTP},
	}
)

// registerTransport registers a new transport (used by build tags)
func registerTransport(name string, dial dialFunc, listen listenFunc) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = struct {
		dial   dialFunc
		listen listenFunc
	}{dial, listen}
}

func lookupTransport(name string) (dialFunc, listenFunc, bool) {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	t, ok := transports[name]
	return t.dial, t.listen, ok
}

// AvailableTransports returns the sorted list of available transport types
func AvailableTransports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	result := make([]string, 0, len(transports))
	for name := range transports {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// HasTransport checks if a transport is available
func HasTransport(name string) bool {
	_, _, ok := lookupTransport(name)
	return ok
}
