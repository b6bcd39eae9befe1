// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Dial creates a client transport to addr using the default transport (HTTP).
func Dial(ctx context.Context, addr string, opts ...DialOption) (Transport, error) {
	o := &dialOptions{
		transport: DefaultTransport,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	dial, _, ok := lookupTransport(o.transport)
	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", o.transport)
	}
	return dial(ctx, addr, o)
}

// Listen creates a server bound to addr that hands messages to d.
func Listen(addr string, d *Dispatcher, opts ...ServerOption) (Server, error) {
	o := &serverOptions{
		transport: DefaultTransport,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	_, listen, ok := lookupTransport(o.transport)
	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", o.transport)
	}
	return listen(addr, d, o)
}

// listenHTTP creates the HTTP server; it also serves the JSON-RPC bridge.
func listenHTTP(addr string, d *Dispatcher, o *serverOptions) (Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return newHTTPServer(listener, d, o), nil
}

// dialHTTP creates an HTTP client transport. Nothing is sent until the first Post.
func dialHTTP(_ context.Context, addr string, o *dialOptions) (Transport, error) {
	return &httpTransport{
		base:   baseURL(addr),
		client: newHTTPClient(),
		logger: o.logger,
	}, nil
}

// httpTransport implements Transport with one POST per message
type httpTransport struct {
	base   string
	client *http.Client
	logger zerolog.Logger
}

func (t *httpTransport) Post(ctx context.Context, name string, body []byte) (*Reply, error) {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, t.base+name, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	request.Header.Set("Content-Type", contentTypeJSON)
	request.Header.Set(middleware.RequestIDHeader, requestID)

	t.logger.Debug().Str("request", name).Str("request_id", requestID).Msg("sending request")
	resp, err := t.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to issue request: %w", err)
	}
	defer CleanlyCloseBody(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &Reply{Status: resp.StatusCode, Body: data}, nil
}

func (t *httpTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

func baseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimSuffix(addr, "/")
	}
	return "http://" + addr
}
