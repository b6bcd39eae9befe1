// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	rpc "github.com/gorilla/rpc/v2/json2"
	"github.com/rs/zerolog"
)

// newHTTPClient creates a fresh HTTP client with disabled connection reuse.
// No client timeout is set: a send blocks until the server answers or the
// caller's context ends.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DisableKeepAlives: true,
		},
	}
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// dialJSONRPC creates a client transport speaking JSON-RPC 2.0 to the bridge.
func dialJSONRPC(_ context.Context, addr string, o *dialOptions) (Transport, error) {
	return &jsonrpcTransport{
		uri:    baseURL(addr) + BridgePath,
		client: newHTTPClient(),
		logger: o.logger,
	}, nil
}

// jsonrpcTransport wraps every message in a Dock.Call JSON-RPC request.
type jsonrpcTransport struct {
	uri    string
	client *http.Client
	logger zerolog.Logger
}

func (t *jsonrpcTransport) Post(ctx context.Context, name string, body []byte) (*Reply, error) {
	requestBodyBytes, err := rpc.EncodeClientRequest(bridgeMethod, &BridgeArgs{
		Name:    name,
		Payload: json.RawMessage(body),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode client params: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, t.uri, bytes.NewReader(requestBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", contentTypeJSON)

	t.logger.Debug().Str("request", name).Str("method", bridgeMethod).Msg("sending request")
	resp, err := t.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to issue request: %w", err)
	}
	defer CleanlyCloseBody(resp.Body)

	// The bridge itself refused the envelope.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return &Reply{Status: resp.StatusCode, Body: data}, nil
	}

	var result json.RawMessage
	err = rpc.DecodeClientResponse(resp.Body, &result)
	var rpcErr *rpc.Error
	switch {
	case err == nil:
		return &Reply{Status: http.StatusOK, Body: result}, nil
	case errors.Is(err, rpc.ErrNullResult):
		return &Reply{Status: http.StatusOK, Body: []byte("null")}, nil
	case errors.As(err, &rpcErr):
		return &Reply{Status: statusFromErrorData(rpcErr.Data), Body: []byte(rpcErr.Message)}, nil
	default:
		return nil, fmt.Errorf("failed to decode client response: %w", err)
	}
}

func (t *jsonrpcTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

// statusFromErrorData reads the HTTP-equivalent status the bridge attaches
// to JSON-RPC errors.
func statusFromErrorData(data interface{}) int {
	m, ok := data.(map[string]interface{})
	if !ok {
		return http.StatusInternalServerError
	}
	switch v := m["status"].(type) {
	case float64:
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err == nil {
			return int(n)
		}
	}
	return http.StatusInternalServerError
}
