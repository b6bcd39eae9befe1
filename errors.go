// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRoleAlreadySet    = errors.New("dock: role already set")
	ErrNotClient         = errors.New("dock: client needs to be started first")
	ErrEmptyName         = errors.New("dock: request name is empty")
	ErrRegistryFrozen    = errors.New("dock: registry is frozen")
	ErrHandshakeMismatch = errors.New("dock: handshake version mismatch")
	ErrUnknownEndpoint   = errors.New("dock: unknown request title")
	ErrRequestInvalid    = errors.New("dock: request validation failed")
	ErrResponseInvalid   = errors.New("dock: response validation failed")
	ErrMalformedBody     = errors.New("dock: malformed JSON body")
)

// ConfigErrorKind classifies schema loading failures.
type ConfigErrorKind int

const (
	ConfigUnreadable ConfigErrorKind = iota + 1
	ConfigMalformed
)

func (k ConfigErrorKind) String() string {
	switch k {
	case ConfigUnreadable:
		return "unreadable"
	case ConfigMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("ConfigErrorKind(%d)", int(k))
	}
}

// ConfigError is returned when an endpoint's schema document cannot be used.
// It is raised at registration time and is fatal to server startup.
type ConfigError struct {
	Kind ConfigErrorKind
	Name string
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	where := e.Path
	if where == "" {
		where = "<inline>"
	}
	return fmt.Sprintf("dock: schema for %q (%s) is %s: %v", e.Name, where, e.Kind, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Validation sides.
const (
	SideRequest  = "request"
	SideResponse = "response"
)

// ValidationError reports a payload that does not satisfy one side of an
// endpoint's schema. Schema and Payload are kept for diagnostics.
type ValidationError struct {
	Side     string
	Endpoint string
	Schema   json.RawMessage
	Payload  []byte
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Server %s validation failed: %v", e.Side, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	if e.Side == SideResponse {
		return []error{ErrResponseInvalid, e.Err}
	}
	return []error{ErrRequestInvalid, e.Err}
}

// Diagnostics renders the error together with the expected schema and the
// offending payload. It is the body of the error reply sent to the client.
func (e *ValidationError) Diagnostics() string {
	var b strings.Builder
	b.WriteString(e.Error())
	b.WriteString("\n -- Expected format : ")
	b.Write(e.Schema)
	if e.Side == SideResponse {
		b.WriteString("\n -- Response given  : ")
	} else {
		b.WriteString("\n -- Request received: ")
	}
	b.Write(e.Payload)
	return b.String()
}

// HandlerError wraps an error returned (or a panic raised) by an endpoint handler.
type HandlerError struct {
	Endpoint string
	Err      error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for %q failed: %v", e.Endpoint, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// TransportError is a client side failure: either no reply was received
// (Err is set) or the reply carried a non-success status.
type TransportError struct {
	Name   string
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dock: request %q failed: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("dock: request %q failed with status %d: %s", e.Name, e.Status, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

func newTransportError(name string, reply *Reply, err error) *TransportError {
	terr := &TransportError{Name: name, Err: err}
	if reply != nil {
		terr.Status = reply.Status
		terr.Body = string(reply.Body)
	}
	return terr
}
