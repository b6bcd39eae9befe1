// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// OutcomeKind classifies the result of dispatching one message.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRecoverable
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRecoverable:
		return "recoverable"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the reply a transport must send for one message. When Stop is
// set the transport stops accepting connections once the reply is flushed.
type Outcome struct {
	Kind        OutcomeKind
	Status      int
	ContentType string
	Body        []byte
	Err         error
	Stop        bool
}

// FailurePolicy decides whether a fatal dispatch failure ends the serving loop.
type FailurePolicy int

const (
	// FailFast stops serving after replying to a failed request.
	FailFast FailurePolicy = iota
	// KeepServing replies with the error and keeps serving.
	KeepServing
)

func (p FailurePolicy) String() string {
	switch p {
	case FailFast:
		return "fail_fast"
	case KeepServing:
		return "keep_serving"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

// ParseFailurePolicy parses "fail_fast" or "keep_serving". The empty string
// selects FailFast.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail_fast", "fail-fast":
		return FailFast, nil
	case "keep_serving", "keep-serving":
		return KeepServing, nil
	default:
		return FailFast, fmt.Errorf("unknown failure policy %q", s)
	}
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// Registry must be frozen before the first Dispatch.
	Registry  *Registry
	Lifecycle *Lifecycle
	// Version is the tag answered to and compared on the handshake endpoint.
	Version string
	// Codec defaults to JSONCodec.
	Codec   Codec
	Policy  FailurePolicy
	Metrics *Metrics
	Logger  zerolog.Logger
}

// Dispatcher runs the server side pipeline for named messages.
type Dispatcher struct {
	registry  *Registry
	lifecycle *Lifecycle
	version   string
	codec     Codec
	policy    FailurePolicy
	metrics   *Metrics
	logger    zerolog.Logger
}

// NewDispatcher creates a dispatcher from cfg.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Codec == nil {
		cfg.Codec = defaultCodec
	}
	if cfg.Lifecycle == nil {
		cfg.Lifecycle = NewLifecycle()
	}
	return &Dispatcher{
		registry:  cfg.Registry,
		lifecycle: cfg.Lifecycle,
		version:   cfg.Version,
		codec:     cfg.Codec,
		policy:    cfg.Policy,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With().Str("role", RoleServer.String()).Logger(),
	}
}

// Dispatch handles one message addressed to name and returns the reply to
// send. Every failure while serving a registered endpoint is fatal; an
// unregistered name is the only recoverable failure.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, body []byte) Outcome {
	if name == HandshakePath {
		return d.handshake(body)
	}
	e, ok := d.registry.Lookup(name)
	if !ok {
		return d.unknown(name)
	}
	return d.serve(ctx, e, body)
}

func (d *Dispatcher) serve(ctx context.Context, e *Endpoint, body []byte) (out Outcome) {
	count := d.lifecycle.Next()
	start := time.Now()
	log := d.logger.With().Str("request", e.Name).Logger()
	defer func() {
		d.metrics.observeRequest(e.Name, out.Kind, time.Since(start))
		log.Debug().
			Uint64("request_counter", count).
			Stringer("outcome", out.Kind).
			Dur("duration", time.Since(start)).
			Msg("request processed")
	}()

	var payload interface{}
	if err := d.codec.Decode(body, &payload); err != nil {
		return d.fatal(log, fmt.Errorf("%w: %v", ErrMalformedBody, err))
	}

	if err := e.Schema.Request.Validate(payload); err != nil {
		return d.fatal(log, &ValidationError{
			Side:     SideRequest,
			Endpoint: e.Name,
			Schema:   e.Schema.RequestSchema,
			Payload:  body,
			Err:      err,
		})
	}

	result, err := d.invoke(ctx, e, payload)
	if err != nil {
		return d.fatal(log, &HandlerError{Endpoint: e.Name, Err: err})
	}

	// The response is validated in the exact shape it goes over the wire.
	encoded, err := d.codec.Encode(result)
	if err != nil {
		return d.fatal(log, &HandlerError{Endpoint: e.Name, Err: fmt.Errorf("encode response: %w", err)})
	}
	var normalized interface{}
	if err := d.codec.Decode(encoded, &normalized); err != nil {
		return d.fatal(log, &HandlerError{Endpoint: e.Name, Err: fmt.Errorf("decode response: %w", err)})
	}
	if err := e.Schema.Response.Validate(normalized); err != nil {
		return d.fatal(log, &ValidationError{
			Side:     SideResponse,
			Endpoint: e.Name,
			Schema:   e.Schema.ResponseSchema,
			Payload:  encoded,
			Err:      err,
		})
	}

	return Outcome{
		Kind:        OutcomeSuccess,
		Status:      http.StatusOK,
		ContentType: contentTypeJSON,
		Body:        encoded,
	}
}

func (d *Dispatcher) invoke(ctx context.Context, e *Endpoint, payload interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.Handler.Handle(ctx, payload)
}

func (d *Dispatcher) fatal(log zerolog.Logger, err error) Outcome {
	stop := d.policy == FailFast
	body := err.Error()

	ev := log.Error().Err(err).Bool("stop", stop)
	var verr *ValidationError
	if errors.As(err, &verr) {
		body = verr.Diagnostics()
		if len(verr.Schema) > 0 {
			ev = ev.RawJSON("expected", verr.Schema)
		}
		ev = ev.RawJSON("received", verr.Payload)
	}
	ev.Msg("request failed")

	return Outcome{
		Kind:        OutcomeFatal,
		Status:      http.StatusBadRequest,
		ContentType: contentTypeText,
		Body:        []byte(body),
		Err:         err,
		Stop:        stop,
	}
}

func (d *Dispatcher) unknown(name string) Outcome {
	count := d.lifecycle.Next()
	d.metrics.observeUnknown()
	d.logger.Warn().Str("request", name).Uint64("request_counter", count).Msg("unknown request title")

	body, _ := d.codec.Encode(map[string]string{"error": "Unknown request title: " + name})
	return Outcome{
		Kind:        OutcomeRecoverable,
		Status:      http.StatusNotFound,
		ContentType: contentTypeJSON,
		Body:        body,
		Err:         fmt.Errorf("%w: %s", ErrUnknownEndpoint, name),
	}
}

// handshake always answers with the own version; a mismatch stops serving
// once that answer is sent, regardless of the failure policy.
func (d *Dispatcher) handshake(body []byte) Outcome {
	log := d.logger.With().Str("request", HandshakePath).Logger()

	var msg interface{}
	if err := d.codec.Decode(body, &msg); err != nil {
		d.metrics.observeHandshake("malformed")
		out := d.fatal(log, fmt.Errorf("%w: %v", ErrMalformedBody, err))
		out.Stop = true
		return out
	}

	reply, err := d.codec.Encode(versionMessage(d.version))
	if err != nil {
		out := d.fatal(log, fmt.Errorf("encode handshake reply: %w", err))
		out.Stop = true
		return out
	}
	out := Outcome{
		Kind:        OutcomeSuccess,
		Status:      http.StatusOK,
		ContentType: contentTypeJSON,
		Body:        reply,
	}

	theirs, err := checkVersion(d.version, msg)
	if err != nil {
		ev := log.Error().Err(err).Str("version", d.version).Str("peer_version", theirs)
		if hint := versionHint(d.version, theirs); hint != "" {
			ev = ev.Str("semver", hint)
		}
		ev.Msg("handshake failed, stopping after reply")
		d.metrics.observeHandshake("mismatch")
		out.Kind = OutcomeFatal
		out.Err = err
		out.Stop = true
		return out
	}

	log.Info().Str("version", d.version).Str("peer_version", theirs).Msg("handshake validated")
	d.metrics.observeHandshake("ok")
	return out
}
