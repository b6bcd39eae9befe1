// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import (
	"context"
	"fmt"
	"net/http"
)

// StartClient commits the Dock to the client role, dials the server and
// performs the version handshake. A transport failure or a non-success reply
// is returned as a *TransportError. A reply carrying a different version is
// logged and does not abort: the server stops itself in that case.
func (d *Dock) StartClient(ctx context.Context) error {
	if err := d.lifecycle.BecomeClient(); err != nil {
		d.logger.Error().Err(err).Msg("client or server already started")
		return err
	}
	log := d.logger.With().Str("role", RoleClient.String()).Logger()

	transport, err := Dial(ctx, d.opts.address,
		WithDialTransport(d.opts.transport),
		WithDialLogger(log),
	)
	if err != nil {
		d.opts.metrics.observeHandshake("failed")
		return newTransportError(HandshakePath, nil, err)
	}

	d.mu.Lock()
	d.client = transport
	d.mu.Unlock()

	body, err := d.opts.codec.Encode(versionMessage(d.opts.version))
	if err != nil {
		return fmt.Errorf("encode handshake: %w", err)
	}
	reply, err := transport.Post(ctx, HandshakePath, body)
	if err != nil || reply.Status != http.StatusOK {
		terr := newTransportError(HandshakePath, reply, err)
		log.Error().Err(terr).Str("addr", d.opts.address).Msg("handshake failed")
		d.opts.metrics.observeHandshake("failed")
		return terr
	}

	var msg interface{}
	if err := d.opts.codec.Decode(reply.Body, &msg); err != nil {
		terr := newTransportError(HandshakePath, reply, fmt.Errorf("%w: %v", ErrMalformedBody, err))
		log.Error().Err(terr).Msg("handshake reply unreadable")
		d.opts.metrics.observeHandshake("failed")
		return terr
	}

	theirs, err := checkVersion(d.opts.version, msg)
	if err != nil {
		ev := log.Warn().Err(err).Str("version", d.opts.version).Str("peer_version", theirs)
		if hint := versionHint(d.opts.version, theirs); hint != "" {
			ev = ev.Str("semver", hint)
		}
		ev.Msg("server version differs")
		d.opts.metrics.observeHandshake("mismatch")
		return nil
	}

	log.Info().
		Str("version", d.opts.version).
		Str("addr", d.opts.address).
		Str("transport", d.opts.transport).
		Msg("client started")
	d.opts.metrics.observeHandshake("ok")
	return nil
}

// Send posts message to the endpoint name and returns the decoded reply.
// Replies are not validated against any schema. Any failure is passed to
// the FatalFunc, which by default terminates the process; Send only returns
// an error when a custom FatalFunc returns.
func (d *Dock) Send(ctx context.Context, name string, message interface{}) (interface{}, error) {
	var out interface{}
	if err := d.send(ctx, name, message, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendInto is Send decoding the reply into out.
func (d *Dock) SendInto(ctx context.Context, name string, message, out interface{}) error {
	return d.send(ctx, name, message, out)
}

func (d *Dock) send(ctx context.Context, name string, message, out interface{}) error {
	log := d.logger.With().Str("role", RoleClient.String()).Str("request", name).Logger()

	d.mu.Lock()
	transport := d.client
	d.mu.Unlock()

	if d.lifecycle.Role() != RoleClient || transport == nil {
		return d.abort(ErrNotClient)
	}
	if name == "" {
		return d.abort(ErrEmptyName)
	}

	count := d.lifecycle.Next()
	body, err := d.opts.codec.Encode(message)
	if err != nil {
		d.opts.metrics.observeSend(name, "failed")
		return d.abort(fmt.Errorf("encode request %q: %w", name, err))
	}

	reply, err := transport.Post(ctx, name, body)
	if err != nil || reply.Status != http.StatusOK {
		terr := newTransportError(name, reply, err)
		ev := log.Error().Err(terr).Uint64("request_counter", count)
		if reply != nil {
			ev = ev.Int("status", reply.Status).Bytes("body", reply.Body)
		}
		ev.RawJSON("message", body).Msg("request failed")
		d.opts.metrics.observeSend(name, "failed")
		return d.abort(terr)
	}

	if err := d.opts.codec.Decode(reply.Body, out); err != nil {
		terr := newTransportError(name, reply, fmt.Errorf("%w: %v", ErrMalformedBody, err))
		log.Error().Err(terr).RawJSON("message", body).Msg("response unreadable")
		d.opts.metrics.observeSend(name, "failed")
		return d.abort(terr)
	}

	log.Debug().RawJSON("response", reply.Body).Uint64("request_counter", count).Msg("response received")
	d.opts.metrics.observeSend(name, "ok")
	return nil
}

// abort routes err through the FatalFunc and returns it for the case the
// FatalFunc does not exit.
func (d *Dock) abort(err error) error {
	d.opts.fatal(err)
	return err
}
