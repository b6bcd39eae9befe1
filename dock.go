// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Dock is one side of a server/client pairing. A Dock commits to exactly one
// role: register endpoints and call StartServer (or Listen), or call
// StartClient and then Send.
type Dock struct {
	opts      options
	logger    zerolog.Logger
	lifecycle *Lifecycle
	registry  *Registry

	mu     sync.Mutex
	server Server
	client Transport
}

// New creates a Dock in RoleUnset.
func New(opts ...Option) *Dock {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.codec == nil {
		o.codec = defaultCodec
	}
	d := &Dock{
		opts:      o,
		logger:    o.logger,
		lifecycle: NewLifecycle(),
	}
	if o.fatal == nil {
		d.opts.fatal = d.exit
	}
	store := NewSchemaStore(o.schemaDir, o.compiler)
	d.registry = NewRegistry(store, o.logger, HandshakePath, BridgePath)
	return d
}

// NewFromConfig creates a Dock from cfg; opts are applied after it.
func NewFromConfig(cfg *Config, opts ...Option) (*Dock, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, _ := ParseFailurePolicy(cfg.FailurePolicy)
	base := []Option{
		WithVersion(cfg.Version),
		WithAddress(cfg.Address),
		WithTransport(cfg.Transport),
		WithSchemaDir(cfg.SchemaDir),
		WithFailurePolicy(policy),
	}
	if cfg.Metrics.Enabled {
		base = append(base, WithMetrics(NewMetrics(""), cfg.Metrics.Path))
	}
	return New(append(base, opts...)...), nil
}

// Version returns the handshake tag.
func (d *Dock) Version() string { return d.opts.version }

// Role returns the committed role.
func (d *Dock) Role() Role { return d.lifecycle.Role() }

// Count returns the request counter.
func (d *Dock) Count() uint64 { return d.lifecycle.Count() }

// Registry returns the endpoint registry.
func (d *Dock) Registry() *Registry { return d.registry }

// Metrics returns the configured metrics, possibly nil.
func (d *Dock) Metrics() *Metrics { return d.opts.metrics }

// Register binds handler to name. See Registry.Register.
func (d *Dock) Register(name string, handler Handler, opts ...EndpointOption) (RegisterResult, error) {
	return d.registry.Register(name, handler, opts...)
}

// Listen commits the Dock to the server role, freezes the registry and binds
// the listener. The returned Server is not serving yet.
func (d *Dock) Listen() (Server, error) {
	if err := d.lifecycle.BecomeServer(); err != nil {
		d.logger.Error().Err(err).Msg("client or server already started")
		return nil, err
	}
	log := d.logger.With().Str("role", RoleServer.String()).Logger()

	d.registry.Freeze()
	dispatcher := NewDispatcher(DispatcherConfig{
		Registry:  d.registry,
		Lifecycle: d.lifecycle,
		Version:   d.opts.version,
		Codec:     d.opts.codec,
		Policy:    d.opts.policy,
		Metrics:   d.opts.metrics,
		Logger:    d.logger,
	})

	serverOpts := []ServerOption{
		WithServerTransport(d.opts.transport),
		WithServerLogger(log),
	}
	if d.opts.metrics != nil {
		serverOpts = append(serverOpts, WithServerMetrics(d.opts.metrics, d.opts.metricsPath))
	}
	srv, err := Listen(d.opts.address, dispatcher, serverOpts...)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.server = srv
	d.mu.Unlock()

	log.Info().
		Strs("requests", d.registry.Names()).
		Str("transport", d.opts.transport).
		Stringer("failure_policy", d.opts.policy).
		Msg("registered request handlers")
	log.Info().Str("version", d.opts.version).Str("addr", srv.Addr()).Msg("server started")
	return srv, nil
}

// StartServer listens and serves until a fatal condition or ctx stops it.
func (d *Dock) StartServer(ctx context.Context) error {
	srv, err := d.Listen()
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// Stop stops the server if one is running.
func (d *Dock) Stop() {
	d.mu.Lock()
	srv := d.server
	d.mu.Unlock()
	if srv != nil {
		srv.Stop()
	}
}

// Close stops the server and releases the client transport.
func (d *Dock) Close() error {
	d.Stop()
	d.mu.Lock()
	client := d.client
	d.client = nil
	d.mu.Unlock()
	if client != nil {
		return client.Close()
	}
	return nil
}

func (d *Dock) exit(err error) {
	d.logger.Fatal().Err(err).Str("role", d.lifecycle.Role().String()).Msg("aborting")
}

// String describes the dock for logs.
func (d *Dock) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dock(%s, version=%s, addr=%s, transport=%s)",
		d.lifecycle.Role(), d.opts.version, d.opts.address, d.opts.transport)
	return b.String()
}
