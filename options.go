// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import "github.com/rs/zerolog"

// Defaults shared by New and DefaultConfig.
const (
	DefaultVersion = "0.0.1"
	DefaultAddress = "localhost:8080"
)

// FatalFunc is invoked when the client hits an unrecoverable condition. The
// default logs at fatal level and exits the process; a FatalFunc that
// returns lets Send report the error instead.
type FatalFunc func(err error)

// Option configures a Dock
type Option func(*options)

type options struct {
	version     string
	address     string
	transport   string
	schemaDir   string
	policy      FailurePolicy
	codec       Codec
	compiler    SchemaCompiler
	logger      zerolog.Logger
	metrics     *Metrics
	metricsPath string
	fatal       FatalFunc
}

func defaultOptions() options {
	return options{
		version:   DefaultVersion,
		address:   DefaultAddress,
		transport: DefaultTransport,
		policy:    FailFast,
		codec:     defaultCodec,
		logger:    zerolog.Nop(),
	}
}

// WithVersion sets the tag exchanged during the handshake
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithAddress sets the address the server listens on and the client dials
func WithAddress(addr string) Option {
	return func(o *options) { o.address = addr }
}

// WithTransport selects the transport by name, see AvailableTransports
func WithTransport(t string) Option {
	return func(o *options) { o.transport = t }
}

// WithSchemaDir sets the directory holding <name>.schema.json files
func WithSchemaDir(dir string) Option {
	return func(o *options) { o.schemaDir = dir }
}

// WithFailurePolicy decides whether a failed request stops the server
func WithFailurePolicy(p FailurePolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithCodec sets a custom codec
func WithCodec(c Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithSchemaCompiler replaces the JSON-Schema engine
func WithSchemaCompiler(c SchemaCompiler) Option {
	return func(o *options) { o.compiler = c }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records into m and, on the server, exposes it on path
func WithMetrics(m *Metrics, path string) Option {
	return func(o *options) {
		o.metrics = m
		o.metricsPath = path
	}
}

// WithFatalFunc replaces the process-exiting fatal handler of the client
func WithFatalFunc(f FatalFunc) Option {
	return func(o *options) { o.fatal = f }
}
