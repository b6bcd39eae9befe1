// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Handler serves one endpoint. payload is the decoded, already validated
// request; the returned value is validated against the response schema.
type Handler interface {
	Handle(ctx context.Context, payload interface{}) (interface{}, error)
}

// HandlerFunc is a function adapter for Handler
type HandlerFunc func(ctx context.Context, payload interface{}) (interface{}, error)

func (f HandlerFunc) Handle(ctx context.Context, payload interface{}) (interface{}, error) {
	return f(ctx, payload)
}

// TypedHandler adapts a function over concrete request and response types.
func TypedHandler[Req, Resp any](fn func(context.Context, Req) (Resp, error)) Handler {
	return HandlerFunc(func(ctx context.Context, payload interface{}) (interface{}, error) {
		var req Req
		if err := convert(payload, &req); err != nil {
			return nil, fmt.Errorf("decode request: %w", err)
		}
		return fn(ctx, req)
	})
}

// Endpoint binds a handler to its schema. It is never mutated after
// registration.
type Endpoint struct {
	Name    string
	Handler Handler
	Schema  *EndpointSchema
}

// RegisterResult tells the caller what Register did with an endpoint.
type RegisterResult int

const (
	Registered RegisterResult = iota
	RejectedEmptyName
	RejectedReserved
	RejectedNilHandler
	RejectedDuplicate
	RejectedEmptySchemaPath
	RegisterFailed
)

func (r RegisterResult) String() string {
	switch r {
	case Registered:
		return "registered"
	case RejectedEmptyName:
		return "rejected: empty name"
	case RejectedReserved:
		return "rejected: reserved name"
	case RejectedNilHandler:
		return "rejected: nil handler"
	case RejectedDuplicate:
		return "rejected: duplicate"
	case RejectedEmptySchemaPath:
		return "rejected: empty schema path"
	case RegisterFailed:
		return "failed"
	default:
		return fmt.Sprintf("RegisterResult(%d)", int(r))
	}
}

// EndpointOption configures a single registration.
type EndpointOption func(*endpointOptions)

type endpointOptions struct {
	schemaPath string
	document   []byte
}

// WithSchemaPath overrides the default <schema dir>/<name>.schema.json path.
func WithSchemaPath(path string) EndpointOption {
	return func(o *endpointOptions) { o.schemaPath = path }
}

// WithSchemaDocument supplies the schema document directly instead of a file.
func WithSchemaDocument(document []byte) EndpointOption {
	return func(o *endpointOptions) { o.document = document }
}

// Registry maps unique request names to endpoints. It accepts registrations
// until Freeze is called and is read-only afterwards.
type Registry struct {
	mu        sync.Mutex
	endpoints map[string]*Endpoint
	frozen    atomic.Bool
	store     *SchemaStore
	reserved  map[string]struct{}
	logger    zerolog.Logger
}

// NewRegistry creates an empty registry. Names in reserved can never be
// registered.
func NewRegistry(store *SchemaStore, logger zerolog.Logger, reserved ...string) *Registry {
	if store == nil {
		store = NewSchemaStore("", nil)
	}
	r := &Registry{
		endpoints: make(map[string]*Endpoint),
		store:     store,
		reserved:  make(map[string]struct{}, len(reserved)),
		logger:    logger.With().Str("component", "registry").Logger(),
	}
	for _, name := range reserved {
		r.reserved[name] = struct{}{}
	}
	return r
}

// Register adds an endpoint. Policy rejections (empty name, duplicate,
// empty schema path, reserved name) are logged and reported through the
// result with a nil error; the first registration of a name always wins.
// Schema loading failures are returned as *ConfigError. Once the registry is
// frozen every call fails with ErrRegistryFrozen.
func (r *Registry) Register(name string, handler Handler, opts ...EndpointOption) (RegisterResult, error) {
	o := endpointOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return RegisterFailed, fmt.Errorf("%w: cannot register %q", ErrRegistryFrozen, name)
	}
	if name == "" {
		r.logger.Warn().Msg("request name is empty")
		return RejectedEmptyName, nil
	}
	if _, ok := r.reserved[name]; ok {
		r.logger.Warn().Str("request", name).Msg("request name is reserved")
		return RejectedReserved, nil
	}
	if handler == nil {
		r.logger.Warn().Str("request", name).Msg("request handler is nil")
		return RejectedNilHandler, nil
	}
	if _, ok := r.endpoints[name]; ok {
		r.logger.Warn().Str("request", name).Msg("request handler already exists")
		return RejectedDuplicate, nil
	}

	var (
		schema *EndpointSchema
		err    error
	)
	if o.document != nil {
		schema, err = r.store.Parse(name, o.schemaPath, o.document)
	} else {
		path := o.schemaPath
		if path == "" {
			path = r.store.DefaultPath(name)
		}
		if path == "" {
			r.logger.Warn().Str("request", name).Msg("schema path is empty")
			return RejectedEmptySchemaPath, nil
		}
		schema, err = r.store.Load(name, path)
	}
	if err != nil {
		return RegisterFailed, err
	}

	r.endpoints[name] = &Endpoint{Name: name, Handler: handler, Schema: schema}
	r.logger.Debug().Str("request", name).Str("schema", schema.Path).Msg("registered request handler")
	return Registered, nil
}

// Freeze stops the registry from accepting registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen.Store(true)
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Lookup returns the endpoint registered under name.
func (r *Registry) Lookup(name string) (*Endpoint, bool) {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	e, ok := r.endpoints[name]
	return e, ok
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered endpoints.
func (r *Registry) Len() int {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	return len(r.endpoints)
}
