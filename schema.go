// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"
	schemaengine "github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaSuffix is appended to an endpoint name to form its default schema file.
const SchemaSuffix = ".schema.json"

// Validator checks a decoded JSON value. The returned error describes the
// violation.
type Validator interface {
	Validate(v interface{}) error
}

// SchemaCompiler turns a schema document with the layout
// {"properties": {"request": ..., "response": ...}} into two validators.
type SchemaCompiler interface {
	Compile(name string, document []byte) (request Validator, response Validator, err error)
}

// EndpointSchema holds the compiled contract of a single endpoint.
type EndpointSchema struct {
	Name           string
	Path           string
	Request        Validator
	Response       Validator
	RequestSchema  json.RawMessage
	ResponseSchema json.RawMessage
}

// SchemaStore loads schema documents and builds validators for them.
type SchemaStore struct {
	dir      string
	compiler SchemaCompiler
}

// NewSchemaStore creates a store resolving default paths under dir. A nil
// compiler selects the JSON-Schema engine.
func NewSchemaStore(dir string, compiler SchemaCompiler) *SchemaStore {
	if compiler == nil {
		compiler = NewJSONSchemaCompiler()
	}
	return &SchemaStore{dir: dir, compiler: compiler}
}

// Dir returns the base directory for default schema paths.
func (s *SchemaStore) Dir() string {
	return s.dir
}

// DefaultPath returns <dir>/<name>.schema.json, or "" when no directory is
// configured.
func (s *SchemaStore) DefaultPath(name string) string {
	if s.dir == "" || name == "" {
		return ""
	}
	return filepath.Join(s.dir, strings.TrimPrefix(name, "/")+SchemaSuffix)
}

// Load reads the schema document at path for the endpoint name.
func (s *SchemaStore) Load(name, path string) (*EndpointSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Kind: ConfigUnreadable, Name: name, Path: path, Err: err}
	}
	return s.Parse(name, path, data)
}

// Parse builds the endpoint schema from an in-memory document. path is only
// used for diagnostics and may be empty.
func (s *SchemaStore) Parse(name, path string, data []byte) (*EndpointSchema, error) {
	malformed := func(err error) error {
		return &ConfigError{Kind: ConfigMalformed, Name: name, Path: path, Err: err}
	}

	var doc struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed(fmt.Errorf("JSON parsing error: %w", err))
	}
	reqSchema, ok := doc.Properties[SideRequest]
	if !ok {
		return nil, malformed(errors.New("missing properties.request"))
	}
	respSchema, ok := doc.Properties[SideResponse]
	if !ok {
		return nil, malformed(errors.New("missing properties.response"))
	}

	req, resp, err := s.compiler.Compile(name, data)
	if err != nil {
		return nil, malformed(err)
	}

	return &EndpointSchema{
		Name:           name,
		Path:           path,
		Request:        req,
		Response:       resp,
		RequestSchema:  compactJSON(reqSchema),
		ResponseSchema: compactJSON(respSchema),
	}, nil
}

func compactJSON(raw json.RawMessage) json.RawMessage {
	var b bytes.Buffer
	if err := json.Compact(&b, raw); err != nil {
		return raw
	}
	return b.Bytes()
}

type jsonSchemaCompiler struct{}

// NewJSONSchemaCompiler returns the default SchemaCompiler. The whole
// document is added as one resource and each side is compiled from its JSON
// pointer, so references between parts of the document resolve.
func NewJSONSchemaCompiler() SchemaCompiler {
	return jsonSchemaCompiler{}
}

func (jsonSchemaCompiler) Compile(name string, document []byte) (Validator, Validator, error) {
	c := schemaengine.NewCompiler()
	resource := resourceURL(name)
	if err := c.AddResource(resource, bytes.NewReader(document)); err != nil {
		return nil, nil, fmt.Errorf("add schema resource: %w", err)
	}
	req, err := c.Compile(resource + "#/properties/" + SideRequest)
	if err != nil {
		return nil, nil, fmt.Errorf("compile request schema: %w", err)
	}
	resp, err := c.Compile(resource + "#/properties/" + SideResponse)
	if err != nil {
		return nil, nil, fmt.Errorf("compile response schema: %w", err)
	}
	return req, resp, nil
}

func resourceURL(name string) string {
	u := url.URL{Scheme: "mem", Path: path.Join("/dock", name) + SchemaSuffix}
	return u.String()
}

// SchemaDocumentFor reflects Go types into a schema document with the
// request/response layout. Definitions are inlined so each side stands alone.
func SchemaDocumentFor(request, response interface{}) ([]byte, error) {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}
	reqSchema := r.Reflect(request)
	reqSchema.Version = ""
	respSchema := r.Reflect(response)
	respSchema.Version = ""

	doc := map[string]interface{}{
		"$schema": jsonschema.Version,
		"type":    "object",
		"properties": map[string]interface{}{
			SideRequest:  reqSchema,
			SideResponse: respSchema,
		},
	}
	return json.MarshalIndent(doc, "", "  ")
}
