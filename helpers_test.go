// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pingSchema accepts any request and requires a string message in the response.
const pingSchema = `{
  "properties": {
    "request": {},
    "response": {
      "type": "object",
      "properties": {"message": {"type": "string"}},
      "required": ["message"]
    }
  }
}`

// likelihoodSchema requires the numeric oscillation parameters.
const likelihoodSchema = `{
  "properties": {
    "request": {
      "type": "object",
      "properties": {
        "osc_pars": {
          "type": "object",
          "properties": {
            "Deltam2_32": {"type": "number"},
            "Theta13": {"type": "number"},
            "Theta23": {"type": "number"},
            "DeltaCP": {"type": "number"}
          },
          "required": ["Deltam2_32", "Theta13", "Theta23", "DeltaCP"]
        }
      },
      "required": ["osc_pars"]
    },
    "response": {
      "type": "object",
      "properties": {"log_likelihood": {"type": "number"}},
      "required": ["log_likelihood"]
    }
  }
}`

var pingHandler = HandlerFunc(func(context.Context, interface{}) (interface{}, error) {
	return map[string]string{"message": "ping"}, nil
})

var likelihoodHandler = HandlerFunc(func(_ context.Context, payload interface{}) (interface{}, error) {
	return map[string]float64{"log_likelihood": 0.25}, nil
})

// writeSchema writes doc as the default schema file of name under dir.
func writeSchema(t *testing.T, dir, name, doc string) string {
	t.Helper()
	path := filepath.Join(dir, strings.TrimPrefix(name, "/")+SchemaSuffix)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

// fatalRecorder replaces the process-exiting FatalFunc in tests.
type fatalRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (f *fatalRecorder) fatal(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
}

func (f *fatalRecorder) calls() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.errs...)
}

// startServer registers /ping and /log_likelihood on a new dock listening on
// a random loopback port and serves it in the background.
func startServer(t *testing.T, opts ...Option) (*Dock, Server, <-chan error) {
	t.Helper()
	dir := t.TempDir()
	writeSchema(t, dir, "/ping", pingSchema)
	writeSchema(t, dir, "/log_likelihood", likelihoodSchema)

	base := []Option{WithAddress("127.0.0.1:0"), WithSchemaDir(dir)}
	d := New(append(base, opts...)...)

	res, err := d.Register("/ping", pingHandler)
	require.NoError(t, err)
	require.Equal(t, Registered, res)
	res, err = d.Register("/log_likelihood", likelihoodHandler)
	require.NoError(t, err)
	require.Equal(t, Registered, res)

	srv, err := d.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		waitStopped(t, srv)
	})
	return d, srv, errc
}

// startClient creates a client dock for srv with a recording FatalFunc.
func startClient(t *testing.T, srv Server, opts ...Option) (*Dock, *fatalRecorder) {
	t.Helper()
	rec := &fatalRecorder{}
	base := []Option{WithAddress(srv.Addr()), WithFatalFunc(rec.fatal)}
	c := New(append(base, opts...)...)
	require.NoError(t, c.StartClient(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	return c, rec
}

func waitStopped(t *testing.T, srv Server) {
	t.Helper()
	select {
	case <-srv.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
