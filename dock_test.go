// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import (
	"context"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioPing(t *testing.T) {
	_, srv, _ := startServer(t)
	c, rec := startClient(t, srv)

	out, err := c.Send(context.Background(), "/ping", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"message": "ping"}, out)
	assert.Empty(t, rec.calls())
}

func TestScenarioInvalidRequestStopsServer(t *testing.T) {
	_, srv, _ := startServer(t)
	c, rec := startClient(t, srv)

	_, err := c.Send(context.Background(), "/log_likelihood", map[string]interface{}{
		"osc_pars": map[string]float64{"Deltam2_32": 0.002, "Theta23": 0.6, "DeltaCP": 0.01},
	})
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusBadRequest, terr.Status)
	assert.Contains(t, terr.Body, "Theta13")
	require.Len(t, rec.calls(), 1)

	waitStopped(t, srv)

	_, err = c.Send(context.Background(), "/ping", map[string]interface{}{})
	require.ErrorAs(t, err, &terr)
	assert.Error(t, terr.Err)
	assert.Len(t, rec.calls(), 2)
}

func TestScenarioHandshake(t *testing.T) {
	m := NewMetrics("")
	_, srv, _ := startServer(t, WithVersion("0.0.1"), WithMetrics(m, ""))

	tr, err := Dial(context.Background(), srv.Addr())
	require.NoError(t, err)
	defer tr.Close()

	reply, err := tr.Post(context.Background(), HandshakePath, []byte(`{"version":"0.0.1"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, reply.Status)
	assert.JSONEq(t, `{"version":"0.0.1"}`, string(reply.Body))

	// The server keeps serving after a matching handshake.
	c, _ := startClient(t, srv, WithVersion("0.0.1"))
	_, err = c.Send(context.Background(), "/ping", "Hello! :)")
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HandshakesTotal.WithLabelValues("ok")))
}

func TestHandshakeMismatchStopsServer(t *testing.T) {
	_, srv, errc := startServer(t, WithVersion("0.0.1"))

	cm := NewMetrics("")
	c := New(WithAddress(srv.Addr()), WithVersion("0.0.2"), WithMetrics(cm, ""), WithFatalFunc(func(error) {}))
	defer c.Close()

	// The client logs the mismatch and carries on.
	require.NoError(t, c.StartClient(context.Background()))
	assert.Equal(t, RoleClient, c.Role())
	assert.Equal(t, 1.0, testutil.ToFloat64(cm.HandshakesTotal.WithLabelValues("mismatch")))

	waitStopped(t, srv)
	assert.NoError(t, <-errc)
}

func TestScenarioUnknownEndpoint(t *testing.T) {
	_, srv, _ := startServer(t)
	c, rec := startClient(t, srv)

	_, err := c.Send(context.Background(), "/unknown", map[string]interface{}{})
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusNotFound, terr.Status)
	assert.JSONEq(t, `{"error":"Unknown request title: /unknown"}`, terr.Body)
	require.Len(t, rec.calls(), 1)

	out, err := c.Send(context.Background(), "/ping", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"message": "ping"}, out)
}

func TestCounterCountsSends(t *testing.T) {
	d, srv, _ := startServer(t)
	c, _ := startClient(t, srv)

	const n = 5
	before := c.Count()
	for i := 0; i < n; i++ {
		_, err := c.Send(context.Background(), "/ping", map[string]interface{}{"i": i})
		require.NoError(t, err)
	}
	assert.Equal(t, before+n, c.Count())
	assert.Equal(t, uint64(n), d.Count())
}

func TestSendInto(t *testing.T) {
	_, srv, _ := startServer(t)
	c, _ := startClient(t, srv)

	var out struct {
		LogLikelihood float64 `json:"log_likelihood"`
	}
	err := c.SendInto(context.Background(), "/log_likelihood", map[string]interface{}{
		"osc_pars": map[string]float64{"Deltam2_32": 0.002, "Theta13": 0.1, "Theta23": 0.6, "DeltaCP": 0.01},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, 0.25, out.LogLikelihood)
}

func TestSendPreconditions(t *testing.T) {
	rec := &fatalRecorder{}
	d := New(WithFatalFunc(rec.fatal))

	_, err := d.Send(context.Background(), "/ping", nil)
	assert.ErrorIs(t, err, ErrNotClient)

	_, srv, _ := startServer(t)
	c, crec := startClient(t, srv)
	_, err = c.Send(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrEmptyName)
	require.Len(t, crec.calls(), 1)
	assert.Equal(t, uint64(0), c.Count())

	require.Len(t, rec.calls(), 1)
	assert.ErrorIs(t, rec.calls()[0], ErrNotClient)
}

func TestStartClientWithoutServer(t *testing.T) {
	m := NewMetrics("")
	c := New(WithAddress("127.0.0.1:1"), WithMetrics(m, ""))
	defer c.Close()

	err := c.StartClient(context.Background())
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, HandshakePath, terr.Name)
	assert.Error(t, terr.Err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HandshakesTotal.WithLabelValues("failed")))
}

func TestRoleIsExclusive(t *testing.T) {
	d, srv, _ := startServer(t)

	err := d.StartClient(context.Background())
	assert.ErrorIs(t, err, ErrRoleAlreadySet)
	assert.Equal(t, RoleServer, d.Role())

	_, err = d.Listen()
	assert.ErrorIs(t, err, ErrRoleAlreadySet)

	c, _ := startClient(t, srv)
	_, err = c.Listen()
	assert.ErrorIs(t, err, ErrRoleAlreadySet)
}

func TestRegisterAfterStart(t *testing.T) {
	d, _, _ := startServer(t)

	res, err := d.Register("/late", pingHandler, WithSchemaDocument([]byte(pingSchema)))
	assert.ErrorIs(t, err, ErrRegistryFrozen)
	assert.Equal(t, RegisterFailed, res)
	assert.Equal(t, []string{"/log_likelihood", "/ping"}, d.Registry().Names())
}

func TestClientOverJSONRPC(t *testing.T) {
	_, srv, _ := startServer(t, WithTransport(TransportJSONRPC))
	c, rec := startClient(t, srv, WithTransport(TransportJSONRPC))

	out, err := c.Send(context.Background(), "/ping", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"message": "ping"}, out)

	_, err = c.Send(context.Background(), "/unknown", map[string]interface{}{})
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusNotFound, terr.Status)
	assert.Len(t, rec.calls(), 1)
}

func TestStartServerStopsOnContext(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "/ping", pingSchema)
	d := New(WithAddress("127.0.0.1:0"), WithSchemaDir(dir))
	_, err := d.Register("/ping", pingHandler)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, d.StartServer(ctx))
}

func TestNewFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Version = "1.2.3"
	cfg.FailurePolicy = "keep_serving"
	cfg.Metrics.Enabled = true

	d, err := NewFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", d.Version())
	assert.Equal(t, KeepServing, d.opts.policy)
	assert.NotNil(t, d.Metrics())

	cfg.Transport = "carrier-pigeon"
	_, err = NewFromConfig(cfg)
	assert.Error(t, err)
}
