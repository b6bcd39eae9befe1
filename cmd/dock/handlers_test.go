// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/luxfi/dock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLikelihood(t *testing.T) {
	fn := logLikelihood(zerolog.Nop())

	resp, err := fn(context.Background(), demoLikelihoodRequest())
	require.NoError(t, err)
	// (0.002-0.0025)^2 + (0.1-0.15)^2 + (0.6-0.5)^2 + (0.01-0)^2
	assert.InDelta(t, 0.00000025+0.0025+0.01+0.0001, resp.LogLikelihood, 1e-12)

	req := demoLikelihoodRequest()
	req.OscPars.Theta13 = nil
	_, err = fn(context.Background(), req)
	assert.ErrorContains(t, err, "Theta13")

	req = demoLikelihoodRequest()
	delete(req.SysPars, "sys2")
	_, err = fn(context.Background(), req)
	assert.ErrorContains(t, err, "sys2")
}

func TestNominalLikelihoodIsZero(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	resp, err := logLikelihood(zerolog.Nop())(context.Background(), LikelihoodRequest{
		OscPars: OscillationParameters{
			Deltam2_32: f(nominalDeltam2_32),
			Theta13:    f(nominalTheta13),
			Theta23:    f(nominalTheta23),
			DeltaCP:    f(nominalDeltaCP),
		},
		SysPars: map[string]float64{"sys1": nominalSys1, "sys2": nominalSys2},
	})
	require.NoError(t, err)
	assert.Zero(t, resp.LogLikelihood)
}

// TestDemoRoundTrip generates the schema files, serves them and runs one
// client round against the server.
func TestDemoRoundTrip(t *testing.T) {
	dir := t.TempDir()
	var written []string
	require.NoError(t, writeSchemas(dir, func(path string) { written = append(written, path) }))
	assert.Equal(t, []string{
		filepath.Join(dir, "ping.schema.json"),
		filepath.Join(dir, "log_likelihood.schema.json"),
	}, written)

	server := dock.New(dock.WithAddress("127.0.0.1:0"), dock.WithSchemaDir(dir))
	require.NoError(t, registerHandlers(server, zerolog.Nop()))
	srv, err := server.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx) }()

	var fatal []error
	client := dock.New(dock.WithAddress(srv.Addr()), dock.WithFatalFunc(func(err error) { fatal = append(fatal, err) }))
	defer client.Close()
	require.NoError(t, client.StartClient(ctx))

	require.NoError(t, sendLoop(ctx, client, zerolog.Nop(), 2, time.Millisecond))
	assert.Empty(t, fatal)
	assert.Equal(t, uint64(4), client.Count())
	assert.Equal(t, uint64(4), server.Count())

	// A query without Theta13 is rejected by the schema and ends serving.
	err = client.SendInto(ctx, logLikelihoodName, map[string]interface{}{
		"osc_pars": map[string]float64{"Deltam2_32": 0.002, "Theta23": 0.6, "DeltaCP": 0.01},
		"sys_pars": map[string]float64{"sys1": 0.01, "sys2": 0.02},
	}, nil)
	assert.Error(t, err)
	assert.Len(t, fatal, 1)

	select {
	case <-srv.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRegisterHandlersNeedsSchemas(t *testing.T) {
	d := dock.New(dock.WithSchemaDir(t.TempDir()))
	err := registerHandlers(d, zerolog.Nop())
	var cerr *dock.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, dock.ConfigUnreadable, cerr.Kind)
}
