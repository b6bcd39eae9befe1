// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"math"

	"github.com/luxfi/dock"
	"github.com/rs/zerolog"
)

// Request names served by the demo.
const (
	pingName          = "/ping"
	logLikelihoodName = "/log_likelihood"
)

// Greeting is the free-form text the demo client pings with.
type Greeting string

// PingResponse answers a ping.
type PingResponse struct {
	Message string `json:"message"`
}

// OscillationParameters are the physics parameters of a likelihood query.
// Deltam2_21 and Theta12 are accepted but do not enter the likelihood.
type OscillationParameters struct {
	Deltam2_32 *float64 `json:"Deltam2_32"`
	Deltam2_21 *float64 `json:"Deltam2_21,omitempty"`
	Theta13    *float64 `json:"Theta13"`
	Theta12    *float64 `json:"Theta12,omitempty"`
	Theta23    *float64 `json:"Theta23"`
	DeltaCP    *float64 `json:"DeltaCP"`
}

// LikelihoodRequest asks for the log likelihood at one parameter point.
type LikelihoodRequest struct {
	OscPars OscillationParameters `json:"osc_pars"`
	SysPars map[string]float64    `json:"sys_pars"`
}

// LikelihoodResponse carries the computed value.
type LikelihoodResponse struct {
	LogLikelihood float64 `json:"log_likelihood"`
}

// Nominal parameter values.
const (
	nominalDeltam2_32 = 0.0025
	nominalTheta13    = 0.15
	nominalTheta23    = 0.5
	nominalDeltaCP    = 0.0
	nominalSys1       = 0.01
	nominalSys2       = 0.02
)

func ping(logger zerolog.Logger) func(context.Context, Greeting) (PingResponse, error) {
	return func(_ context.Context, g Greeting) (PingResponse, error) {
		logger.Info().Str("greeting", string(g)).Msg("received ping")
		return PingResponse{Message: "ping"}, nil
	}
}

func logLikelihood(logger zerolog.Logger) func(context.Context, LikelihoodRequest) (LikelihoodResponse, error) {
	return func(_ context.Context, req LikelihoodRequest) (LikelihoodResponse, error) {
		osc := []struct {
			name    string
			value   *float64
			nominal float64
		}{
			{"Deltam2_32", req.OscPars.Deltam2_32, nominalDeltam2_32},
			{"Theta13", req.OscPars.Theta13, nominalTheta13},
			{"Theta23", req.OscPars.Theta23, nominalTheta23},
			{"DeltaCP", req.OscPars.DeltaCP, nominalDeltaCP},
		}

		var sum float64
		for _, p := range osc {
			if p.value == nil {
				return LikelihoodResponse{}, fmt.Errorf("missing or invalid osc_par: %s", p.name)
			}
			sum += math.Pow(*p.value-p.nominal, 2)
		}
		for _, p := range []struct {
			name    string
			nominal float64
		}{{"sys1", nominalSys1}, {"sys2", nominalSys2}} {
			v, ok := req.SysPars[p.name]
			if !ok {
				return LikelihoodResponse{}, fmt.Errorf("missing sys_par: %s", p.name)
			}
			sum += math.Pow(v-p.nominal, 2)
		}

		logger.Debug().Float64("log_likelihood", sum).Msg("computed log likelihood")
		return LikelihoodResponse{LogLikelihood: sum}, nil
	}
}

// registerHandlers registers the demo requests on d.
func registerHandlers(d *dock.Dock, logger zerolog.Logger) error {
	for _, e := range []struct {
		name    string
		handler dock.Handler
	}{
		{pingName, dock.TypedHandler(ping(logger))},
		{logLikelihoodName, dock.TypedHandler(logLikelihood(logger))},
	} {
		res, err := d.Register(e.name, e.handler)
		if err != nil {
			return err
		}
		if res != dock.Registered {
			return fmt.Errorf("register %s: %s", e.name, res)
		}
	}
	return nil
}

// demoLikelihoodRequest is the parameter point the demo client queries.
func demoLikelihoodRequest() LikelihoodRequest {
	f := func(v float64) *float64 { return &v }
	return LikelihoodRequest{
		OscPars: OscillationParameters{
			Deltam2_32: f(0.002),
			Deltam2_21: f(0.002),
			Theta13:    f(0.1),
			Theta12:    f(0.1),
			Theta23:    f(0.6),
			DeltaCP:    f(0.01),
		},
		SysPars: map[string]float64{
			"sys1": 0.01,
			"sys2": 0.02,
		},
	}
}
