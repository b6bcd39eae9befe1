// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dock pairs two processes over a request/response channel of JSON
// messages. One side registers named handlers guarded by JSON-Schema
// contracts and serves them; the other side checks its version against the
// server once and then sends named messages, blocking on each reply.
//
// # Transport Selection
//
// HTTP is the default transport: every message is a POST to the path named
// after the request. Alternatives:
//
//	dock.WithTransport("jsonrpc")  # JSON-RPC 2.0 envelope on /rpc
//	go build -tags grpc            # Enable the gRPC transport
//
// # Usage
//
// Server usage:
//
//	d := dock.New(dock.WithSchemaDir("schemas"))
//	_, err := d.Register("/ping", dock.HandlerFunc(func(ctx context.Context, p any) (any, error) {
//	    return map[string]string{"message": "ping"}, nil
//	}))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = d.StartServer(ctx) // returns after a fatal request or ctx is done
//
// Client usage:
//
//	d := dock.New()
//	if err := d.StartClient(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer d.Close()
//
//	reply, _ := d.Send(ctx, "/ping", map[string]any{})
//
// # Failure Model
//
// Every failure while serving a registered request (malformed body, schema
// violation on either side, handler error) is answered with 400 and a plain
// text diagnostic, after which the server stops. KeepServing relaxes this.
// An unregistered name is answered with 404 and the server carries on. On the
// client, any failure is passed to the FatalFunc, which exits the process
// unless replaced.
//
// # Architecture
//
// The package separates concerns:
//
//   - role.go: single-assignment role and the request counter
//   - schema.go: schema documents, compilation and generation
//   - registry.go: named handlers, frozen once serving starts
//   - handshake.go: the /validate_start version exchange
//   - dispatch.go: server pipeline producing an Outcome per message
//   - client.go: client handshake and send path
//   - transport.go: Transport registry for build-tag extensibility
//   - dial.go, server.go, json.go: HTTP and JSON-RPC transports
//   - dial_grpc.go: gRPC transport (requires -tags grpc)
package dock
