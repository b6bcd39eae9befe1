//go:build grpc

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// grpcService prefixes every request name to form the gRPC full method.
const grpcService = "/dock.Dock"

func init() {
	// Register gRPC transport when build tag is enabled
	registerTransport(TransportGRPC, dialGRPC, listenGRPC)
}

// rawCodec passes JSON bodies through gRPC untouched.
type rawCodec struct{}

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	b, ok := v.(*[]byte)
	if !ok {
		return nil, fmt.Errorf("dock-json codec: unexpected message type %T", v)
	}
	return *b, nil
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("dock-json codec: unexpected message type %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}

func (rawCodec) Name() string { return "dock-json" }

func dialGRPC(_ context.Context, addr string, o *dialOptions) (Transport, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &grpcTransport{conn: conn, logger: o.logger}, nil
}

type grpcTransport struct {
	conn   *grpc.ClientConn
	logger zerolog.Logger
}

func (t *grpcTransport) Post(ctx context.Context, name string, body []byte) (*Reply, error) {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	t.logger.Debug().Str("request", name).Msg("sending request")

	var out []byte
	err := t.conn.Invoke(ctx, grpcService+name, &body, &out)
	if err == nil {
		return &Reply{Status: http.StatusOK, Body: out}, nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return nil, fmt.Errorf("grpc invoke: %w", err)
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return &Reply{Status: http.StatusBadRequest, Body: []byte(st.Message())}, nil
	case codes.NotFound:
		return &Reply{Status: http.StatusNotFound, Body: []byte(st.Message())}, nil
	default:
		return nil, fmt.Errorf("grpc invoke: %w", err)
	}
}

func (t *grpcTransport) Close() error {
	return t.conn.Close()
}

func listenGRPC(addr string, d *Dispatcher, o *serverOptions) (Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	s := &grpcServer{
		dispatcher: d,
		listener:   listener,
		logger:     o.logger.With().Str("component", "grpc").Logger(),
		drained:    make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.srv = grpc.NewServer(
		grpc.ForceServerCodec(rawCodec{}),
		grpc.UnknownServiceHandler(s.handleStream),
	)
	return s, nil
}

// grpcServer routes every full method under grpcService to the dispatcher.
type grpcServer struct {
	dispatcher *Dispatcher
	listener   net.Listener
	srv        *grpc.Server
	logger     zerolog.Logger

	stopOnce sync.Once
	drained  chan struct{}
	done     chan struct{}
}

func (s *grpcServer) handleStream(_ interface{}, stream grpc.ServerStream) error {
	method, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "no method in stream")
	}
	var body []byte
	if err := stream.RecvMsg(&body); err != nil {
		return err
	}

	out := s.dispatcher.Dispatch(stream.Context(), strings.TrimPrefix(method, grpcService), body)
	if out.Stop {
		defer s.Stop()
	}
	switch {
	case out.Status == http.StatusOK:
		return stream.SendMsg(&out.Body)
	case out.Kind == OutcomeRecoverable:
		return status.Error(codes.NotFound, string(out.Body))
	default:
		return status.Error(codes.InvalidArgument, string(out.Body))
	}
}

func (s *grpcServer) Serve(ctx context.Context) error {
	defer close(s.done)
	cancel := context.AfterFunc(ctx, s.Stop)
	defer cancel()

	s.logger.Info().Str("addr", s.Addr()).Msg("listening")
	err := s.srv.Serve(s.listener)
	if err == nil || errors.Is(err, grpc.ErrServerStopped) {
		s.Stop()
		<-s.drained
		return nil
	}
	return err
}

func (s *grpcServer) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Warn().Str("addr", s.Addr()).Msg("stopping server")
		go func() {
			defer close(s.drained)
			s.srv.GracefulStop()
		}()
	})
}

func (s *grpcServer) Done() <-chan struct{} {
	return s.done
}

func (s *grpcServer) Addr() string {
	return s.listener.Addr().String()
}
