// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	rpcserver "github.com/gorilla/rpc/v2"
	rpc "github.com/gorilla/rpc/v2/json2"
	"github.com/rs/zerolog"
)

// BridgePath is the reserved endpoint of the JSON-RPC 2.0 bridge.
const BridgePath = "/rpc"

const (
	bridgeService = "Dock"
	bridgeMethod  = bridgeService + ".Call"
)

// maxBodySize bounds a single request body.
const maxBodySize = 64 << 20

// httpServer serves every registered name as a POST route.
type httpServer struct {
	dispatcher *Dispatcher
	listener   net.Listener
	srv        *http.Server
	logger     zerolog.Logger

	stopOnce sync.Once
	drained  chan struct{}
	done     chan struct{}
}

func newHTTPServer(listener net.Listener, d *Dispatcher, o *serverOptions) *httpServer {
	s := &httpServer{
		dispatcher: d,
		listener:   listener,
		logger:     o.logger.With().Str("component", "http").Logger(),
		drained:    make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.srv = &http.Server{Handler: s.routes(o)}
	return s
}

func (s *httpServer) routes(o *serverOptions) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(newLoggingMiddleware(s.logger))

	if o.metrics != nil {
		path := o.metricsPath
		if path == "" {
			path = DefaultMetricsPath
		}
		r.Method(http.MethodGet, path, o.metrics.Handler())
	}

	bridge := rpcserver.NewServer()
	bridge.RegisterCodec(rpc.NewCodec(), contentTypeJSON)
	if err := bridge.RegisterService(&BridgeService{dispatcher: s.dispatcher}, bridgeService); err != nil {
		// The receiver is fixed; this only fails if its method set is broken.
		panic(err)
	}
	r.Post(BridgePath, s.serveBridge(bridge))

	r.Post("/*", s.serveDispatch)
	r.NotFound(s.serveUnknown)
	r.MethodNotAllowed(s.serveUnknown)
	return r
}

// serveUnknown answers requests that are not a POST; only POSTs address a
// registered name.
func (s *httpServer) serveUnknown(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, s.dispatcher.unknown(r.URL.Path))
}

// serveDispatch resolves the request name from the URL path.
func (s *httpServer) serveDispatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("failed to read request body")
		body = nil
	}
	out := s.dispatcher.Dispatch(r.Context(), r.URL.Path, body)
	writeOutcome(w, out)
	if out.Stop {
		s.Stop()
	}
}

type bridgeOutcomeKey struct{}

func (s *httpServer) serveBridge(bridge http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var out Outcome
		bridge.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), bridgeOutcomeKey{}, &out)))
		if out.Stop {
			s.Stop()
		}
	}
}

func writeOutcome(w http.ResponseWriter, out Outcome) {
	w.Header().Set("Content-Type", out.ContentType)
	w.WriteHeader(out.Status)
	_, _ = w.Write(out.Body)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// Serve blocks until the server is stopped and drained.
func (s *httpServer) Serve(ctx context.Context) error {
	defer close(s.done)
	cancel := context.AfterFunc(ctx, s.Stop)
	defer cancel()

	s.logger.Info().Str("addr", s.Addr()).Msg("listening")
	err := s.srv.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		<-s.drained
		return nil
	}
	return err
}

// Stop closes the listener at once and lets in-flight requests finish.
func (s *httpServer) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Warn().Str("addr", s.Addr()).Msg("stopping server")
		go func() {
			defer close(s.drained)
			if err := s.srv.Shutdown(context.Background()); err != nil {
				s.logger.Error().Err(err).Msg("shutdown failed")
			}
		}()
	})
}

func (s *httpServer) Done() <-chan struct{} {
	return s.done
}

func (s *httpServer) Addr() string {
	return s.listener.Addr().String()
}

// BridgeArgs are the params of the Dock.Call JSON-RPC method.
type BridgeArgs struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// BridgeService exposes the dispatcher as a single JSON-RPC method so
// JSON-RPC 2.0 clients can reach every endpoint through BridgePath.
type BridgeService struct {
	dispatcher *Dispatcher
}

// Call dispatches args.Payload to args.Name. Non-success outcomes become
// JSON-RPC errors whose data carries the HTTP-equivalent status.
func (b *BridgeService) Call(r *http.Request, args *BridgeArgs, reply *json.RawMessage) error {
	out := b.dispatcher.Dispatch(r.Context(), args.Name, args.Payload)
	if slot, ok := r.Context().Value(bridgeOutcomeKey{}).(*Outcome); ok {
		*slot = out
	}
	if out.Status == http.StatusOK {
		*reply = json.RawMessage(out.Body)
		return nil
	}
	return &rpc.Error{
		Code:    rpc.E_SERVER,
		Message: string(out.Body),
		Data:    map[string]int{"status": out.Status},
	}
}

// newLoggingMiddleware logs every HTTP exchange at debug level.
func newLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
