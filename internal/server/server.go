// Package server exposes the call emulator over Ethereum JSON-RPC.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/compose-network/web3call/internal/logger"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 30 * time.Second

type (
	Config struct {
		ListenAddress     string
		MetricsPath       string
		ReadHeaderTimeout time.Duration
	}

	// Server serves JSON-RPC on / and prometheus metrics on MetricsPath.
	Server struct {
		config   Config
		rpc      *rpc.Server
		gatherer prometheus.Gatherer
		logger   *slog.Logger

		mu         sync.Mutex
		httpServer *http.Server
		listener   net.Listener
		stopped    chan struct{}
	}
)

// New registers the eth namespace. Metrics are served from gatherer when it
// is non-nil.
func New(cfg Config, caller Caller, gatherer prometheus.Gatherer) (*Server, error) {
	if caller == nil {
		return nil, errors.New("caller is required")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}

	log := logger.Named("rpc_server")

	rpcServer := rpc.NewServer()
	api := &EthAPI{caller: caller, logger: log}
	if err := rpcServer.RegisterName("eth", api); err != nil {
		return nil, fmt.Errorf("failed to register eth namespace: %w", err)
	}

	return &Server{
		config:   cfg,
		rpc:      rpcServer,
		gatherer: gatherer,
		logger:   log,
	}, nil
}

// Handler routes metrics and JSON-RPC requests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.gatherer != nil && s.config.MetricsPath != "" {
		mux.Handle(s.config.MetricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	mux.Handle("/", s.rpc)
	return mux
}

// DialInProcess returns a client connected to the server without a network
// round trip.
func (s *Server) DialInProcess() *rpc.Client {
	return rpc.DialInProc(s.rpc)
}

// Start binds the listen address, so port conflicts fail here, and serves
// in the background until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return errors.New("server already started")
	}

	listener, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}
	s.httpServer = httpServer
	s.listener = listener
	s.stopped = make(chan struct{})

	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.With("err", err.Error()).Error("json-rpc server stopped unexpectedly")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Stop(shutdownCtx); err != nil {
			s.logger.With("err", err.Error()).Error("failed to shut down json-rpc server")
		}
	}()

	s.logger.
		With("address", listener.Addr().String()).
		With("metrics_path", s.config.MetricsPath).
		Info("json-rpc server listening")

	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the HTTP server down gracefully. Concurrent and repeated calls
// wait for the shutdown in progress.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	httpServer, stopped := s.httpServer, s.stopped
	s.httpServer = nil
	s.mu.Unlock()

	if httpServer == nil {
		if stopped == nil {
			return nil
		}
		select {
		case <-stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	defer close(stopped)

	s.logger.Info("shutting down json-rpc server")
	err := httpServer.Shutdown(ctx)
	s.rpc.Stop()
	if err != nil {
		return fmt.Errorf("failed to shut down json-rpc server: %w", err)
	}
	return nil
}
