// File: server/server.go
//go:build linux

// Package server provides the single-threaded echo server facade built on
// hioload-echo primitives: magic ring buffers, a fixed connection registry,
// and the io_uring completion reactor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"

	"go.uber.org/zap"

	"github.com/momentics/hioload-echo/control"
	"github.com/momentics/hioload-echo/internal/logging"
	"github.com/momentics/hioload-echo/internal/session"
	"github.com/momentics/hioload-echo/reactor"
	"github.com/momentics/hioload-echo/transport/tcp"
)

// Server wires listener, registry, reactor, metrics, and debug probes.
type Server struct {
	cfg      *Config
	log      *zap.Logger
	metrics  *control.Metrics
	probes   *control.Probes
	listener *tcp.Listener
	registry *session.Registry
	reactor  *reactor.Reactor
}

// New constructs a Server with the given Config and options.
// It initializes the connection registry (all rings mapped up front), the
// listening socket, and the kernel ring, in that order; any failure rolls
// back the earlier stages.
func New(cfg *Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		cfg:    cfg,
		probes: control.NewProbes(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.New(logging.Options{
			Name:  "hioload-echo",
			Dir:   cfg.LogDir,
			Debug: cfg.Debug,
		})
	}
	if s.metrics == nil {
		s.metrics = control.NewMetrics()
	}

	registry, err := session.NewRegistry()
	if err != nil {
		return nil, err
	}
	s.registry = registry

	listener, err := tcp.Listen(cfg.Port, cfg.Backlog)
	if err != nil {
		registry.Close()
		return nil, err
	}
	s.listener = listener

	rc, err := reactor.New(listener.FD(), registry, s.log, s.metrics)
	if err != nil {
		listener.Close()
		registry.Close()
		return nil, err
	}
	s.reactor = rc

	s.registerProbes()
	return s, nil
}

// registerProbes exposes internal state through the control plane.
func (s *Server) registerProbes() {
	s.probes.Register("active_connections", func() any {
		return s.registry.Active()
	})
	s.probes.Register("accepted_total", func() any {
		return s.metrics.Accepted.Load()
	})
	s.probes.Register("bytes_echoed", func() any {
		return s.metrics.BytesOut.Load()
	})
}

// Run drives the reactor until the context is done. It returns the
// context's error on cancellation and a fatal reactor error otherwise.
func (s *Server) Run(ctx context.Context) error {
	port, err := s.listener.Port()
	if err != nil {
		return err
	}
	s.log.Info("echo server listening",
		zap.Int("port", port),
		zap.Int("max_connections", session.MaxConnections))
	return s.reactor.Run(ctx)
}

// Port reports the bound port, useful when Config.Port was 0.
func (s *Server) Port() (int, error) {
	return s.listener.Port()
}

// Metrics returns the server's counter registry.
func (s *Server) Metrics() *control.Metrics { return s.metrics }

// Probes returns the debug probe registry.
func (s *Server) Probes() *control.Probes { return s.probes }

// Close tears down the kernel ring, the listener, and every connection
// slot. In-flight operations are not drained.
func (s *Server) Close() error {
	var first error
	if err := s.reactor.Close(); err != nil {
		first = err
	}
	if err := s.listener.Close(); err != nil && first == nil {
		first = err
	}
	if err := s.registry.Close(); err != nil && first == nil {
		first = err
	}
	s.log.Info("echo server stopped")
	_ = s.log.Sync()
	return first
}
