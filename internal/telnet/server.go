// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

// Package telnet provides a line-protocol reference host that drives the
// authentication gate.
package telnet

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/samber/oops"

	"github.com/authflux/authflux/internal/gate"
	"github.com/authflux/authflux/internal/world"
)

// Server accepts player connections and hands each one to a
// ConnectionHandler.
type Server struct {
	addr        string
	listener    net.Listener
	registry    *Registry
	coordinator *gate.Coordinator
	spawn       world.Position
	mu          sync.RWMutex
}

// NewServer creates a telnet server. The registry must be the same instance
// the coordinator uses as its host.
func NewServer(addr string, registry *Registry, coordinator *gate.Coordinator, spawn world.Position) *Server {
	return &Server{
		addr:        addr,
		registry:    registry,
		coordinator: coordinator,
		spawn:       spawn,
	}
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run starts the server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return oops.With("addr", s.addr).Wrap(err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	slog.Info("game host started", "addr", listener.Addr())

	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			slog.Debug("error closing listener", "error", err)
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				slog.Error("accept failed", "error", err)
				continue
			}
		}
		handler := NewConnectionHandler(conn, s.registry, s.coordinator, s.spawn)
		go handler.Handle(ctx)
	}
}
