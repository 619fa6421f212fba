// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

package telnet

import (
	"bufio"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/authflux/authflux/internal/gate"
	"github.com/authflux/authflux/internal/world"
)

// ConnectionHandler handles a single player connection.
type ConnectionHandler struct {
	conn        net.Conn
	reader      *bufio.Reader
	registry    *Registry
	coordinator *gate.Coordinator
	spawn       world.Position

	playerID ulid.ULID
	username string
	attached bool
	quitting bool
}

// NewConnectionHandler creates a new handler.
func NewConnectionHandler(conn net.Conn, registry *Registry, coordinator *gate.Coordinator, spawn world.Position) *ConnectionHandler {
	return &ConnectionHandler{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		registry:    registry,
		coordinator: coordinator,
		spawn:       spawn,
	}
}

// identityFor derives a stable identity from a player name so the same name
// resolves to the same stored account across restarts.
func identityFor(name string) ulid.ULID {
	sum := sha256.Sum256([]byte(strings.ToLower(name)))
	var id ulid.ULID
	copy(id[:], sum[:len(id)])
	return id
}

// Handle processes the connection until closed.
func (h *ConnectionHandler) Handle(ctx context.Context) {
	defer func() {
		if h.attached {
			if err := h.coordinator.HandleDisconnect(ctx, h.playerID); err != nil {
				slog.Error("disconnect handling failed",
					"player_id", h.playerID.String(),
					"error", err,
				)
			}
			h.registry.Detach(h.playerID)
		}
		if err := h.conn.Close(); err != nil {
			slog.Debug("error closing connection", "error", err)
		}
	}()

	h.send("Welcome to AuthFlux.")
	h.send("Use: hello <name>")

	lineCh := make(chan string)
	// Buffered so the reader goroutine can exit after Handle returns.
	errCh := make(chan error, 1)

	go func() {
		for {
			line, err := h.reader.ReadString('\n')
			if err != nil {
				errCh <- err
				return
			}
			select {
			case lineCh <- strings.TrimSpace(line):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-errCh:
			if !errors.Is(err, io.EOF) {
				slog.Debug("connection read error",
					"remote", h.conn.RemoteAddr().String(),
					"error", err,
				)
			}
			return

		case line := <-lineCh:
			h.processLine(ctx, line)
			if h.quitting {
				return
			}
		}
	}
}

func (h *ConnectionHandler) processLine(ctx context.Context, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "hello":
		h.handleHello(ctx, args)
	case "register", "login":
		h.handleAuth(ctx, cmd, args)
	case "move":
		h.handleMove(ctx, args)
	case "where":
		h.handleWhere(ctx)
	case "quit":
		h.handleQuit()
	default:
		h.send("Unknown command: " + cmd)
	}
}

func (h *ConnectionHandler) handleHello(ctx context.Context, args []string) {
	if h.attached {
		h.send("You have already introduced yourself.")
		return
	}
	if len(args) != 1 {
		h.send("Usage: hello <name>")
		return
	}

	h.username = args[0]
	h.playerID = identityFor(h.username)
	h.registry.Attach(h.playerID, h.spawn, h.send)
	h.attached = true

	if err := h.coordinator.HandleConnect(ctx, h.playerID); err != nil {
		slog.Error("connect handling failed",
			"player_id", h.playerID.String(),
			"error", err,
		)
	}
}

func (h *ConnectionHandler) handleAuth(ctx context.Context, cmd string, args []string) {
	if !h.attached {
		h.send("Introduce yourself first: hello <name>")
		return
	}
	if err := h.coordinator.HandleCommand(ctx, h.playerID, h.username, cmd, args); err != nil {
		slog.Error("auth command failed",
			"player_id", h.playerID.String(),
			"command", cmd,
			"error", err,
		)
	}
}

func (h *ConnectionHandler) handleMove(ctx context.Context, args []string) {
	if !h.attached {
		h.send("Introduce yourself first: hello <name>")
		return
	}
	if len(args) != 3 {
		h.send("Usage: move <x> <y> <z>")
		return
	}

	coords := make([]float64, 3)
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			h.send("Usage: move <x> <y> <z>")
			return
		}
		coords[i] = v
	}

	if !h.coordinator.HandleMove(ctx, h.playerID) {
		// The gate has already told the player why.
		return
	}

	current, err := h.registry.PositionOf(ctx, h.playerID)
	if err != nil {
		slog.Error("position lookup failed",
			"player_id", h.playerID.String(),
			"error", err,
		)
		return
	}
	current.X, current.Y, current.Z = coords[0], coords[1], coords[2]
	if err := h.registry.SetPosition(h.playerID, current); err != nil {
		slog.Error("position update failed",
			"player_id", h.playerID.String(),
			"error", err,
		)
		return
	}
	h.send("You are now at " + current.String())
}

func (h *ConnectionHandler) handleWhere(ctx context.Context) {
	if !h.attached {
		h.send("Introduce yourself first: hello <name>")
		return
	}
	pos, err := h.registry.PositionOf(ctx, h.playerID)
	if err != nil {
		slog.Error("position lookup failed",
			"player_id", h.playerID.String(),
			"error", err,
		)
		return
	}
	h.send("You are at " + pos.String())
}

func (h *ConnectionHandler) handleQuit() {
	h.send("Goodbye!")
	h.quitting = true
}

func (h *ConnectionHandler) send(msg string) {
	if _, err := fmt.Fprintln(h.conn, msg); err != nil {
		slog.Debug("failed to send message to client",
			"remote", h.conn.RemoteAddr().String(),
			"error", err,
		)
	}
}
