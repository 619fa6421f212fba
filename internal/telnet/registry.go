// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

package telnet

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authflux/authflux/internal/world"
)

// Registry tracks connected players and their host-side state. It is the
// gate.Host implementation for the telnet host: freeze flags, positions,
// and message delivery all go through here.
type Registry struct {
	mu      sync.RWMutex
	players map[ulid.ULID]*playerState
}

type playerState struct {
	pos    world.Position
	frozen bool
	sink   func(msg string)
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{players: make(map[ulid.ULID]*playerState)}
}

// Attach registers a connected player with its starting position and
// message sink. Attaching an already-attached identity replaces its state.
func (r *Registry) Attach(id ulid.ULID, pos world.Position, sink func(msg string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[id] = &playerState{pos: pos, sink: sink}
}

// Detach removes a player. Detaching an unknown identity is a no-op.
func (r *Registry) Detach(id ulid.ULID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, id)
}

// Freeze marks the player immobile on the host side.
func (r *Registry) Freeze(_ context.Context, id ulid.ULID) error {
	return r.setFrozen(id, true)
}

// Unfreeze lifts the host-side freeze.
func (r *Registry) Unfreeze(_ context.Context, id ulid.ULID) error {
	return r.setFrozen(id, false)
}

func (r *Registry) setFrozen(id ulid.ULID, frozen bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.players[id]
	if !ok {
		return unknownPlayer(id)
	}
	state.frozen = frozen
	return nil
}

// Frozen reports the host-side freeze flag.
func (r *Registry) Frozen(id ulid.ULID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.players[id]
	return ok && state.frozen
}

// Teleport moves the player to pos.
func (r *Registry) Teleport(_ context.Context, id ulid.ULID, pos world.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.players[id]
	if !ok {
		return unknownPlayer(id)
	}
	state.pos = pos
	return nil
}

// PositionOf returns the player's current position.
func (r *Registry) PositionOf(_ context.Context, id ulid.ULID) (world.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.players[id]
	if !ok {
		return world.Position{}, unknownPlayer(id)
	}
	return state.pos, nil
}

// Send delivers a message to the player's connection.
func (r *Registry) Send(_ context.Context, id ulid.ULID, msg string) error {
	r.mu.RLock()
	state, ok := r.players[id]
	r.mu.RUnlock()
	if !ok {
		return unknownPlayer(id)
	}
	state.sink(msg)
	return nil
}

// SetPosition records a movement the gate has allowed.
func (r *Registry) SetPosition(id ulid.ULID, pos world.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.players[id]
	if !ok {
		return unknownPlayer(id)
	}
	state.pos = pos
	return nil
}

func unknownPlayer(id ulid.ULID) error {
	return oops.Code("HOST_UNKNOWN_PLAYER").
		With("player_id", id.String()).
		Errorf("player is not connected")
}
