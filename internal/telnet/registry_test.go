// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

package telnet

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authflux/authflux/internal/world"
)

var testSpawn = world.Position{World: "world", X: 0.5, Y: 64, Z: 0.5}

func TestRegistry_AttachDetach(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	playerID := ulid.Make()

	_, err := registry.PositionOf(ctx, playerID)
	require.Error(t, err, "unattached player must not resolve")

	registry.Attach(playerID, testSpawn, func(string) {})

	pos, err := registry.PositionOf(ctx, playerID)
	require.NoError(t, err)
	assert.True(t, pos.ApproxEqual(testSpawn))

	registry.Detach(playerID)
	_, err = registry.PositionOf(ctx, playerID)
	require.Error(t, err)
}

func TestRegistry_FreezeUnfreeze(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	playerID := ulid.Make()
	registry.Attach(playerID, testSpawn, func(string) {})

	assert.False(t, registry.Frozen(playerID))

	require.NoError(t, registry.Freeze(ctx, playerID))
	assert.True(t, registry.Frozen(playerID))

	require.NoError(t, registry.Unfreeze(ctx, playerID))
	assert.False(t, registry.Frozen(playerID))
}

func TestRegistry_FreezeUnknownPlayer(t *testing.T) {
	registry := NewRegistry()
	require.Error(t, registry.Freeze(context.Background(), ulid.Make()))
}

func TestRegistry_Teleport(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	playerID := ulid.Make()
	registry.Attach(playerID, testSpawn, func(string) {})

	target := world.Position{World: "world", X: 10, Y: 70, Z: -10}
	require.NoError(t, registry.Teleport(ctx, playerID, target))

	pos, err := registry.PositionOf(ctx, playerID)
	require.NoError(t, err)
	assert.True(t, pos.ApproxEqual(target))
}

func TestRegistry_Send(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()
	playerID := ulid.Make()

	var received []string
	registry.Attach(playerID, testSpawn, func(msg string) { received = append(received, msg) })

	require.NoError(t, registry.Send(ctx, playerID, "hello"))
	assert.Equal(t, []string{"hello"}, received)

	require.Error(t, registry.Send(ctx, ulid.Make(), "lost"))
}

func TestIdentityFor_StableAndCaseInsensitive(t *testing.T) {
	assert.Equal(t, identityFor("Steve"), identityFor("steve"), "identity must be case-insensitive")
	assert.Equal(t, identityFor("steve"), identityFor("steve"), "identity must be stable")
	assert.NotEqual(t, identityFor("steve"), identityFor("alex"))
}
