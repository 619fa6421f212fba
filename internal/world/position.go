// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

// Package world provides position types and world name resolution.
package world

import (
	"fmt"
	"math"
)

// Position is a point in a named world, with orientation.
type Position struct {
	World string
	X     float64
	Y     float64
	Z     float64
	Yaw   float32
	Pitch float32
}

// String returns a compact human-readable form for logs.
func (p Position) String() string {
	return fmt.Sprintf("%s(%.1f, %.1f, %.1f)", p.World, p.X, p.Y, p.Z)
}

// coordEpsilon is the tolerance used by ApproxEqual for coordinates and angles.
const coordEpsilon = 1e-6

// ApproxEqual reports whether two positions refer to the same world and the
// same point within floating-point tolerance.
func (p Position) ApproxEqual(other Position) bool {
	return p.World == other.World &&
		math.Abs(p.X-other.X) < coordEpsilon &&
		math.Abs(p.Y-other.Y) < coordEpsilon &&
		math.Abs(p.Z-other.Z) < coordEpsilon &&
		math.Abs(float64(p.Yaw-other.Yaw)) < coordEpsilon &&
		math.Abs(float64(p.Pitch-other.Pitch)) < coordEpsilon
}

// Resolver answers whether a world name is currently loadable by the host.
// A stored position whose world no longer resolves is unusable and callers
// must fall back to another target.
type Resolver interface {
	ResolveWorld(name string) bool
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(name string) bool

// ResolveWorld implements Resolver.
func (f ResolverFunc) ResolveWorld(name string) bool { return f(name) }
