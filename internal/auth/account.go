// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/authflux/authflux/internal/world"
)

// Account is one player credential record. A record exists iff the identity
// has registered at least once; records are never deleted.
type Account struct {
	ID           ulid.ULID
	Username     string
	PasswordHash string
	LoggedIn     bool
	Position     *world.Position
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccountRepository is the credential store contract. Every operation may
// fail with a store error (unavailable connection, timeout); implementations
// bound each call with a timeout so no operation blocks indefinitely.
type AccountRepository interface {
	// Exists reports whether an account record exists for the identity.
	Exists(ctx context.Context, id ulid.ULID) (bool, error)

	// Create inserts a new account. The insert is atomic with respect to
	// concurrent Create calls for the same identity; the loser receives an
	// error wrapping ErrAlreadyExists and writes nothing.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account, wrapping ErrNotFound if absent.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// SetLoggedIn updates the session flag unconditionally.
	SetLoggedIn(ctx context.Context, id ulid.ULID, loggedIn bool) error

	// IsLoggedIn returns the session flag; false with no error when the
	// account does not exist.
	IsLoggedIn(ctx context.Context, id ulid.ULID) (bool, error)

	// SavePosition stores the last-known position for the identity.
	SavePosition(ctx context.Context, id ulid.ULID, pos world.Position) error

	// LoadPosition returns the stored position, or nil when none has been
	// captured yet.
	LoadPosition(ctx context.Context, id ulid.ULID) (*world.Position, error)

	// ResetAllSessions clears the session flag on every record. Called once
	// at process startup: no session survives a restart.
	ResetAllSessions(ctx context.Context) error
}
