// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

package auth

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Tracker answers whether an identity currently has an authenticated
// session. It always delegates to the credential store rather than caching:
// the store's flag is the single source of truth, so in-memory and persisted
// state cannot diverge across crashes and restarts.
type Tracker struct {
	accounts AccountRepository
}

// NewTracker creates a Tracker.
func NewTracker(accounts AccountRepository) (*Tracker, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	return &Tracker{accounts: accounts}, nil
}

// IsAuthenticated reports whether the identity is logged in. An unregistered
// identity is never authenticated. A store failure is returned alongside
// false so callers gate closed.
func (t *Tracker) IsAuthenticated(ctx context.Context, id ulid.ULID) (bool, error) {
	loggedIn, err := t.accounts.IsLoggedIn(ctx, id)
	if err != nil {
		return false, oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "check session").
			With("player_id", id.String()).
			Wrap(err)
	}
	return loggedIn, nil
}
