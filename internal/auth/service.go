// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authflux/authflux/internal/world"
)

// Service drives the register/login protocol. Per identity the states are
// unregistered, registered-and-logged-out, and registered-and-logged-in;
// Register and Login are the only transitions that grant a session.
type Service struct {
	accounts AccountRepository
	hasher   PasswordHasher
	policy   PasswordPolicy
	logger   *slog.Logger
}

// NewService creates a Service with a discard logger.
// Returns an error if any required dependency is nil.
func NewService(accounts AccountRepository, hasher PasswordHasher, policy PasswordPolicy) (*Service, error) {
	return NewServiceWithLogger(accounts, hasher, policy, slog.New(slog.DiscardHandler))
}

// NewServiceWithLogger creates a Service with the provided logger.
func NewServiceWithLogger(accounts AccountRepository, hasher PasswordHasher, policy PasswordPolicy, logger *slog.Logger) (*Service, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Service{
		accounts: accounts,
		hasher:   hasher,
		policy:   policy,
		logger:   logger,
	}, nil
}

// Register creates an account for an unregistered identity and logs it in.
// The initial position becomes the identity's first saved position so the
// first login after a disconnect has somewhere to restore to.
//
// Input validation happens before any store call. A failed store insert
// leaves no partial state. If the account is created but the session flag
// cannot be set, the error carries code AUTH_FLAG_UPDATE_FAILED: the account
// exists and the player must retry with login, not register.
func (s *Service) Register(ctx context.Context, id ulid.ULID, username, password string, initial world.Position) error {
	if err := s.policy.Validate(password); err != nil {
		return err
	}

	exists, err := s.accounts.Exists(ctx, id)
	if err != nil {
		return oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "check registration").
			With("player_id", id.String()).
			Wrap(err)
	}
	if exists {
		return oops.Code("AUTH_ALREADY_REGISTERED").
			With("player_id", id.String()).
			Errorf("identity is already registered")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	now := time.Now().UTC()
	account := &Account{
		ID:           id,
		Username:     username,
		PasswordHash: hash,
		LoggedIn:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		// A concurrent Register for the same identity may win the insert.
		if errors.Is(err, ErrAlreadyExists) {
			return oops.Code("AUTH_ALREADY_REGISTERED").
				With("player_id", id.String()).
				Wrap(err)
		}
		return oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "create account").
			With("player_id", id.String()).
			Wrap(err)
	}

	// Best effort: a missing initial position only means the first teleport
	// falls back to the default spawn.
	if err := s.accounts.SavePosition(ctx, id, initial); err != nil {
		s.logger.Warn("failed to save initial position",
			"player_id", id.String(),
			"position", initial.String(),
			"error", err.Error(),
		)
	}

	if err := s.accounts.SetLoggedIn(ctx, id, true); err != nil {
		return oops.Code("AUTH_FLAG_UPDATE_FAILED").
			With("operation", "set logged in after registration").
			With("player_id", id.String()).
			Wrap(err)
	}

	s.logger.Info("player registered",
		"player_id", id.String(),
		"username", username,
	)
	return nil
}

// Login authenticates a registered, logged-out identity. Login on an
// already-authenticated identity is reported as AUTH_ALREADY_LOGGED_IN
// without checking the password; a wrong password leaves state unchanged.
func (s *Service) Login(ctx context.Context, id ulid.ULID, password string) error {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_NOT_REGISTERED").
				With("player_id", id.String()).
				Errorf("identity is not registered")
		}
		return oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "get account").
			With("player_id", id.String()).
			Wrap(err)
	}

	if account.LoggedIn {
		return oops.Code("AUTH_ALREADY_LOGGED_IN").
			With("player_id", id.String()).
			Errorf("identity is already logged in")
	}

	valid, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("player_id", id.String()).
			Wrap(err)
	}
	if !valid {
		return oops.Code("AUTH_WRONG_PASSWORD").
			With("player_id", id.String()).
			Errorf("wrong password")
	}

	if err := s.accounts.SetLoggedIn(ctx, id, true); err != nil {
		return oops.Code("AUTH_STORE_UNAVAILABLE").
			With("operation", "set logged in").
			With("player_id", id.String()).
			Wrap(err)
	}

	s.logger.Info("player logged in",
		"player_id", id.String(),
		"username", account.Username,
	)
	return nil
}
