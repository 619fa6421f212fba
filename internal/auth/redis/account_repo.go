// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

// Package redis implements the credential store on Redis.
//
// Each account is one JSON value under a per-identity key. Create uses
// SET NX so concurrent registrations for the same identity race to a single
// winner; all other same-identity operations are serialized by the gate, so
// read-modify-write updates here do not need transactions.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/authflux/authflux/internal/auth"
	"github.com/authflux/authflux/internal/world"
)

// opTimeout bounds every store call.
const opTimeout = 5 * time.Second

const keyPrefix = "authflux"

// accountKey returns the Redis key for an account record.
func accountKey(id ulid.ULID) string {
	return keyPrefix + ":player:" + id.String()
}

// accountRecord is the persisted JSON shape of an account.
type accountRecord struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"password_hash"`
	LoggedIn     bool            `json:"logged_in"`
	Position     *world.Position `json:"position,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// AccountRepository implements auth.AccountRepository using Redis.
type AccountRepository struct {
	client *redis.Client
}

// New connects to Redis at the given URL and verifies the connection.
func New(ctx context.Context, url string) (*AccountRepository, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("REDIS_CONFIG_INVALID").
			With("operation", "parse redis url").
			Wrap(err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, oops.Code("REDIS_CONNECT_FAILED").
			With("operation", "ping").
			Wrap(err)
	}

	return &AccountRepository{client: client}, nil
}

// NewWithClient creates a repository with an existing client (for testing).
func NewWithClient(client *redis.Client) *AccountRepository {
	return &AccountRepository{client: client}
}

// Close closes the Redis connection.
func (r *AccountRepository) Close() error {
	return r.client.Close() //nolint:wrapcheck // close error is terminal, no context to add
}

// Exists reports whether an account record exists.
func (r *AccountRepository) Exists(ctx context.Context, id ulid.ULID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	n, err := r.client.Exists(ctx, accountKey(id)).Result()
	if err != nil {
		return false, oops.Code("ACCOUNT_EXISTS_FAILED").
			With("operation", "check account existence").
			With("player_id", id.String()).
			Wrap(err)
	}
	return n > 0, nil
}

// Create stores a new account with SET NX; the loser of a concurrent create
// receives auth.ErrAlreadyExists.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := json.Marshal(recordFromAccount(account))
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "marshal account").
			Wrap(err)
	}

	set, err := r.client.SetNX(ctx, accountKey(account.ID), data, 0).Result()
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("player_id", account.ID.String()).
			Wrap(err)
	}
	if !set {
		return oops.Code("ACCOUNT_ALREADY_EXISTS").
			With("player_id", account.ID.String()).
			Wrap(auth.ErrAlreadyExists)
	}
	return nil
}

// GetByID retrieves an account, wrapping auth.ErrNotFound when absent.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.get(ctx, id)
}

// SetLoggedIn updates the session flag. Missing records are ignored, which
// matches connect forcing the flag to false before registration.
func (r *AccountRepository) SetLoggedIn(ctx context.Context, id ulid.ULID, loggedIn bool) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.update(ctx, id, "update session flag", true, func(rec *accountRecord) {
		rec.LoggedIn = loggedIn
	})
}

// IsLoggedIn returns the session flag; false when no record exists.
func (r *AccountRepository) IsLoggedIn(ctx context.Context, id ulid.ULID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	account, err := r.get(ctx, id)
	if errors.Is(err, auth.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return account.LoggedIn, nil
}

// SavePosition stores the last-known position.
func (r *AccountRepository) SavePosition(ctx context.Context, id ulid.ULID, pos world.Position) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.update(ctx, id, "save position", false, func(rec *accountRecord) {
		rec.Position = &pos
	})
}

// LoadPosition returns the stored position, or nil when the account has no
// position yet or does not exist.
func (r *AccountRepository) LoadPosition(ctx context.Context, id ulid.ULID) (*world.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	account, err := r.get(ctx, id)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return account.Position, nil
}

// ResetAllSessions clears the session flag on every stored record by
// scanning the account keyspace.
func (r *AccountRepository) ResetAllSessions(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	iter := r.client.Scan(ctx, 0, keyPrefix+":player:*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return oops.Code("ACCOUNT_RESET_SESSIONS_FAILED").
				With("operation", "reset all sessions").
				With("key", key).
				Wrap(err)
		}
		var rec accountRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return oops.Code("ACCOUNT_CORRUPT").
				With("operation", "reset all sessions").
				With("key", key).
				Wrap(err)
		}
		if !rec.LoggedIn {
			continue
		}
		rec.LoggedIn = false
		rec.UpdatedAt = time.Now().UTC()
		out, err := json.Marshal(rec)
		if err != nil {
			return oops.Code("ACCOUNT_RESET_SESSIONS_FAILED").
				With("operation", "reset all sessions").
				Wrap(err)
		}
		if err := r.client.Set(ctx, key, out, 0).Err(); err != nil {
			return oops.Code("ACCOUNT_RESET_SESSIONS_FAILED").
				With("operation", "reset all sessions").
				With("key", key).
				Wrap(err)
		}
	}
	if err := iter.Err(); err != nil {
		return oops.Code("ACCOUNT_RESET_SESSIONS_FAILED").
			With("operation", "scan accounts").
			Wrap(err)
	}
	return nil
}

func (r *AccountRepository) get(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	data, err := r.client.Get(ctx, accountKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, oops.Code("ACCOUNT_NOT_FOUND").
				With("player_id", id.String()).
				Wrap(auth.ErrNotFound)
		}
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account").
			With("player_id", id.String()).
			Wrap(err)
	}

	var rec accountRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, oops.Code("ACCOUNT_CORRUPT").
			With("operation", "unmarshal account").
			With("player_id", id.String()).
			Wrap(err)
	}
	return rec.toAccount()
}

// update applies a mutation to a stored record. When missingOK is true a
// missing record is a silent no-op (SetLoggedIn at connect may precede
// registration); otherwise it surfaces auth.ErrNotFound.
func (r *AccountRepository) update(ctx context.Context, id ulid.ULID, op string, missingOK bool, mutate func(*accountRecord)) error {
	data, err := r.client.Get(ctx, accountKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			if missingOK {
				return nil
			}
			return oops.Code("ACCOUNT_NOT_FOUND").
				With("player_id", id.String()).
				Wrap(auth.ErrNotFound)
		}
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", op).
			With("player_id", id.String()).
			Wrap(err)
	}

	var rec accountRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return oops.Code("ACCOUNT_CORRUPT").
			With("operation", op).
			With("player_id", id.String()).
			Wrap(err)
	}

	mutate(&rec)
	rec.UpdatedAt = time.Now().UTC()

	out, err := json.Marshal(rec)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", op).
			Wrap(err)
	}
	if err := r.client.Set(ctx, accountKey(id), out, 0).Err(); err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", op).
			With("player_id", id.String()).
			Wrap(err)
	}
	return nil
}

func recordFromAccount(account *auth.Account) accountRecord {
	return accountRecord{
		ID:           account.ID.String(),
		Username:     account.Username,
		PasswordHash: account.PasswordHash,
		LoggedIn:     account.LoggedIn,
		Position:     account.Position,
		CreatedAt:    account.CreatedAt,
		UpdatedAt:    account.UpdatedAt,
	}
}

func (rec accountRecord) toAccount() (*auth.Account, error) {
	id, err := ulid.Parse(rec.ID)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("id", rec.ID).
			Wrap(err)
	}
	return &auth.Account{
		ID:           id,
		Username:     rec.Username,
		PasswordHash: rec.PasswordHash,
		LoggedIn:     rec.LoggedIn,
		Position:     rec.Position,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
