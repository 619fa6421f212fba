// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

// Package postgres implements the credential store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authflux/authflux/internal/auth"
	"github.com/authflux/authflux/internal/world"
)

// opTimeout bounds every store call so no gate operation blocks
// indefinitely on an unreachable database.
const opTimeout = 5 * time.Second

// DB is the subset of pgxpool.Pool the repository needs. It is satisfied by
// *pgxpool.Pool and by pgxmock in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements auth.AccountRepository using PostgreSQL.
// The players table has one row per identity; the unique primary key makes
// concurrent Create calls race to a single winner.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates an AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Exists reports whether an account row exists.
func (r *AccountRepository) Exists(ctx context.Context, id ulid.ULID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM players WHERE id = $1)`,
		id.String(),
	).Scan(&exists)
	if err != nil {
		return false, oops.Code("ACCOUNT_EXISTS_FAILED").
			With("operation", "check account existence").
			With("player_id", id.String()).
			Wrap(err)
	}
	return exists, nil
}

// Create inserts a new account row. A unique violation on the primary key
// maps to auth.ErrAlreadyExists and writes nothing.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO players (id, username, password_hash, logged_in, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		account.ID.String(),
		account.Username,
		account.PasswordHash,
		account.LoggedIn,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("ACCOUNT_ALREADY_EXISTS").
				With("player_id", account.ID.String()).
				Wrap(auth.ErrAlreadyExists)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("player_id", account.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account row, wrapping auth.ErrNotFound when absent.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT id, username, password_hash, logged_in,
		       world, x, y, z, yaw, pitch,
		       created_at, updated_at
		FROM players
		WHERE id = $1
	`, id.String())

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("player_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account").
			With("player_id", id.String()).
			Wrap(err)
	}
	return account, nil
}

// SetLoggedIn updates the session flag. Updating a missing row is not an
// error: connect forces the flag to false before a record may exist.
func (r *AccountRepository) SetLoggedIn(ctx context.Context, id ulid.ULID, loggedIn bool) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE players SET logged_in = $2, updated_at = $3 WHERE id = $1
	`, id.String(), loggedIn, time.Now().UTC())
	if err != nil {
		return oops.Code("ACCOUNT_SET_LOGGED_IN_FAILED").
			With("operation", "update session flag").
			With("player_id", id.String()).
			With("logged_in", loggedIn).
			Wrap(err)
	}
	return nil
}

// IsLoggedIn returns the session flag; false when no row exists.
func (r *AccountRepository) IsLoggedIn(ctx context.Context, id ulid.ULID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var loggedIn bool
	err := r.db.QueryRow(ctx,
		`SELECT logged_in FROM players WHERE id = $1`,
		id.String(),
	).Scan(&loggedIn)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("ACCOUNT_IS_LOGGED_IN_FAILED").
			With("operation", "read session flag").
			With("player_id", id.String()).
			Wrap(err)
	}
	return loggedIn, nil
}

// SavePosition stores the last-known position. All six position columns are
// written together so they stay jointly present.
func (r *AccountRepository) SavePosition(ctx context.Context, id ulid.ULID, pos world.Position) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE players
		SET world = $2, x = $3, y = $4, z = $5, yaw = $6, pitch = $7, updated_at = $8
		WHERE id = $1
	`,
		id.String(),
		pos.World,
		pos.X,
		pos.Y,
		pos.Z,
		pos.Yaw,
		pos.Pitch,
		time.Now().UTC(),
	)
	if err != nil {
		return oops.Code("ACCOUNT_SAVE_POSITION_FAILED").
			With("operation", "save position").
			With("player_id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("player_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// LoadPosition returns the stored position, or nil when the account has no
// position yet or does not exist.
func (r *AccountRepository) LoadPosition(ctx context.Context, id ulid.ULID) (*world.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		worldName  *string
		x, y, z    *float64
		yaw, pitch *float32
	)
	err := r.db.QueryRow(ctx,
		`SELECT world, x, y, z, yaw, pitch FROM players WHERE id = $1`,
		id.String(),
	).Scan(&worldName, &x, &y, &z, &yaw, &pitch)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_LOAD_POSITION_FAILED").
			With("operation", "load position").
			With("player_id", id.String()).
			Wrap(err)
	}
	if worldName == nil {
		return nil, nil
	}
	return &world.Position{
		World: *worldName,
		X:     *x,
		Y:     *y,
		Z:     *z,
		Yaw:   *yaw,
		Pitch: *pitch,
	}, nil
}

// ResetAllSessions clears the session flag on every record.
func (r *AccountRepository) ResetAllSessions(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx,
		`UPDATE players SET logged_in = FALSE WHERE logged_in`,
	)
	if err != nil {
		return oops.Code("ACCOUNT_RESET_SESSIONS_FAILED").
			With("operation", "reset all sessions").
			Wrap(err)
	}
	return nil
}

// scanAccount scans a full account row. Callers handle pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		idStr        string
		username     string
		passwordHash string
		loggedIn     bool
		worldName    *string
		x, y, z      *float64
		yaw, pitch   *float32
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(
		&idStr,
		&username,
		&passwordHash,
		&loggedIn,
		&worldName,
		&x, &y, &z,
		&yaw, &pitch,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}

	var pos *world.Position
	if worldName != nil {
		pos = &world.Position{
			World: *worldName,
			X:     *x,
			Y:     *y,
			Z:     *z,
			Yaw:   *yaw,
			Pitch: *pitch,
		}
	}

	return &auth.Account{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		LoggedIn:     loggedIn,
		Position:     pos,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
