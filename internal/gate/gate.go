// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

// Package gate coordinates the authentication gate around player presence:
// freeze on connect, register or login against the credential store, then
// unfreeze and restore position. Movement is refused until the store says
// the identity is logged in, so the gate fails closed when the store is
// unreachable.
package gate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authflux/authflux/internal/auth"
	"github.com/authflux/authflux/internal/messages"
	"github.com/authflux/authflux/internal/observability"
	"github.com/authflux/authflux/internal/world"
	"github.com/authflux/authflux/pkg/errutil"
)

// Host is the game host surface the gate drives. Freeze and Unfreeze toggle
// the host-side movement effect; the authoritative decision stays with
// HandleMove, so a host that cannot freeze still cannot leak movement.
type Host interface {
	Freeze(ctx context.Context, id ulid.ULID) error
	Unfreeze(ctx context.Context, id ulid.ULID) error
	Teleport(ctx context.Context, id ulid.ULID, pos world.Position) error
	PositionOf(ctx context.Context, id ulid.ULID) (world.Position, error)
	Send(ctx context.Context, id ulid.ULID, msg string) error
}

// Coordinator runs the authentication gate for every connected identity.
type Coordinator struct {
	host     Host
	service  *auth.Service
	tracker  *auth.Tracker
	accounts auth.AccountRepository
	catalog  messages.Catalog
	policy   auth.PasswordPolicy
	spawn    world.Position
	resolver world.Resolver
	metrics  *observability.Metrics
	logger   *slog.Logger

	locks *keyedMutex

	// provisional holds the position each identity occupied at connect,
	// used as the first saved position on registration. The player is
	// frozen between connect and authentication, so it stays accurate.
	provisionalMu sync.Mutex
	provisional   map[ulid.ULID]world.Position
}

// Options configures a Coordinator.
type Options struct {
	Host     Host
	Service  *auth.Service
	Tracker  *auth.Tracker
	Accounts auth.AccountRepository
	Catalog  messages.Catalog
	Policy   auth.PasswordPolicy
	Spawn    world.Position
	// Resolver may be nil; every stored world is then considered loadable.
	Resolver world.Resolver
	// Metrics may be nil; events are then not recorded.
	Metrics *observability.Metrics
	// Logger may be nil; a discard logger is used.
	Logger *slog.Logger
}

// New creates a Coordinator. Host, Service, Tracker, and Accounts are
// required.
func New(opts Options) (*Coordinator, error) {
	if opts.Host == nil {
		return nil, oops.Errorf("host is required")
	}
	if opts.Service == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if opts.Tracker == nil {
		return nil, oops.Errorf("session tracker is required")
	}
	if opts.Accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		host:        opts.Host,
		service:     opts.Service,
		tracker:     opts.Tracker,
		accounts:    opts.Accounts,
		catalog:     opts.Catalog,
		policy:      opts.Policy,
		spawn:       opts.Spawn,
		resolver:    opts.Resolver,
		metrics:     opts.Metrics,
		logger:      logger,
		locks:       newKeyedMutex(),
		provisional: make(map[ulid.ULID]world.Position),
	}, nil
}

// HandleConnect freezes the identity, clears any stale session flag, and
// sends the register or login prompt. The connect position is remembered so
// registration can persist it as the identity's first position.
func (c *Coordinator) HandleConnect(ctx context.Context, id ulid.ULID) error {
	release := c.locks.lock(id)
	defer release()

	c.countConnection("connect")

	if pos, err := c.host.PositionOf(ctx, id); err != nil {
		errutil.LogWarn(c.logger, "failed to capture connect position", err)
	} else {
		c.provisionalMu.Lock()
		c.provisional[id] = pos
		c.provisionalMu.Unlock()
	}

	if err := c.host.Freeze(ctx, id); err != nil {
		// Movement is still refused by HandleMove; the host effect is
		// cosmetic.
		errutil.LogWarn(c.logger, "failed to freeze player on connect", err)
	}

	// A session flag left true by an unclean disconnect must not grant a
	// session to the reconnecting client.
	if err := c.accounts.SetLoggedIn(ctx, id, false); err != nil {
		c.countStoreFailure("clear session flag")
		c.send(ctx, id, c.catalog.StoreError)
		return oops.Code("GATE_CONNECT_FAILED").
			With("player_id", id.String()).
			Wrap(err)
	}

	registered, err := c.accounts.Exists(ctx, id)
	if err != nil {
		c.countStoreFailure("check registration")
		c.send(ctx, id, c.catalog.StoreError)
		return oops.Code("GATE_CONNECT_FAILED").
			With("player_id", id.String()).
			Wrap(err)
	}

	if registered {
		c.send(ctx, id, c.catalog.JoinReturningPlayer)
	} else {
		c.send(ctx, id, c.catalog.JoinNewPlayer)
	}

	c.logger.Info("player connected",
		"player_id", id.String(),
		"registered", registered,
	)
	return nil
}

// HandleMove reports whether the identity may move. Unauthenticated
// identities are refused with a prompt; a store failure refuses movement.
func (c *Coordinator) HandleMove(ctx context.Context, id ulid.ULID) bool {
	authed, err := c.tracker.IsAuthenticated(ctx, id)
	if err != nil {
		c.countStoreFailure("check session")
		c.countSuppressedMove("store_error")
		errutil.LogError(c.logger, "refusing movement, session check failed", err)
		return false
	}
	if authed {
		return true
	}

	registered, err := c.accounts.Exists(ctx, id)
	switch {
	case err != nil:
		c.countStoreFailure("check registration")
		c.countSuppressedMove("store_error")
	case registered:
		c.countSuppressedMove("not_logged_in")
		c.send(ctx, id, c.catalog.MoveNotLoggedIn)
	default:
		c.countSuppressedMove("not_registered")
		c.send(ctx, id, c.catalog.MoveNotRegistered)
	}
	return false
}

// HandleDisconnect persists the identity's position and ends its session.
// An unauthenticated identity leaves no trace beyond dropping its
// provisional position.
func (c *Coordinator) HandleDisconnect(ctx context.Context, id ulid.ULID) error {
	release := c.locks.lock(id)
	defer release()

	c.countConnection("disconnect")

	c.provisionalMu.Lock()
	delete(c.provisional, id)
	c.provisionalMu.Unlock()

	authed, err := c.tracker.IsAuthenticated(ctx, id)
	if err != nil {
		c.countStoreFailure("check session")
		return oops.Code("GATE_DISCONNECT_FAILED").
			With("player_id", id.String()).
			Wrap(err)
	}
	if !authed {
		return nil
	}

	if pos, posErr := c.host.PositionOf(ctx, id); posErr != nil {
		errutil.LogWarn(c.logger, "failed to read position on disconnect", posErr)
	} else if saveErr := c.accounts.SavePosition(ctx, id, pos); saveErr != nil {
		c.countStoreFailure("save position")
		errutil.LogWarn(c.logger, "failed to save position on disconnect", saveErr)
	}

	if err := c.accounts.SetLoggedIn(ctx, id, false); err != nil {
		c.countStoreFailure("clear session flag")
		return oops.Code("GATE_DISCONNECT_FAILED").
			With("player_id", id.String()).
			Wrap(err)
	}

	c.logger.Info("player disconnected", "player_id", id.String())
	return nil
}

// HandleCommand dispatches the register and login commands. Any other
// command returns GATE_UNKNOWN_COMMAND so the host can fall through to its
// own handling.
func (c *Coordinator) HandleCommand(ctx context.Context, id ulid.ULID, username, command string, args []string) error {
	switch command {
	case "register":
		c.register(ctx, id, username, args)
		return nil
	case "login":
		c.login(ctx, id, args)
		return nil
	default:
		return oops.Code("GATE_UNKNOWN_COMMAND").
			With("command", command).
			Errorf("unknown command %q", command)
	}
}

func (c *Coordinator) register(ctx context.Context, id ulid.ULID, username string, args []string) {
	if len(args) != 1 {
		c.countAttempt("register", "usage")
		c.send(ctx, id, c.catalog.RegisterUsage)
		return
	}

	release := c.locks.lock(id)
	defer release()

	err := c.service.Register(ctx, id, username, args[0], c.provisionalOf(ctx, id))
	if err == nil {
		c.countAttempt("register", "success")
		c.unfreezeAndRestore(ctx, id)
		c.send(ctx, id, c.catalog.RegisterSuccess)
		return
	}

	code := errutil.Code(err)
	c.countAttempt("register", outcomeLabel(code))
	switch code {
	case "AUTH_INVALID_PASSWORD":
		c.send(ctx, id, c.catalog.FormatPasswordLength(c.policy.MinLength, c.policy.MaxLength))
	case "AUTH_ALREADY_REGISTERED":
		c.send(ctx, id, c.catalog.AlreadyRegistered)
	case "AUTH_FLAG_UPDATE_FAILED":
		// The account exists but the session was not granted; register
		// would now fail, so steer the player to login.
		errutil.LogError(c.logger, "registration left player logged out", err)
		c.send(ctx, id, c.catalog.RegisterRetryLogin)
	default:
		c.countStoreFailure("register")
		errutil.LogError(c.logger, "registration failed", err)
		c.send(ctx, id, c.catalog.StoreError)
	}
}

func (c *Coordinator) login(ctx context.Context, id ulid.ULID, args []string) {
	if len(args) != 1 {
		c.countAttempt("login", "usage")
		c.send(ctx, id, c.catalog.LoginUsage)
		return
	}

	release := c.locks.lock(id)
	defer release()

	err := c.service.Login(ctx, id, args[0])
	if err == nil {
		c.countAttempt("login", "success")
		c.unfreezeAndRestore(ctx, id)
		c.send(ctx, id, c.catalog.LoginSuccess)
		return
	}

	code := errutil.Code(err)
	c.countAttempt("login", outcomeLabel(code))
	switch code {
	case "AUTH_NOT_REGISTERED":
		c.send(ctx, id, c.catalog.NotRegistered)
	case "AUTH_ALREADY_LOGGED_IN":
		c.send(ctx, id, c.catalog.AlreadyLoggedIn)
	case "AUTH_WRONG_PASSWORD":
		c.logger.Warn("wrong password attempt", "player_id", id.String())
		c.send(ctx, id, c.catalog.WrongPassword)
	default:
		c.countStoreFailure("login")
		errutil.LogError(c.logger, "login failed", err)
		c.send(ctx, id, c.catalog.StoreError)
	}
}

// unfreezeAndRestore teleports the identity to its saved position, falling
// back to the default spawn when none is stored, then lifts the freeze. A
// failed teleport leaves the player where they stand.
func (c *Coordinator) unfreezeAndRestore(ctx context.Context, id ulid.ULID) {
	target := c.spawn
	saved, err := c.accounts.LoadPosition(ctx, id)
	if err != nil {
		c.countStoreFailure("load position")
		errutil.LogWarn(c.logger, "failed to load saved position, using spawn", err)
	} else if saved != nil {
		if c.resolver != nil && !c.resolver.ResolveWorld(saved.World) {
			c.logger.Warn("saved world no longer loadable, using spawn",
				"player_id", id.String(),
				"world", saved.World,
			)
		} else {
			target = *saved
		}
	}

	if err := c.host.Teleport(ctx, id, target); err != nil {
		errutil.LogWarn(c.logger, "failed to teleport after authentication", err)
	}
	if err := c.host.Unfreeze(ctx, id); err != nil {
		errutil.LogWarn(c.logger, "failed to unfreeze after authentication", err)
	}
}

// provisionalOf returns the position captured at connect, asking the host
// directly when none was captured.
func (c *Coordinator) provisionalOf(ctx context.Context, id ulid.ULID) world.Position {
	c.provisionalMu.Lock()
	pos, ok := c.provisional[id]
	c.provisionalMu.Unlock()
	if ok {
		return pos
	}
	if hostPos, err := c.host.PositionOf(ctx, id); err == nil {
		return hostPos
	}
	return c.spawn
}

func (c *Coordinator) send(ctx context.Context, id ulid.ULID, msg string) {
	if err := c.host.Send(ctx, id, msg); err != nil {
		errutil.LogWarn(c.logger, "failed to send message to player", err)
	}
}

func (c *Coordinator) countAttempt(command, outcome string) {
	if c.metrics != nil {
		c.metrics.AuthAttemptsTotal.WithLabelValues(command, outcome).Inc()
	}
}

func (c *Coordinator) countStoreFailure(operation string) {
	if c.metrics != nil {
		c.metrics.StoreFailuresTotal.WithLabelValues(operation).Inc()
	}
}

func (c *Coordinator) countSuppressedMove(reason string) {
	if c.metrics != nil {
		c.metrics.MovesSuppressedTotal.WithLabelValues(reason).Inc()
	}
}

func (c *Coordinator) countConnection(event string) {
	if c.metrics != nil {
		c.metrics.ConnectionsTotal.WithLabelValues(event).Inc()
	}
}

// outcomeLabel turns an error code into a stable metric label.
func outcomeLabel(code string) string {
	switch code {
	case "AUTH_INVALID_PASSWORD":
		return "invalid_password"
	case "AUTH_ALREADY_REGISTERED":
		return "already_registered"
	case "AUTH_NOT_REGISTERED":
		return "not_registered"
	case "AUTH_ALREADY_LOGGED_IN":
		return "already_logged_in"
	case "AUTH_WRONG_PASSWORD":
		return "wrong_password"
	case "AUTH_FLAG_UPDATE_FAILED":
		return "flag_update_failed"
	default:
		return "error"
	}
}
