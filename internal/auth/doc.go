// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

// Package auth implements the authentication core of AuthFlux: player
// account records, password hashing, the register/login protocol, and the
// session tracker that gates player actions.
//
// The credential store is consumed through the AccountRepository interface;
// concrete implementations live in the postgres and redis subpackages. The
// store's logged_in flag is the single source of truth for session state,
// so no session survives a process restart and a crash cannot leave a
// player authenticated.
package auth
