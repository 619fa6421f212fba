// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested account does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when creating an account that already exists.
var ErrAlreadyExists = errors.New("already exists")
