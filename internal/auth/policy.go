// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

package auth

import "github.com/samber/oops"

// Default password length bounds, inclusive.
const (
	DefaultMinPasswordLength = 4
	DefaultMaxPasswordLength = 24
)

// PasswordPolicy is the inclusive length bound applied at registration.
type PasswordPolicy struct {
	MinLength int
	MaxLength int
}

// DefaultPasswordPolicy returns the default [4,24] policy.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength: DefaultMinPasswordLength,
		MaxLength: DefaultMaxPasswordLength,
	}
}

// Validate checks a candidate password against the policy. Passwords exactly
// at either bound are accepted.
func (p PasswordPolicy) Validate(password string) error {
	if len(password) < p.MinLength || len(password) > p.MaxLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("min", p.MinLength).
			With("max", p.MaxLength).
			Errorf("password length must be between %d and %d characters", p.MinLength, p.MaxLength)
	}
	return nil
}
