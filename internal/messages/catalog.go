// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

// Package messages holds the user-facing outcome strings, loadable from a
// YAML file so operators can reword them without rebuilding.
package messages

import (
	"os"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Catalog contains every player-visible message the gate produces.
type Catalog struct {
	RegisterUsage         string `yaml:"register-usage"`
	PasswordLengthInvalid string `yaml:"password-length-invalid"`
	AlreadyRegistered     string `yaml:"register-already-registered"`
	RegisterSuccess       string `yaml:"register-success"`
	RegisterRetryLogin    string `yaml:"register-retry-login"`
	LoginUsage            string `yaml:"login-usage"`
	NotRegistered         string `yaml:"login-not-registered"`
	AlreadyLoggedIn       string `yaml:"login-already-logged-in"`
	LoginSuccess          string `yaml:"login-success"`
	WrongPassword         string `yaml:"login-wrong-password"`
	JoinNewPlayer         string `yaml:"join-new-player"`
	JoinReturningPlayer   string `yaml:"join-returning-player"`
	MoveNotRegistered     string `yaml:"move-not-registered"`
	MoveNotLoggedIn       string `yaml:"move-not-logged-in"`
	StoreError            string `yaml:"store-error"`
}

// Default returns the built-in catalog.
func Default() Catalog {
	return Catalog{
		RegisterUsage:         "Usage: register <password>",
		PasswordLengthInvalid: "Password must be between %min% and %max% characters.",
		AlreadyRegistered:     "You are already registered. Use: login <password>",
		RegisterSuccess:       "Registration successful. Welcome!",
		RegisterRetryLogin:    "Registration succeeded, but logging you in failed. Please try: login <password>",
		LoginUsage:            "Usage: login <password>",
		NotRegistered:         "You are not registered. Use: register <password>",
		AlreadyLoggedIn:       "You are already logged in.",
		LoginSuccess:          "Login successful. Welcome back!",
		WrongPassword:         "Wrong password.",
		JoinNewPlayer:         "Welcome! Please register with: register <password>",
		JoinReturningPlayer:   "Welcome back! Please log in with: login <password>",
		MoveNotRegistered:     "You cannot move yet. Please register with: register <password>",
		MoveNotLoggedIn:       "You cannot move yet. Please log in with: login <password>",
		StoreError:            "A server error occurred. Please try again later.",
	}
}

// Load reads a YAML catalog file over the defaults. Keys absent from the
// file keep their built-in text.
func Load(path string) (Catalog, error) {
	catalog := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return catalog, oops.Code("MESSAGES_LOAD_FAILED").
			With("path", path).
			Wrap(err)
	}
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return Default(), oops.Code("MESSAGES_PARSE_FAILED").
			With("path", path).
			Wrap(err)
	}
	return catalog, nil
}

// FormatPasswordLength substitutes the %min% and %max% placeholders in the
// password-length message.
func (c Catalog) FormatPasswordLength(min, max int) string {
	msg := strings.ReplaceAll(c.PasswordLengthInvalid, "%min%", strconv.Itoa(min))
	return strings.ReplaceAll(msg, "%max%", strconv.Itoa(max))
}
