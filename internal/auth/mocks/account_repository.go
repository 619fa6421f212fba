// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthFlux Contributors

// Package mocks provides testify mocks for auth interfaces.
package mocks

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/authflux/authflux/internal/auth"
	"github.com/authflux/authflux/internal/world"
)

// MockAccountRepository is a testify mock for auth.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

// NewMockAccountRepository creates a mock wired to the test's lifecycle.
func NewMockAccountRepository(t *testing.T) *MockAccountRepository {
	t.Helper()
	m := &MockAccountRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Exists mocks auth.AccountRepository.Exists.
func (m *MockAccountRepository) Exists(ctx context.Context, id ulid.ULID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// Create mocks auth.AccountRepository.Create.
func (m *MockAccountRepository) Create(ctx context.Context, account *auth.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

// GetByID mocks auth.AccountRepository.GetByID.
func (m *MockAccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	args := m.Called(ctx, id)
	if account, ok := args.Get(0).(*auth.Account); ok {
		return account, args.Error(1)
	}
	return nil, args.Error(1)
}

// SetLoggedIn mocks auth.AccountRepository.SetLoggedIn.
func (m *MockAccountRepository) SetLoggedIn(ctx context.Context, id ulid.ULID, loggedIn bool) error {
	args := m.Called(ctx, id, loggedIn)
	return args.Error(0)
}

// IsLoggedIn mocks auth.AccountRepository.IsLoggedIn.
func (m *MockAccountRepository) IsLoggedIn(ctx context.Context, id ulid.ULID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// SavePosition mocks auth.AccountRepository.SavePosition.
func (m *MockAccountRepository) SavePosition(ctx context.Context, id ulid.ULID, pos world.Position) error {
	args := m.Called(ctx, id, pos)
	return args.Error(0)
}

// ResetAllSessions mocks auth.AccountRepository.ResetAllSessions.
func (m *MockAccountRepository) ResetAllSessions(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// LoadPosition mocks auth.AccountRepository.LoadPosition.
func (m *MockAccountRepository) LoadPosition(ctx context.Context, id ulid.ULID) (*world.Position, error) {
	args := m.Called(ctx, id)
	if pos, ok := args.Get(0).(*world.Position); ok {
		return pos, args.Error(1)
	}
	return nil, args.Error(1)
}

var _ auth.AccountRepository = (*MockAccountRepository)(nil)
