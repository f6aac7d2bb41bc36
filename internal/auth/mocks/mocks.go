// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify mocks for the auth package interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/authd/internal/auth"
)

// MockUserRepository is a mock of auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a MockUserRepository whose expectations
// are asserted when the test ends.
func NewMockUserRepository(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockUserRepository {
	m := &MockUserRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// GetByEmail provides a mock function.
func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	ret := m.Called(ctx, email)
	var user *auth.User
	if v := ret.Get(0); v != nil {
		user = v.(*auth.User)
	}
	return user, ret.Error(1)
}

// Create provides a mock function.
func (m *MockUserRepository) Create(ctx context.Context, email, passwordHash string) (*auth.User, error) {
	ret := m.Called(ctx, email, passwordHash)
	var user *auth.User
	if v := ret.Get(0); v != nil {
		user = v.(*auth.User)
	}
	return user, ret.Error(1)
}

// MockSessionStore is a mock of auth.SessionStore.
type MockSessionStore struct {
	mock.Mock
}

// NewMockSessionStore creates a MockSessionStore whose expectations are
// asserted when the test ends.
func NewMockSessionStore(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockSessionStore {
	m := &MockSessionStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create provides a mock function.
func (m *MockSessionStore) Create(ctx context.Context, userID int64, email string) (string, *auth.Session, error) {
	ret := m.Called(ctx, userID, email)
	var session *auth.Session
	if v := ret.Get(1); v != nil {
		session = v.(*auth.Session)
	}
	return ret.String(0), session, ret.Error(2)
}

// Get provides a mock function.
func (m *MockSessionStore) Get(ctx context.Context, token string) (*auth.Session, error) {
	ret := m.Called(ctx, token)
	var session *auth.Session
	if v := ret.Get(0); v != nil {
		session = v.(*auth.Session)
	}
	return session, ret.Error(1)
}

// Destroy provides a mock function.
func (m *MockSessionStore) Destroy(ctx context.Context, token string) error {
	ret := m.Called(ctx, token)
	return ret.Error(0)
}

// MockSessionRepository is a mock of auth.SessionRepository.
type MockSessionRepository struct {
	mock.Mock
}

// NewMockSessionRepository creates a MockSessionRepository whose
// expectations are asserted when the test ends.
func NewMockSessionRepository(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockSessionRepository {
	m := &MockSessionRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Create provides a mock function.
func (m *MockSessionRepository) Create(ctx context.Context, session *auth.Session) error {
	ret := m.Called(ctx, session)
	return ret.Error(0)
}

// GetByTokenHash provides a mock function.
func (m *MockSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	ret := m.Called(ctx, tokenHash)
	var session *auth.Session
	if v := ret.Get(0); v != nil {
		session = v.(*auth.Session)
	}
	return session, ret.Error(1)
}

// DeleteByTokenHash provides a mock function.
func (m *MockSessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	ret := m.Called(ctx, tokenHash)
	return ret.Error(0)
}

// DeleteExpired provides a mock function.
func (m *MockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ret := m.Called(ctx, now)
	return ret.Get(0).(int64), ret.Error(1)
}

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher whose expectations
// are asserted when the test ends.
func NewMockPasswordHasher(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash provides a mock function.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	ret := m.Called(password)
	return ret.String(0), ret.Error(1)
}

// Verify provides a mock function.
func (m *MockPasswordHasher) Verify(password, hash string) bool {
	ret := m.Called(password, hash)
	return ret.Bool(0)
}

var (
	_ auth.UserRepository    = (*MockUserRepository)(nil)
	_ auth.SessionStore      = (*MockSessionStore)(nil)
	_ auth.SessionRepository = (*MockSessionRepository)(nil)
	_ auth.PasswordHasher    = (*MockPasswordHasher)(nil)
)
