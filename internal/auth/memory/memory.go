// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory implements the auth repositories in process memory.
// Data does not survive a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/authd/internal/auth"
)

// UserRepository is a mutex-guarded auth.UserRepository.
type UserRepository struct {
	mu      sync.Mutex
	nextID  int64
	byEmail map[string]*auth.User
	now     func() time.Time
}

// NewUserRepository returns an empty repository. IDs start at 1.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byEmail: make(map[string]*auth.User),
		now:     time.Now,
	}
}

// GetByEmail returns a copy of the stored user.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byEmail[email]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

// Create checks and inserts under one lock, so at most one caller wins an email.
func (r *UserRepository) Create(_ context.Context, email, passwordHash string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[email]; exists {
		return nil, oops.Code("USER_EMAIL_EXISTS").With("email", email).Wrap(auth.ErrDuplicateEmail)
	}

	r.nextID++
	u := &auth.User{
		ID:           r.nextID,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    r.now().UTC(),
	}
	r.byEmail[email] = u

	cp := *u
	return &cp, nil
}

// Len reports the number of stored users.
func (r *UserRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byEmail)
}

// SessionRepository is an auth.SessionRepository keyed by token hash.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]auth.Session
}

// NewSessionRepository returns an empty repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]auth.Session)}
}

// Create stores session, replacing any record with the same token hash.
func (r *SessionRepository) Create(_ context.Context, session *auth.Session) error {
	if session == nil {
		return oops.Code("SESSION_INSERT_FAILED").Errorf("session is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.TokenHash] = *session
	return nil
}

// GetByTokenHash returns a copy of the stored session.
func (r *SessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[tokenHash]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return &s, nil
}

// DeleteByTokenHash removes a session if present.
func (r *SessionRepository) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, tokenHash)
	return nil
}

// DeleteExpired removes sessions that expired at or before now.
func (r *SessionRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, s := range r.sessions {
		if s.IsExpiredAt(now) {
			delete(r.sessions, hash)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored sessions, expired ones included.
func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

var (
	_ auth.UserRepository    = (*UserRepository)(nil)
	_ auth.SessionRepository = (*SessionRepository)(nil)
)
