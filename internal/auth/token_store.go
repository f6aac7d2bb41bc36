// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// TokenStore implements SessionStore on top of a SessionRepository.
// It owns token minting, hashing, and expiry; the repository only stores rows.
type TokenStore struct {
	repo   SessionRepository
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
	swept  func(n int64)
}

// TokenStoreOption configures a TokenStore.
type TokenStoreOption func(*TokenStore)

// WithSessionTTL overrides SessionTTL.
func WithSessionTTL(ttl time.Duration) TokenStoreOption {
	return func(s *TokenStore) {
		s.ttl = ttl
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TokenStoreOption {
	return func(s *TokenStore) {
		s.now = now
	}
}

// WithStoreLogger sets the logger used for best-effort cleanup failures.
func WithStoreLogger(logger *slog.Logger) TokenStoreOption {
	return func(s *TokenStore) {
		s.logger = logger
	}
}

// WithSweepObserver registers fn to receive the count of every successful
// sweep run by RunSweeper.
func WithSweepObserver(fn func(n int64)) TokenStoreOption {
	return func(s *TokenStore) {
		s.swept = fn
	}
}

// NewTokenStore creates a TokenStore backed by repo.
func NewTokenStore(repo SessionRepository, opts ...TokenStoreOption) (*TokenStore, error) {
	if repo == nil {
		return nil, oops.Code("SESSION_STORE_INVALID").Errorf("session repository is required")
	}
	s := &TokenStore{
		repo:   repo,
		ttl:    SessionTTL,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ttl <= 0 {
		return nil, oops.Code("SESSION_STORE_INVALID").
			With("ttl", s.ttl).
			Errorf("session TTL must be positive")
	}
	return s, nil
}

// TTL returns the absolute session lifetime.
func (s *TokenStore) TTL() time.Duration {
	return s.ttl
}

// Create mints a token for the user and records the session.
func (s *TokenStore) Create(ctx context.Context, userID int64, email string) (string, *Session, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return "", nil, err
	}

	now := s.now()
	session, err := NewSession(userID, email, tokenHash, now, now.Add(s.ttl))
	if err != nil {
		return "", nil, err
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return "", nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", userID).
			Wrap(err)
	}
	return token, session, nil
}

// Get resolves a token to a live session.
func (s *TokenStore) Get(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(ErrNotFound)
	}

	tokenHash := HashSessionToken(token)
	session, err := s.repo.GetByTokenHash(ctx, tokenHash)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpiredAt(s.now()) {
		if delErr := s.repo.DeleteByTokenHash(ctx, tokenHash); delErr != nil {
			s.logger.Warn("failed to delete expired session",
				"session_id", session.ID.String(),
				"error", delErr,
			)
		}
		return nil, oops.Code("SESSION_EXPIRED").
			With("session_id", session.ID.String()).
			Wrap(ErrNotFound)
	}
	return session, nil
}

// Destroy ends the session for token.
func (s *TokenStore) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := s.repo.DeleteByTokenHash(ctx, HashSessionToken(token))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "delete session by token hash").
			Wrap(err)
	}
	return nil
}

// SweepExpired removes expired sessions from the repository.
func (s *TokenStore) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return n, nil
}

// RunSweeper calls SweepExpired every interval until ctx is done.
func (s *TokenStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn("session sweep failed", "error", err)
				continue
			}
			if s.swept != nil {
				s.swept(n)
			}
			if n > 0 {
				s.logger.Debug("swept expired sessions", "count", n)
			}
		}
	}
}

var _ SessionStore = (*TokenStore)(nil)
