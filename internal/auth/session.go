// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 32            // 32 bytes = 64 hex chars
	SessionTTL        = 8 * time.Hour // absolute, never extended
)

// Session is a server-side login record. Only the hash of the client's
// token is kept.
type Session struct {
	ID        ulid.ULID
	TokenHash string
	UserID    int64
	Email     string // copied at login; not kept in sync with the user row
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewSession creates a validated Session.
func NewSession(userID int64, email, tokenHash string, createdAt, expiresAt time.Time) (*Session, error) {
	if userID <= 0 {
		return nil, oops.Code("SESSION_INVALID_USER").
			With("user_id", userID).
			Errorf("user ID must be positive")
	}
	if email == "" {
		return nil, oops.Code("SESSION_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if !expiresAt.After(createdAt) {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").
			With("created_at", createdAt).
			With("expires_at", expiresAt).
			Errorf("expiry must be after creation")
	}

	return &Session{
		ID:        ulid.Make(),
		TokenHash: tokenHash,
		UserID:    userID,
		Email:     email,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Identity returns the principal the session authenticates.
func (s *Session) Identity() Identity {
	return Identity{UserID: s.UserID, Email: s.Email}
}

// IsExpiredAt returns true if the session would be expired at the given time.
// A session is expired from the instant of ExpiresAt onward.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// GenerateSessionToken creates a secure random token and its hash.
// The plaintext token is sent to the client; the hash is stored.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionRepository manages session persistence. Implementations key
// sessions by token hash and never see plaintext tokens.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by its token hash, expired or not.
	// Returns ErrNotFound if no session has the hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// DeleteByTokenHash removes a session. Removing an absent session is
	// not an error.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteExpired removes sessions whose expiry is at or before now and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionStore maps opaque client tokens to live sessions.
type SessionStore interface {
	// Create mints a token for the user and records the session.
	Create(ctx context.Context, userID int64, email string) (string, *Session, error)

	// Get resolves a token. Unknown and expired tokens both return ErrNotFound.
	Get(ctx context.Context, token string) (*Session, error)

	// Destroy ends the session for token. It is idempotent.
	Destroy(ctx context.Context, token string) error
}
