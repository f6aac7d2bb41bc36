// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used for new password hashes.
const DefaultBcryptCost = 10

// MaxPasswordBytes is bcrypt's input limit.
const MaxPasswordBytes = 72

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// ErrPasswordTooLong is returned when a password exceeds the 72 byte bcrypt input limit.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted one-way hash of the password. Two calls with
	// the same password return different strings.
	Hash(password string) (string, error)

	// Verify reports whether the password matches the hash.
	// A malformed hash is a mismatch, not an error.
	Verify(password, hash string) bool
}

// BcryptHasher implements PasswordHasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher at DefaultBcryptCost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: DefaultBcryptCost}
}

// NewBcryptHasherWithCost creates a BcryptHasher with an explicit cost.
// Costs outside bcrypt's accepted range are rejected.
func NewBcryptHasherWithCost(cost int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, oops.Code("AUTH_INVALID_COST").
			With("cost", cost).
			With("min", bcrypt.MinCost).
			With("max", bcrypt.MaxCost).
			Errorf("bcrypt cost out of range")
	}
	return &BcryptHasher{cost: cost}, nil
}

// Hash produces a bcrypt hash of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", oops.Code("AUTH_PASSWORD_TOO_LONG").Wrap(ErrPasswordTooLong)
	}
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").
			With("cost", h.cost).
			Wrap(err)
	}
	return string(hash), nil
}

// Verify checks if the password matches the hash. Passwords longer than
// bcrypt's input limit never match, since bcrypt would compare only their
// first MaxPasswordBytes.
func (h *BcryptHasher) Verify(password, hash string) bool {
	if len(password) > MaxPasswordBytes {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
