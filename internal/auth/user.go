// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/samber/oops"
)

// User represents a registered account.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Identity returns the public view of the user.
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Email: u.Email}
}

// Identity is the authenticated principal attached to a request.
// It never carries credential material.
type Identity struct {
	UserID int64  `json:"id"`
	Email  string `json:"email"`
}

// NormalizeEmail trims surrounding whitespace and lowercases the address.
// All lookups and inserts use the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateCredentials checks that both fields are present.
// Only the email is trimmed; a password of spaces is still a password.
func ValidateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return oops.Code(CodeInvalidInput).Errorf("email and password are required")
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// GetByEmail retrieves a user by normalized email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Create inserts a new user and returns it with its assigned ID.
	// Returns ErrDuplicateEmail if the email is already registered; the
	// check and the insert must be a single atomic step. Returns
	// ErrInvalidEmail if storage rejects the email's form.
	Create(ctx context.Context, email, passwordHash string) (*User, error)
}
