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

// Operation names reported to a Recorder.
const (
	OpRegister     = "register"
	OpLogin        = "login"
	OpLogout       = "logout"
	OpWhoAmI       = "whoami"
	OpAuthenticate = "authenticate"
)

// Recorder receives one call per completed service operation.
type Recorder interface {
	RecordAuthOperation(operation, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordAuthOperation(string, string) {}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	User      Identity
	Token     string
	ExpiresAt time.Time
}

// WhoAmI describes the caller of a request.
type WhoAmI struct {
	Authenticated bool      `json:"authenticated"`
	User          *Identity `json:"user"`
}

// Service provides authentication operations.
type Service struct {
	users    UserRepository
	sessions SessionStore
	hasher   PasswordHasher
	logger   *slog.Logger
	recorder Recorder
}

// NewAuthService creates a new Service using the default logger.
func NewAuthService(users UserRepository, sessions SessionStore, hasher PasswordHasher) (*Service, error) {
	return NewAuthServiceWithLogger(users, sessions, hasher, slog.Default())
}

// NewAuthServiceWithLogger creates a new Service with an explicit logger.
func NewAuthServiceWithLogger(users UserRepository, sessions SessionStore, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("session store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("logger is required")
	}
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		logger:   logger,
		recorder: noopRecorder{},
	}, nil
}

// WithRecorder sets the operation recorder and returns s.
func (s *Service) WithRecorder(r Recorder) *Service {
	if r == nil {
		r = noopRecorder{}
	}
	s.recorder = r
	return s
}

// dummyPasswordHash is verified against when the email is unknown so that
// both failure paths pay for one bcrypt comparison at the default cost.
// It is well formed but matches no password.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const dummyPasswordHash = "$2a$10$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Register creates a user account.
func (s *Service) Register(ctx context.Context, email, password string) (user *User, err error) {
	defer func() { s.record(OpRegister, err) }()

	if err := ValidateCredentials(email, password); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)

	// Fast path for a friendly error; Create below is authoritative.
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		return nil, emailTaken(email)
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, s.internal("lookup user by email", err)
	}

	hash, err := s.hasher.Hash(password)
	if errors.Is(err, ErrPasswordTooLong) {
		return nil, oops.Code(CodeInvalidInput).Wrap(ErrPasswordTooLong)
	}
	if err != nil {
		return nil, s.internal("hash password", err)
	}

	user, err = s.users.Create(ctx, email, hash)
	if errors.Is(err, ErrDuplicateEmail) {
		s.logger.Debug("registration lost uniqueness race", "email", email)
		return nil, emailTaken(email)
	}
	if errors.Is(err, ErrInvalidEmail) {
		return nil, oops.Code(CodeInvalidInput).
			With("email", email).
			Wrap(ErrInvalidEmail)
	}
	if err != nil {
		return nil, s.internal("create user", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login verifies credentials and opens a session.
// Unknown emails and wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, email, password string) (result *LoginResult, err error) {
	defer func() { s.record(OpLogin, err) }()

	if err := ValidateCredentials(email, password); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)

	user, lookupErr := s.users.GetByEmail(ctx, email)
	targetHash := dummyPasswordHash
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
	case !errors.Is(lookupErr, ErrNotFound):
		return nil, s.internal("lookup user by email", lookupErr)
	}

	// Always verify so the unknown-email path costs the same.
	valid := s.hasher.Verify(password, targetHash)
	if lookupErr != nil || !valid {
		s.logger.Debug("login rejected", "email", email, "user_exists", lookupErr == nil)
		return nil, invalidCredentials()
	}

	token, session, err := s.sessions.Create(ctx, user.ID, user.Email)
	if err != nil {
		return nil, s.internal("create session", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID, "session_id", session.ID.String())
	return &LoginResult{
		User:      user.Identity(),
		Token:     token,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Logout ends the session for token. Logging out without a session succeeds.
func (s *Service) Logout(ctx context.Context, token string) (err error) {
	defer func() { s.record(OpLogout, err) }()

	if err := s.sessions.Destroy(ctx, token); err != nil {
		return s.internal("destroy session", err)
	}
	return nil
}

// WhoAmI reports whether token belongs to a live session.
func (s *Service) WhoAmI(ctx context.Context, token string) (who WhoAmI, err error) {
	defer func() { s.record(OpWhoAmI, err) }()

	session, err := s.sessions.Get(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return WhoAmI{}, nil
	}
	if err != nil {
		return WhoAmI{}, s.internal("get session", err)
	}
	id := session.Identity()
	return WhoAmI{Authenticated: true, User: &id}, nil
}

// Authenticate resolves token to an identity for a protected operation.
// The user row is not consulted; a session outlives changes to it.
func (s *Service) Authenticate(ctx context.Context, token string) (identity *Identity, err error) {
	defer func() { s.record(OpAuthenticate, err) }()

	session, err := s.sessions.Get(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Code(CodeUnauthorized).Errorf("unauthorized")
	}
	if err != nil {
		return nil, s.internal("get session", err)
	}
	id := session.Identity()
	return &id, nil
}

func (s *Service) internal(operation string, err error) error {
	s.logger.Warn("auth operation failed", "operation", operation, "error", err)
	return oops.Code(CodeInternal).
		With("operation", operation).
		Wrap(err)
}

func (s *Service) record(operation string, err error) {
	s.recorder.RecordAuthOperation(operation, Outcome(err))
}

// Outcome converts a service error into a low-cardinality label.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	switch ErrorCode(err) {
	case CodeInvalidInput:
		return "invalid_input"
	case CodeEmailTaken:
		return "email_taken"
	case CodeInvalidCredentials:
		return "invalid_credentials"
	case CodeUnauthorized:
		return "unauthorized"
	default:
		return "error"
	}
}

func emailTaken(email string) error {
	return oops.Code(CodeEmailTaken).
		With("email", email).
		Wrap(ErrDuplicateEmail)
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid credentials")
}
