// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"github.com/holomush/authd/pkg/errutil"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned by a UserRepository when the email is
// already registered.
var ErrDuplicateEmail = errors.New("duplicate email")

// ErrInvalidEmail is returned by a UserRepository when storage rejects the
// email's form.
var ErrInvalidEmail = errors.New("invalid email")

// Error codes reported by Service. Every error Service returns resolves to
// exactly one of these through ErrorCode.
const (
	CodeInvalidInput       = "AUTH_INVALID_INPUT"
	CodeEmailTaken         = "AUTH_EMAIL_TAKEN"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeUnauthorized       = "AUTH_UNAUTHORIZED"
	CodeInternal           = "AUTH_INTERNAL"
)

// ErrorCode returns the service error code carried by err.
// Errors without one of the service codes are reported as CodeInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	switch code := errutil.Code(err); code {
	case CodeInvalidInput, CodeEmailTaken, CodeInvalidCredentials, CodeUnauthorized:
		return code
	default:
		return CodeInternal
	}
}
