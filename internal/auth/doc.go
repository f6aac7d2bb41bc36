// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides session-based authentication.
//
// # Domain Types
//
// User is a registered account keyed by a normalized email. Session is a
// server-side login record keyed by the SHA256 hash of an opaque token;
// the plaintext token only ever lives in the client's cookie.
// Sessions should be created through NewSession, which validates them.
//
// # Storage
//
// UserRepository and SessionRepository are implemented by the postgres and
// memory subpackages. Email uniqueness is enforced by the repository in a
// single atomic insert.
//
// TokenStore adds token minting and absolute expiry on top of a
// SessionRepository and implements SessionStore.
//
// # Services
//
// Service implements the account and session operations. Every
// error it returns carries one of the Code* values, retrievable with
// ErrorCode.
package auth
