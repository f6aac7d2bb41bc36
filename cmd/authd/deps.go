// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"net/http"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/auth/postgres"
	"github.com/holomush/authd/internal/observability"
	"github.com/holomush/authd/internal/store"
	"github.com/holomush/authd/internal/web"
)

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type ServeDeps struct {
	// PoolFactory connects to PostgreSQL.
	// Default: store.Connect with store.DefaultConnectOptions
	PoolFactory func(ctx context.Context, url string) (DBPool, error)

	// MigratorFactory opens a migrator for auto-migration.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (AutoMigrator, error)

	// ObservabilityServerFactory creates the metrics/health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker) ObservabilityServer

	// HTTPServerFactory creates the public API server.
	// Default: web.NewServer
	HTTPServerFactory func(addr string, handler http.Handler) HTTPServer

	// Hasher hashes passwords.
	// Default: auth.NewBcryptHasher
	Hasher auth.PasswordHasher
}

// DBPool is the part of *pgxpool.Pool used by serve.
type DBPool interface {
	postgres.DB
	Ping(ctx context.Context) error
	Close()
}

// AutoMigrator applies pending migrations at startup.
type AutoMigrator interface {
	Up() error
	Close() error
}

// ObservabilityServer is the metrics/health server lifecycle.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// HTTPServer is the public API server lifecycle.
type HTTPServer interface {
	Start() (<-chan error, error)
	Shutdown(ctx context.Context) error
	Addr() string
}

var (
	_ AutoMigrator        = (*store.Migrator)(nil)
	_ ObservabilityServer = (*observability.Server)(nil)
	_ HTTPServer          = (*web.Server)(nil)
)
