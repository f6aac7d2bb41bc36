// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store owns the PostgreSQL connection pool and schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectOptions bounds the startup ping loop.
type ConnectOptions struct {
	Attempts    uint64
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultConnectOptions waits roughly half a minute for the database.
var DefaultConnectOptions = ConnectOptions{
	Attempts:    8,
	BaseBackoff: 250 * time.Millisecond,
	MaxBackoff:  5 * time.Second,
}

// pinger is the part of *pgxpool.Pool used to check readiness.
type pinger interface {
	Ping(ctx context.Context) error
}

// Connect opens a pool for databaseURL and pings it with exponential backoff
// until the database answers or the attempts run out.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, oops.Code("DB_URL_REQUIRED").Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_POOL_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := waitReady(ctx, pool, opts); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitReady(ctx context.Context, db pinger, opts ConnectOptions) error {
	backoff := retry.NewExponential(opts.BaseBackoff)
	backoff = retry.WithCappedDuration(opts.MaxBackoff, backoff)
	if opts.Attempts > 0 {
		backoff = retry.WithMaxRetries(opts.Attempts-1, backoff)
	}

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			slog.Debug("database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_UNAVAILABLE").
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}
