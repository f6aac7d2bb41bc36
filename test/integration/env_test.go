// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/authd/internal/auth"
	authpg "github.com/holomush/authd/internal/auth/postgres"
	"github.com/holomush/authd/internal/observability"
	"github.com/holomush/authd/internal/store"
	"github.com/holomush/authd/internal/web"
)

// testEnv holds the database and the HTTP API under test.
type testEnv struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container testcontainers.Container
	pool      *pgxpool.Pool
	tokens    *auth.TokenStore
	metrics   *observability.Metrics
	server    *httptest.Server
}

var env *testEnv

func setupTestEnv() (*testEnv, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	e := &testEnv{ctx: ctx, cancel: cancel}

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("authd_e2e"),
		postgres.WithUsername("authd"),
		postgres.WithPassword("authd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	e.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		e.cleanup()
		return nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		e.cleanup()
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		e.cleanup()
		return nil, err
	}
	if err := migrator.Close(); err != nil {
		e.cleanup()
		return nil, err
	}

	pool, err := store.Connect(ctx, connStr, store.DefaultConnectOptions)
	if err != nil {
		e.cleanup()
		return nil, err
	}
	e.pool = pool

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e.metrics = observability.NewMetrics(prometheus.NewRegistry())

	e.tokens, err = auth.NewTokenStore(authpg.NewSessionRepository(pool),
		auth.WithStoreLogger(logger),
		auth.WithSweepObserver(e.metrics.RecordSweep),
	)
	if err != nil {
		e.cleanup()
		return nil, err
	}
	svc, err := auth.NewAuthServiceWithLogger(authpg.NewUserRepository(pool), e.tokens, auth.NewBcryptHasher(), logger)
	if err != nil {
		e.cleanup()
		return nil, err
	}
	svc.WithRecorder(e.metrics)

	gin.SetMode(gin.TestMode)
	e.server = httptest.NewServer(web.NewRouter(web.RouterConfig{
		Service: svc,
		CORS:    web.CORSConfig{Origins: []string{"http://localhost:3000"}},
		Logger:  logger,
		Metrics: e.metrics,
	}))
	return e, nil
}

func (e *testEnv) cleanup() {
	if e.server != nil {
		e.server.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
	if e.container != nil {
		_ = e.container.Terminate(context.Background())
	}
	e.cancel()
}

// resetData empties every table between specs.
func (e *testEnv) resetData() {
	_, err := e.pool.Exec(e.ctx, `TRUNCATE web_sessions, users RESTART IDENTITY`)
	Expect(err).NotTo(HaveOccurred())
}

var _ = BeforeSuite(func() {
	var err error
	env, err = setupTestEnv()
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if env != nil {
		env.cleanup()
	}
})
