// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"regexp"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/auth/memory"
	"github.com/holomush/authd/internal/auth/postgres"
	"github.com/holomush/authd/internal/config"
	"github.com/holomush/authd/internal/logging"
	"github.com/holomush/authd/internal/observability"
	"github.com/holomush/authd/internal/store"
	"github.com/holomush/authd/internal/web"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the authentication API. Settings come from defaults, the
--config file, AUTHD_* environment variables (PORT, CLIENT_ORIGIN, NODE_ENV
and DATABASE_URL are also honored) and flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.Options{File: resolveConfigFile(), Flags: cmd.Flags()})
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	if d == nil {
		d = &ServeDeps{}
	}
	if d.PoolFactory == nil {
		d.PoolFactory = func(ctx context.Context, url string) (DBPool, error) {
			return store.Connect(ctx, url, store.DefaultConnectOptions)
		}
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(url string) (AutoMigrator, error) {
			return store.NewMigrator(url)
		}
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}
	if d.HTTPServerFactory == nil {
		d.HTTPServerFactory = func(addr string, handler http.Handler) HTTPServer {
			return web.NewServer(addr, handler)
		}
	}
	if d.Hasher == nil {
		d.Hasher = auth.NewBcryptHasher()
	}
	return d
}

// runServeWithDeps runs the server until ctx is canceled, a signal
// arrives, or a listener fails.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	logger := logging.SetDefault("authd", version, cfg.LogFormat, cmd.ErrOrStderr())

	logger.Info("starting authd",
		"listen", cfg.Listen,
		"env", cfg.Env,
		"user_store", cfg.UserStore,
		"session_store", cfg.SessionStore,
	)

	var pool DBPool
	if cfg.NeedsDatabase() {
		var err error
		pool, err = deps.PoolFactory(ctx, cfg.DatabaseURL)
		if err != nil {
			return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
		}
		defer pool.Close()
		logger.Info("connected to database")

		if cfg.AutoMigrate {
			if err := runAutoMigration(deps.MigratorFactory, cfg.DatabaseURL); err != nil {
				return err
			}
		}
	}

	users, sessions := buildRepositories(cfg, pool)

	var metrics *observability.Metrics
	var obsServer ObservabilityServer
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, readiness(pool))
		metrics = obsServer.Metrics()
	}

	storeOpts := []auth.TokenStoreOption{auth.WithStoreLogger(logger)}
	if metrics != nil {
		storeOpts = append(storeOpts, auth.WithSweepObserver(metrics.RecordSweep))
	}
	tokenStore, err := auth.NewTokenStore(sessions, storeOpts...)
	if err != nil {
		return err
	}

	svc, err := auth.NewAuthServiceWithLogger(users, tokenStore, deps.Hasher, logger)
	if err != nil {
		return err
	}

	routerCfg := web.RouterConfig{
		Service: svc,
		Cookies: web.CookiePolicy{Production: cfg.IsProduction(), MaxAge: tokenStore.TTL()},
		CORS:    web.CORSConfig{Origins: cfg.ClientOrigins},
		Logger:  logger,
	}
	if cfg.PreviewOriginPattern != "" {
		routerCfg.CORS.Preview = regexp.MustCompile(cfg.PreviewOriginPattern)
	}
	if metrics != nil {
		svc.WithRecorder(metrics)
		routerCfg.Metrics = metrics
	}

	gin.SetMode(gin.ReleaseMode)
	httpServer := deps.HTTPServerFactory(cfg.Listen, web.NewRouter(routerCfg))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpErrCh, err := httpServer.Start()
	if err != nil {
		return oops.Code("HTTP_START_FAILED").With("addr", cfg.Listen).Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, httpErrCh, "http")

	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			shutdownServers(cfg, httpServer, nil)
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.MetricsAddr).Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	var sweeper sync.WaitGroup
	sweeper.Add(1)
	go func() {
		defer sweeper.Done()
		tokenStore.RunSweeper(ctx, cfg.SessionSweepInterval)
	}()

	cmd.Println("authd started on " + httpServer.Addr())
	logger.Info("authd ready", "addr", httpServer.Addr())

	<-ctx.Done()
	logger.Info("shutting down")

	cancel()
	sweeper.Wait()
	shutdownServers(cfg, httpServer, obsServer)

	logger.Info("shutdown complete")
	return nil
}

func buildRepositories(cfg *config.Config, pool DBPool) (auth.UserRepository, auth.SessionRepository) {
	var users auth.UserRepository
	if cfg.UserStore == config.BackendPostgres {
		users = postgres.NewUserRepository(pool)
	} else {
		users = memory.NewUserRepository()
	}

	var sessions auth.SessionRepository
	if cfg.SessionStore == config.BackendPostgres {
		sessions = postgres.NewSessionRepository(pool)
	} else {
		sessions = memory.NewSessionRepository()
	}
	return users, sessions
}

// readiness pings the database when there is one.
func readiness(pool DBPool) observability.ReadinessChecker {
	if pool == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}

func shutdownServers(cfg *config.Config, httpServer HTTPServer, obsServer ObservabilityServer) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Warn("error stopping http server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(ctx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}
}

// runAutoMigration applies pending migrations before serving.
func runAutoMigration(factory func(string) (AutoMigrator, error), url string) error {
	migrator, err := factory(url)
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	slog.Info("database migrations applied")
	return nil
}

// monitorServerErrors cancels ctx when a server reports a failure. It
// returns when errCh closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
