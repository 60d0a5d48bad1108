// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aetherforge Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	accountpg "github.com/aetherforge/accounts/internal/account/postgres"
	"github.com/aetherforge/accounts/internal/auth"
	"github.com/aetherforge/accounts/internal/certauth"
	"github.com/aetherforge/accounts/internal/config"
	"github.com/aetherforge/accounts/internal/gameserver"
	"github.com/aetherforge/accounts/internal/httpapi"
	"github.com/aetherforge/accounts/internal/logging"
	"github.com/aetherforge/accounts/internal/mailer"
	"github.com/aetherforge/accounts/internal/observability"
	"github.com/aetherforge/accounts/internal/store"
	"github.com/aetherforge/accounts/internal/token"
	tokenpg "github.com/aetherforge/accounts/internal/token/postgres"
)

// authorityName is the subject common name of a generated signing root.
const authorityName = "Aetherforge Accounts CA"

// AutoMigrator is the slice of the migrator the serve command needs.
type AutoMigrator interface {
	Up() error
	Close() error
}

// ServeDeps holds injectable dependencies for the serve command.
// Nil fields get default implementations.
type ServeDeps struct {
	ConnectDB       func(ctx context.Context, url string) (*pgxpool.Pool, error)
	MigratorFactory func(url string) (AutoMigrator, error)
	AuthorityLoader func(dir string) (*certauth.Authority, error)
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the accounts service",
		Long: `Start the accounts HTTP API together with the metrics and health
endpoints. Runs pending database migrations first unless --auto-migrate=false.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, autoMigrate, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", true, "run pending migrations on startup")

	return cmd
}

// runServe starts the service with injectable dependencies.
func runServe(ctx context.Context, cmd *cobra.Command, autoMigrate bool, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.ConnectDB == nil {
		deps.ConnectDB = store.Connect
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(url string) (AutoMigrator, error) {
			return store.NewMigrator(url)
		}
	}
	if deps.AuthorityLoader == nil {
		deps.AuthorityLoader = func(dir string) (*certauth.Authority, error) {
			return certauth.EnsureAuthority(dir, authorityName)
		}
	}

	cfg, err := config.Load(resolveConfigPath(), cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("accountsd", version, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))

	slog.Info("starting accounts service",
		"http_addr", cfg.HTTP.Addr,
		"observability_addr", cfg.Observability.Addr,
	)

	if cfg.Admin.Secret == "" {
		slog.Warn("admin.secret is empty; game server verification will reject all requests")
	}

	pool, err := deps.ConnectDB(ctx, cfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	slog.Info("connected to database")

	if autoMigrate {
		migrator, err := deps.MigratorFactory(cfg.Database.URL)
		if err != nil {
			return oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
		}
		if err := migrator.Up(); err != nil {
			_ = migrator.Close()
			return err
		}
		if err := migrator.Close(); err != nil {
			return oops.Code("MIGRATION_CLOSE_FAILED").Wrap(err)
		}
		slog.Info("migrations up to date")
	}

	authority, err := deps.AuthorityLoader(cfg.Keys.Dir)
	if err != nil {
		return oops.Code("AUTHORITY_LOAD_FAILED").
			With("keys_dir", cfg.Keys.Dir).
			Wrap(err)
	}

	slog.Info("signing authority ready", "keys_dir", cfg.Keys.Dir)

	issuer := token.NewIssuer(tokenpg.NewTokenStore(pool), token.TTLs{
		OTP:           cfg.Tokens.OTPTTL,
		Register:      cfg.Tokens.RegisterTTL,
		Login:         cfg.Tokens.LoginTTL,
		PasswordReset: cfg.Tokens.PasswordResetTTL,
	})

	engine, err := auth.NewEngine(auth.Deps{
		Accounts:     accountpg.NewAccountStore(pool),
		Tokens:       issuer,
		Authority:    authority,
		Admin:        gameserver.NewAdminVerifier(cfg.Admin.Secret),
		Mail:         mailer.NewLogMailer(slog.Default()),
		Logger:       slog.Default(),
		CertValidity: cfg.Session.CertValidity,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Observability server first so readiness reflects the API coming up.
	obsServer := observability.NewServer(cfg.Observability.Addr, func() bool {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer pingCancel()
		return pool.Ping(pingCtx) == nil
	})
	obsErrCh, err := obsServer.Start()
	if err != nil {
		return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, obsErrCh, "observability")

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Engine:  engine,
		Metrics: obsServer.Metrics(),
		Logger:  slog.Default(),
	})
	apiServer := httpapi.NewServer(cfg.HTTP.Addr, router)
	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		if stopErr := obsServer.Stop(stopCtx); stopErr != nil {
			slog.Warn("failed to stop observability server during cleanup", "error", stopErr)
		}
		return oops.Code("API_START_FAILED").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	// Expired tokens are removed lazily on access; the sweeper keeps the
	// table from accumulating rows nobody touches again.
	go sweepExpiredTokens(ctx, issuer, cfg.Tokens.SweepInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Accounts service started")
	slog.Info("accounts service ready", "api_addr", apiServer.Addr())

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping api server", "error", err)
	}
	if err := obsServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// resolveConfigPath prefers the --config flag, then the XDG default.
func resolveConfigPath() string {
	if configFile != "" {
		return configFile
	}
	return config.DefaultPath()
}

// sweepExpiredTokens periodically deletes expired token rows.
func sweepExpiredTokens(ctx context.Context, issuer *token.Issuer, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := issuer.SweepExpired(ctx)
			if err != nil {
				slog.Warn("token sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Debug("swept expired tokens", "removed", removed)
			}
		}
	}
}

// monitorServerErrors cancels the process context when a server reports an
// error after startup, so one failing listener takes the whole service down
// cleanly instead of leaving it half-alive.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
