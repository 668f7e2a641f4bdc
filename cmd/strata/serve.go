// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/stratakit/strata/internal/auth"
	authpg "github.com/stratakit/strata/internal/auth/postgres"
	"github.com/stratakit/strata/internal/config"
	"github.com/stratakit/strata/internal/httpapi"
	"github.com/stratakit/strata/internal/logging"
	"github.com/stratakit/strata/internal/observability"
	"github.com/stratakit/strata/internal/store"
	"github.com/stratakit/strata/pkg/errutil"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication API server",
		Long: `Start the HTTP API server for sign-up, sign-in, session
validation, email verification, and password resets.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd)
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	logging.SetDefault("strata", version, cfg.LogFormat)

	slog.Info("starting auth service",
		"listen_addr", cfg.ListenAddr,
		"metrics_addr", cfg.MetricsAddr,
		"log_format", cfg.LogFormat,
	)

	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database URL is required (flag, config file, or DATABASE_URL)")
	}

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	slog.Info("connected to database")

	pgStore := authpg.NewStore(pool)

	policy, err := auth.NewRenewalPolicy(cfg.SessionRefreshInterval)
	if err != nil {
		return err
	}
	sessions, err := auth.NewSessionManager(pgStore.Sessions(), pgStore.Users(), policy)
	if err != nil {
		return err
	}

	limiter := auth.NewMemoryRateLimiter()
	hasher := auth.NewPBKDF2Hasher()

	authSvc, err := auth.NewService(
		pgStore,
		pgStore.Users(),
		pgStore.Accounts(),
		sessions,
		hasher,
		limiter,
		pgStore.VerifyEmailTokens(),
	)
	if err != nil {
		return err
	}
	if err := authSvc.SetRateLimit(auth.RateLimit{Limit: cfg.RateLimitMax, Window: cfg.RateLimitWindow}); err != nil {
		return err
	}

	resetSvc, err := auth.NewPasswordResetService(
		pgStore.Users(),
		pgStore.Accounts(),
		pgStore.ResetTokens(),
		sessions,
		hasher,
	)
	if err != nil {
		return err
	}

	proxies, err := httpapi.NewProxyTrust(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start observability server if configured
	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
			defer pingCancel()
			return pool.Ping(pingCtx) == nil
		})
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		metrics = obsServer.Metrics()
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	handler, err := httpapi.NewHandler(
		authSvc,
		resetSvc,
		sessions,
		httpapi.CookiePolicy{Secure: cfg.SecureCookies},
		proxies,
		metrics,
		slog.Default(),
	)
	if err != nil {
		return err
	}

	apiServer := httpapi.NewServer(cfg.ListenAddr, handler.Routes())
	apiErrChan, err := apiServer.Start()
	if err != nil {
		if obsServer != nil {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer stopCancel()
			if stopErr := obsServer.Stop(stopCtx); stopErr != nil {
				slog.Warn("failed to stop observability server during cleanup", "error", stopErr)
			}
		}
		return oops.With("operation", "start api server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	// Background sweep of expired sessions and one-time tokens. Validation
	// reaps expired rows on sight; the sweep bounds growth of rows that are
	// never presented again.
	go runJanitor(ctx, pgStore, limiter, cfg.CleanupInterval)

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Auth service started")
	slog.Info("auth service ready", "addr", apiServer.Addr())

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	// Graceful shutdown
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// runJanitor periodically deletes expired sessions and one-time tokens and
// prunes stale rate-limit windows. Exits when the context is cancelled.
func runJanitor(ctx context.Context, pgStore *authpg.Store, limiter *auth.MemoryRateLimiter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sessionRepo := pgStore.Sessions()
	verifyRepo := pgStore.VerifyEmailTokens()
	resetRepo := pgStore.ResetTokens()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if n, err := sessionRepo.DeleteExpired(ctx); err != nil {
			observability.RecordCleanupFailure("sessions")
			errutil.LogWarn(slog.Default(), "expired session sweep failed", err)
		} else if n > 0 {
			slog.Debug("swept expired sessions", "count", n)
		}

		if n, err := verifyRepo.DeleteExpired(ctx); err != nil {
			observability.RecordCleanupFailure("verify_email_tokens")
			errutil.LogWarn(slog.Default(), "expired verify-email token sweep failed", err)
		} else if n > 0 {
			slog.Debug("swept expired verify-email tokens", "count", n)
		}

		if n, err := resetRepo.DeleteExpired(ctx); err != nil {
			observability.RecordCleanupFailure("reset_tokens")
			errutil.LogWarn(slog.Default(), "expired reset token sweep failed", err)
		} else if n > 0 {
			slog.Debug("swept expired reset tokens", "count", n)
		}

		limiter.Prune()
	}
}

// monitorServerErrors monitors a server's error channel and cancels the
// context on error, so a server failure triggers shutdown of the whole
// process. It exits when an error is received, the channel is closed, or
// the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
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
		// Context cancelled, exit monitoring
	}
}
