// Copyright (c) 2026 TalentGrid. All rights reserved.
// Author: platform@talentgrid.dev

// Command api is the entry point for the TalentGrid identity API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire domain services and HTTP handlers.
//  7. Start background sweepers.
//  8. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talentgrid/identity/internal/api"
	"github.com/talentgrid/identity/internal/identity/audit"
	"github.com/talentgrid/identity/internal/identity/auth"
	"github.com/talentgrid/identity/internal/identity/email"
	"github.com/talentgrid/identity/internal/identity/federation"
	"github.com/talentgrid/identity/internal/identity/session"
	"github.com/talentgrid/identity/internal/identity/user"
	"github.com/talentgrid/identity/internal/platform/config"
	"github.com/talentgrid/identity/internal/platform/constants"
	"github.com/talentgrid/identity/internal/platform/migration"
	pgstore "github.com/talentgrid/identity/internal/platform/postgres"
	redisstore "github.com/talentgrid/identity/internal/platform/redis"
	"github.com/talentgrid/identity/internal/platform/sec"
	"github.com/talentgrid/identity/internal/sso"
	"github.com/talentgrid/identity/internal/sso/authcode"
	ssoclient "github.com/talentgrid/identity/internal/sso/client"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", "talentgrid-identity"))
	slog.SetDefault(log)

	log.Info("[TalentGrid] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "talentgrid-identity"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Token Service ──────────────────────────────────────────────────
	tokenService := sec.NewTokenService(
		cfg.AccessTokenSecret,
		cfg.RefreshTokenSecret,
		cfg.ServiceTokenSecret,
		constants.AuthIssuer,
	)

	// ── 7. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 8. Cross-Cutting Sinks ────────────────────────────────────────────
	auditSink := audit.NewSlogSink(log)
	emailSender := email.NewSlogSender(log)

	// ── 9. Identity Domain ────────────────────────────────────────────────
	userRepository := user.NewRepository(pool)
	roleRepository := user.NewRoleRepository(pool)
	claimsResolver := user.NewClaimsResolver(userRepository, roleRepository)

	sessionStore := session.NewPostgresStore(pool)
	sessionService := session.NewService(sessionStore, tokenService, claimsResolver, userRepository, auditSink)

	authService := auth.NewService(userRepository, sessionService, auditSink)
	authHandler := auth.NewHandler(authService)

	// ── 10. SSO Domain ────────────────────────────────────────────────────
	clientStore := ssoclient.NewPostgresStore(pool)
	clientService := ssoclient.NewService(clientStore, cfg.LogoutURIDomainAllowlist, auditSink)
	clientHandler := ssoclient.NewHandler(clientService)

	codeStore := authcode.NewRedisStore(rdb)
	ssoService := sso.NewService(clientService, codeStore, userRepository, roleRepository, sessionService, auditSink)
	ssoHandler := sso.NewHandler(ssoService, clientService, cfg.LoginPageURL)

	// ── 11. Federation Bridges ────────────────────────────────────────────
	// A bridge is wired only when its provider settings are configured, so a
	// deployment can run with any subset of upstream providers.
	var bridges []federation.Bridge
	if cfg.GoogleClientID != "" {
		googleBridge, gerr := federation.NewGoogleBridge(startupCtx, cfg.GoogleClientID)
		must(log, gerr, "initialize google bridge")
		bridges = append(bridges, googleBridge)
		log.Info("federation_bridge_enabled", slog.String("provider", "google"))
	}
	if cfg.SupabaseJWTSecret != "" {
		bridges = append(bridges, federation.NewSupabaseBridge(cfg.SupabaseJWTSecret))
		log.Info("federation_bridge_enabled", slog.String("provider", "supabase"))
	}

	federationService := federation.NewService(
		bridges,
		userRepository,
		roleRepository,
		sessionService,
		clientCredentialChecker{clients: clientService},
		auditSink,
		emailSender,
	)
	federationHandler := federation.NewHandler(federationService)

	// ── 12. Background Sweepers ───────────────────────────────────────────
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go sweepSessions(sweepCtx, sessionService, log)

	// ── 13. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:   liveness,
		Readiness:  readiness,
		Auth:       authHandler,
		Federation: federationHandler,
		SSO:        ssoHandler,
		Clients:    clientHandler,
	}

	server := api.NewServer(sweepCtx, cfg, log, tokenService, userRepository, handlers)

	// ── 14. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// clientCredentialChecker adapts the client registry's credential check to the
// narrower interface the federation service needs. Federation callers never
// see the client record itself.
type clientCredentialChecker struct {
	clients *ssoclient.Service
}

func (checker clientCredentialChecker) ValidateClient(context context.Context, clientID, clientSecret string) error {
	_, err := checker.clients.ValidateClient(context, clientID, clientSecret)
	return err
}

// sweepSessions periodically deletes expired session rows.
//
// Expired sessions are already unusable; the sweep only reclaims storage.
func sweepSessions(context context.Context, sessions *session.Service, log *slog.Logger) {
	ticker := time.NewTicker(constants.SessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-context.Done():
			return
		case <-ticker.C:
			removed, err := sessions.CleanupExpiredSessions(context)
			if err != nil {
				log.Error("session_sweep_failed", slog.Any("error", err))
				continue
			}
			if removed > 0 {
				log.Info("session_sweep_completed", slog.Int64("removed", removed))
			}
		}
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
