// Copyright 2026 The ChurchStack Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/churchstack/churchstack/internal/audit"
	"github.com/churchstack/churchstack/internal/billing"
	"github.com/churchstack/churchstack/internal/config"
	"github.com/churchstack/churchstack/internal/identity"
	"github.com/churchstack/churchstack/internal/invite"
	"github.com/churchstack/churchstack/internal/notify"
	"github.com/churchstack/churchstack/internal/observability/logger"
	"github.com/churchstack/churchstack/internal/observability/metrics"
	"github.com/churchstack/churchstack/internal/observability/tracing"
	"github.com/churchstack/churchstack/internal/policy"
	"github.com/churchstack/churchstack/internal/store/postgres"
	"github.com/churchstack/churchstack/internal/tenancy"
	transportHTTP "github.com/churchstack/churchstack/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting churchstack policy engine")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if len(os.Args) > 1 && os.Args[1] == "bootstrap" {
		if err := runBootstrap(cfg); err != nil {
			fmt.Printf("Bootstrap failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	ctx := context.Background()

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	db, err := connect(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	churchRepo := postgres.NewChurchRepository(db)
	branchRepo := postgres.NewBranchRepository(db)
	memberRepo := postgres.NewMemberRepository(db)
	billingRepo := postgres.NewBillingRepository(db)
	inviteRepo := postgres.NewInviteRepository(db)

	// Services
	auditLogger := audit.NewSlogLogger()
	identityService := newIdentityService(cfg, userRepo, auditLogger)
	tokens := identity.NewTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.TokenLifetime)
	resolver := tenancy.NewResolver(memberRepo, branchRepo)
	enforcer := billing.NewEnforcer(billingRepo)
	inviteService := invite.NewService(inviteRepo, branchRepo, enforcer, notify.NewSlogNotifier(), auditLogger)
	policyService := policy.NewService(branchRepo, memberRepo, enforcer, inviteService, auditLogger)

	bootstrapService := identity.NewBootstrapService(identityService, churchRepo, branchRepo, memberRepo, auditLogger)
	if err := bootstrapService.Bootstrap(ctx); err != nil {
		slog.Error("bootstrap failed", logger.Error(err))
	}

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	handler := transportHTTP.NewHandler(identityService, tokens, resolver, policyService, meter)
	router := transportHTTP.NewRouter(handler, rateLimiter)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func connect(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	return postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
}

func newIdentityService(cfg *config.Config, userRepo identity.UserRepository, auditLogger audit.Logger) *identity.Service {
	hasher := identity.NewPasswordHasher(
		cfg.Auth.Argon2Memory,
		cfg.Auth.Argon2Iterations,
		cfg.Auth.Argon2Parallelism,
		cfg.Auth.Argon2SaltLength,
		cfg.Auth.Argon2KeyLength,
	)
	return identity.NewService(
		userRepo,
		hasher,
		auditLogger,
		cfg.Auth.LockoutMaxAttempts,
		cfg.Auth.LockoutDuration,
	)
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}

func runBootstrap(cfg *config.Config) error {
	ctx := context.Background()
	db, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	auditLogger := audit.NewSlogLogger()
	identityService := newIdentityService(cfg, postgres.NewUserRepository(db), auditLogger)
	bootstrapService := identity.NewBootstrapService(
		identityService,
		postgres.NewChurchRepository(db),
		postgres.NewBranchRepository(db),
		postgres.NewMemberRepository(db),
		auditLogger,
	)

	return bootstrapService.Bootstrap(ctx)
}
