package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"token-settlement-gateway/config"
	httpHandler "token-settlement-gateway/internal/adapter/http/handler"
	"token-settlement-gateway/internal/adapter/mail"
	pgStorage "token-settlement-gateway/internal/adapter/storage/postgres"
	redisStorage "token-settlement-gateway/internal/adapter/storage/redis"
	"token-settlement-gateway/internal/core/domain"
	"token-settlement-gateway/internal/core/ports"
	"token-settlement-gateway/internal/event"
	"token-settlement-gateway/internal/service"
	"token-settlement-gateway/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Token Settlement Gateway")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	if err := pgStorage.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database schema")
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	accountRepo := pgStorage.NewAccountRepo(pool)
	roleRepo := pgStorage.NewRoleRepo(pool)
	balanceRepo := pgStorage.NewBalanceRepo(pool)
	settlementRepo := pgStorage.NewSettlementRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Seed the Owner role for the configured administrative address before
	// the engine accepts any settlement.
	if cfg.Owner.Address != "" {
		owner := domain.NormalizeAddress(cfg.Owner.Address)
		if !domain.ValidAddress(owner) {
			log.Fatal().Str("address", cfg.Owner.Address).Msg("Configured owner address is invalid")
		}
		if err := roleRepo.Set(ctx, owner, domain.RoleOwner); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed owner role")
		}
		log.Info().Str("address", owner).Msg("Owner role seeded")
	} else {
		log.Warn().Msg("No owner address configured, cash-in is unavailable until a role is granted directly")
	}

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Event pipeline: outbox dispatcher -> bus -> mail listener
	bus := event.NewBus()
	defer bus.Close()

	dispatcher := service.NewCashOutDispatcher(
		settlementRepo, bus,
		cfg.Settlement.DispatchInterval, cfg.Settlement.DispatchBatch,
		log,
	)

	notifier := mail.NewClient(cfg.Mail, nil, log)
	listener := service.NewCashOutListener(settlementRepo, notifier, bus, cfg.Settlement.BusBuffer, log)
	listener.Start(ctx)
	dispatcher.Start(ctx)

	// Initialize business services
	authSvc := service.NewAuthService(accountRepo, hashSvc, tokenSvc)
	roleSvc := service.NewRoleService(roleRepo, log)
	querySvc := service.NewLedgerQueryService(balanceRepo, settlementRepo)
	engine := service.NewSettlementEngine(
		accountRepo, roleRepo, balanceRepo, settlementRepo,
		idempotencyCache, hashSvc, transactor,
		dispatcher.Kick,
		log,
	)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		Engine:         engine,
		RoleSvc:        roleSvc,
		QuerySvc:       querySvc,
		Journal:        settlementRepo,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
