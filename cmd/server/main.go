package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpAdapter "github.com/openbill/arledger/internal/adapter/http"
	"github.com/openbill/arledger/internal/adapter/http/handler"
	postgresRepo "github.com/openbill/arledger/internal/adapter/repository/postgres"
	redisRepo "github.com/openbill/arledger/internal/adapter/repository/redis"
	"github.com/openbill/arledger/internal/infrastructure/config"
	"github.com/openbill/arledger/internal/infrastructure/eventpublisher"
	"github.com/openbill/arledger/internal/infrastructure/logger"
	"github.com/openbill/arledger/internal/infrastructure/metrics"
	"github.com/openbill/arledger/internal/infrastructure/postgres"
	"github.com/openbill/arledger/internal/infrastructure/redis"
	"github.com/openbill/arledger/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "arledger",
	})

	creditFloor, err := cfg.ParsedCreditFloor()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid credit floor")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	m := metrics.New()

	// Repositories
	txManager := postgresRepo.NewTxManager(pool)
	retrier := postgresRepo.NewRetrier(log)
	paymentRepo := postgresRepo.NewPaymentRepository(pool)
	entryRepo := postgresRepo.NewEntryRepository(pool)
	docRepo := postgresRepo.NewDocumentRepository(pool)
	creditRepo := postgresRepo.NewCreditRepository(pool)
	customerRepo := postgresRepo.NewCustomerRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	balanceCache := redisRepo.NewBalanceCache(redisClient)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	idGen := postgresRepo.NewULIDGenerator()

	// Use cases
	creditUC := usecase.NewCreditLedgerUseCase(creditRepo, customerRepo, balanceCache, idGen, creditFloor)
	projector := usecase.NewDocumentProjector(docRepo)
	paymentUC := usecase.NewPaymentUseCase(
		txManager, retrier, paymentRepo, entryRepo, docRepo, outboxRepo,
		creditUC, projector, idGen, m,
	)
	entryUC := usecase.NewEntryUseCase(
		txManager, retrier, entryRepo, paymentRepo, docRepo, outboxRepo,
		creditUC, projector, idGen,
	)
	consistencyUC := usecase.NewConsistencyUseCase(paymentRepo, entryRepo, creditRepo, customerRepo)

	// Handlers
	paymentHandler := handler.NewPaymentHandler(paymentUC, entryUC)
	entryHandler := handler.NewEntryHandler(entryUC)
	creditHandler := handler.NewCreditHandler(creditUC, creditRepo)
	consistencyHandler := handler.NewConsistencyHandler(consistencyUC)
	healthHandler := handler.NewHealthHandler(pool, redisClient)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		PaymentHandler:     paymentHandler,
		EntryHandler:       entryHandler,
		CreditHandler:      creditHandler,
		ConsistencyHandler: consistencyHandler,
		HealthHandler:      healthHandler,
		IdempotencyStore:   idempotencyStore,
		Logger:             &log,
		Metrics:            m,
	})

	// Outbox publisher drains events written alongside mutations.
	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  eventpublisher.NewLogPublisher(log),
		Logger:     log,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxInterval,
	})
	go func() {
		if err := publisher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("event publisher stopped")
		}
	}()

	server := newHTTPServer(cfg, router)

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      h,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}
}
