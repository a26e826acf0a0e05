package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/checkout"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/config"
	deliveryhttp "github.com/egannguyen/go-kafka-ecommerce/storefront/internal/delivery/http"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/idempotency"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging/kafka"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging/watermill"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository/memory"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository/postgres"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Database ---
	store, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to init database", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	// --- Broker ---
	publisher, err := openPublisher(cfg, logger)
	if err != nil {
		slog.Error("Failed to init event publisher", "broker", cfg.Broker, "err", err)
		os.Exit(1)
	}
	defer publisher.Close()

	// --- Idempotency keys ---
	var idem idempotency.Store = idempotency.NewMemoryStore(cfg.IdempotencyTTL)
	if cfg.RedisURL != "" {
		idem, err = idempotency.NewRedisStore(cfg.RedisURL, cfg.IdempotencyTTL)
		if err != nil {
			slog.Error("Failed to connect to redis", "err", err)
			os.Exit(1)
		}
	}
	defer idem.Close()

	// --- Services ---
	catalog := service.NewCatalogService(store)
	if cfg.SeedCatalog {
		if err := catalog.Seed(ctx); err != nil {
			slog.Error("Failed to seed products", "err", err)
			os.Exit(1)
		}
	}
	orders := service.NewOrderService(store, publisher, idem, cfg.Pricing, checkout.NewOrderNumberGenerator(cfg.OrderNumberPrefix))
	handler := deliveryhttp.NewHandler(catalog, service.NewCartService(store), service.NewAddressService(store), orders)

	// --- HTTP API ---
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler.Routes(),
	}

	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr, "broker", cfg.Broker)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "err", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.DatabaseURL == config.MemoryDatabase {
		slog.Warn("Using in-memory store; data is lost on restart")
		return memory.NewStore(), nil
	}
	db, err := postgres.InitDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return postgres.NewStore(db), nil
}

func openPublisher(cfg *config.Config, logger *slog.Logger) (messaging.Publisher, error) {
	switch cfg.Broker {
	case config.BrokerWatermill:
		return watermill.NewKafkaPublisher(cfg.KafkaBrokers, logger)
	case config.BrokerNone:
		return messaging.NewLogPublisher(logger), nil
	default:
		return kafka.NewKafkaPublisher(cfg.KafkaBrokers), nil
	}
}
