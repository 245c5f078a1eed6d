package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/stockledger-backend/api/controllers"
	"github.com/angelmondragon/stockledger-backend/api/routes"
	"github.com/angelmondragon/stockledger-backend/internal/adjustments"
	"github.com/angelmondragon/stockledger-backend/internal/orders"
	"github.com/angelmondragon/stockledger-backend/internal/products"
	"github.com/angelmondragon/stockledger-backend/internal/stock"
	"github.com/angelmondragon/stockledger-backend/internal/tenancy"
	"github.com/angelmondragon/stockledger-backend/internal/warehouses"
	"github.com/angelmondragon/stockledger-backend/pkg/config"
	"github.com/angelmondragon/stockledger-backend/pkg/db"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
	"github.com/angelmondragon/stockledger-backend/pkg/metrics"
	"github.com/angelmondragon/stockledger-backend/pkg/migrate"
	"github.com/angelmondragon/stockledger-backend/pkg/outbox"
	"github.com/angelmondragon/stockledger-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Env:         cfg.App.Env,
		Format:      cfg.App.LogFormat,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	deps, err := buildDependencies(cfg, dbClient, redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	}
}

// buildDependencies wires every service the router serves. The ledger metrics are
// shared so stock and order counters land on one registry.
func buildDependencies(cfg *config.Config, dbClient *db.Client, redisClient *redis.Client, logg *logger.Logger) (routes.Dependencies, error) {
	reg := prometheus.DefaultRegisterer
	ledgerMetrics := metrics.NewLedgerMetrics(reg)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	tenantStore := tenancy.NewStore(dbClient.DB())
	resolver, err := tenancy.NewResolver(tenancy.ResolverParams{
		Store:      tenantStore,
		Cache:      redisClient,
		BaseDomain: cfg.Tenancy.BaseDomain,
		CacheTTL:   cfg.Tenancy.HostCacheTTL,
		Logger:     logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	tenantService, err := tenancy.NewService(tenantStore, dbClient, resolver, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}

	catalog, err := products.NewService(logg)
	if err != nil {
		return routes.Dependencies{}, err
	}
	warehouseService, err := warehouses.NewService(dbClient, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}
	stockService, err := stock.NewService(stock.ServiceParams{
		DB:         dbClient,
		Catalog:    catalog,
		Warehouses: warehouseService,
		Outbox:     outboxService,
		Metrics:    ledgerMetrics,
		Logger:     logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	adjustmentService, err := adjustments.NewService(dbClient, stockService, outboxService, logg)
	if err != nil {
		return routes.Dependencies{}, err
	}
	orderService, err := orders.NewService(orders.ServiceParams{
		DB:            dbClient,
		Catalog:       catalog,
		Warehouses:    warehouseService,
		Ledger:        stockService,
		Outbox:        outboxService,
		Metrics:       ledgerMetrics,
		NumberRetries: cfg.Orders.NumberRetries,
		Logger:        logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		DB:          dbClient,
		Redis:       redisClient,
		Outbox:      outboxService,
		Idempotency: redisClient,
		Resolver:    resolver,
		Scopes:      controllers.TenantScoper(dbClient.DB()),
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Gatherer:    prometheus.DefaultGatherer,
		Tenants:     tenantService,
		Warehouses:  warehouseService,
		Products:    catalog,
		Stock:       stockService,
		Adjustments: adjustmentService,
		Orders:      orderService,
	}, nil
}
