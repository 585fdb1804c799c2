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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/arrowtech/storefront/api/routes"
	"github.com/arrowtech/storefront/internal/cart"
	"github.com/arrowtech/storefront/internal/gateway"
	"github.com/arrowtech/storefront/internal/products"
	"github.com/arrowtech/storefront/pkg/adyen"
	"github.com/arrowtech/storefront/pkg/config"
	"github.com/arrowtech/storefront/pkg/logger"
	"github.com/arrowtech/storefront/pkg/metrics"
	"github.com/arrowtech/storefront/pkg/redis"
)

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
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store       routes.RedisStore
		persistence cart.Persistence = cart.NewMemoryPersistence()
	)
	if cfg.Redis.Enabled() {
		redisClient, dialErr := redis.New(ctx, cfg.Redis, logg)
		if dialErr != nil {
			return dialErr
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
		store = redisClient
		persistence = cart.NewRedisPersistence(redisClient, cfg.Redis.CartTTL)
	} else {
		logg.Warn(ctx, "redis not configured, carts are kept in memory and idempotency is disabled")
	}

	catalog, err := products.LoadCatalogFile(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	if len(catalog.All()) == 0 {
		logg.Warn(ctx, "catalog is empty, set STOREFRONT_CATALOG_PATH to serve products")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pspMetrics := metrics.NewPSPMetrics(registry)

	pspClient, err := adyen.NewClient(cfg.Adyen, cfg.Breaker,
		adyen.WithMetrics(pspMetrics),
		adyen.WithLogger(logg),
	)
	if err != nil {
		return err
	}

	checkoutGateway, err := gateway.NewService(pspClient, cfg.Checkout, logg)
	if err != nil {
		return err
	}

	cartService, err := cart.NewService(persistence, catalog, cfg.Checkout.Currency, logg)
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"instance":  id,
		"adyen_env": cfg.Adyen.Environment(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, store, catalog, cartService, checkoutGateway,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logg.Info(ctx, "api server shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
