package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dukerupert/mercato/internal"
	"github.com/dukerupert/mercato/internal/auth"
	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/events"
	"github.com/dukerupert/mercato/internal/handler/api"
	"github.com/dukerupert/mercato/internal/handler/webhook"
	"github.com/dukerupert/mercato/internal/memory"
	"github.com/dukerupert/mercato/internal/middleware"
	"github.com/dukerupert/mercato/internal/mongo"
	"github.com/dukerupert/mercato/internal/payment"
	"github.com/dukerupert/mercato/internal/postgres"
	"github.com/dukerupert/mercato/internal/router"
	"github.com/dukerupert/mercato/internal/routes"
	"github.com/dukerupert/mercato/internal/service"
	"github.com/dukerupert/mercato/internal/telemetry"
)

const (
	metricsNamespace = "mercato"
	shutdownTimeout  = 15 * time.Second
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Error tracking
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:         cfg.Sentry.DSN,
		Enabled:     cfg.Sentry.Enabled,
		Environment: cfg.Sentry.Environment,
		Release:     cfg.Sentry.Release,
		SampleRate:  cfg.Sentry.SampleRate,
	}, logger)
	if err != nil {
		return err
	}
	defer flushSentry()

	// Store
	store, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Metrics
	telemetry.InitBusinessMetrics(metricsNamespace)
	metrics := middleware.NewMetrics(metricsNamespace, prometheus.DefaultRegisterer)

	// Order events
	var publisher events.Publisher = events.Noop{}
	if cfg.NATS.URL != "" {
		logger.Info("Connecting to NATS...", "url", cfg.NATS.URL)
		nc, err := events.ConnectNATS(cfg.NATS.URL, logger)
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
		defer nc.Close()
		publisher = nc
	} else {
		logger.Info("NATS_URL not set, order events are discarded")
	}

	// Payment gateways
	registry := newPaymentRegistry(cfg, logger)

	// Services
	checkoutService := service.NewCheckoutService(store, registry, publisher, logger)
	orderService := service.NewOrderService(store, publisher, logger)
	tokens := auth.NewTokenManager(cfg.Auth.AccessTokenSecret, cfg.Auth.AccessTokenTTL)

	// ==========================================================================
	// Initialize middleware
	// ==========================================================================

	securityConfig := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env == "dev" {
		securityConfig.HSTSMaxAge = 0 // Disable HSTS in development
	}

	checkoutLimiter := middleware.NewRateLimiter(middleware.CheckoutRateLimiterConfig())
	defer checkoutLimiter.Stop()
	callbackLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer callbackLimiter.Stop()

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	r := router.New(
		telemetry.SentryMiddleware(),
		router.Recovery(logger),
		middleware.RequestID,
		middleware.WithRequestLogger(logger),
		metrics.Middleware,
		middleware.SecurityHeaders(securityConfig),
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		router.Logger(logger),
	)

	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		Store:   store,
		Metrics: metrics.Handler(),
	})
	routes.RegisterAPIRoutes(r, routes.APIDeps{
		OrderHandler:    api.NewOrderHandler(checkoutService, orderService, logger),
		Tokens:          tokens,
		Users:           store.Users(),
		CheckoutLimiter: checkoutLimiter,
	})
	routes.RegisterWebhookRoutes(r, routes.WebhookDeps{
		CallbackHandler: webhook.NewCallbackHandler(registry, checkoutService, logger),
		Limiter:         callbackLimiter,
	})

	// CORS wraps the mux so preflights for any route are answered.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router.CORS(allowedOrigins(cfg.ClientURL))(r),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// ==========================================================================
	// Start server
	// ==========================================================================

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.Env, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// openStore connects the configured store and prepares its schema. The
// returned func releases the connection.
func openStore(ctx context.Context, cfg internal.StoreConfig, logger *slog.Logger) (domain.Store, func(), error) {
	switch cfg.Driver {
	case internal.StoreDriverPostgres:
		if err := internal.MigrateDatabase(ctx, cfg.DatabaseURL, logger); err != nil {
			return nil, nil, fmt.Errorf("migration failed: %w", err)
		}

		logger.Info("Connecting to database...")
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Database connection established")
		return postgres.NewStore(pool), pool.Close, nil

	case internal.StoreDriverMongo:
		logger.Info("Connecting to mongo...", "database", cfg.MongoDatabase)
		store, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(context.Background())
			return nil, nil, fmt.Errorf("failed to create mongo indexes: %w", err)
		}
		logger.Info("Mongo connection established")
		return store, func() { _ = store.Close(context.Background()) }, nil

	default:
		logger.Warn("Using in-memory store; data is lost on restart")
		return memory.New(), func() {}, nil
	}
}

// newPaymentRegistry registers a gateway for every provider with credentials.
func newPaymentRegistry(cfg *internal.Config, logger *slog.Logger) *payment.Registry {
	var gateways []payment.Gateway

	if cfg.ZaloPay.Enabled() {
		gateways = append(gateways, payment.NewZaloPay(payment.ZaloPayConfig{
			AppID:     cfg.ZaloPay.AppID,
			Key1:      cfg.ZaloPay.Key1,
			Key2:      cfg.ZaloPay.Key2,
			Endpoint:  cfg.ZaloPay.Endpoint,
			ClientURL: cfg.ClientURL,
			ServerURL: cfg.ServerURL,
			Timeout:   cfg.GatewayTimeout,
		}))
	} else {
		logger.Warn("ZaloPay credentials not set, ZALO checkout disabled")
	}

	if cfg.Momo.Enabled() {
		gateways = append(gateways, payment.NewMomo(payment.MomoConfig{
			PartnerCode: cfg.Momo.PartnerCode,
			AccessKey:   cfg.Momo.AccessKey,
			SecretKey:   cfg.Momo.SecretKey,
			Endpoint:    cfg.Momo.Endpoint,
			ClientURL:   cfg.ClientURL,
			ServerURL:   cfg.ServerURL,
			Timeout:     cfg.GatewayTimeout,
		}))
	} else {
		logger.Warn("MoMo credentials not set, MOMO checkout disabled")
	}

	return payment.NewRegistry(gateways...)
}

func allowedOrigins(clientURL string) []string {
	var origins []string
	for _, o := range strings.Split(clientURL, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, strings.TrimSuffix(o, "/"))
		}
	}
	return origins
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
