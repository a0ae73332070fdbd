package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/trendora/trendora-backend/api/routes"
	"github.com/trendora/trendora-backend/internal/addresses"
	"github.com/trendora/trendora-backend/internal/auth"
	"github.com/trendora/trendora-backend/internal/cart"
	"github.com/trendora/trendora-backend/internal/checkout"
	"github.com/trendora/trendora-backend/internal/coupons"
	"github.com/trendora/trendora-backend/internal/orders"
	"github.com/trendora/trendora-backend/internal/products"
	"github.com/trendora/trendora-backend/internal/users"
	stripewebhook "github.com/trendora/trendora-backend/internal/webhooks/stripe"
	"github.com/trendora/trendora-backend/pkg/auth/session"
	"github.com/trendora/trendora-backend/pkg/config"
	"github.com/trendora/trendora-backend/pkg/db"
	"github.com/trendora/trendora-backend/pkg/logger"
	"github.com/trendora/trendora-backend/pkg/metrics"
	"github.com/trendora/trendora-backend/pkg/migrate"
	"github.com/trendora/trendora-backend/pkg/outbox"
	"github.com/trendora/trendora-backend/pkg/redis"
	"github.com/trendora/trendora-backend/pkg/storage/gcs"
	"github.com/trendora/trendora-backend/pkg/stripe"
)

const (
	shutdownTimeout = 15 * time.Second
	webhookGuardTTL = 24 * time.Hour
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	var gcsClient *gcs.Client
	if cfg.GCS.BucketName != "" {
		gcsClient, err = gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap gcs", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "gcs bucket not configured, product media disabled")
	}

	var stripeClient *stripe.Client
	if cfg.Stripe.APIKey != "" {
		stripeClient, err = stripe.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap stripe", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "stripe not configured, card payments disabled")
	}

	userRepo := users.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	intentClient := checkout.NewPaymentIntentClient(stripeClient)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	productRepo := products.NewRepository(dbClient.DB())
	productService, err := products.NewService(products.ServiceParams{
		Repo:                productRepo,
		Store:               gcsClient,
		Logger:              logg,
		MaxImagesPerProduct: cfg.Media.MaxImagesPerProduct,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	appliedStore := coupons.NewAppliedStore(redisClient, cfg.Coupons.AppliedTTL)
	couponService, err := coupons.NewService(coupons.ServiceParams{
		Repo:   coupons.NewRepository(dbClient.DB()),
		Store:  appliedStore,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon service", err)
		os.Exit(1)
	}

	cartRepo := cart.NewRepository(dbClient.DB())
	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:     cartRepo,
		Products: productRepo,
		Coupons:  couponService,
		Config:   cfg.Cart,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	orderRepo := orders.NewRepository(dbClient.DB())
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:    orderRepo,
		Tx:      dbClient,
		Outbox:  outboxService,
		Logger:  logg,
		Intents: intentClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Cart:      cartRepo,
		Orders:    orderRepo,
		Addresses: addresses.NewRepository(dbClient.DB()),
		Coupons:   couponService,
		Applied:   appliedStore,
		Tx:        dbClient,
		Outbox:    outboxService,
		Config:    cfg.Checkout,
		Logger:    logg,
		Intents:   intentClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	addressService, err := addresses.NewService(addresses.ServiceParams{
		Repo: addresses.NewRepository(dbClient.DB()),
		Tx:   dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create address service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Events:            stripewebhook.NewRepository(),
		Outbox:            outboxService,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookGuardTTL, "stripe:webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	httpMetrics := metrics.NewHTTPMetrics()

	var gcsPinger gcs.Pinger
	if gcsClient != nil {
		gcsPinger = gcsClient
	}

	handler := routes.NewRouter(cfg, logg, dbClient, redisClient, gcsPinger, httpMetrics, routes.Services{
		Auth:           authService,
		Products:       productService,
		Cart:           cartService,
		Coupons:        couponService,
		Checkout:       checkoutService,
		Orders:         orderService,
		Addresses:      addressService,
		Users:          userRepo,
		SessionManager: sessionManager,
		StripeClient:   stripeClient,
		StripeWebhook:  webhookService,
		WebhookGuard:   webhookGuard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	logg.Info(ctx, "starting api server")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "error during server shutdown", err)
	}

	if flusher, ok := cartService.(interface{ Flush() }); ok {
		flusher.Flush()
	}

	logg.Info(ctx, "api server shut down gracefully")
}
