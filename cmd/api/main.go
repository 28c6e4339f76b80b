package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/comments"
	"github.com/angelmondragon/storefront-backend/internal/items"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/users"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	gormDB := dbClient.DB()
	itemsRepo := items.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(gormDB),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	must(ctx, logg, "auth service", err)

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		SessionManager: sessionManager,
		PasswordConfig: cfg.Password,
		JWTConfig:      cfg.JWT,
	})
	must(ctx, logg, "register service", err)

	addressService, err := address.NewService(address.NewRepository(gormDB))
	must(ctx, logg, "address service", err)

	cartService, err := cart.NewService(redisClient, itemsRepo, logg)
	must(ctx, logg, "cart service", err)

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx: dbClient,
		Carts: checkout.CartOpenerFunc(func(userID uuid.UUID) (checkout.SelectedCart, error) {
			store, err := cartService.UserStore(userID)
			if err != nil {
				return nil, err
			}
			return store, nil
		}),
		Addresses: addressService,
		Items:     itemsRepo,
		Orders:    ordersRepo,
		Outbox:    outboxService,
		Freight:   cfg.Checkout.FreightAmount(),
		Metrics:   checkoutMetrics,
		Logger:    logg,
	})
	must(ctx, logg, "checkout service", err)

	ordersService, err := orders.NewService(ordersRepo, dbClient, outboxService, logg)
	must(ctx, logg, "orders service", err)

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Tx:        dbClient,
		Orders:    ordersRepo,
		Payments:  payments.NewRepository(gormDB),
		Gateway:   stripeClient,
		Outbox:    outboxService,
		Currency:  cfg.Checkout.Currency,
		UnpaidTTL: cfg.Orders.UnpaidTTL,
		Logger:    logg,
	})
	must(ctx, logg, "payments service", err)

	commentsService, err := comments.NewService(dbClient, ordersRepo, itemsRepo, outboxService, logg)
	must(ctx, logg, "comments service", err)

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Payments: paymentsService,
		Logger:   logg,
	})
	must(ctx, logg, "stripe webhook service", err)

	processed, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	must(ctx, logg, "idempotency manager", err)
	webhookGuard, err := stripewebhook.NewIdempotencyGuard(processed)
	must(ctx, logg, "stripe webhook guard", err)

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit)
	go pruneLimiter(ctx, limiter, cfg.RateLimit.IdleTTL)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"instance":    id,
		"stripe_env":  stripeClient.Environment(),
		"freight":     cfg.Checkout.FreightAmount().StringFixed(2),
		"cookie_cart": cfg.Cart.CookieName,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:             dbClient,
			Redis:          redisClient,
			Sessions:       sessionManager,
			RateLimiter:    limiter,
			Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			Auth:           authService,
			Register:       registerService,
			Addresses:      addressService,
			Carts:          cartService,
			Checkout:       checkoutService,
			Orders:         ordersService,
			Payments:       paymentsService,
			Comments:       commentsService,
			StripeVerifier: stripeClient,
			StripeWebhook:  webhookService,
			StripeGuard:    webhookGuard,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "api server shutdown", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(logCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(logCtx, "api server stopped")
}

func must(ctx context.Context, logg *logger.Logger, what string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "failed to create "+what, err)
	os.Exit(1)
}

// pruneLimiter drops per-IP limiters idle longer than ttl.
func pruneLimiter(ctx context.Context, limiter *middleware.IPRateLimiter, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune()
		}
	}
}
