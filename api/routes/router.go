package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/comments"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(ctx context.Context, oldAccessID string, userID uuid.UUID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// RedisStore is the slice of the redis client the HTTP layer depends on.
type RedisStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

type webhookVerifier interface {
	ConstructEvent(payload []byte, header string) (stripe.Event, error)
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// Dependencies carries everything cmd/api builds for the router.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       RedisStore
	Sessions    sessionManager
	RateLimiter *middleware.IPRateLimiter
	Metrics     http.Handler

	Auth      auth.Service
	Register  auth.RegisterService
	Addresses address.Service
	Carts     cart.Service
	Checkout  checkout.Service
	Orders    orders.Service
	Payments  payments.Service
	Comments  comments.Service

	StripeVerifier webhookVerifier
	StripeWebhook  webhookcontrollers.StripeWebhookService
	StripeGuard    webhookGuard
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	loginThrottle := middleware.CredentialThrottle{
		Endpoint:   "login",
		Window:     cfg.AuthRateLimit.LoginWindow,
		PerIP:      cfg.AuthRateLimit.LoginIPLimit,
		PerAccount: cfg.AuthRateLimit.LoginEmailLimit,
	}
	registerThrottle := middleware.CredentialThrottle{
		Endpoint:   "register",
		Window:     cfg.AuthRateLimit.RegisterWindow,
		PerIP:      cfg.AuthRateLimit.RegisterIPLimit,
		PerAccount: cfg.AuthRateLimit.RegisterEmailLimit,
	}

	pingers := map[string]controllers.Pinger{}
	if deps.DB != nil {
		pingers["db"] = deps.DB
	}
	if deps.Redis != nil {
		pingers["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, pingers, logg))
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeVerifier, deps.StripeGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.Throttle(loginThrottle, deps.Redis, logg)).
			Post("/login", controllers.AuthLogin(deps.Auth, deps.Carts, cfg.Cart, logg))
		r.With(middleware.Throttle(registerThrottle, deps.Redis, logg)).
			Post("/register", controllers.AuthRegister(deps.Register, deps.Carts, cfg.Cart, logg))
		r.Post("/logout", controllers.AuthLogout(deps.Sessions, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Sessions, cfg.JWT, logg))
	})

	// Cart and catalog reads work for anonymous shoppers too.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(deps.RateLimiter, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, deps.Sessions, logg))
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(deps.Carts, cfg.Cart, logg))
				r.Post("/", cartcontrollers.CartAdd(deps.Carts, cfg.Cart, logg))
				r.Put("/", cartcontrollers.CartUpdate(deps.Carts, cfg.Cart, logg))
				r.Delete("/", cartcontrollers.CartRemove(deps.Carts, cfg.Cart, logg))
				r.Put("/selection", cartcontrollers.CartSelectAll(deps.Carts, cfg.Cart, logg))
			})
			r.Get("/items/{itemId}/comments", controllers.ItemComments(deps.Comments, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
			r.Use(middleware.Idempotency(deps.Redis, logg))

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", controllers.AddressList(deps.Addresses, logg))
				r.Post("/", controllers.AddressCreate(deps.Addresses, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.List(deps.Orders, logg))
				r.Post("/", ordercontrollers.Place(deps.Checkout, logg))
				r.Get("/settlement", ordercontrollers.Settlement(deps.Checkout, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
				r.Post("/{orderId}/receipt", ordercontrollers.ConfirmReceipt(deps.Orders, logg))
				r.Post("/{orderId}/payment-link", ordercontrollers.PaymentLink(deps.Payments, logg))
				r.Get("/{orderId}/uncommented", ordercontrollers.Uncommented(deps.Comments, logg))
				r.Post("/{orderId}/comments", ordercontrollers.SubmitComment(deps.Comments, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireStaff(logg))
				r.Post("/orders/{orderId}/ship", ordercontrollers.AdminShip(deps.Orders, logg))
			})
		})
	})

	return r
}
