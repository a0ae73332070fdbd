package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trendora/trendora-backend/api/controllers"
	webhookcontrollers "github.com/trendora/trendora-backend/api/controllers/webhooks"
	"github.com/trendora/trendora-backend/api/middleware"
	addresssvc "github.com/trendora/trendora-backend/internal/addresses"
	authsvc "github.com/trendora/trendora-backend/internal/auth"
	cartsvc "github.com/trendora/trendora-backend/internal/cart"
	checkoutsvc "github.com/trendora/trendora-backend/internal/checkout"
	couponsvc "github.com/trendora/trendora-backend/internal/coupons"
	ordersvc "github.com/trendora/trendora-backend/internal/orders"
	productsvc "github.com/trendora/trendora-backend/internal/products"
	"github.com/trendora/trendora-backend/internal/users"
	stripewebhook "github.com/trendora/trendora-backend/internal/webhooks/stripe"
	"github.com/trendora/trendora-backend/pkg/auth/session"
	"github.com/trendora/trendora-backend/pkg/config"
	"github.com/trendora/trendora-backend/pkg/db"
	"github.com/trendora/trendora-backend/pkg/enums"
	"github.com/trendora/trendora-backend/pkg/logger"
	"github.com/trendora/trendora-backend/pkg/metrics"
	"github.com/trendora/trendora-backend/pkg/redis"
	"github.com/trendora/trendora-backend/pkg/storage/gcs"
	"github.com/trendora/trendora-backend/pkg/stripe"
)

// Services bundles everything the router mounts.
type Services struct {
	Auth      authsvc.Service
	Products  productsvc.Service
	Cart      cartsvc.Service
	Coupons   couponsvc.Service
	Checkout  checkoutsvc.Service
	Orders    ordersvc.Service
	Addresses addresssvc.Service
	Users     *users.Repository

	SessionManager *session.Manager
	StripeClient   *stripe.Client
	StripeWebhook  *stripewebhook.Service
	WebhookGuard   *stripewebhook.IdempotencyGuard
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient db.Pinger,
	redisClient *redis.Client,
	gcsClient gcs.Pinger,
	httpMetrics *metrics.HTTPMetrics,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
		httpMetrics.Middleware,
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbClient, redisClient, gcsClient))
	})
	r.Method(http.MethodGet, "/metrics", httpMetrics.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(svcs.StripeWebhook, svcs.StripeClient, svcs.WebhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(svcs.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(svcs.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(svcs.Auth, cfg.JWT, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductList(svcs.Products, logg))
		r.Get("/{productId}", controllers.ProductDetail(svcs.Products, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, svcs.SessionManager, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(svcs.Cart, logg))
			r.Delete("/", controllers.CartClear(svcs.Cart, logg))
			r.Post("/items", controllers.CartAddItem(svcs.Cart, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(svcs.Cart, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(svcs.Cart, logg))
			r.Post("/coupon", controllers.CartApplyCoupon(svcs.Cart, svcs.Coupons, logg))
			r.Delete("/coupon", controllers.CartRemoveCoupon(svcs.Cart, svcs.Coupons, logg))
		})

		r.Post("/checkout", controllers.Checkout(svcs.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(svcs.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(svcs.Orders, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", controllers.AddressList(svcs.Addresses, logg))
			r.Post("/", controllers.AddressCreate(svcs.Addresses, logg))
			r.Put("/{addressId}", controllers.AddressUpdate(svcs.Addresses, logg))
			r.Delete("/{addressId}", controllers.AddressDelete(svcs.Addresses, logg))
			r.Post("/{addressId}/default", controllers.AddressSetDefault(svcs.Addresses, logg))
		})

		r.Route("/me", func(r chi.Router) {
			r.Get("/", controllers.Me(svcs.Users, logg))
			r.Patch("/", controllers.UpdateMe(svcs.Users, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, svcs.SessionManager, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.AdminListProducts(svcs.Products, logg))
			r.Post("/", controllers.AdminCreateProduct(svcs.Products, cfg.Media, logg))
			r.Patch("/{productId}", controllers.AdminUpdateProduct(svcs.Products, cfg.Media, logg))
			r.Delete("/{productId}", controllers.AdminDeleteProduct(svcs.Products, logg))
		})

		r.Route("/coupons", func(r chi.Router) {
			r.Get("/", controllers.AdminListCoupons(svcs.Coupons, logg))
			r.Post("/", controllers.AdminCreateCoupon(svcs.Coupons, logg))
			r.Get("/{couponId}", controllers.AdminGetCoupon(svcs.Coupons, logg))
			r.Patch("/{couponId}", controllers.AdminUpdateCoupon(svcs.Coupons, logg))
			r.Delete("/{couponId}", controllers.AdminDeleteCoupon(svcs.Coupons, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrderList(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.AdminOrderDetail(svcs.Orders, logg))
			r.Patch("/{orderId}/status", controllers.AdminOrderUpdateStatus(svcs.Orders, logg))
		})
	})

	return r
}
