package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arrowtech/storefront/api/controllers"
	"github.com/arrowtech/storefront/api/middleware"
	"github.com/arrowtech/storefront/internal/cart"
	"github.com/arrowtech/storefront/internal/products"
	"github.com/arrowtech/storefront/pkg/config"
	"github.com/arrowtech/storefront/pkg/logger"
	pkgredis "github.com/arrowtech/storefront/pkg/redis"
)

// RedisStore is the Redis surface used by the HTTP layer. A nil store disables
// idempotency replay and rate limiting, and readiness skips the Redis check.
type RedisStore interface {
	pkgredis.IdempotencyStore
	pkgredis.Pinger
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisStore RedisStore,
	catalog *products.Catalog,
	cartService cart.Service,
	checkoutGateway controllers.CheckoutGateway,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	var (
		idempotencyStore pkgredis.IdempotencyStore
		limiterStore     middleware.RateLimiterStore
		pinger           pkgredis.Pinger
	)
	if redisStore != nil {
		idempotencyStore = redisStore
		limiterStore = redisStore
		pinger = redisStore
	}

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.RateLimit.Window,
		cfg.RateLimit.IPLimit,
		cfg.RateLimit.CartLimit,
	)
	idempotent := middleware.Idempotency(idempotencyStore, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pinger))
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", controllers.ProductList(catalog, logg))
		r.Get("/featured", controllers.ProductFeatured(catalog))
		r.Get("/{productId}", controllers.ProductDetail(catalog, logg))
	})

	r.Route("/api/checkout", func(r chi.Router) {
		r.Use(middleware.CartContext(logg, false))
		r.Get("/config", controllers.CheckoutConfig(cfg))
		r.Get("/result", controllers.CheckoutResult())

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(checkoutPolicy, limiterStore, logg))
			r.Post("/create-session", controllers.CheckoutCreateSession(checkoutGateway, logg))
			r.With(idempotent).Post("/submit-payment", controllers.CheckoutSubmitPayment(checkoutGateway, logg))
			r.With(idempotent).Post("/submit-details", controllers.CheckoutSubmitDetails(checkoutGateway, logg))
		})
	})

	r.Route("/api/cart", func(r chi.Router) {
		r.Use(middleware.CartContext(logg, true))
		r.Get("/", controllers.CartFetch(cartService, logg))
		r.With(idempotent).Post("/items", controllers.CartAddItem(cartService, logg))
		r.Patch("/items/{itemId}", controllers.CartUpdateItem(cartService, logg))
		r.Delete("/items/{itemId}", controllers.CartRemoveItem(cartService, logg))
		r.Post("/clear", controllers.CartClear(cartService, logg))
		r.Post("/reset", controllers.CartReset(cartService, logg))
	})

	return r
}
