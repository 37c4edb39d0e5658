package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packfinderz-cart/api/controllers"
	cartcontrollers "github.com/angelmondragon/packfinderz-cart/api/controllers/cart"
	"github.com/angelmondragon/packfinderz-cart/api/middleware"
	"github.com/angelmondragon/packfinderz-cart/pkg/config"
	"github.com/angelmondragon/packfinderz-cart/pkg/logger"
	"github.com/angelmondragon/packfinderz-cart/pkg/redis"
)

// NewRouter wires the cart API. idempotency may be nil, in which case retried adds are not
// deduplicated; gatherer may be nil to skip /metrics.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	carts cartcontrollers.Opener,
	idempotency redis.IdempotencyStore,
	pingers map[string]controllers.Pinger,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingers))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", cartcontrollers.CartFetch(carts, logg))
		r.Delete("/", cartcontrollers.CartClear(carts, logg))
		r.Post("/preview", cartcontrollers.CartPreview(carts, logg))
		r.With(middleware.Idempotency(idempotency, cfg.Cart.IdempotencyTTL, logg)).Post("/items", cartcontrollers.CartAddItem(carts, logg))
		r.Patch("/items/{itemID}", cartcontrollers.CartUpdateItem(carts, logg))
		r.Delete("/items/{itemID}", cartcontrollers.CartRemoveItem(carts, logg))
	})

	return r
}
