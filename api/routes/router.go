package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/gomarketplace/api/controllers"
	"github.com/angelmondragon/gomarketplace/api/middleware"
	"github.com/angelmondragon/gomarketplace/internal/cart"
	"github.com/angelmondragon/gomarketplace/pkg/config"
	"github.com/angelmondragon/gomarketplace/pkg/kv"
	"github.com/angelmondragon/gomarketplace/pkg/logger"
)

// NewRouter mounts the loopback cart API. metricsHandler may be nil when no
// registry is exposed.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	store *cart.Store,
	backend kv.Pinger,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, store, backend))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.CartScope(store, logg))

		r.Get("/", controllers.CartFetch(logg))
		r.Post("/items", controllers.CartAddItem(logg))
		r.Post("/items/{id}/increment", controllers.CartIncrement(logg))
		r.Post("/items/{id}/decrement", controllers.CartDecrement(logg))
		r.Post("/flush", controllers.CartFlush(logg))
	})

	return r
}
