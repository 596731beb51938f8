package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/bookworm-storefront/api/controllers"
	cartcontrollers "github.com/angelmondragon/bookworm-storefront/api/controllers/cart"
	"github.com/angelmondragon/bookworm-storefront/api/middleware"
	"github.com/angelmondragon/bookworm-storefront/pkg/config"
	"github.com/angelmondragon/bookworm-storefront/pkg/logger"
)

// Deps collects what the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Cart     cartcontrollers.Service
	Sessions controllers.SessionService
	// Ready lists the dependencies probed by /health/ready, by name.
	Ready map[string]controllers.Pinger
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(deps.Cart, logg))
			r.Delete("/", cartcontrollers.CartClear(deps.Cart, logg))
			r.Post("/save", cartcontrollers.CartSave(deps.Cart, logg))
			r.Post("/merge/retry", cartcontrollers.CartRetryMerge(deps.Cart, logg))
			r.Post("/items", cartcontrollers.CartAddItem(deps.Cart, logg))
			r.Patch("/items/{itemId}", cartcontrollers.CartUpdateItem(deps.Cart, logg))
			r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(deps.Cart, logg))
		})
		r.Route("/session", func(r chi.Router) {
			r.Get("/", controllers.SessionFetch(deps.Sessions, logg))
			r.Post("/login", controllers.SessionLogin(deps.Sessions, logg))
			r.Post("/logout", controllers.SessionLogout(deps.Sessions, logg))
		})
	})

	return r
}
