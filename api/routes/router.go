package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/farmcart-sync/api/controllers"
	"github.com/angelmondragon/farmcart-sync/api/middleware"
	"github.com/angelmondragon/farmcart-sync/pkg/config"
	"github.com/angelmondragon/farmcart-sync/pkg/enums"
	"github.com/angelmondragon/farmcart-sync/pkg/logger"
)

// Deps are the services the companion API is routed to.
type Deps struct {
	Session       controllers.SessionService
	CartGateway   controllers.CartGateway
	CartViews     controllers.CartViews
	SavedGateways map[enums.SavedKind]controllers.SavedGateway
	SavedViews    controllers.SavedViews
	Sync          controllers.SyncRunner
	Pingers       map[string]controllers.Pinger
	Metrics       http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.SessionContext(deps.Session, logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", controllers.SessionStatus(deps.Session, logg))
			r.Post("/", controllers.SessionLogin(deps.Session, logg))
			r.Delete("/", controllers.SessionLogout(deps.Session, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(deps.CartViews, logg))
			r.Delete("/", controllers.CartClear(deps.CartGateway, logg))
			r.Post("/items", controllers.CartAddItem(deps.CartGateway, logg))
			r.Patch("/items/{lineId}", controllers.CartUpdateItem(deps.CartGateway, logg))
			r.Post("/items/{lineId}/quantity", controllers.CartAdjustQuantity(deps.CartGateway, logg))
			r.Delete("/items/{lineId}", controllers.CartRemoveItem(deps.CartGateway, logg))
		})

		r.Route("/saved/{kind}", func(r chi.Router) {
			r.Get("/", controllers.SavedList(deps.SavedViews, logg))
			r.Put("/{id}", controllers.SavedPut(deps.SavedGateways, logg))
			r.Delete("/{id}", controllers.SavedDelete(deps.SavedGateways, logg))
			r.Post("/{id}/toggle", controllers.SavedToggle(deps.SavedGateways, logg))
		})

		r.Post("/sync", controllers.SyncRun(deps.Sync, deps.Session, logg))
	})

	return r
}
