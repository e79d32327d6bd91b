package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/groupbuy-backend/api/controllers"
	"github.com/angelmondragon/groupbuy-backend/api/middleware"
	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

// NewOpsRouter serves only probes and metrics. The workers expose it so the
// platform can health-check and scrape them.
func NewOpsRouter(cfg *config.Config, logg *logger.Logger, deps map[string]controllers.Pinger, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer(logg), middleware.RequestID(logg))
	mountOps(r, cfg, logg, deps, metricsHandler)
	return r
}

func mountOps(r chi.Router, cfg *config.Config, logg *logger.Logger, deps map[string]controllers.Pinger, metricsHandler http.Handler) {
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)
}
