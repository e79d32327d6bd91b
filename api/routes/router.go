package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/groupbuy-backend/api/controllers"
	deliverycontrollers "github.com/angelmondragon/groupbuy-backend/api/controllers/delivery"
	poolcontrollers "github.com/angelmondragon/groupbuy-backend/api/controllers/pools"
	"github.com/angelmondragon/groupbuy-backend/api/middleware"
	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/groupbuy-backend/pkg/redis"
)

// RequestStore backs request idempotency and rate limiting.
type RequestStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Dependencies carries everything the API surface drives.
type Dependencies struct {
	DB        controllers.Pinger
	Redis     controllers.Pinger
	Store     RequestStore
	Pools     poolcontrollers.Service
	Discovery poolcontrollers.Discovery
	Delivery  deliverycontrollers.Service
	Metrics   *metrics.HTTPMetrics
	// MetricsHandler serves /metrics. Defaults to the global prometheus registry.
	MetricsHandler http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.Metrics),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	mountOps(r, cfg, logg, map[string]controllers.Pinger{
		"db":    deps.DB,
		"redis": deps.Redis,
	}, deps.MetricsHandler)

	apiPolicy := middleware.NewRateLimitPolicy("api", cfg.HTTP.RateLimitWindow, cfg.HTTP.RateLimit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RateLimit(apiPolicy, deps.Store, logg))
		r.Use(middleware.Idempotency(deps.Store, logg))

		r.Route("/pools", func(r chi.Router) {
			r.Get("/", poolcontrollers.ListOpen(deps.Discovery, logg))
			r.Post("/", poolcontrollers.Create(deps.Pools, logg))
			// declared ahead of /{poolID} so "nearby" is never read as an id
			r.Get("/nearby", poolcontrollers.ListNearby(deps.Discovery, logg))
			r.Route("/{poolID}", func(r chi.Router) {
				r.Get("/", poolcontrollers.Get(deps.Pools, logg))
				r.Post("/join", poolcontrollers.Join(deps.Pools, logg))
				r.Post("/withdraw", poolcontrollers.Withdraw(deps.Pools, logg))
				r.Post("/confirm", poolcontrollers.Confirm(deps.Pools, logg))
				r.Post("/cancel", poolcontrollers.Cancel(deps.Pools, logg))
				r.Post("/extend", poolcontrollers.Extend(deps.Pools, logg))
			})
		})

		r.Route("/delivery-runs", func(r chi.Router) {
			coordinator := middleware.RequireRole(logg, enums.ActorRoleCoordinator)
			r.With(coordinator).Post("/", deliverycontrollers.CreateRun(deps.Delivery, logg))
			r.Route("/{runID}", func(r chi.Router) {
				r.With(coordinator).Post("/driver", deliverycontrollers.AssignDriver(deps.Delivery, logg))
				r.With(coordinator).Post("/start", deliverycontrollers.StartRun(deps.Delivery, logg))
				r.Get("/driver", deliverycontrollers.DriverView(deps.Delivery, logg))
				r.Get("/tracking", deliverycontrollers.Tracking(deps.Delivery, logg))
			})
		})

		r.Route("/delivery-stops/{stopID}", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleDriver, enums.ActorRoleCoordinator))
			r.Post("/arrive", deliverycontrollers.Arrive(deps.Delivery, logg))
			r.Post("/complete", deliverycontrollers.Complete(deps.Delivery, logg))
			r.Post("/fail", deliverycontrollers.Fail(deps.Delivery, logg))
		})
	})

	return r
}
