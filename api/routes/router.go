package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/auction-engine/api/controllers"
	"github.com/angelmondragon/auction-engine/api/middleware"
	"github.com/angelmondragon/auction-engine/internal/auctions"
	"github.com/angelmondragon/auction-engine/pkg/config"
	"github.com/angelmondragon/auction-engine/pkg/db"
	"github.com/angelmondragon/auction-engine/pkg/enums"
	"github.com/angelmondragon/auction-engine/pkg/logger"
	"github.com/angelmondragon/auction-engine/pkg/redis"
)

// RedisStore covers the redis operations the HTTP surface needs: readiness,
// idempotency records and rate-limit counters.
type RedisStore interface {
	redis.Pinger
	redis.IdempotencyStore
	middleware.RateLimiterStore
}

// RouterParams wires the API's dependencies.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    RedisStore
	Auctions auctions.Service
	Hub      controllers.StreamSubscriber
	Gatherer prometheus.Gatherer
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	bidPolicy := middleware.NewRateLimitPolicy(
		"bids",
		cfg.BidRateLimit.Window,
		cfg.BidRateLimit.IPLimit,
		cfg.BidRateLimit.BidderLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readinessDeps(params), logg))
	})

	if params.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(params.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auctions", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, middleware.AuthOptions{}, logg),
			middleware.Idempotency(params.Redis, logg),
		)
		r.Get("/{auctionId}", controllers.AuctionSnapshot(params.Auctions, logg))
		r.Get("/{auctionId}/bids", controllers.AuctionBids(params.Auctions, logg))
		r.With(middleware.RateLimit(bidPolicy, params.Redis, logg)).
			Post("/{auctionId}/bids", controllers.SubmitBid(params.Auctions, logg))
	})

	r.Route("/api/admin/v1/auctions", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, middleware.AuthOptions{}, logg),
			middleware.RequireRole(logg, enums.UserRoleAdmin),
			middleware.Idempotency(params.Redis, logg),
		)
		r.Post("/", controllers.AdminCreateAuction(params.Auctions, logg))
		r.Post("/{auctionId}/start", controllers.AdminStartAuction(params.Auctions, logg))
		r.Post("/{auctionId}/end", controllers.AdminEndAuction(params.Auctions, logg))
		r.Post("/{auctionId}/cancel", controllers.AdminCancelAuction(params.Auctions, logg))
	})

	r.With(middleware.Auth(cfg.JWT, middleware.AuthOptions{AllowQueryToken: true}, logg)).
		Get("/ws/auctions/{auctionId}", controllers.AuctionStream(params.Auctions, params.Hub, logg))

	return r
}

func readinessDeps(params RouterParams) map[string]controllers.Pinger {
	deps := map[string]controllers.Pinger{}
	if params.DB != nil {
		deps["database"] = params.DB
	}
	if params.Redis != nil {
		deps["redis"] = params.Redis
	}
	return deps
}
