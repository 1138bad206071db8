package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wishbeeai/wishbee-backend/api/controllers"
	"github.com/wishbeeai/wishbee-backend/api/middleware"
	"github.com/wishbeeai/wishbee-backend/internal/donations"
	"github.com/wishbeeai/wishbee-backend/internal/settlement"
	"github.com/wishbeeai/wishbee-backend/pkg/config"
	"github.com/wishbeeai/wishbee-backend/pkg/db"
	"github.com/wishbeeai/wishbee-backend/pkg/logger"
	"github.com/wishbeeai/wishbee-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	promRegistry *prometheus.Registry,
	catalog donations.Catalog,
	settlementSvc settlement.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]db.Pinger{
			"postgres": dbP,
			"redis":    redisClient,
		}))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	// Idempotency is attached inline so the full route pattern is resolved by
	// the time it inspects the request.
	idem := middleware.Idempotency(redisClient, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/charities", controllers.CharityList(catalog, logg))

		minCard := cfg.Settlement.MinCardBalance
		r.Route("/gifts/{giftId}", func(r chi.Router) {
			r.With(idem).Post("/settlement/session", controllers.SettlementSessionCreate(settlementSvc, minCard, logg))
			r.Get("/settlement", controllers.SettlementHistory(settlementSvc, logg))
			r.Get("/settlement/{settlementId}", controllers.SettlementReceipt(settlementSvc, logg))
		})

		r.Route("/settlement/{sessionId}", func(r chi.Router) {
			r.With(idem).Post("/gift-card", controllers.SettlementGiftCard(settlementSvc, minCard, logg))
			r.With(idem).Post("/donation", controllers.SettlementDonation(settlementSvc, minCard, logg))
			r.With(idem).Post("/tip", controllers.SettlementTip(settlementSvc, minCard, logg))
		})
	})

	return r
}
