package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wishbeeai/wishbee-backend/api/routes"
	"github.com/wishbeeai/wishbee-backend/internal/donations"
	"github.com/wishbeeai/wishbee-backend/internal/giftcards"
	"github.com/wishbeeai/wishbee-backend/internal/gifts"
	"github.com/wishbeeai/wishbee-backend/internal/settlement"
	"github.com/wishbeeai/wishbee-backend/internal/transparency"
	"github.com/wishbeeai/wishbee-backend/pkg/config"
	"github.com/wishbeeai/wishbee-backend/pkg/db"
	"github.com/wishbeeai/wishbee-backend/pkg/logger"
	"github.com/wishbeeai/wishbee-backend/pkg/metrics"
	"github.com/wishbeeai/wishbee-backend/pkg/migrate"
	"github.com/wishbeeai/wishbee-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	settlementMetrics := metrics.NewSettlementMetrics(promRegistry)

	giftService, err := gifts.NewService(gifts.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create gift service", err)
		os.Exit(1)
	}

	catalog, err := donations.NewCatalog(donations.NewCharityRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create charity catalog", err)
		os.Exit(1)
	}

	processor, err := donations.NewProcessor(cfg.Donations.ProcessorBaseURL)
	if err != nil {
		logg.Error(context.Background(), "failed to create donation processor", err)
		os.Exit(1)
	}

	issuer, err := giftcards.NewClient(cfg.GiftCards.IssuerBaseURL)
	if err != nil {
		logg.Error(context.Background(), "failed to create gift card client", err)
		os.Exit(1)
	}

	emailer := transparency.NewEmailer(cfg.Transparency.EmailBaseURL, cfg.Transparency.SendTimeout)

	sessionStore, err := settlement.NewSessionStore(redisClient, cfg.Settlement.SessionTTL, cfg.Settlement.ExternalCallTimeout)
	if err != nil {
		logg.Error(context.Background(), "failed to create session store", err)
		os.Exit(1)
	}

	settlementService, err := settlement.NewService(
		giftService,
		settlement.NewRepository(dbClient.DB()),
		sessionStore,
		issuer,
		processor,
		catalog,
		emailer,
		settlementMetrics,
		logg,
		settlement.Policy{
			MinCardBalance: cfg.Settlement.MinCardBalance,
			CallTimeout:    cfg.Settlement.ExternalCallTimeout,
			PublicBaseURL:  cfg.Web.PublicBaseURL,
			FeePolicy:      donations.PercentPlusFlat(cfg.Donations.FeePercent, cfg.Donations.FeeFlat),
		},
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, promRegistry, catalog, settlementService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
