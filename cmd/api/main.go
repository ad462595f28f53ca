package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/auction-engine/api/routes"
	"github.com/angelmondragon/auction-engine/internal/auctions"
	"github.com/angelmondragon/auction-engine/internal/notifications"
	"github.com/angelmondragon/auction-engine/internal/settlement"
	"github.com/angelmondragon/auction-engine/pkg/config"
	"github.com/angelmondragon/auction-engine/pkg/db"
	"github.com/angelmondragon/auction-engine/pkg/logger"
	"github.com/angelmondragon/auction-engine/pkg/metrics"
	"github.com/angelmondragon/auction-engine/pkg/migrate"
	"github.com/angelmondragon/auction-engine/pkg/outbox"
	"github.com/angelmondragon/auction-engine/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
	cfg.Service.Kind = "api"

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

	bridge, closeBridge, err := notifications.BridgeFromConfig(cfg.Notifications, redisClient, "auction-api", logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications bridge", err)
		os.Exit(1)
	}
	defer closeBridge()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := notifications.NewHub(notifications.Options{
		QueueSize:        cfg.Notifications.HubQueueSize,
		SubscriberBuffer: cfg.Notifications.SubscriberBuffer,
		Bridge:           bridge,
		Logger:           logg,
		Metrics:          metrics.NewHubMetrics(registry),
	})

	auctionMetrics := metrics.NewAuctionMetrics(registry)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	settlementService, err := settlement.NewService(settlement.ServiceParams{
		Repo:          settlement.NewRepository(dbClient.DB()),
		DB:            dbClient,
		Outbox:        outboxService,
		Metrics:       auctionMetrics,
		Logger:        logg,
		PaymentWindow: cfg.Auctions.PaymentWindow,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	auctionService, err := auctions.NewService(auctions.ServiceParams{
		Repo:    auctions.NewRepository(dbClient.DB()),
		DB:      dbClient,
		Settler: settlementService,
		Outbox:  outboxService,
		Events:  hub,
		Metrics: auctionMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auction service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"serviceKind": cfg.Service.Kind,
		"bridge":      cfg.Notifications.BridgeKind(),
	})

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		if err := hub.Run(ctx); err != nil {
			logg.Error(ctx, "notifications hub stopped", err)
		}
	}()

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Auctions: auctionService,
			Hub:      hub,
			Gatherer: registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			stop()
			<-hubDone
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "api server shutting down")
	}

	// hub shutdown closes open streams; hijacked connections are not tracked by Shutdown
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown failed", err)
	}
	<-hubDone
	logg.Info(ctx, "api server stopped")
}
