package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/auction-engine/internal/auctions"
	"github.com/angelmondragon/auction-engine/internal/cron"
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

const lockKeyFormat = "auction:cron-worker:lock:%s:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	// clock-driven transitions reach API stream subscribers through the bridge
	if err := cfg.Notifications.RequireFanOut(cfg.Service.Kind); err != nil {
		logg.Error(context.Background(), "invalid notifications config", err)
		os.Exit(1)
	}
	bridge, closeBridge, err := notifications.BridgeFromConfig(cfg.Notifications, redisClient, "auction-cron-worker", logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications bridge", err)
		os.Exit(1)
	}
	defer closeBridge()

	hub := notifications.NewHub(notifications.Options{
		QueueSize: cfg.Notifications.HubQueueSize,
		Bridge:    bridge,
		Logger:    logg,
	})

	auctionMetrics := metrics.NewAuctionMetrics(prometheus.DefaultRegisterer)
	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

	settlementService, err := settlement.NewService(settlement.ServiceParams{
		Repo:          settlement.NewRepository(dbClient.DB()),
		DB:            dbClient,
		Outbox:        outboxService,
		Metrics:       auctionMetrics,
		Logger:        logg,
		PaymentWindow: cfg.Auctions.PaymentWindow,
	})
	requireResource(logg, "settlement service", err)

	auctionService, err := auctions.NewService(auctions.ServiceParams{
		Repo:    auctions.NewRepository(dbClient.DB()),
		DB:      dbClient,
		Settler: settlementService,
		Outbox:  outboxService,
		Events:  hub,
		Metrics: auctionMetrics,
		Logger:  logg,
	})
	requireResource(logg, "auction service", err)

	lifecycleJob, err := cron.NewAuctionLifecycleJob(cron.AuctionLifecycleJobParams{
		Logger:     logg,
		Reconciler: auctionService,
		BatchSize:  cfg.Auctions.SweepBatchSize,
	})
	requireResource(logg, "auction lifecycle job", err)

	sweepJob, err := cron.NewSettlementSweepJob(cron.SettlementSweepJobParams{
		Logger:    logg,
		Settler:   settlementService,
		BatchSize: cfg.Auctions.SettlementBatch,
	})
	requireResource(logg, "settlement sweep job", err)

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Repository:    outboxRepo,
		RetentionDays: cfg.Outbox.RetentionDays,
	})
	requireResource(logg, "outbox retention job", err)

	jobMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	scheduler := newCronService(logg, redisClient, jobMetrics, cfg.App.Env, "auction-scheduler",
		cfg.Auctions.SchedulerInterval, lifecycleJob, sweepJob)
	maintenance := newCronService(logg, redisClient, jobMetrics, cfg.App.Env, "maintenance",
		cfg.Auctions.MaintenanceEvery, retentionJob)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return hub.Run(groupCtx) })
	group.Go(func() error { return scheduler.Run(groupCtx) })
	group.Go(func() error { return maintenance.Run(groupCtx) })
	if cfg.App.MetricsAddr != "" {
		group.Go(func() error { return serveMetrics(groupCtx, cfg.App.MetricsAddr) })
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func newCronService(logg *logger.Logger, redisClient *redis.Client, jobMetrics *metrics.CronJobMetrics, env, name string, interval time.Duration, jobs ...cron.Job) *cron.Service {
	// the lock must outlive one cycle but expire soon after a crash
	lock, err := cron.NewRedisLock(redisClient, lockKey(env, name), lockTTL(interval))
	requireResource(logg, name+" lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Name:     name,
		Logger:   logg,
		Registry: cron.NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: interval,
	})
	requireResource(logg, name+" service", err)
	return service
}

func lockTTL(interval time.Duration) time.Duration {
	ttl := 2 * interval
	if ttl < 30*time.Second {
		return 30 * time.Second
	}
	return ttl
}

func lockKey(env, name string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env, name)
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
