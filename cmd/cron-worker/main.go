package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/anihan/coop-market-backend/internal/autoconfirm"
	"github.com/anihan/coop-market-backend/internal/cron"
	"github.com/anihan/coop-market-backend/internal/earnings"
	"github.com/anihan/coop-market-backend/internal/notifications"
	"github.com/anihan/coop-market-backend/internal/orders"
	"github.com/anihan/coop-market-backend/internal/products"
	"github.com/anihan/coop-market-backend/internal/stock"
	"github.com/anihan/coop-market-backend/pkg/clock"
	"github.com/anihan/coop-market-backend/pkg/config"
	"github.com/anihan/coop-market-backend/pkg/db"
	"github.com/anihan/coop-market-backend/pkg/logger"
	"github.com/anihan/coop-market-backend/pkg/metrics"
	"github.com/anihan/coop-market-backend/pkg/migrate"
	"github.com/anihan/coop-market-backend/pkg/redis"
)

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

	clk := clock.System()

	stockService, err := stock.NewService(
		stock.NewRepository(dbClient.DB(), clk),
		stock.NewTrailRepository(dbClient.DB()),
		dbClient,
		logg,
		clk,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create stock service", err)
		os.Exit(1)
	}

	productsService, err := products.NewService(products.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create products service", err)
		os.Exit(1)
	}

	earningsService, err := earnings.NewService(earnings.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create earnings service", err)
		os.Exit(1)
	}

	notifier, err := notifications.NewNotifier(notifications.NewRepository(dbClient.DB()), logg, clk)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		stockService,
		productsService,
		dbClient,
		notifier,
		earningsService,
		autoconfirm.NewRule(cfg.Orders.AutoConfirmGrace(), clk),
		logg,
		clk,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	autoConfirmJob, err := cron.NewAutoConfirmJob(cron.AutoConfirmJobParams{
		Logger: logg,
		Orders: ordersService,
		Grace:  cfg.Orders.AutoConfirmGrace(),
		Clock:  clk,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auto-confirm job", err)
		os.Exit(1)
	}

	reminderJob, err := cron.NewDelayedReminderJob(cron.DelayedReminderJobParams{
		Logger:        logg,
		Orders:        ordersService,
		Notifier:      notifier,
		ReminderAfter: cfg.Orders.DelayedReminderDays,
		Clock:         clk,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create delayed-reminder job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(autoConfirmJob, reminderJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
