package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/atlasmed/casematch-backend/internal/assignments"
	"github.com/atlasmed/casematch-backend/internal/capacity"
	"github.com/atlasmed/casematch-backend/internal/cases"
	"github.com/atlasmed/casematch-backend/internal/cron"
	"github.com/atlasmed/casematch-backend/internal/matching"
	"github.com/atlasmed/casematch-backend/pkg/config"
	"github.com/atlasmed/casematch-backend/pkg/db"
	"github.com/atlasmed/casematch-backend/pkg/instance"
	"github.com/atlasmed/casematch-backend/pkg/logger"
	"github.com/atlasmed/casematch-backend/pkg/metrics"
	"github.com/atlasmed/casematch-backend/pkg/migrate"
	"github.com/atlasmed/casematch-backend/pkg/outbox"
	"github.com/atlasmed/casematch-backend/pkg/redis"
)

const lockKeyFormat = "cm:sweep-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "sweep-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "sweep-worker"

	logg = logger.New(logger.Options{
		ServiceName: "sweep-worker",
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

	scorer, err := matching.NewScorer(matching.ScorerParams{
		Weights:                  matching.DefaultWeights(),
		MinimumScoreThreshold:    cfg.Matching.MinimumScoreThreshold,
		WorkloadPenaltyThreshold: cfg.Matching.WorkloadPenaltyThreshold,
		Catalog:                  capacity.NewCatalog(dbClient.DB()),
		Logger:                   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scorer", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())

	assignmentService, err := assignments.NewService(assignments.ServiceParams{
		DB:        dbClient,
		Cases:     cases.NewRepository(dbClient.DB()),
		Repo:      assignments.NewRepository(dbClient.DB()),
		Capacity:  capacity.NewCachedReader(capacity.NewRepository(dbClient.DB()), redisClient, cfg.Redis.SnapshotTTL, logg),
		Scorer:    scorer,
		Outbox:    outbox.NewService(outboxRepo, logg),
		Recompute: capacity.NewRedisTrigger(redisClient, logg),
		Matching:  cfg.Matching,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create assignment service", err)
		os.Exit(1)
	}

	sweepJob, err := cron.NewExpirationSweepJob(cron.ExpirationSweepJobParams{
		Logger:      logg,
		Assignments: assignmentService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expiration sweep job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Sweep.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob, retentionJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Sweep.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting sweep worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sweep worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sweep worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
