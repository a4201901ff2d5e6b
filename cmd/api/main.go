package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/atlasmed/casematch-backend/api/routes"
	"github.com/atlasmed/casematch-backend/internal/assignments"
	"github.com/atlasmed/casematch-backend/internal/capacity"
	"github.com/atlasmed/casematch-backend/internal/cases"
	"github.com/atlasmed/casematch-backend/internal/matching"
	"github.com/atlasmed/casematch-backend/pkg/config"
	"github.com/atlasmed/casematch-backend/pkg/db"
	"github.com/atlasmed/casematch-backend/pkg/logger"
	"github.com/atlasmed/casematch-backend/pkg/metrics"
	"github.com/atlasmed/casematch-backend/pkg/migrate"
	"github.com/atlasmed/casematch-backend/pkg/outbox"
	"github.com/atlasmed/casematch-backend/pkg/redis"
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

	assignmentService, err := assignments.NewService(assignments.ServiceParams{
		DB:        dbClient,
		Cases:     cases.NewRepository(dbClient.DB()),
		Repo:      assignments.NewRepository(dbClient.DB()),
		Capacity:  capacity.NewCachedReader(capacity.NewRepository(dbClient.DB()), redisClient, cfg.Redis.SnapshotTTL, logg),
		Scorer:    scorer,
		Outbox:    outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Recompute: capacity.NewRedisTrigger(redisClient, logg),
		Metrics:   metrics.NewMatchingMetrics(promRegistry),
		Matching:  cfg.Matching,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create assignment service", err)
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
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, assignmentService, promRegistry),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
