package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/civicdesk/grievance-api/internal/repository"
	"github.com/civicdesk/grievance-api/internal/service"
	"github.com/civicdesk/grievance-api/pkg/cache"
	"github.com/civicdesk/grievance-api/pkg/config"
	"github.com/civicdesk/grievance-api/pkg/database"
	"github.com/civicdesk/grievance-api/pkg/logger"
)

// One-shot escalation sweep for cron-style scheduling. The in-process ticker
// in the API server covers deployments without a scheduler; this binary is
// for the ones with one.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, sweeping without run lock", "error", err)
		redisClient = nil
	}

	svc := service.NewEscalationService(
		repository.NewGrievanceRepository(db),
		repository.NewEventRepository(db),
		repository.NewDepartmentRepository(db),
		repository.NewCacheRepository(redisClient, logr),
		cfg.Sweeper.LockTTL,
		cfg.Sweeper.BatchSize,
		logr,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	result, err := svc.Sweep(ctx)
	if err != nil {
		logr.Sugar().Errorw("sweep failed", "error", err)
		os.Exit(1)
	}
	logr.Sugar().Infow("sweep complete",
		"scanned", result.Scanned,
		"escalated", result.Escalated,
		"failed", result.Failed)
}
