// Package main is the entry point for the Kumotsudai Hub background worker.
//
// The worker owns the periodic jobs: rebuilding the windowed ranking boards
// and pruning old ranking snapshots. It also consumes domain events published
// by API instances over Redis, so ranking notifications are created exactly
// once regardless of how many API replicas run.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/kumotsudai/kumotsudai-hub/config"
	"github.com/kumotsudai/kumotsudai-hub/internal/application/eventhandler"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/ranking"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
	"github.com/kumotsudai/kumotsudai-hub/internal/infrastructure/messaging"
	"github.com/kumotsudai/kumotsudai-hub/internal/infrastructure/persistence/postgres"
	"github.com/kumotsudai/kumotsudai-hub/internal/infrastructure/persistence/redis"
	"github.com/kumotsudai/kumotsudai-hub/internal/infrastructure/scheduler"
	"github.com/kumotsudai/kumotsudai-hub/internal/infrastructure/scheduler/jobs"
	"github.com/kumotsudai/kumotsudai-hub/pkg/logger"
	"github.com/kumotsudai/kumotsudai-hub/pkg/retry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required for the worker")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})
	log.Info("starting Kumotsudai Hub worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	var dbConn *postgres.Connection
	err = retry.Do(ctx, func(ctx context.Context) error {
		c, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return retry.Retryable(err)
		}
		if err := c.Ping(ctx); err != nil {
			c.Close()
			return retry.Retryable(err)
		}
		dbConn = c
		return nil
	},
		retry.WithMaxAttempts(5),
		retry.WithInitialDelay(time.Second),
		retry.WithMaxDelay(10*time.Second),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("database not ready, retrying",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer dbConn.Close()

	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	userRepo := postgres.NewUserRepository(dbConn)
	offeringRepo := postgres.NewOfferingRepository(dbConn)
	snapshotRepo := postgres.NewSnapshotRepository(dbConn)
	notificationRepo := postgres.NewNotificationRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache *redis.Cache
		boardCache ranking.BoardCache
	)

	if !cfg.Redis.Disabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		cache, err := redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("Redis unavailable, board caching disabled", logger.Err(err))
		} else {
			redisCache = cache
			defer redisCache.Close()
			boardCache = redis.NewBoardCache(redisCache, cfg.Redis.BoardTTL)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	var eventBus shared.EventBus

	localBusCfg := messaging.DefaultInMemoryEventBusConfig()
	localBusCfg.Logger = log

	if redisCache != nil {
		bridge := redis.NewEventBridge(redisCache)
		bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         bridge,
			InstanceID:     "worker-" + uuid.NewString(),
			LocalBusConfig: localBusCfg,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("start redis event bus: %w", err)
		}
		eventBus = bus
	} else {
		eventBus = messaging.NewInMemoryEventBus(localBusCfg)
	}
	defer eventBus.Close()

	// The worker is the single consumer of board rebuilds. Prayer and
	// guidance notices are created by the API instance that handled the
	// request, so only the ranking handler is wired here.
	onBoard := eventhandler.NewOnBoardRebuiltHandler(userRepo, notificationRepo, snapshotRepo, log)
	if err := eventBus.Subscribe(shared.EventBoardRebuilt, onBoard.Handle); err != nil {
		return fmt.Errorf("subscribe board rebuilt: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler disabled, worker will idle")
		return waitForShutdown(log)
	}

	sched := scheduler.New(scheduler.Config{
		Logger:            log,
		Timezone:          cfg.App.Location,
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
		EnableMetrics:     true,
	})

	rebuildJob := jobs.NewRebuildRankingJob(
		offeringRepo,
		snapshotRepo,
		boardCache,
		eventBus,
		log,
		jobs.RebuildRankingConfig{
			BoardLimit: cfg.Scheduler.BoardLimit,
			CacheTTL:   cfg.Redis.BoardTTL,
			Timeout:    cfg.Scheduler.JobTimeout,
		},
	)
	if err := sched.Register(rebuildJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RebuildRankingInterval)); err != nil {
		return fmt.Errorf("register rebuild job: %w", err)
	}

	pruneJob := jobs.NewPruneSnapshotsJob(snapshotRepo, cfg.Scheduler.SnapshotRetention, log)
	if err := sched.Register(pruneJob, scheduler.NewIntervalSchedule(cfg.Scheduler.PruneSnapshotsInterval)); err != nil {
		return fmt.Errorf("register prune job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	// Boards should be fresh immediately after deploy, not one interval later.
	if _, err := sched.RunNow(ctx, rebuildJob.Name()); err != nil {
		log.Warn("initial ranking rebuild failed", logger.Err(err))
	}

	log.Info("Kumotsudai Hub worker is running",
		logger.Duration("rebuild_interval", cfg.Scheduler.RebuildRankingInterval),
		logger.Duration("prune_interval", cfg.Scheduler.PruneSnapshotsInterval),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	err = waitForShutdown(log)

	if stopErr := sched.Stop(); stopErr != nil {
		log.Error("scheduler stop failed", logger.Err(stopErr))
	}

	metrics := sched.Metrics().Snapshot()
	log.Info("scheduler metrics at shutdown",
		logger.Int64("executions", metrics.TotalExecutions),
		logger.Int64("failures", metrics.TotalFailures),
	)

	log.Info("shutdown complete")
	return err
}

// waitForShutdown blocks until SIGINT or SIGTERM.
func waitForShutdown(log *logger.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("received shutdown signal", logger.String("signal", sig.String()))
	return nil
}
