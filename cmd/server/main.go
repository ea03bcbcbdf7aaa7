// Package main is the entry point for the Kumotsudai Hub API server.
//
// The server exposes the REST API: registering pilgrims, placing offerings,
// toggling prayers, attaching guidance, and reading the windowed ranking
// boards. Background jobs live in cmd/worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/kumotsudai/kumotsudai-hub/config"
	"github.com/kumotsudai/kumotsudai-hub/internal/application/command"
	"github.com/kumotsudai/kumotsudai-hub/internal/application/eventhandler"
	"github.com/kumotsudai/kumotsudai-hub/internal/application/query"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/notification"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/offering"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/ranking"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/user"
	"github.com/kumotsudai/kumotsudai-hub/internal/infrastructure/auth"
	"github.com/kumotsudai/kumotsudai-hub/internal/infrastructure/messaging"
	"github.com/kumotsudai/kumotsudai-hub/internal/infrastructure/persistence/memory"
	"github.com/kumotsudai/kumotsudai-hub/internal/infrastructure/persistence/postgres"
	"github.com/kumotsudai/kumotsudai-hub/internal/infrastructure/persistence/redis"
	httpapi "github.com/kumotsudai/kumotsudai-hub/internal/interface/http"
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

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})
	log.Info("starting Kumotsudai Hub API",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Bool("debug", cfg.App.Debug),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. PERSISTENCE
	// ─────────────────────────────────────────────────────────────────────────
	var (
		userRepo         user.Repository
		offeringRepo     offering.Repository
		snapshotRepo     ranking.SnapshotRepository
		notificationRepo notification.Repository
		dbConn           *postgres.Connection
	)

	if cfg.Database.URL != "" {
		log.Info("connecting to database")
		dbConn, err = connectDatabase(ctx, cfg.Database.URL, log)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer dbConn.Close()

		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Info("database schema is up to date")

		userRepo = postgres.NewUserRepository(dbConn)
		offeringRepo = postgres.NewOfferingRepository(dbConn)
		snapshotRepo = postgres.NewSnapshotRepository(dbConn)
		notificationRepo = postgres.NewNotificationRepository(dbConn)
	} else {
		// Development fallback: everything lives in memory and is lost on
		// restart.
		log.Warn("DATABASE_URL not set, using in-memory store")
		store := memory.NewStore()
		userRepo = store.Users()
		offeringRepo = store.Offerings()
		snapshotRepo = store.Snapshots()
		notificationRepo = store.Notifications()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache *redis.Cache
		boardCache ranking.BoardCache
	)

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis", logger.String("host", cfg.Redis.Host))
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
			bc := redis.NewBoardCache(redisCache, cfg.Redis.BoardTTL)
			boardCache = bc
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
			InstanceID:     "api-" + uuid.NewString(),
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

	if err := subscribeEventHandlers(eventBus, userRepo, notificationRepo, snapshotRepo, boardCache, log); err != nil {
		return fmt.Errorf("subscribe event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. AUTH
	// ─────────────────────────────────────────────────────────────────────────
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		// Config validation guarantees this only happens outside production.
		jwtSecret = uuid.NewString()
		log.Warn("AUTH_JWT_SECRET not set, using a random per-process secret; tokens will not survive restarts")
	}

	tokens, err := auth.NewTokenManager(auth.TokenManagerConfig{
		Secret: jwtSecret,
		Issuer: cfg.Auth.Issuer,
		TTL:    cfg.Auth.AccessTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("token manager: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	deps := httpapi.Dependencies{
		RegisterUser:     command.NewRegisterUserHandler(userRepo, eventBus, cfg.Auth.BcryptCost),
		AuthenticateUser: command.NewAuthenticateUserHandler(userRepo),
		CreateOffering:   command.NewCreateOfferingHandler(offeringRepo, userRepo, eventBus),
		TogglePrayer:     command.NewTogglePrayerHandler(offeringRepo, userRepo, eventBus),
		AddGuidance:      command.NewAddGuidanceHandler(offeringRepo, userRepo, eventBus),
		UpdateProfile:    command.NewUpdateProfileHandler(userRepo),

		GetOffering:      query.NewGetOfferingHandler(offeringRepo),
		GetRanking:       query.NewGetRankingHandler(offeringRepo, snapshotRepo, boardCache),
		SearchOfferings:  query.NewSearchOfferingsHandler(offeringRepo),
		GetUserOfferings: query.NewGetUserOfferingsHandler(offeringRepo),
		GetNotifications: query.NewGetNotificationsHandler(notificationRepo),

		NotificationRepo: notificationRepo,
		UserRepo:         userRepo,
		Tokens:           tokens,
		HealthCheck:      healthCheck(dbConn, redisCache),
		Logger:           log,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	server := httpapi.NewServer(httpapi.Config{
		Addr:               cfg.HTTP.Addr,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxBodyBytes:       cfg.HTTP.MaxBodyBytes,
		RateLimitPerMinute: cfg.HTTP.RateLimit,
		AllowedOrigins:     cfg.HTTP.AllowedOrigins,
	}, deps)

	errCh := server.StartAsync()
	log.Info("Kumotsudai Hub API is running", logger.String("addr", cfg.HTTP.Addr))

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", logger.Err(err))
	}

	log.Info("shutdown complete")
	return nil
}

// subscribeEventHandlers wires the notification side effects to the bus.
func subscribeEventHandlers(
	bus shared.EventBus,
	userRepo user.Repository,
	notificationRepo notification.Repository,
	snapshotRepo ranking.SnapshotRepository,
	boardCache ranking.BoardCache,
	log *logger.Logger,
) error {
	onPrayer := eventhandler.NewOnPrayerToggledHandler(userRepo, notificationRepo, boardCache, log)
	onGuidance := eventhandler.NewOnGuidanceAddedHandler(userRepo, notificationRepo, log)
	onBoard := eventhandler.NewOnBoardRebuiltHandler(userRepo, notificationRepo, snapshotRepo, log)

	subscriptions := []struct {
		eventType shared.EventType
		handler   shared.EventHandler
	}{
		{shared.EventPrayerOffered, onPrayer.Handle},
		{shared.EventPrayerWithdrawn, onPrayer.Handle},
		{shared.EventGuidanceAdded, onGuidance.Handle},
		{shared.EventBoardRebuilt, onBoard.Handle},
	}

	for _, sub := range subscriptions {
		if err := bus.Subscribe(sub.eventType, sub.handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", sub.eventType, err)
		}
	}
	return nil
}

// connectDatabase connects with backoff so the server survives the usual
// container startup race against the database.
func connectDatabase(ctx context.Context, url string, log *logger.Logger) (*postgres.Connection, error) {
	var conn *postgres.Connection

	err := retry.Do(ctx, func(ctx context.Context) error {
		c, err := postgres.NewConnectionFromURL(ctx, url)
		if err != nil {
			return retry.Retryable(err)
		}
		if err := c.Ping(ctx); err != nil {
			c.Close()
			return retry.Retryable(err)
		}
		conn = c
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
		return nil, err
	}
	return conn, nil
}

// healthCheck reports readiness of the backing services.
func healthCheck(db *postgres.Connection, cache *redis.Cache) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
		}
		if cache != nil {
			if err := cache.Ping(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}
