package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"story-zine/internal/config"
	ws "story-zine/internal/delivery/websocket"
	"story-zine/internal/handler"
	"story-zine/internal/logger"
	"story-zine/internal/messaging"
	"story-zine/internal/middleware"
	"story-zine/internal/repository"
	"story-zine/internal/service"
	"story-zine/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

const (
	maxRetries = 30
	retryDelay = 3 * time.Second
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()
	zap.ReplaceGlobals(appLogger)
	appLogger.Info("Starting story service",
		zap.String("env", cfg.Env),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("events", cfg.Events.Transport),
		zap.String("lock", cfg.Lock.Backend),
	)

	ctx := context.Background()

	// --- Redis ---
	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient, err = setupRedis(ctx, cfg, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	// --- Storage ---
	store, closeStore, err := setupStore(ctx, cfg, redisClient, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer closeStore()

	var locker service.StoryLocker = service.NewLocalLocker(cfg.Lock.Wait)
	if cfg.Lock.Backend == config.LockRedis {
		locker = service.NewRedisLocker(redisClient, cfg.Redis.KeyPrefix, cfg.Lock.TTL, cfg.Lock.Wait, appLogger)
	}

	// --- Events ---
	hub := ws.NewHub(appLogger)
	hub.Start()

	var (
		publisher messaging.EventPublisher = hub
		relay     *messaging.EventRelayConsumer
		rabbitPub *messaging.RabbitMQEventPublisher
	)
	if cfg.Events.Transport == config.EventsRabbitMQ {
		conn, err := connectRabbitMQ(cfg.Events.RabbitMQURL, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer conn.Close()

		rabbitPub, err = messaging.NewRabbitMQEventPublisher(conn, cfg.Events.Exchange, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to create event publisher", zap.Error(err))
		}
		relay, err = messaging.NewEventRelayConsumer(conn, cfg.Events.Exchange, hub, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to create event relay consumer", zap.Error(err))
		}
		go func() {
			if err := relay.StartConsuming(); err != nil {
				appLogger.Error("Event relay consumer stopped with error", zap.Error(err))
			}
		}()
		publisher = rabbitPub
	}

	// --- Services ---
	storyRepo := repository.NewStoryRepository(store, appLogger)
	pageRepo := repository.NewPageRepository(store, appLogger)
	proposalRepo := repository.NewProposalRepository(store, appLogger)

	policy := service.ContentPolicy{
		ProposalMin:   cfg.Content.ProposalMin,
		ProposalMax:   cfg.Content.ProposalMax,
		PageTotalMin:  cfg.Content.PageTotalMin,
		PageTotalMax:  cfg.Content.PageTotalMax,
		AcceptLimit:   cfg.Content.AcceptLimit,
		LockThreshold: cfg.Content.LockThreshold,
	}
	storyService := service.NewStoryService(storyRepo, pageRepo, proposalRepo, policy, locker, publisher, appLogger,
		service.StoryServiceOptions{SeedOpening: cfg.Content.SeedOpening})
	pageService := service.NewPageService(storyRepo, pageRepo, proposalRepo, storyService, policy, locker, publisher, appLogger)
	proposalService := service.NewProposalService(proposalRepo, pageService, policy, locker, publisher, appLogger)
	exportService := service.NewExportService(storyRepo, pageRepo, proposalRepo)

	storyHandler := handler.NewStoryHandler(storyService, pageService, proposalService, exportService, appLogger)

	// --- HTTP ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.GinZapLogger(appLogger.Named("HTTP")))
	router.Use(cors.New(corsConfig(cfg.Server.CORSAllowedOrigins)))

	p := ginprometheus.NewPrometheus("gin")

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)
	router.GET("/ws", gin.WrapF(hub.ServeWS))

	storyHandler.RegisterRoutes(router, handler.NewWriteRateLimiter(redisClient, cfg.Server.WriteRateLimit, appLogger))
	p.Use(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	go func() {
		appLogger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	if relay != nil {
		if err := relay.Stop(); err != nil {
			appLogger.Error("Error stopping event relay consumer", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	hub.Stop()
	if rabbitPub != nil {
		if err := rabbitPub.Close(); err != nil {
			appLogger.Error("Error closing event publisher", zap.Error(err))
		}
	}
	appLogger.Info("Server exiting")
}

func corsConfig(origins []string) cors.Config {
	corsCfg := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
		corsCfg.AllowCredentials = true
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", middleware.RequestIDHeader}
	corsCfg.MaxAge = 12 * time.Hour
	return corsCfg
}

// setupStore выбирает хранилище по STORAGE_BACKEND. Возвращает функцию освобождения ресурсов.
func setupStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) (storage.Store, func(), error) {
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		logger.Warn("Using in-memory storage: data will be lost on restart")
		store := storage.NewMemoryStore()
		return store, func() { _ = store.Close() }, nil

	case config.StorageRedis:
		store := storage.NewRedisStore(redisClient, cfg.Redis.KeyPrefix, logger)
		return store, func() { _ = store.Close() }, nil

	case config.StoragePostgres:
		if err := storage.MigratePostgres(cfg.Postgres.URL, logger); err != nil {
			return nil, nil, err
		}
		pool, err := setupPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewPostgresStore(pool, logger)
		return store, func() {
			_ = store.Close()
			pool.Close()
		}, nil

	default:
		store, err := storage.NewFileStore(cfg.Storage.DataDir, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using file storage", zap.String("dir", cfg.Storage.DataDir))
		return store, func() { _ = store.Close() }, nil
	}
}

// setupPostgres создает пул соединений с повторными попытками.
func setupPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres config: %w", err)
	}
	poolConfig.MaxConns = cfg.Postgres.MaxConnections

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
		if err == nil {
			err = pool.Ping(connectCtx)
			if err != nil {
				pool.Close()
			}
		}
		cancel()

		if err == nil {
			logger.Info("Successfully connected to PostgreSQL", zap.Int("attempt", attempt))
			return pool, nil
		}
		lastErr = err
		logger.Warn("PostgreSQL connection failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", maxRetries, lastErr)
}

// setupRedis создает клиент Redis и ждет, пока он ответит на PING.
func setupRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			logger.Info("Successfully connected to Redis", zap.String("addr", cfg.Redis.Addr), zap.Int("attempt", attempt))
			return client, nil
		}
		lastErr = err
		logger.Warn("Redis ping failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	_ = client.Close()
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", maxRetries, lastErr)
}

// connectRabbitMQ подключается к RabbitMQ с повторными попытками.
func connectRabbitMQ(rawURL string, logger *zap.Logger) (*amqp.Connection, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		conn, err := amqp.Dial(rawURL)
		if err == nil {
			logger.Info("Successfully connected to RabbitMQ", zap.String("url", maskURL(rawURL)), zap.Int("attempt", attempt))
			go func() {
				closeErr := <-conn.NotifyClose(make(chan *amqp.Error, 1))
				if closeErr != nil {
					logger.Error("RabbitMQ connection closed", zap.Error(closeErr))
				}
			}()
			return conn, nil
		}
		lastErr = err
		logger.Warn("RabbitMQ connection failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("failed to connect to rabbitmq after %d attempts: %w", maxRetries, lastErr)
}

// maskURL убирает пароль из URL для логов.
func maskURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
