package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sujalbistaa/lantern/internal/config"
	"github.com/sujalbistaa/lantern/internal/db"
	routes "github.com/sujalbistaa/lantern/internal/http"
	"github.com/sujalbistaa/lantern/internal/logging"
	"github.com/sujalbistaa/lantern/internal/posts"
	"github.com/sujalbistaa/lantern/internal/ratelimit"
	"github.com/sujalbistaa/lantern/internal/telemetry"
	"github.com/sujalbistaa/lantern/internal/ws"
)

func main() {
	// Load .env before anything reads the environment. Production sets
	// variables directly, so a missing file is fine.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 1. Tracing and error reporting
	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, config.ServiceName)
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			logger.Fatal("failed to initialize sentry", zap.Error(err))
		}
	}

	// 2. Database
	database, err := db.Open(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	logger.Info("running database migrations")
	if err := db.Migrate(database); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	// 3. Live feed. With Redis every instance publishes to the shared
	// channel and relays it into its own hub.
	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	var notifier posts.Notifier = hub
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		bus := ws.NewRedisBus(rdb, cfg.FeedChannel, logger)
		if err := bus.Forward(ctx, hub); err != nil {
			logger.Fatal("failed to subscribe to feed channel", zap.Error(err))
		}
		notifier = bus
		logger.Info("feed events distributed over redis", zap.String("channel", cfg.FeedChannel))
	}

	// 4. Services
	service := posts.NewService(db.NewStore(database), notifier, logger, cfg.AutoPublish)
	limiter := ratelimit.New(cfg.RateLimit, cfg.RateWindow)
	go limiter.Run(ctx, 10*time.Minute)

	if cfg.AdminPass == config.DefaultAdminPass {
		logger.Warn("ADMIN_PASS is the built-in demo password; set it before exposing the server")
	}

	// 5. Router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	routes.SetupRoutes(router, &routes.Env{Posts: service, Hub: hub, Log: logger}, routes.Options{
		ServiceName: config.ServiceName,
		AdminUser:   cfg.AdminUser,
		AdminPass:   cfg.AdminPass,
		CORSOrigin:  cfg.CORSOrigin,
		Limiter:     limiter,
		Sentry:      cfg.SentryDSN != "",
	})

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port), zap.Bool("auto_publish", cfg.AutoPublish))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	// Stops the hub, the redis relay and the limiter sweep.
	stop()

	sentry.Flush(2 * time.Second)
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown", zap.Error(err))
	}
	if err := db.Close(database); err != nil {
		logger.Warn("closing database", zap.Error(err))
	}

	logger.Info("server exiting")
}
