package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/drinks-api/internal/config"
	"github.com/benvon/drinks-api/internal/database"
	"github.com/benvon/drinks-api/internal/handlers"
	"github.com/benvon/drinks-api/internal/logger"
	"github.com/benvon/drinks-api/internal/middleware"
	"github.com/benvon/drinks-api/internal/queue"
	"github.com/benvon/drinks-api/internal/services/oidc"
	"github.com/benvon/drinks-api/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("auth_issuer", cfg.Auth.Issuer),
		zap.String("auth_audience", cfg.Auth.Audience),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	tracing := false
	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(context.Background(), cfg.OTELEndpoint)
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			tracing = true
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	if cfg.MigrateOnStart {
		if err := database.Migrate(cfg.DatabaseURL, zapLogger); err != nil {
			zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	// Redis is optional: it only shares the JWKS document between replicas.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = oidc.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			zapLogger.Warn("failed_to_connect_to_redis_jwks_cache_disabled", zap.Error(err))
		} else {
			zapLogger.Info("connected_to_redis")
			defer func() {
				if err := redisClient.Close(); err != nil {
					zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
				}
			}()
		}
	}

	publisher := connectPublisher(cfg.RabbitMQURL, zapLogger)
	defer func() {
		if err := publisher.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	keys, jwksManager, err := newKeyProvider(cfg.Auth, redisClient, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_load_signing_keys", zap.Error(err))
	}
	verifier, err := oidc.NewVerifier(keys, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.Algorithm,
		oidc.WithAcceptableSkew(cfg.Auth.ClockSkew),
	)
	if err != nil {
		zapLogger.Fatal("failed_to_create_token_verifier", zap.Error(err))
	}

	health := handlers.NewHealthChecker(zapLogger).AddCheck("database", db.Health)
	if redisClient != nil {
		health.AddCheck("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}
	if cfg.RabbitMQURL != "" {
		health.AddCheck("rabbitmq", publisher.HealthCheck)
	}

	corsReloader := middleware.NewCORSReloader(database.NewCorsPolicyRepository(db), cfg.FrontendURL, zapLogger, time.Minute)

	r := newRouter(routerOptions{
		guard:          middleware.NewScopeGuard(verifier, zapLogger),
		drinks:         handlers.NewDrinkHandler(database.NewDrinkRepository(db), publisher, zapLogger),
		health:         health,
		openAPI:        handlers.NewOpenAPIHandler(zapLogger),
		cors:           corsReloader,
		logger:         zapLogger,
		enableHSTS:     cfg.EnableHSTS,
		requestTimeout: cfg.RequestTimeout,
		tracing:        tracing,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	// CORS hot-reload and signing-key refresh loops
	loopCtx, loopCancel := context.WithCancel(context.Background())
	defer loopCancel()
	go corsReloader.Start(loopCtx)
	if jwksManager != nil {
		go jwksManager.Start(loopCtx)
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	loopCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// newKeyProvider returns the trusted signing keys. A JWKS file wins over the
// issuer's JWKS endpoint; the manager is nil when keys come from a file.
func newKeyProvider(auth config.AuthConfig, redisClient *redis.Client, log *zap.Logger) (oidc.KeySetProvider, *oidc.JWKSManager, error) {
	if auth.JWKSFile != "" {
		keys, err := oidc.LoadKeySetFile(auth.JWKSFile)
		if err != nil {
			return nil, nil, err
		}
		log.Info("signing_keys_loaded_from_file", zap.String("path", auth.JWKSFile))
		return keys, nil, nil
	}

	opts := []oidc.JWKSOption{
		oidc.WithTTL(auth.JWKSRefresh),
		oidc.WithLogger(log),
	}
	if redisClient != nil {
		opts = append(opts, oidc.WithKeySetCache(oidc.NewRedisKeySetCache(redisClient)))
	}
	manager := oidc.NewJWKSManager(auth.JWKSURL, opts...)

	// Warm the cache so a bad JWKS URL shows up at startup, not on the first request.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := manager.KeySet(ctx); err != nil {
		log.Warn("initial_jwks_fetch_failed", zap.String("jwks_url", auth.JWKSURL), zap.Error(err))
	}
	return manager, manager, nil
}

// connectPublisher connects to RabbitMQ with exponential backoff and delivers
// events off the request path. Events are best effort, so without a broker
// the server runs with a no-op publisher.
func connectPublisher(amqpURL string, log *zap.Logger) queue.EventPublisher {
	if amqpURL == "" {
		log.Info("rabbitmq_not_configured_drink_events_disabled")
		return queue.NoopPublisher{}
	}

	const maxRetries = 5
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		publisher, err := queue.NewRabbitMQPublisher(amqpURL)
		if err == nil {
			log.Info("connected_to_rabbitmq")
			return queue.NewAsyncPublisher(publisher, queue.DefaultAsyncBuffer, log)
		}

		lastErr = err
		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		log.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
	}

	log.Error("failed_to_connect_to_rabbitmq_drink_events_disabled",
		zap.Int("max_retries", maxRetries),
		zap.Error(lastErr),
	)
	return queue.NoopPublisher{}
}
