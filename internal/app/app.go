// Package app wires together all dependencies of the auth service and
// manages its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/auth"
	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/config"
	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/event"
	handler "github.com/BrianDai22/concetrateaiquiz-sub002/internal/handler/http"
	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/provider"
	postgresrepo "github.com/BrianDai22/concetrateaiquiz-sub002/internal/repository/postgres"
	redisrepo "github.com/BrianDai22/concetrateaiquiz-sub002/internal/repository/redis"
	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/service"
	"github.com/BrianDai22/concetrateaiquiz-sub002/migrations"
	"github.com/BrianDai22/concetrateaiquiz-sub002/pkg/database"
	"github.com/BrianDai22/concetrateaiquiz-sub002/pkg/health"
	"github.com/BrianDai22/concetrateaiquiz-sub002/pkg/httpclient"
	pkgkafka "github.com/BrianDai22/concetrateaiquiz-sub002/pkg/kafka"
	"github.com/BrianDai22/concetrateaiquiz-sub002/pkg/tracing"
)

// App holds the wired dependencies and the HTTP server.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *redis.Client
	kafkaProducer  *pkgkafka.Producer
	server         *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp builds the full dependency graph: tracing, database pool,
// migrations, Redis, Kafka producer, repositories, services, and the
// HTTP router.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Tracing
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "auth-service",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// PostgreSQL
	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = cfg.PostgresHost
	pgCfg.Port = cfg.PostgresPort
	pgCfg.User = cfg.PostgresUser
	pgCfg.Password = cfg.PostgresPass
	pgCfg.DBName = cfg.PostgresDB
	pgCfg.SSLMode = cfg.PostgresSSL

	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	database.RegisterPoolMetrics(pool, "auth")

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// Redis
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	// Kafka
	kafkaProducer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)

	// Repositories and stores
	accountRepo := postgresrepo.NewAccountRepository(pool)
	linkRepo := postgresrepo.NewOAuthLinkRepository(pool)
	sessions := redisrepo.NewSessionStore(redisClient)
	resetTokens := redisrepo.NewResetTokenStore(redisClient)

	// Services
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessExpiry)
	producer := event.NewProducer(kafkaProducer, logger)

	authService := service.NewAuthService(accountRepo, sessions, resetTokens, jwtManager, producer, logger, service.AuthOptions{
		RefreshTTL:    cfg.RefreshExpiry,
		ResetTokenTTL: cfg.ResetTokenExpiry,
		RotateRefresh: cfg.RotateRefresh,
		ResetInterval: cfg.ResetRateInterval,
		ResetBurst:    cfg.ResetRateBurst,
	})

	// Outbound calls to Google go through a circuit breaker so a provider
	// outage cannot pile up retries inside request handlers.
	oauthClient := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("google-oauth"),
		logger,
	)
	google := provider.NewGoogle(provider.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURI:  cfg.GoogleRedirectURI,
	}, oauthClient)

	oauthService := service.NewOAuthService(accountRepo, linkRepo, authService, producer, logger, google)

	// Health checks
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.Register("kafka", kafkaProducer.Ping)

	router := handler.NewRouter(authService, oauthService, healthHandler, logger, handler.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Environment:    cfg.Environment,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redisClient:    redisClient,
		kafkaProducer:  kafkaProducer,
		server:         server,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is cancelled
// or the server fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
		return a.Shutdown()
	}
}

// Shutdown gracefully drains the HTTP server then closes dependencies
// in reverse order of initialization.
func (a *App) Shutdown() error {
	var errs []error

	httpCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(httpCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	traceCtx, cancelTrace := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelTrace()
	if err := a.tracerShutdown(traceCtx); err != nil {
		errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
	}

	if err := a.kafkaProducer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("kafka producer close: %w", err))
	}

	if err := a.redisClient.Close(); err != nil {
		errs = append(errs, fmt.Errorf("redis close: %w", err))
	}

	a.pool.Close()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	a.logger.Info("shutdown complete")
	return nil
}
