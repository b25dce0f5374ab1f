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

	"github.com/kbhavake29/Task-flow-WebApp/internal/auth"
	"github.com/kbhavake29/Task-flow-WebApp/internal/cache"
	"github.com/kbhavake29/Task-flow-WebApp/internal/config"
	"github.com/kbhavake29/Task-flow-WebApp/internal/event"
	handler "github.com/kbhavake29/Task-flow-WebApp/internal/handler/http"
	"github.com/kbhavake29/Task-flow-WebApp/internal/repository/postgres"
	"github.com/kbhavake29/Task-flow-WebApp/internal/service"
	"github.com/kbhavake29/Task-flow-WebApp/migrations"
	"github.com/kbhavake29/Task-flow-WebApp/pkg/database"
	"github.com/kbhavake29/Task-flow-WebApp/pkg/health"
	pkgkafka "github.com/kbhavake29/Task-flow-WebApp/pkg/kafka"
	"github.com/kbhavake29/Task-flow-WebApp/pkg/tracing"
)

// App wires together all dependencies and runs the TaskFlow API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *redis.Client
	producer       *pkgkafka.Producer
	tokenService   *service.TokenService
	httpServer     *http.Server
	tracerShutdown func(context.Context) error

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "taskflow-api",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TracingSampleRate,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Initialize the Redis revocation cache.
	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("host", cfg.RedisHost),
		slog.Int("port", cfg.RedisPort),
	)

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	codec, err := auth.NewTokenCodec(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("build token codec: %w", err)
	}
	revocations := cache.New(redisClient)
	userRepo := postgres.NewUserRepository(pool)
	tokenRepo := postgres.NewRefreshTokenRepository(pool)
	eventPublisher := event.NewPublisher(producer, logger)
	tokenService := service.NewTokenService(tokenRepo, revocations, codec, logger)
	authService := service.NewAuthService(userRepo, tokenService, codec, eventPublisher, logger)

	// Health checks. Postgres and Redis gate readiness; Kafka is best-effort
	// by contract and must not take the service out of rotation.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return revocations.Ping(ctx)
	})

	// HTTP router.
	router := handler.NewRouter(authService, tokenService, codec, healthHandler, logger, handler.RouterConfig{
		RefreshExpiry: cfg.JWTRefreshExpiry,
		CookieSecure:  cfg.CookieSecure,
		CORS: handler.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Environment:    cfg.Environment,
		},
	})

	httpServer := &http.Server{
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
		producer:       producer,
		tokenService:   tokenService,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
		sweepStop:      make(chan struct{}),
		sweepDone:      make(chan struct{}),
	}, nil
}

// Run starts the HTTP server and the token sweeper and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go a.runTokenSweeper()

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// runTokenSweeper periodically deletes expired refresh-token rows so the
// ledger stays proportional to live sessions.
func (a *App) runTokenSweeper() {
	defer close(a.sweepDone)

	ticker := time.NewTicker(a.cfg.TokenSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.sweepStop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			count, err := a.tokenService.CleanupExpiredTokens(ctx)
			cancel()
			if err != nil {
				a.logger.Error("token sweep failed", slog.String("error", err.Error()))
				continue
			}
			if count > 0 {
				a.logger.Info("swept expired refresh tokens", slog.Int64("count", count))
			}
		}
	}
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Token sweeper
// 3. Tracer (flush pending spans from drained requests)
// 4. Kafka producer
// 5. Redis client and PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Stop the sweeper before its stores go away.
	close(a.sweepStop)
	<-a.sweepDone

	// 3. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 5. Close Redis client and PostgreSQL pool.
	if err := a.redisClient.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
