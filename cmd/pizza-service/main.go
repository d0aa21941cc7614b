package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/jwtpizza/pkg/api"
	"github.com/platinummonkey/jwtpizza/pkg/auth"
	"github.com/platinummonkey/jwtpizza/pkg/config"
	"github.com/platinummonkey/jwtpizza/pkg/factory"
	"github.com/platinummonkey/jwtpizza/pkg/franchises"
	"github.com/platinummonkey/jwtpizza/pkg/middleware"
	"github.com/platinummonkey/jwtpizza/pkg/observability"
	"github.com/platinummonkey/jwtpizza/pkg/orders"
	"github.com/platinummonkey/jwtpizza/pkg/storage"
	"github.com/platinummonkey/jwtpizza/pkg/storage/memory"
	"github.com/platinummonkey/jwtpizza/pkg/storage/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("pizza service exited")
		os.Exit(1)
	}
}

// backends holds the stores selected by configuration
type backends struct {
	db             *sql.DB
	redis          *redis.Client
	users          auth.UserStore
	ledger         auth.Ledger
	franchises     franchises.Repository
	franchiseUsers franchises.UserFinder
	orders         orders.Repository
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	ctx = observability.WithLogger(ctx, logger)
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	if providers != nil {
		shutdown.RegisterShutdownFunc("otel", func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	b, err := openBackends(ctx, cfg, logger, shutdown)
	if err != nil {
		return err
	}

	codec := auth.NewTokenCodec([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	authService := auth.NewService(b.users, b.ledger, codec, hasher).WithMetrics(metrics)

	if cfg.Admin.Enabled() {
		if _, err := authService.EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			return fmt.Errorf("failed to bootstrap admin: %w", err)
		}
	}

	factoryClient := factory.NewClient(factory.Config{
		URL:     cfg.Factory.URL,
		APIKey:  cfg.Factory.APIKey,
		Timeout: cfg.Factory.Timeout,
	}).WithMetrics(metrics)

	services := api.Services{
		Auth:       authService,
		Franchises: franchises.NewService(b.franchises, b.franchiseUsers),
		Orders:     orders.NewService(b.orders, factoryClient, cfg.Orders.MenuCacheTTL).WithMetrics(metrics),
	}

	var limiter *middleware.RateLimiter
	if cfg.Server.LoginRateLimit > 0 {
		limiter = middleware.NewRateLimiter(&middleware.RateLimitConfig{
			RequestsPerWindow: cfg.Server.LoginRateLimit,
			WindowDuration:    time.Minute,
			BurstSize:         cfg.Server.LoginBurst,
			TrustedProxies:    cfg.Server.TrustedProxies,
		})
		limiter.StartCleanup(ctx)
	}

	server := api.NewServer(services, middleware.NewAuthMiddleware(authService).WithMetrics(metrics), api.Options{
		Version:      cfg.Server.Version,
		FactoryURL:   cfg.Factory.URL,
		CORSOrigins:  cfg.Server.CORSOrigins,
		LoginLimiter: limiter,
		Logger:       logger,
		Metrics:      metrics,
		Tracing:      providers != nil,
	})

	apiServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(b.db, b.redis).WithVersion(cfg.Server.Version)
	if cfg.Auth.LedgerBackend == config.LedgerBackendRedis {
		checker = checker.RequireRedis()
	}
	observability.RegisterHealthRoutes(healthMux, checker)
	observability.RegisterMetricsEndpoint(healthMux, registry)
	healthServer := &http.Server{
		Addr:         cfg.Server.HealthAddr(),
		Handler:      healthMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	shutdown.RegisterServer(apiServer)
	shutdown.RegisterServer(healthServer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("starting JWT Pizza API server")
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("starting health and metrics server")
		return serve(healthServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return shutdown.Shutdown(context.Background())
	})

	return g.Wait()
}

func serve(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server on %s failed: %w", server.Addr, err)
	}
	return nil
}

func openBackends(ctx context.Context, cfg *config.Config, logger *observability.Logger, shutdown *observability.ShutdownManager) (*backends, error) {
	if cfg.Database.IsMemory() {
		logger.Warn("using the in-memory store; data is lost on restart")
		store := memory.New()
		return &backends{
			users:          store,
			ledger:         store,
			franchises:     store,
			franchiseUsers: store,
			orders:         store,
		}, nil
	}

	storeCfg := storageConfig(cfg)
	db, err := postgres.Open(ctx, storeCfg)
	if err != nil {
		return nil, err
	}
	shutdown.RegisterShutdownFunc("postgres", func(context.Context) error {
		return db.Close()
	})

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, err
		}
		logger.Info("database migrations applied")
	}

	users := postgres.NewUserRepository(db)
	b := &backends{
		db:             db,
		users:          users,
		ledger:         postgres.NewLedgerRepository(db),
		franchises:     postgres.NewFranchiseRepository(db),
		franchiseUsers: users,
		orders:         postgres.NewOrderRepository(db),
	}

	if cfg.Auth.LedgerBackend == config.LedgerBackendRedis {
		ledger, err := postgres.NewRedisLedger(ctx, storeCfg)
		if err != nil {
			return nil, err
		}
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error {
			return ledger.Close()
		})
		b.ledger = ledger
		b.redis = ledger.Client()
	}

	logger.WithField("ledger", cfg.Auth.LedgerBackend).Info("storage initialized")
	return b, nil
}

func storageConfig(cfg *config.Config) storage.Config {
	return storage.Config{
		PostgresURL:         cfg.Database.URL,
		PostgresMaxConns:    cfg.Database.MaxConns,
		PostgresMinConns:    cfg.Database.MinConns,
		PostgresTimeout:     cfg.Database.Timeout,
		PostgresMaxLifetime: cfg.Database.MaxLifetime,
		PostgresMaxIdleTime: cfg.Database.MaxIdleTime,
		RedisURL:            cfg.Redis.URL,
		RedisPassword:       cfg.Redis.Password,
		RedisDB:             cfg.Redis.DB,
		RedisMaxRetries:     cfg.Redis.MaxRetries,
		RedisPoolSize:       cfg.Redis.PoolSize,
		RedisKeyPrefix:      cfg.Redis.KeyPrefix,
	}
}
