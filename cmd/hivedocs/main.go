// Command hivedocs runs the access control and search API server.
//
// It wires the role store, tenant registry, document registry, access
// decider, quota reconciler, and hybrid search service behind a single
// JSON API, with a separate health/metrics listener for probes.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hivedocs/hivedocs/pkg/access"
	"github.com/hivedocs/hivedocs/pkg/api"
	"github.com/hivedocs/hivedocs/pkg/config"
	"github.com/hivedocs/hivedocs/pkg/documents"
	"github.com/hivedocs/hivedocs/pkg/observability"
	"github.com/hivedocs/hivedocs/pkg/search"
	"github.com/hivedocs/hivedocs/pkg/storage/postgres"
	"github.com/hivedocs/hivedocs/pkg/tenants"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hivedocs: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, nil)
	logger.WithField("service", cfg.Observability.OTelServiceName).Info("Starting hivedocs")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres primary plus optional read replicas
	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Storage.PostgresURL,
		ReplicaURLs: cfg.Storage.ReplicaURLList(),
		MaxConns:    cfg.Storage.PostgresMaxConns,
		MinConns:    cfg.Storage.PostgresMinConns,
		Timeout:     cfg.Storage.PostgresTimeout,
		MaxLifetime: time.Hour,
		MaxIdleTime: 10 * time.Minute,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	cm.StartHealthCheckRoutine(ctx, 30*time.Second)

	var redisClient *redis.Client
	if cfg.Storage.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Storage.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		if cfg.Storage.RedisPassword != "" {
			opts.Password = cfg.Storage.RedisPassword
		}
		opts.DB = cfg.Storage.RedisDB
		opts.MaxRetries = cfg.Storage.RedisMaxRetries
		opts.PoolSize = cfg.Storage.RedisPoolSize

		redisClient = redis.NewClient(opts)
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err = redisClient.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			// The decision cache degrades to L1-only; not fatal
			logger.WithError(err).Warn("Redis unreachable, continuing without L2 cache")
			redisClient.Close()
			redisClient = nil
		}
	}

	if err := runMigrations(ctx, cm, logger); err != nil {
		return err
	}
	if err := documents.SeedDefaultCategories(ctx, cm.Primary(), logger); err != nil {
		return fmt.Errorf("failed to seed default categories: %w", err)
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
		go collectDBStats(ctx, metrics, cm)
	}

	var decisionCache *access.DecisionCache
	if cfg.Cache.Enabled {
		decisionCache = access.NewDecisionCache(cfg.Cache.L1Size, cfg.Cache.TTL, redisClient, metrics, logger)
	}

	accessStore := access.NewStore(cm.Primary())
	tenantService := tenants.NewPostgresService(cm.Primary())
	docStore := documents.NewStore(cm.Primary(), tenantService)

	var docService *documents.Service
	if decisionCache != nil {
		docService = documents.NewService(docStore, accessStore, decisionCache, logger)
	} else {
		docService = documents.NewService(docStore, accessStore, nil, logger)
	}
	decider := access.NewDecider(accessStore, docStore, decisionCache, metrics, logger)
	searchService := search.NewService(cm.Replica(), cfg.Search, metrics, logger)

	var reconciler *tenants.Reconciler
	if cfg.Reconciler.Enabled {
		reconciler = tenants.NewReconciler(cm.Primary(), logger, metrics)
		if err := reconciler.Start(cfg.Reconciler.Schedule); err != nil {
			return fmt.Errorf("failed to start quota reconciler: %w", err)
		}
	}

	apiServer := api.NewServer(cfg.Server, api.Deps{
		Decider:         decider,
		AccessStore:     accessStore,
		Cache:           decisionCache,
		TenantService:   tenantService,
		DocumentService: docService,
		SearchService:   searchService,
		Metrics:         metrics,
		Logger:          logger,
	})

	healthServer := newHealthServer(cfg, cm, redisClient, registry)

	shutdown := observability.NewShutdownManager(logger, healthServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(apiServer.Shutdown)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		cancel()
		if reconciler != nil {
			reconciler.Stop()
		}
		return nil
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		if redisClient != nil {
			return redisClient.Close()
		}
		return nil
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return cm.Close()
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.WithError(err).Error("API server exited")
		}
	}()
	go func() {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server exited")
		}
	}()

	return shutdown.WaitForShutdown()
}

// runMigrations applies schemas in dependency order: roles and grants
// reference tenants, documents reference both.
func runMigrations(ctx context.Context, cm *postgres.ConnectionManager, logger *observability.Logger) error {
	db := cm.Primary()

	if err := tenants.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("tenant migrations failed: %w", err)
	}
	if err := access.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("access migrations failed: %w", err)
	}
	if err := documents.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("document migrations failed: %w", err)
	}

	logger.Info("Migrations applied")
	return nil
}

// collectDBStats refreshes the connection pool gauges until shutdown
func collectDBStats(ctx context.Context, metrics *observability.Metrics, cm *postgres.ConnectionManager) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.CollectDBStats(cm.Primary())
		case <-ctx.Done():
			return
		}
	}
}

// newHealthServer builds the probe/metrics listener that stays up
// independently of the API server.
func newHealthServer(cfg *config.Config, cm *postgres.ConnectionManager, redisClient *redis.Client, registry *prometheus.Registry) *http.Server {
	checker := observability.NewHealthChecker(cm.Primary(), redisClient)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", checker.Liveness)
	mux.HandleFunc("/readyz", checker.Readiness)
	if cfg.Observability.MetricsEnabled {
		mux.Handle("/metrics", observability.Handler(registry))
	}

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.HealthPort),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
