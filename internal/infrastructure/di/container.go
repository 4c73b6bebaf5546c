package di

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stackmotive/stackmotive/internal/domain/repositories"
	"github.com/stackmotive/stackmotive/internal/domain/services/allocation"
	"github.com/stackmotive/stackmotive/internal/infrastructure/adapters"
	"github.com/stackmotive/stackmotive/internal/infrastructure/cache"
	"github.com/stackmotive/stackmotive/internal/infrastructure/config"
	"github.com/stackmotive/stackmotive/internal/infrastructure/database"
	infrarepos "github.com/stackmotive/stackmotive/internal/infrastructure/repositories"
	"github.com/stackmotive/stackmotive/internal/workers/drift_monitor"
	"github.com/stackmotive/stackmotive/pkg/health"
	"github.com/stackmotive/stackmotive/pkg/logger"
	"github.com/stackmotive/stackmotive/pkg/ratelimit"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *logger.Logger
	ZapLog *zap.Logger

	// Storage; DB and Redis stay nil when not configured
	DB       *sqlx.DB
	Replicas *database.ReplicaPool
	Redis    redis.UniversalClient
	RingRepo repositories.RingRepository
	PrefRepo repositories.PreferenceRepository

	// Collaborators; nil when their base URL is empty
	PortfolioProvider *adapters.PortfolioProviderClient
	TradeExecutor     *adapters.TradeExecutionClient

	NotificationManager *allocation.NotificationManager
	AllocationService   *allocation.Service
	DriftMonitor        *drift_monitor.Monitor

	HealthChecker *health.HealthChecker
	Readiness     *health.HealthChecker
	RateLimiter   ratelimit.Limiter
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: log,
		ZapLog: log.Zap(),
	}

	if err := c.initializeStorage(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	c.initializeCollaborators()

	if err := c.initializeDomainServices(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize domain services: %w", err)
	}

	c.initializeHealthChecks()
	c.initializeRateLimiter()

	return c, nil
}

func (c *Container) initializeStorage(ctx context.Context) error {
	if c.Config.UsePostgres() {
		db, err := database.NewConnection(c.Config.Database)
		if err != nil {
			return err
		}
		c.DB = db

		if err := database.RunMigrations(db); err != nil {
			return err
		}

		pool, err := database.NewReplicaPool(db, c.Config.Database.ReplicaURLs)
		if err != nil {
			return err
		}
		c.Replicas = pool
		c.RingRepo = infrarepos.NewRingRepository(pool, c.ZapLog)
		c.PrefRepo = infrarepos.NewPreferenceRepository(db, c.ZapLog)
	} else {
		c.RingRepo = infrarepos.NewMemoryRingRepository(c.ZapLog)
		c.PrefRepo = infrarepos.NewMemoryPreferenceRepository(c.ZapLog)
	}

	if !c.Config.UseRedis() {
		return nil
	}

	client, err := cache.Connect(c.Config.Redis)
	if err != nil {
		// The cache is an optimisation; rings are still served from the store.
		c.ZapLog.Warn("Redis unavailable, continuing without cache", zap.Error(err))
		return nil
	}
	c.Redis = client

	if c.Config.Allocation.CacheEnabled {
		ttl := time.Duration(c.Config.Allocation.CacheTTLSeconds) * time.Second
		c.RingRepo = cache.NewCachedRingRepository(c.RingRepo, cache.WrapClient(client, c.ZapLog), ttl, c.ZapLog)
		c.ZapLog.Info("Ring cache enabled", zap.Duration("ttl", ttl))
	}
	return nil
}

func (c *Container) initializeCollaborators() {
	if c.Config.PortfolioProvider.BaseURL != "" {
		c.PortfolioProvider = adapters.NewPortfolioProviderClient(c.Config.PortfolioProvider, c.ZapLog)
	} else {
		c.ZapLog.Info("Portfolio provider not configured, valuation refresh disabled")
	}

	if c.Config.TradeExecution.BaseURL != "" {
		c.TradeExecutor = adapters.NewTradeExecutionClient(c.Config.TradeExecution, c.ZapLog)
	} else {
		c.ZapLog.Info("Trade execution not configured, suggestion execution disabled")
	}
}

// initializeDomainServices initializes all domain services with their dependencies
func (c *Container) initializeDomainServices() error {
	c.NotificationManager = allocation.NewNotificationManager(
		adapters.NewInAppNotificationSender(c.ZapLog),
		c.Logger,
	).WithPreferences(c.PrefRepo)

	// Typed nils must not leak into the service's interfaces.
	var provider allocation.PortfolioDataProvider
	if c.PortfolioProvider != nil {
		provider = c.PortfolioProvider
	}
	var executor allocation.TradeExecutor
	if c.TradeExecutor != nil {
		executor = c.TradeExecutor
	}

	c.AllocationService = allocation.NewService(
		c.RingRepo,
		provider,
		executor,
		c.NotificationManager,
		serviceConfig(c.Config.Allocation),
		c.Logger,
	)

	monitorConfig := drift_monitor.DefaultConfig()
	if c.Config.Allocation.DriftMonitorSchedule != "" {
		monitorConfig.Schedule = c.Config.Allocation.DriftMonitorSchedule
	}
	monitor, err := drift_monitor.NewMonitor(c.RingRepo, c.AllocationService, monitorConfig, c.ZapLog)
	if err != nil {
		return fmt.Errorf("failed to create drift monitor: %w", err)
	}
	c.DriftMonitor = monitor

	return nil
}

func serviceConfig(cfg config.AllocationConfig) allocation.Config {
	svc := allocation.DefaultConfig()
	svc.Engine.TransactionCostBps = cfg.TransactionCostBps
	svc.Engine.MarginalTaxRate = cfg.MarginalTaxRate
	svc.Engine.MinTradeAmount = decimal.NewFromFloat(cfg.MinTradeAmount)
	svc.Engine.RiskFreeRate = cfg.RiskFreeRate
	if cfg.HistoryLimit > 0 {
		svc.HistoryLimit = cfg.HistoryLimit
	}
	return svc
}

func (c *Container) initializeHealthChecks() {
	c.HealthChecker = health.NewHealthChecker(10 * time.Second)
	c.Readiness = health.NewHealthChecker(5 * time.Second)

	if c.DB != nil {
		store := health.NewRingStoreChecker(c.DB, database.SchemaVersion, 3*time.Second)
		c.HealthChecker.Register(store)
		c.Readiness.Register(store)
	}

	if c.Replicas != nil && len(c.Config.Database.ReplicaURLs) > 0 {
		c.HealthChecker.Register(health.NewPingChecker("read_replicas", pingFunc(c.Replicas.HealthCheck), 3*time.Second))
	}

	if c.Redis != nil {
		c.HealthChecker.Register(health.NewRedisChecker(c.Redis, 2*time.Second))
	}

	if c.PortfolioProvider != nil {
		c.HealthChecker.Register(health.NewPingChecker("portfolio_provider", c.PortfolioProvider, 3*time.Second))
		c.HealthChecker.Register(health.NewCircuitBreakerChecker(
			"portfolio_provider_breaker",
			c.PortfolioProvider.BreakerState,
			c.PortfolioProvider.BreakerCounts,
		))
	}

	if c.TradeExecutor != nil {
		c.HealthChecker.Register(health.NewPingChecker("trade_execution", c.TradeExecutor, 3*time.Second))
		c.HealthChecker.Register(health.NewCircuitBreakerChecker(
			"trade_execution_breaker",
			c.TradeExecutor.BreakerState,
			c.TradeExecutor.BreakerCounts,
		))
	}

	if c.Config.Allocation.DriftMonitorEnabled {
		c.HealthChecker.Register(health.NewTimeoutChecker(health.NewWorkerChecker(
			"drift_monitor",
			func() bool { return c.DriftMonitor.GetStatus().Running },
			func() map[string]interface{} {
				status := c.DriftMonitor.GetStatus()
				return map[string]interface{}{
					"last_run":        status.LastRun,
					"next_run":        status.NextRun,
					"schedule":        status.Schedule,
					"total_runs":      status.Stats.TotalRuns,
					"failed_runs":     status.Stats.FailedRuns,
					"rings_refreshed": status.Stats.RingsRefreshed,
				}
			},
		), time.Second))
	}
}

// pingFunc adapts a plain health function to health.Pinger
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func (c *Container) initializeRateLimiter() {
	perMin := c.Config.Server.RateLimitPerMin
	if perMin <= 0 {
		perMin = 100
	}

	if c.Redis != nil {
		c.RateLimiter = ratelimit.PerUserLimiter(c.Redis, int64(perMin), time.Minute, c.ZapLog)
		return
	}
	c.RateLimiter = ratelimit.NewLocalLimiter(perMin)
}

// Close releases the connections held by the container
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.ZapLog.Warn("Failed to close Redis", zap.Error(err))
		}
	}
	if c.Replicas != nil {
		if err := c.Replicas.Close(); err != nil {
			c.ZapLog.Warn("Failed to close read replicas", zap.Error(err))
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.ZapLog.Warn("Failed to close database", zap.Error(err))
		}
	}
}
