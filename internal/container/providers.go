package container

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/claims-fulfillment/internal/application/dispatcher"
	"github.com/garyjia/claims-fulfillment/internal/application/port"
	"github.com/garyjia/claims-fulfillment/internal/application/service"
	"github.com/garyjia/claims-fulfillment/internal/application/workflow"
	"github.com/garyjia/claims-fulfillment/internal/config"
	"github.com/garyjia/claims-fulfillment/internal/domain/availability"
	"github.com/garyjia/claims-fulfillment/internal/domain/device"
	"github.com/garyjia/claims-fulfillment/internal/domain/event"
	"github.com/garyjia/claims-fulfillment/internal/domain/fulfillment"
	"github.com/garyjia/claims-fulfillment/internal/infrastructure/cache"
	"github.com/garyjia/claims-fulfillment/internal/infrastructure/external/openai"
	"github.com/garyjia/claims-fulfillment/internal/infrastructure/payment"
	"github.com/garyjia/claims-fulfillment/internal/infrastructure/persistence/repository"
	"github.com/garyjia/claims-fulfillment/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/claims-fulfillment/migrations"
	"github.com/garyjia/claims-fulfillment/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).Run(migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Fulfillment: repository.NewFulfillmentRepository(db.DB, logger),
		History:     repository.NewHistoryRepository(db.DB, logger),
		Claims:      repository.NewClaimRepository(db.DB, logger),
		Policies:    repository.NewPolicyRepository(db.DB, logger),
		Items:       repository.NewCoveredItemRepository(db.DB, logger),
		Catalog:     repository.NewDeviceCatalogRepository(db.DB, logger),
		Repairers:   repository.NewRepairerRepository(db.DB, logger),
	}, nil
}

// ProvidePaymentProcessor creates the simulated excess payment processor.
func ProvidePaymentProcessor(cfg config.PaymentConfig, logger *zap.Logger) port.PaymentProcessor {
	return payment.NewSimulator(cfg.SimulatedDelay, logger.Named("payment"))
}

// ProvideRecommendationProvider creates the OpenAI recommender.
// Returns nil when no API key is configured.
func ProvideRecommendationProvider(cfg config.OpenAIConfig, logger *zap.Logger) (port.RecommendationProvider, error) {
	if cfg.APIKey == "" {
		logger.Warn("OpenAI API key not configured, repairer recommendations disabled")
		return nil, nil
	}

	prompts := openai.DefaultPrompts()
	if cfg.PromptsPath != "" {
		loaded, err := openai.LoadPrompts(cfg.PromptsPath)
		switch {
		case err == nil:
			prompts = loaded
		case errors.Is(err, fs.ErrNotExist):
			logger.Warn("Prompts file not found, using built-in prompts", zap.String("path", cfg.PromptsPath))
		default:
			return nil, fmt.Errorf("failed to load prompts: %w", err)
		}
	}

	return openai.NewRecommender(openai.Config{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}, prompts, logger.Named("openai")), nil
}

// ProvideCache connects the recommendation cache. Both results are nil when
// redis is disabled.
func ProvideCache(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, port.RecommendationCache, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	client, err := cache.NewClient(ctx, cache.Config{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	return client, cache.NewRecommendationCache(client, logger.Named("cache")), nil
}

// ProvideDispatcher creates the event dispatcher and subscribes the audit log
// to every fulfillment event.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	d := dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("dispatcher")}),
	)

	audit := createAuditHandler(logger.Named("audit"))
	for _, t := range event.All() {
		d.SubscribeNamed(t, "audit_log", audit)
	}

	return d, nil
}

// createAuditHandler writes one structured log line per fulfillment event
func createAuditHandler(logger *zap.Logger) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		fields := []zap.Field{
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type.String()),
			zap.String("claim_id", evt.ClaimID),
			zap.String("correlation_id", evt.CorrelationID),
			zap.Time("timestamp", evt.Timestamp),
		}
		for key, value := range evt.Payload {
			fields = append(fields, zap.Any(key, value))
		}
		logger.Info("Fulfillment event", fields...)
		return nil
	}
}

// WorkflowDeps holds dependencies required for creating the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.Engine, error) {
	if deps == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}

	opts := []workflow.EngineOption{
		workflow.WithLogger(&zapLoggerAdapter{logger: deps.Logger.Named("workflow")}),
	}
	if deps.Dispatcher != nil {
		opts = append(opts, workflow.WithDispatcher(deps.Dispatcher))
	}

	return workflow.NewEngine(deps.Repos.Fulfillment, deps.Repos.History, deps.TxManager, opts...), nil
}

// ServiceDeps holds dependencies required for creating application services.
type ServiceDeps struct {
	Config      *config.Config
	Repos       *RepositoryBundle
	Engine      workflow.Engine
	Payments    port.PaymentProcessor
	Recommender port.RecommendationProvider
	Cache       port.RecommendationCache
	Logger      *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Config == nil || deps.Repos == nil || deps.Engine == nil {
		return nil, fmt.Errorf("config, repositories and engine are required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger.Named("service")}
	cfg := deps.Config

	var recommendations service.RecommendationService
	if deps.Recommender != nil {
		opts := []service.RecommendationOption{
			service.WithRateLimit(cfg.Recommendation.RatePerMinute, cfg.Recommendation.Burst),
		}
		if deps.Cache != nil {
			opts = append(opts, service.WithCache(deps.Cache, cfg.Recommendation.CacheTTL))
		}
		recommendations = service.NewRecommendationService(deps.Recommender, deps.Repos.Repairers, serviceLogger, opts...)
	}

	fulfillmentService := service.NewFulfillmentService(service.FulfillmentDeps{
		Records:     deps.Repos.Fulfillment,
		History:     deps.Repos.History,
		Claims:      deps.Repos.Claims,
		Policies:    deps.Repos.Policies,
		Items:       deps.Repos.Items,
		Repairers:   deps.Repos.Repairers,
		Engine:      deps.Engine,
		Resolver:    device.NewResolver(deps.Repos.Catalog, &zapLoggerAdapter{logger: deps.Logger.Named("device")}),
		Oracle:      availability.NewOracle(cfg.Availability.WindowDays, cfg.Availability.PatternModulus),
		Rules:       fulfillment.NewRules(cfg.Routing.VoucherThreshold, cfg.Routing.LargeItemCategories),
		References:  fulfillment.NewReferenceGenerator(),
		Payments:    deps.Payments,
		Recommender: recommendations,
		Logger:      serviceLogger,
	})

	return &ServiceBundle{
		Fulfillment:     fulfillmentService,
		Recommendations: recommendations,
	}, nil
}
