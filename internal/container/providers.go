package container

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/clinvera/regflow/internal/application/bus"
	"github.com/clinvera/regflow/internal/application/port"
	"github.com/clinvera/regflow/internal/application/service"
	"github.com/clinvera/regflow/internal/infrastructure/persistence/repository"
	"github.com/clinvera/regflow/internal/infrastructure/persistence/sqlite"
	"github.com/clinvera/regflow/internal/infrastructure/template"
	"github.com/clinvera/regflow/migrations"
	"github.com/clinvera/regflow/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase creates the database connection and transaction manager.
// Also runs any pending database migrations automatically.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
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
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Workflow: repository.NewWorkflowRepository(sqlDB, logger),
		Task:     repository.NewTaskRepository(sqlDB, logger),
		Review:   repository.NewReviewRepository(sqlDB, logger),
	}, nil
}

// ProvideTemplateRegistry loads the template catalog from disk.
func ProvideTemplateRegistry(cfg *TemplatesConfig, logger *zap.Logger) (port.TemplateRegistry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("templates config is required")
	}
	return template.LoadRegistry(cfg.Path, logger)
}

// ProvideEventBus creates the event bus.
func ProvideEventBus(cfg *EventBusConfig, logger bus.Logger) bus.EventBus {
	opts := []bus.Option{bus.WithLogger(logger)}
	if cfg != nil && cfg.BufferSize > 0 {
		opts = append(opts, bus.WithBufferSize(cfg.BufferSize))
	}
	return bus.NewEventBus(opts...)
}

// ServiceDeps carries the dependencies for ProvideServices.
type ServiceDeps struct {
	Repos     *RepositoryBundle
	Registry  port.TemplateRegistry
	TxManager port.TransactionManager
	EventBus  bus.EventBus
	Approval  ApprovalConfig
	Logger    *zap.Logger
}

// ProvideServices wires all application services over one shared lock table.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.EventBus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	logger := &zapLoggerAdapter{logger: deps.Logger}
	locks := service.NewWorkflowLocks()
	policy := service.ApprovalPolicy{RejectionFatal: deps.Approval.RejectionFatal}

	return &ServiceBundle{
		Workflow: service.NewWorkflowService(
			deps.Repos.Workflow,
			deps.Repos.Task,
			deps.TxManager,
			locks,
			deps.EventBus,
			logger,
		),
		Task: service.NewTaskService(
			deps.Repos.Workflow,
			deps.Repos.Task,
			locks,
			deps.EventBus,
			logger,
		),
		Template: service.NewTemplateService(
			deps.Registry,
			deps.Repos.Workflow,
			deps.Repos.Task,
			deps.TxManager,
			deps.EventBus,
			logger,
		),
		Approval: service.NewApprovalService(
			deps.Repos.Workflow,
			deps.Repos.Review,
			deps.TxManager,
			locks,
			deps.EventBus,
			policy,
			logger,
		),
		Aggregator: service.NewAggregatorService(
			deps.Repos.Workflow,
			deps.Repos.Task,
			logger,
		),
	}, nil
}
