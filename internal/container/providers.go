package container

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/conveyance-bills/internal/application/dispatcher"
	"github.com/garyjia/conveyance-bills/internal/application/port"
	"github.com/garyjia/conveyance-bills/internal/application/service"
	"github.com/garyjia/conveyance-bills/internal/infrastructure/cache"
	"github.com/garyjia/conveyance-bills/internal/infrastructure/persistence/postgres"
	"github.com/garyjia/conveyance-bills/internal/infrastructure/persistence/repository"
	"github.com/garyjia/conveyance-bills/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/conveyance-bills/internal/infrastructure/storage"
	"github.com/garyjia/conveyance-bills/migrations"
	"github.com/garyjia/conveyance-bills/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Driver       string
	SQL          *database.DB
	Pool         *pgxpool.Pool
	TxManager    port.TransactionManager
	Repositories *RepositoryBundle
}

// Ping checks the underlying connection.
func (b *DatabaseBundle) Ping(ctx context.Context) error {
	switch {
	case b.SQL != nil:
		return b.SQL.Health(ctx)
	case b.Pool != nil:
		return b.Pool.Ping(ctx)
	default:
		return fmt.Errorf("database not initialized")
	}
}

// Close releases the connection.
func (b *DatabaseBundle) Close() error {
	if b.SQL != nil {
		return b.SQL.Close()
	}
	if b.Pool != nil {
		b.Pool.Close()
	}
	return nil
}

// CacheBundle holds the Redis client and the caches built on it.
type CacheBundle struct {
	Client  *redis.Client
	Pending port.PendingCountCache
}

// ProvideDatabase opens the configured store, applies migrations and builds
// the repositories and transaction manager on top of it.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	switch cfg.Driver {
	case DriverSQLite:
		return provideSQLite(ctx, cfg, logger)
	case DriverPostgres:
		return providePostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func provideSQLite(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	db, err := database.New(cfg.SQLite, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	applied, err := migrator.RunMigrations(ctx, migrations.SQLite, migrations.SQLiteDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("SQLite migrations complete", zap.Int("applied", applied))

	return &DatabaseBundle{
		Driver:    DriverSQLite,
		SQL:       db,
		TxManager: sqlite.NewDB(db),
		Repositories: &RepositoryBundle{
			User:    repository.NewUserRepository(db.DB, logger),
			Bill:    repository.NewBillRepository(db.DB, logger),
			Item:    repository.NewItemRepository(db.DB, logger),
			History: repository.NewHistoryRepository(db.DB, logger),
		},
	}, nil
}

func providePostgres(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg.AutoMigrate {
		m, err := postgres.NewMigrator(cfg.Postgres.DSN(), "")
		if err != nil {
			return nil, err
		}
		status, err := postgres.RunMigration(m, postgres.MigrateUp)
		srcErr, dbErr := m.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		if closeErr := errors.Join(srcErr, dbErr); closeErr != nil {
			logger.Error("Failed to close migrator", zap.Error(closeErr))
		}
		logger.Info("PostgreSQL migrations complete",
			zap.Uint("version", status.Version),
			zap.Bool("dirty", status.Dirty))
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}

	return &DatabaseBundle{
		Driver:    DriverPostgres,
		Pool:      pool,
		TxManager: postgres.NewTransactionManager(pool, logger),
		Repositories: &RepositoryBundle{
			User:    postgres.NewUserRepository(pool, logger),
			Bill:    postgres.NewBillRepository(pool, logger),
			Item:    postgres.NewItemRepository(pool, logger),
			History: postgres.NewHistoryRepository(pool, logger),
		},
	}, nil
}

// ProvideAttachmentStore creates the configured attachment backend.
func ProvideAttachmentStore(ctx context.Context, cfg *StorageConfig, logger *zap.Logger) (port.AttachmentStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}

	switch cfg.Backend {
	case StorageLocal:
		return storage.NewLocalAttachmentStore(cfg.UploadDir, cfg.PublicURL, logger)
	case StorageMinio:
		store, err := storage.NewMinioAttachmentStore(cfg.Minio, logger)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// ProvideCache connects to Redis when the cache is enabled. A disabled cache
// returns a nil bundle.
func ProvideCache(ctx context.Context, cfg *CacheConfig, logger *zap.Logger) (*CacheBundle, error) {
	if cfg == nil || !cfg.Enabled {
		logger.Info("Pending-count cache disabled")
		return nil, nil
	}

	client, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	return &CacheBundle{
		Client:  client,
		Pending: cache.NewPendingCountCache(client, cfg.Redis.TTL),
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(NewLoggerAdapter(logger.Named("dispatcher")))), nil
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos        *RepositoryBundle
	TxManager    port.TransactionManager
	Store        port.AttachmentStore
	PendingCache port.PendingCountCache
	Dispatcher   dispatcher.Dispatcher
	Logger       *zap.Logger
}

// ProvideServices creates the application services and registers the event
// subscribers they rely on.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("attachment store is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	logger := NewLoggerAdapter(deps.Logger.Named("service"))

	opts := []service.BillOption{service.WithDispatcher(deps.Dispatcher)}
	if deps.PendingCache != nil {
		opts = append(opts, service.WithPendingCountCache(deps.PendingCache))
	}

	service.RegisterSubscribers(deps.Dispatcher, deps.PendingCache, logger)

	return &ServiceBundle{
		Users: service.NewUserService(deps.Repos.User, deps.TxManager, deps.Dispatcher, logger),
		Bills: service.NewBillService(
			deps.Repos.User,
			deps.Repos.Bill,
			deps.Repos.Item,
			deps.Repos.History,
			deps.TxManager,
			logger,
			opts...,
		),
		Attachments: service.NewAttachmentService(deps.Store, logger),
	}, nil
}
