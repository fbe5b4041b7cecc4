package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/conveyance-bills/internal/application/dispatcher"
	"github.com/garyjia/conveyance-bills/internal/application/port"
	"github.com/garyjia/conveyance-bills/internal/application/service"
)

// Container manages all application dependencies and lifecycle.
// It follows Clean Architecture principles with ordered initialization
// and reverse-order teardown.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure
	database *DatabaseBundle
	store    port.AttachmentStore
	cache    *CacheBundle

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	User    port.UserRepository
	Bill    port.BillRepository
	Item    port.ItemRepository
	History port.HistoryRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Users       service.UserService
	Bills       service.BillService
	Attachments service.AttachmentService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components.
// Components are initialized in dependency order:
// 1. Database, migrations and repositories
// 2. Attachment storage
// 3. Pending-count cache
// 4. Event dispatcher
// 5. Application services and subscribers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	db, err := ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.database = db
	c.logger.Info("Database initialized", zap.String("driver", db.Driver))

	// Step 2: Initialize storage
	store, err := ProvideAttachmentStore(ctx, &c.config.Storage, c.logger)
	if err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.store = store
	c.logger.Info("Storage initialized", zap.String("backend", c.config.Storage.Backend))

	// Step 3: Initialize cache
	cacheBundle, err := ProvideCache(ctx, &c.config.Cache, c.logger)
	if err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	c.cache = cacheBundle

	// Step 4: Initialize dispatcher
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	c.dispatcher = disp

	// Step 5: Initialize application services
	deps := &ServiceDeps{
		Repos:      c.database.Repositories,
		TxManager:  c.database.TxManager,
		Store:      c.store,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	}
	if c.cache != nil {
		deps.PendingCache = c.cache.Pending
	}
	services, err := ProvideServices(deps)
	if err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.services = services
	c.logger.Info("Application services initialized")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases whatever Start managed to create
func (c *Container) teardown() []error {
	var errs []error

	// Step 1: Drain async event handlers (reverse of step 4)
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
		c.dispatcher = nil
	}

	// Step 2: Close cache (reverse of step 3)
	if c.cache != nil {
		if err := c.cache.Client.Close(); err != nil {
			c.logger.Error("Failed to close cache", zap.Error(err))
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		} else {
			c.logger.Info("Cache closed")
		}
		c.cache = nil
	}

	// Step 3: Close database (reverse of step 1)
	if c.database != nil {
		if err := c.database.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
		c.database = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	// Check database
	if c.database != nil {
		if err := c.database.Ping(ctx); err != nil {
			status.set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			status.set("database", true, c.database.Driver)
		}
	} else {
		status.set("database", false, "not initialized")
	}

	// Check cache
	if c.cache != nil {
		if err := c.cache.Client.Ping(ctx).Err(); err != nil {
			status.set("cache", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			status.set("cache", true, "")
		}
	} else {
		status.Components["cache"] = ComponentHealth{Healthy: true, Message: "disabled"}
	}

	// Check dispatcher
	if c.dispatcher != nil {
		status.set("dispatcher", true, "")
	} else {
		status.set("dispatcher", false, "not initialized")
	}

	return status
}

func (s *HealthStatus) set(component string, healthy bool, message string) {
	s.Components[component] = ComponentHealth{Healthy: healthy, Message: message}
	if !healthy {
		s.Overall = false
	}
}

// Getters for accessing container components

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	if c.database == nil {
		return nil
	}
	return c.database.Repositories
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() port.TransactionManager {
	if c.database == nil {
		return nil
	}
	return c.database.TxManager
}

// AttachmentStore returns the attachment store.
func (c *Container) AttachmentStore() port.AttachmentStore {
	return c.store
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
