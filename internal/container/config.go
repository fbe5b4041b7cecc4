// Package container provides dependency injection and lifecycle management
// for the conveyance bill service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/conveyance-bills/internal/infrastructure/cache"
	"github.com/garyjia/conveyance-bills/internal/infrastructure/persistence/postgres"
	"github.com/garyjia/conveyance-bills/internal/infrastructure/storage"
	"github.com/garyjia/conveyance-bills/pkg/database"
)

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Storage backends
const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Storage configuration
	Storage StorageConfig

	// Cache configuration
	Cache CacheConfig

	// Server configuration
	Server ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver selects the backing store: sqlite or postgres
	Driver string

	// SQLite settings, used when Driver is sqlite
	SQLite database.Config

	// Postgres settings, used when Driver is postgres
	Postgres postgres.Config

	// AutoMigrate applies pending PostgreSQL migrations at startup.
	// SQLite migrations always run.
	AutoMigrate bool
}

// StorageConfig holds attachment storage settings.
type StorageConfig struct {
	// Backend selects local or minio
	Backend string

	// UploadDir is where the local backend writes files
	UploadDir string

	// PublicURL is the URL prefix local files are served under
	PublicURL string

	// Minio settings, used when Backend is minio
	Minio storage.MinioConfig
}

// CacheConfig holds pending-count cache settings.
type CacheConfig struct {
	// Enabled turns on the Redis cache
	Enabled bool

	// Redis connection and TTL
	Redis cache.Config
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind to
	Host string

	// Port to listen on
	Port int

	// ReadTimeout for HTTP server
	ReadTimeout time.Duration

	// WriteTimeout for HTTP server
	WriteTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration

	// AllowedOrigins for CORS
	AllowedOrigins []string

	// Mode is the gin mode: debug, release or test
	Mode string
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			SQLite: database.Config{
				Path:            "data/bills.db",
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
				BusyTimeout:     5 * time.Second,
			},
			Postgres: postgres.Config{
				Host:    "localhost",
				Port:    5432,
				SSLMode: "disable",
			},
			AutoMigrate: true,
		},
		Storage: StorageConfig{
			Backend:   StorageLocal,
			UploadDir: "uploads",
			PublicURL: "/uploads",
		},
		Cache: CacheConfig{
			Redis: cache.Config{
				Addr: "localhost:6379",
				TTL:  5 * time.Minute,
			},
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
			Mode:            "release",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	// Validate database configuration
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case DriverPostgres:
		if c.Database.Postgres.Host == "" || c.Database.Postgres.Name == "" {
			return fmt.Errorf("database.postgres host and name are required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	// Validate storage configuration
	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.UploadDir == "" {
			return fmt.Errorf("storage.upload_dir is required")
		}
	case StorageMinio:
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "" {
			return fmt.Errorf("storage.minio endpoint and bucket are required")
		}
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}

	// Validate cache configuration
	if c.Cache.Enabled && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.addr is required")
	}

	return nil
}
