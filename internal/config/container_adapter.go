package config

import (
	"github.com/garyjia/conveyance-bills/internal/container"
	"github.com/garyjia/conveyance-bills/internal/infrastructure/cache"
	"github.com/garyjia/conveyance-bills/internal/infrastructure/persistence/postgres"
	"github.com/garyjia/conveyance-bills/internal/infrastructure/storage"
	"github.com/garyjia/conveyance-bills/pkg/database"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Driver: c.Database.Driver,
			SQLite: database.Config{
				Path:            c.Database.SQLite.Path,
				MaxOpenConns:    c.Database.SQLite.MaxOpenConns,
				MaxIdleConns:    c.Database.SQLite.MaxIdleConns,
				ConnMaxLifetime: c.Database.SQLite.ConnMaxLifetime,
				BusyTimeout:     c.Database.SQLite.BusyTimeout,
			},
			Postgres:    c.Database.Postgres.toPoolConfig(),
			AutoMigrate: c.Database.Postgres.AutoMigrate,
		},
		Storage: container.StorageConfig{
			Backend:   c.Storage.Backend,
			UploadDir: c.Storage.UploadDir,
			PublicURL: c.Storage.PublicURL,
			Minio: storage.MinioConfig{
				Endpoint:  c.Storage.Minio.Endpoint,
				AccessKey: c.Storage.Minio.AccessKey,
				SecretKey: c.Storage.Minio.SecretKey,
				Bucket:    c.Storage.Minio.Bucket,
				UseSSL:    c.Storage.Minio.UseSSL,
				PublicURL: c.Storage.Minio.PublicURL,
			},
		},
		Cache: container.CacheConfig{
			Enabled: c.Cache.Enabled,
			Redis: cache.Config{
				Addr:     c.Cache.Addr,
				Password: c.Cache.Password,
				DB:       c.Cache.DB,
				TTL:      c.Cache.TTL,
			},
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
			AllowedOrigins:  c.Server.AllowedOrigins,
			Mode:            c.Server.Mode,
		},
	}
}

func (p PostgresConfig) toPoolConfig() postgres.Config {
	return postgres.Config{
		Host:            p.Host,
		Port:            p.Port,
		User:            p.User,
		Password:        p.Password,
		Name:            p.Name,
		SSLMode:         p.SSLMode,
		MaxOpenConns:    p.MaxOpenConns,
		MaxIdleConns:    p.MaxIdleConns,
		ConnMaxLifetime: p.ConnMaxLifetime,
		ConnMaxIdleTime: p.ConnMaxIdleTime,
	}
}

// PostgresDSN returns the connection URL used by cmd/migrate
func (c *Config) PostgresDSN() string {
	return c.Database.Postgres.toPoolConfig().DSN()
}
