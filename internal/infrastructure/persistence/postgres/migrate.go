package postgres

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/garyjia/conveyance-bills/migrations"
)

// Migration actions
const (
	MigrateUp      = "up"
	MigrateDown    = "down"
	MigrateDrop    = "drop"
	MigrateVersion = "version"
)

// Migrator is the subset of *migrate.Migrate that RunMigration drives
type Migrator interface {
	Up() error
	Down() error
	Drop() error
	Version() (uint, bool, error)
}

// NewMigrator opens a golang-migrate instance for dsn. An empty dir uses the
// migrations embedded in the binary.
func NewMigrator(dsn, dir string) (*migrate.Migrate, error) {
	if dir == "" {
		src, err := iofs.New(migrations.Postgres, migrations.PostgresDir)
		if err != nil {
			return nil, fmt.Errorf("open embedded migrations: %w", err)
		}
		m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
		if err != nil {
			return nil, fmt.Errorf("create migrate instance: %w", err)
		}
		return m, nil
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve path for %s: %w", dir, err)
	}
	m, err := migrate.New("file://"+filepath.ToSlash(absDir), dsn)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

// MigrationStatus is the schema version after a RunMigration call
type MigrationStatus struct {
	Version uint
	Dirty   bool
	Applied bool
}

// RunMigration performs action and reports the resulting version
func RunMigration(m Migrator, action string) (MigrationStatus, error) {
	var err error
	switch action {
	case MigrateUp:
		err = m.Up()
	case MigrateDown:
		err = m.Down()
	case MigrateDrop:
		err = m.Drop()
	case MigrateVersion:
	default:
		return MigrationStatus{}, fmt.Errorf("unsupported action %q", action)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrationStatus{}, fmt.Errorf("migration %s: %w", action, err)
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("read migration version: %w", err)
	}
	return MigrationStatus{Version: version, Dirty: dirty, Applied: true}, nil
}
