// Package migrations embeds the schema migrations for each supported database driver.
package migrations

import "embed"

// SQLite holds the numbered migrations applied by pkg/database.Migrator
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Postgres holds the golang-migrate up/down pairs
//
//go:embed postgres/*.sql
var Postgres embed.FS

const (
	SQLiteDir   = "sqlite"
	PostgresDir = "postgres"
)
