package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/garyjia/conveyance-bills/internal/config"
	"github.com/garyjia/conveyance-bills/internal/infrastructure/persistence/postgres"
	"github.com/garyjia/conveyance-bills/pkg/utils"
)

func main() {
	var (
		configPath    = flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or configs/config.yaml)")
		migrationsDir = flag.String("dir", "", "directory containing migration files (defaults to the embedded set)")
	)
	flag.Parse()

	action := postgres.MigrateUp
	if flag.NArg() > 0 {
		action = flag.Arg(0)
	}

	cfg, err := config.Load(effectiveConfigPath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := utils.MustNewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	defer logger.Sync()

	if cfg.Database.Driver != config.DriverPostgres {
		logger.Fatal("Migrations are managed here only for postgres; sqlite migrates at startup",
			zap.String("driver", cfg.Database.Driver))
	}

	m, err := postgres.NewMigrator(cfg.PostgresDSN(), *migrationsDir)
	if err != nil {
		logger.Fatal("Failed to open migrations", zap.Error(err))
	}
	defer m.Close()

	status, err := postgres.RunMigration(m, action)
	if err != nil {
		logger.Fatal("Migration failed", zap.String("action", action), zap.Error(err))
	}

	if !status.Applied {
		logger.Info("No migration applied", zap.String("action", action))
		return
	}
	logger.Info("Migration completed",
		zap.String("action", action),
		zap.Uint("version", status.Version),
		zap.Bool("dirty", status.Dirty))
}

func effectiveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "configs/config.yaml"
}
