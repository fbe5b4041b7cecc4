package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/conveyance-bills/internal/config"
	"github.com/garyjia/conveyance-bills/internal/container"
	httpserver "github.com/garyjia/conveyance-bills/internal/interfaces/http"
	"github.com/garyjia/conveyance-bills/pkg/utils"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or configs/config.yaml)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(effectiveConfigPath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("Server exited successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting conveyance bill service",
		zap.String("version", "1.0.0"),
		zap.String("database", cfg.Database.Driver),
		zap.String("storage", cfg.Storage.Backend),
		zap.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	containerCfg := cfg.ToContainerConfig()
	c, err := container.NewContainer(containerCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	serverCfg := httpserver.ServerConfig{
		Host:            containerCfg.Server.Host,
		Port:            containerCfg.Server.Port,
		ReadTimeout:     containerCfg.Server.ReadTimeout,
		WriteTimeout:    containerCfg.Server.WriteTimeout,
		ShutdownTimeout: containerCfg.Server.ShutdownTimeout,
		AllowedOrigins:  containerCfg.Server.AllowedOrigins,
		Mode:            containerCfg.Server.Mode,
	}
	if containerCfg.Storage.Backend == container.StorageLocal {
		serverCfg.UploadDir = containerCfg.Storage.UploadDir
		serverCfg.UploadURL = containerCfg.Storage.PublicURL
	}

	services := c.Services()
	server := httpserver.NewServer(serverCfg, httpserver.Services{
		Users:       services.Users,
		Bills:       services.Bills,
		Attachments: services.Attachments,
		Health: func(ctx context.Context) (bool, interface{}) {
			status := c.Health(ctx)
			return status.Overall, status.Components
		},
	}, container.NewLoggerAdapter(logger.Named("http")))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})

	err = g.Wait()
	logger.Info("Shutting down server...")
	return err
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
