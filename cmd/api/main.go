package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"citypulse/internal/config"
	"citypulse/internal/repository"
	"citypulse/internal/router"
	"citypulse/internal/util"
)

func LoggerInitialize(cfg config.LogConfig) (*util.ServiceLogger, error) {
	serviceLogger := &util.ServiceLogger{}

	if err := serviceLogger.Init(cfg); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		return nil, err
	}

	serviceLogger.Info("Service started")

	currentTime := time.Now().Format(time.RFC3339)

	fmt.Fprintf(os.Stderr, "\n%s: CityPulse API started \n", currentTime)

	return serviceLogger, nil
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults to $"+config.ConfigPathEnv+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error while loading the config..", err)
		os.Exit(1)
	}

	logger, err := LoggerInitialize(cfg.Log)
	if err != nil {
		fmt.Println("Error while initializing the logger..", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Service exited with error", zap.Error(err))
		logger.DeInit()
		os.Exit(1)
	}
	logger.DeInit()
}

func run(cfg config.Config, logger *util.ServiceLogger) error {
	store, err := repository.New(cfg.Storage)
	if err != nil {
		return err
	}
	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to initialize %s store: %w", cfg.Storage.Type, err)
	}
	defer store.Close()

	logger.Info("Store ready", zap.String("type", cfg.Storage.Type))

	return router.Run(store, cfg, logger)
}
