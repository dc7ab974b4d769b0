package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"franchise-bootstrap/internal/bootstrap/config"
	"franchise-bootstrap/internal/di"
	apperrors "franchise-bootstrap/internal/shared/errors"
	"franchise-bootstrap/internal/shared/logger"
	"franchise-bootstrap/internal/shared/utils"

	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run())
}

// run performs one bootstrap and returns the process exit status
func run() int {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	appLogger := logger.NewLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		appLogger.WithFields(map[string]interface{}{"error": err.Error()}).Error("Failed to load configuration")
		return apperrors.ExitConfiguration
	}
	appLogger.WithFields(map[string]interface{}{
		"redis":  cfg.Redis.Enabled,
		"verify": cfg.Verify,
	}).Info("Bootstrap configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	container := di.NewContainer(appLogger, os.Stdout)
	defer container.Close()

	if err := container.Initialize(ctx, cfg); err != nil {
		appLogger.WithFields(map[string]interface{}{"error": err.Error()}).Error("Failed to initialize bootstrap")
		return apperrors.ExitCode(err)
	}

	if err := container.HealthCheck(ctx); err != nil {
		appLogger.WithFields(map[string]interface{}{"error": err.Error()}).Error("Health check failed")
		return apperrors.ExitCode(err)
	}

	module := container.GetBootstrapModule()
	plan := module.Plan()
	appLogger.WithFields(map[string]interface{}{
		"database":    plan.Database,
		"user":        plan.User.Name,
		"collections": plan.Collections,
	}).Info("Bootstrap plan ready")

	report, err := module.Run(ctx)
	if err != nil {
		return apperrors.ExitCode(err)
	}

	if module.VerifyEnabled() {
		if _, err := module.Verify(utils.WithRunID(ctx, report.RunID)); err != nil {
			appLogger.WithFields(map[string]interface{}{"error": err.Error()}).Error("Bootstrap verification failed")
			return apperrors.ExitCode(err)
		}
	}

	return apperrors.ExitOK
}
