package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/internal/server"
	"github.com/modelreg/modelreg/internal/storage"
	"github.com/modelreg/modelreg/internal/storage/implementations/file"
	"github.com/modelreg/modelreg/internal/storage/implementations/postgres"
	"github.com/modelreg/modelreg/pkg/constants"
)

func main() {
	flags := ParseFlags()

	logger := setupLogger(flags.LogLevel, flags.LogFormat)

	logger.WithFields(logrus.Fields{
		"version":   Version,
		"commit":    GitCommit,
		"buildDate": BuildDate,
	}).Info("Starting model registry server")

	config := buildConfig(flags)

	srv, err := server.NewServer(config, logger)
	if err != nil {
		logger.WithError(err).Fatal("Invalid server configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	case err := <-errChan:
		if err != nil {
			logger.WithError(err).Error("Server failed")
		}
	}

	if err := srv.Stop(context.Background()); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
		os.Exit(1)
	}
}

func buildConfig(flags *Flags) *server.Config {
	config := server.NewDefaultConfig()
	config.Host = flags.Host
	config.Port = flags.Port
	config.MetricsPort = flags.MetricsPort
	config.EnableMetrics = flags.EnableMetrics
	config.ArtifactDir = flags.ArtifactDir

	switch flags.StorageBackend {
	case constants.StorageBackendPostgres:
		config.Repository = &storage.RepositoryConfig{
			Backend: constants.StorageBackendPostgres,
			Postgres: &postgres.PostgresConfig{
				Host:     flags.PostgresHost,
				Port:     flags.PostgresPort,
				Database: flags.PostgresDatabase,
				Username: flags.PostgresUser,
				Password: os.Getenv("MODELREG_POSTGRES_PASSWORD"),
				SSLMode:  "disable",
			},
		}
	default:
		config.Repository = &storage.RepositoryConfig{
			Backend: constants.StorageBackendFile,
			File:    &file.FileConfig{Directory: flags.DataDir},
		}
	}

	return config
}

func setupLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}
