package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

func main() {
	var (
		serverURL = flag.String("server", "http://localhost:8080", "Registry server URL")
		interval  = flag.Duration("interval", time.Minute, "Drift check interval")
		logLevel  = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(level)
	}

	logger.WithFields(logrus.Fields{
		"server":   *serverURL,
		"interval": interval.String(),
	}).Info("Starting drift monitor")

	monitor := NewDriftMonitor(*serverURL, *interval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go monitor.Run(ctx)

	<-sigChan
	logger.Info("Shutdown signal received")
	cancel()
}
