package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/internal/agents"
	"github.com/modelreg/modelreg/internal/api"
	"github.com/modelreg/modelreg/internal/deployment"
	"github.com/modelreg/modelreg/internal/drift"
	"github.com/modelreg/modelreg/internal/importer"
	"github.com/modelreg/modelreg/internal/observability/metrics"
	"github.com/modelreg/modelreg/internal/performance"
	"github.com/modelreg/modelreg/internal/registry"
	"github.com/modelreg/modelreg/internal/storage"
	"github.com/modelreg/modelreg/internal/storage/implementations/file"
	"github.com/modelreg/modelreg/internal/storage/implementations/influxdb"
	"github.com/modelreg/modelreg/internal/storage/implementations/redis"
	"github.com/modelreg/modelreg/internal/storage/implementations/s3"
	"github.com/modelreg/modelreg/internal/validation"
	"github.com/modelreg/modelreg/pkg/interfaces"
	"github.com/modelreg/modelreg/pkg/models"
)

// Server assembles the registry core from configuration and exposes it over
// HTTP, with an optional separate metrics listener and a background snapshot
// flusher.
type Server struct {
	config *Config
	logger *logrus.Logger

	httpServer    *http.Server
	metricsServer *http.Server

	repo    interfaces.Repository
	cache   interfaces.ResultCache
	sink    interfaces.MetricsSink
	reg     *registry.Registry
	tracker *performance.Tracker
	pm      *metrics.PrometheusMetrics

	flusherStop chan struct{}
}

// NewServer creates a server. Components connect when Start runs.
func NewServer(config *Config, logger *logrus.Logger) (*Server, error) {
	if config == nil {
		config = NewDefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Server{
		config:      config,
		logger:      logger,
		flusherStop: make(chan struct{}),
	}, nil
}

// Start connects storage, wires the core and serves until the listener fails
// or Stop runs
func (s *Server) Start(ctx context.Context) error {
	if err := s.setup(ctx); err != nil {
		return err
	}

	if s.config.EnableMetrics && s.metricsServer != nil {
		go func() {
			s.logger.WithField("port", s.config.MetricsPort).Info("Starting metrics server")
			if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.WithError(err).Error("Metrics server error")
			}
		}()
	}

	if s.config.SnapshotInterval > 0 && s.sink != nil {
		go s.snapshotFlusher()
	}

	s.logger.WithField("address", s.config.GetAddress()).Info("Starting HTTP server")
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts the server down and releases storage connections
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	close(s.flusherStop)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Error("Error shutting down metrics server")
		}
	}

	var firstErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Error("Error shutting down HTTP server")
			firstErr = err
		}
	}

	if s.sink != nil {
		s.sink.Close()
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.WithError(err).Warn("Error closing result cache")
		}
	}
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			s.logger.WithError(err).Warn("Error closing repository")
		}
	}

	s.logger.Info("Server stopped")
	return firstErr
}

func (s *Server) setup(ctx context.Context) error {
	if s.config.EnableMetrics {
		s.pm = metrics.NewPrometheusMetrics(s.config.Prometheus, s.logger)
	}

	if s.config.Repository != nil {
		repo, err := storage.NewFactory(s.logger).CreateRepository(s.config.Repository)
		if err != nil {
			return err
		}
		if err := repo.Connect(ctx); err != nil {
			return err
		}
		s.repo = repo
	}

	if s.config.Cache != nil {
		cache, err := redis.NewRedisCache(ctx, s.config.Cache, s.logger)
		if err != nil {
			return err
		}
		s.cache = cache
	}

	if s.config.MetricsSink != nil {
		sink, err := influxdb.NewInfluxDBSink(s.config.MetricsSink, s.logger)
		if err != nil {
			return err
		}
		s.sink = sink
	}

	var artifacts interfaces.ArtifactStore
	if s.config.S3Artifacts != nil {
		store, err := s3.NewS3ArtifactStore(s.config.S3Artifacts, s.logger)
		if err != nil {
			return err
		}
		artifacts = store
	} else {
		store, err := file.NewFileArtifactStore(s.config.ArtifactDir, s.logger)
		if err != nil {
			return err
		}
		artifacts = store
	}

	s.reg = registry.NewRegistry(s.repo, s.logger)
	if err := s.reg.Load(ctx); err != nil {
		return err
	}

	audit := registry.NewAuditLog(s.repo, s.logger)
	if err := audit.Load(ctx); err != nil {
		return err
	}

	s.tracker = performance.NewTracker(s.config.Tracker, s.pm, s.logger)
	s.restoreBaselines(ctx)

	engine := validation.NewEngine(s.config.Validation, s.reg, s.cache, s.logger)
	detector := drift.NewDetector(s.config.Drift, s.tracker, s.pm, s.logger)
	binder := agents.NewBinder(s.logger)

	policy := deployment.DefaultPolicy()
	if s.config.Policy != nil {
		policy = *s.config.Policy
	}
	controller := deployment.NewController(policy, s.reg, audit, engine, s.tracker,
		binder, s.repo, s.pm, s.logger)

	imp := importer.NewImporter(s.config.Importer, s.reg, audit, artifacts, nil,
		s.tracker, s.logger)

	router := api.NewRouter(api.Dependencies{
		Importer:   imp,
		Registry:   s.reg,
		Controller: controller,
		Engine:     engine,
		Tracker:    s.tracker,
		Detector:   detector,
		Repository: s.repo,
		Metrics:    s.pm,
	}, s.config.Logging, s.logger)

	s.httpServer = &http.Server{
		Addr:         s.config.GetAddress(),
		Handler:      router.SetupRoutes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	if s.config.EnableMetrics {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", s.pm.Handler())
		s.metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", s.config.Host, s.config.MetricsPort),
			Handler: metricsMux,
		}
	}

	return nil
}

// restoreBaselines seeds tracker registrations and deployment baselines from
// persisted state so a restart keeps drift detection working
func (s *Server) restoreBaselines(ctx context.Context) {
	versions, err := s.reg.List(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to list versions for baseline restore")
		return
	}

	for _, v := range versions {
		s.tracker.RegisterVersion(v.Version, v.Metadata.ModelInfo.DecisionThreshold)

		if s.repo == nil {
			continue
		}
		snapshot, err := s.repo.LoadSnapshot(ctx, "baseline:"+v.Version)
		if err != nil {
			continue
		}
		s.tracker.RestoreBaseline(snapshot)
	}
}

// snapshotFlusher periodically pushes the deployed version's performance to
// the metrics sink
func (s *Server) snapshotFlusher() {
	ticker := time.NewTicker(s.config.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.flusherStop:
			return
		case <-ticker.C:
			s.flushSnapshot()
		}
	}
}

func (s *Server) flushSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	current := s.reg.CurrentDeployed(ctx)
	if current == nil {
		return
	}

	snapshot, err := s.tracker.Snapshot(current.Version)
	if err != nil {
		return
	}
	if err := s.sink.WriteSnapshot(ctx, snapshot); err != nil {
		s.logger.WithError(err).Warn("Failed to flush performance snapshot")
	}

	if s.pm != nil {
		counts := map[models.VersionStatus]int{}
		for _, status := range s.reg.StatusSnapshot(ctx) {
			counts[status]++
		}
		for status, count := range counts {
			s.pm.SetVersionCount(string(status), count)
		}
	}
}
