package server

import (
	"fmt"
	"time"

	"github.com/modelreg/modelreg/internal/api/middleware"
	"github.com/modelreg/modelreg/internal/deployment"
	"github.com/modelreg/modelreg/internal/drift"
	"github.com/modelreg/modelreg/internal/importer"
	"github.com/modelreg/modelreg/internal/observability/metrics"
	"github.com/modelreg/modelreg/internal/performance"
	"github.com/modelreg/modelreg/internal/storage"
	"github.com/modelreg/modelreg/internal/storage/implementations/file"
	"github.com/modelreg/modelreg/internal/storage/implementations/influxdb"
	"github.com/modelreg/modelreg/internal/storage/implementations/redis"
	"github.com/modelreg/modelreg/internal/storage/implementations/s3"
	"github.com/modelreg/modelreg/internal/validation"
	"github.com/modelreg/modelreg/pkg/constants"
)

// Config contains the full server configuration
type Config struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	MetricsPort     int           `json:"metrics_port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	EnableMetrics   bool          `json:"enable_metrics"`

	ArtifactDir string `json:"artifact_dir"`

	Repository  *storage.RepositoryConfig  `json:"repository,omitempty"`
	Cache       *redis.RedisConfig         `json:"cache,omitempty"`
	S3Artifacts *s3.S3Config               `json:"s3_artifacts,omitempty"`
	MetricsSink *influxdb.InfluxDBConfig   `json:"metrics_sink,omitempty"`
	Prometheus  *metrics.PrometheusConfig  `json:"prometheus,omitempty"`
	Importer    *importer.ImporterConfig   `json:"importer,omitempty"`
	Validation  *validation.EngineConfig   `json:"validation,omitempty"`
	Tracker     *performance.TrackerConfig `json:"tracker,omitempty"`
	Drift       *drift.DetectorConfig      `json:"drift,omitempty"`
	Logging     *middleware.LoggingConfig  `json:"logging,omitempty"`
	Policy      *deployment.Policy         `json:"policy,omitempty"`

	// SnapshotInterval controls how often deployed-version performance is
	// flushed to the metrics sink; zero disables the flusher.
	SnapshotInterval time.Duration `json:"snapshot_interval"`
}

// NewDefaultConfig creates a default server configuration with an in-memory
// registry and file artifacts
func NewDefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            8080,
		MetricsPort:     9090,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		EnableMetrics:   true,
		ArtifactDir:     "./data/artifacts",
		Repository: &storage.RepositoryConfig{
			Backend: constants.StorageBackendFile,
			File:    &file.FileConfig{Directory: "./data/registry"},
		},
		SnapshotInterval: time.Minute,
	}
}

// Validate checks the configuration for obvious mistakes
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.EnableMetrics && (c.MetricsPort <= 0 || c.MetricsPort > 65535) {
		return fmt.Errorf("invalid metrics port: %d", c.MetricsPort)
	}
	if c.MetricsPort == c.Port && c.EnableMetrics {
		return fmt.Errorf("metrics port must differ from the server port")
	}
	if c.S3Artifacts == nil && c.ArtifactDir == "" {
		return fmt.Errorf("either artifact_dir or s3_artifacts must be configured")
	}
	return nil
}

// GetAddress returns the listen address
func (c *Config) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
