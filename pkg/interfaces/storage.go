package interfaces

import (
	"context"
	"io"
	"time"

	"github.com/modelreg/modelreg/pkg/models"
)

// Repository provides durable storage for the registry's authoritative state.
// Implementations must make SaveVersion create-only so the registry can rely
// on the backend to reject version collisions.
type Repository interface {
	// Connect establishes connection to the storage backend
	Connect(ctx context.Context) error

	// Close closes the connection and cleans up resources
	Close() error

	// Ping tests the connection
	Ping(ctx context.Context) error

	// SaveVersion persists a new model version; fails on duplicate version
	SaveVersion(ctx context.Context, version *models.ModelVersion) error

	// UpdateVersionStatus persists a status transition
	UpdateVersionStatus(ctx context.Context, version string, status models.VersionStatus) error

	// LoadVersion reads one model version by its version string
	LoadVersion(ctx context.Context, version string) (*models.ModelVersion, error)

	// DeleteVersion removes a model version record; absent versions are a no-op
	DeleteVersion(ctx context.Context, version string) error

	// ListVersions reads all registered model versions
	ListVersions(ctx context.Context) ([]*models.ModelVersion, error)

	// AppendEvent appends one deployment event to the audit log
	AppendEvent(ctx context.Context, event *models.DeploymentEvent) error

	// ListEvents reads the audit log in append order
	ListEvents(ctx context.Context) ([]*models.DeploymentEvent, error)

	// SaveSnapshot persists a performance snapshot (baseline or periodic)
	SaveSnapshot(ctx context.Context, name string, snapshot *models.PerformanceSnapshot) error

	// LoadSnapshot reads a persisted performance snapshot
	LoadSnapshot(ctx context.Context, name string) (*models.PerformanceSnapshot, error)
}

// ArtifactStore stores opaque model package bytes. The registry only keeps the
// returned location string.
type ArtifactStore interface {
	// Store writes artifact bytes and returns their opaque location
	Store(ctx context.Context, version, name string, artifact io.Reader) (string, error)

	// Retrieve reads artifact bytes by location
	Retrieve(ctx context.Context, location string) (io.ReadCloser, error)

	// Delete removes the artifact at location
	Delete(ctx context.Context, location string) error

	// Exists reports whether an artifact is stored at location
	Exists(ctx context.Context, location string) (bool, error)
}

// ResultCache caches recomputable derived state, keyed by version
type ResultCache interface {
	// GetValidation reads a cached validation result; returns nil on miss
	GetValidation(ctx context.Context, version string) (*models.ValidationResult, error)

	// PutValidation caches a validation result with the given TTL
	PutValidation(ctx context.Context, result *models.ValidationResult, ttl time.Duration) error

	// InvalidateValidation drops a cached validation result
	InvalidateValidation(ctx context.Context, version string) error

	// Close releases the cache connection
	Close() error
}

// MetricsSink receives periodic performance snapshots for long-term history
type MetricsSink interface {
	// WriteSnapshot records one performance snapshot
	WriteSnapshot(ctx context.Context, snapshot *models.PerformanceSnapshot) error

	// Flush forces buffered writes out
	Flush()

	// Close shuts the sink down
	Close()
}
