package storage

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/internal/storage/implementations/file"
	"github.com/modelreg/modelreg/internal/storage/implementations/postgres"
	"github.com/modelreg/modelreg/pkg/constants"
	"github.com/modelreg/modelreg/pkg/errors"
	"github.com/modelreg/modelreg/pkg/interfaces"
)

// RepositoryConfig selects and configures a repository backend
type RepositoryConfig struct {
	Backend  string                   `json:"backend"`
	File     *file.FileConfig         `json:"file,omitempty"`
	Postgres *postgres.PostgresConfig `json:"postgres,omitempty"`
}

// RepositoryCreateFunc builds a repository from its backend config
type RepositoryCreateFunc func(config *RepositoryConfig) (interfaces.Repository, error)

// Factory creates repository instances by backend name
type Factory struct {
	creators map[string]RepositoryCreateFunc
	mu       sync.RWMutex
	logger   *logrus.Logger
}

// NewFactory creates a storage factory with the default backends registered
func NewFactory(logger *logrus.Logger) *Factory {
	if logger == nil {
		logger = logrus.New()
	}

	factory := &Factory{
		creators: make(map[string]RepositoryCreateFunc),
		logger:   logger,
	}
	factory.registerDefaults()

	return factory
}

// CreateRepository creates a repository for the configured backend
func (f *Factory) CreateRepository(config *RepositoryConfig) (interfaces.Repository, error) {
	if config == nil {
		return nil, errors.NewStorageError("INVALID_CONFIG", "repository config cannot be nil")
	}

	f.mu.RLock()
	createFunc, exists := f.creators[config.Backend]
	f.mu.RUnlock()

	if !exists {
		return nil, errors.NewStorageError("UNSUPPORTED_BACKEND",
			fmt.Sprintf("storage backend '%s' is not supported", config.Backend))
	}

	repo, err := createFunc(config)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, "CREATION_FAILED",
			fmt.Sprintf("failed to create %s repository", config.Backend))
	}

	f.logger.WithField("backend", config.Backend).Info("Created repository")
	return repo, nil
}

// RegisterBackend registers a repository backend
func (f *Factory) RegisterBackend(backend string, createFunc RepositoryCreateFunc) error {
	if backend == "" {
		return errors.NewStorageError("INVALID_BACKEND", "backend name cannot be empty")
	}
	if createFunc == nil {
		return errors.NewStorageError("INVALID_CREATOR", "create function cannot be nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[backend] = createFunc
	return nil
}

// SupportedBackends returns all registered backend names
func (f *Factory) SupportedBackends() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	backends := make([]string, 0, len(f.creators))
	for backend := range f.creators {
		backends = append(backends, backend)
	}
	return backends
}

func (f *Factory) registerDefaults() {
	f.RegisterBackend(constants.StorageBackendFile, func(config *RepositoryConfig) (interfaces.Repository, error) {
		return file.NewFileRepository(config.File, f.logger)
	})

	f.RegisterBackend(constants.StorageBackendPostgres, func(config *RepositoryConfig) (interfaces.Repository, error) {
		return postgres.NewPostgresRepository(config.Postgres, f.logger)
	})
}
