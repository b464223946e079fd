package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/pkg/errors"
	"github.com/modelreg/modelreg/pkg/models"
)

// FileConfig holds configuration for the file-backed repository
type FileConfig struct {
	Directory string `json:"directory"`
}

// FileRepository persists registry state as JSON files under a directory:
// versions/<version>.json, snapshots/<name>.json and an append-only
// events.jsonl log. Suitable for single-node deployments and tests.
type FileRepository struct {
	config *FileConfig
	logger *logrus.Logger
	mu     sync.Mutex
}

// NewFileRepository creates a file-backed repository
func NewFileRepository(config *FileConfig, logger *logrus.Logger) (*FileRepository, error) {
	if config == nil || config.Directory == "" {
		return nil, errors.NewStorageError("INVALID_CONFIG", "file repository requires a directory")
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &FileRepository{
		config: config,
		logger: logger,
	}, nil
}

// Connect creates the directory layout
func (r *FileRepository) Connect(ctx context.Context) error {
	for _, dir := range []string{r.versionsDir(), r.snapshotsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
				"failed to create repository directory")
		}
	}
	r.logger.WithField("directory", r.config.Directory).Info("File repository ready")
	return nil
}

// Close is a no-op for the file backend
func (r *FileRepository) Close() error { return nil }

// Ping verifies the directory is accessible
func (r *FileRepository) Ping(ctx context.Context) error {
	_, err := os.Stat(r.config.Directory)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"repository directory not accessible")
	}
	return nil
}

// SaveVersion persists a new model version; fails on duplicate
func (r *FileRepository) SaveVersion(ctx context.Context, version *models.ModelVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.versionPath(version.Version)
	if _, err := os.Stat(path); err == nil {
		return errors.NewDuplicateVersionError(version.Version)
	}

	return r.writeJSON(path, version)
}

// UpdateVersionStatus persists a status transition
func (r *FileRepository) UpdateVersionStatus(ctx context.Context, version string, status models.VersionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := r.readVersion(version)
	if err != nil {
		return err
	}
	record.Status = status

	return r.writeJSON(r.versionPath(version), record)
}

// LoadVersion reads one model version
func (r *FileRepository) LoadVersion(ctx context.Context, version string) (*models.ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.readVersion(version)
}

// DeleteVersion removes a persisted version record; absent files are a no-op
func (r *FileRepository) DeleteVersion(ctx context.Context, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.versionPath(version)); err != nil && !os.IsNotExist(err) {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to delete version file")
	}
	return nil
}

// ListVersions reads all persisted versions
func (r *FileRepository) ListVersions(ctx context.Context) ([]*models.ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.versionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.ModelVersion{}, nil
		}
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to list versions")
	}

	out := make([]*models.ModelVersion, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		record, err := r.readVersion(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// AppendEvent appends one deployment event to the log file
func (r *FileRepository) AppendEvent(ctx context.Context, event *models.DeploymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.eventsPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to open event log")
	}
	defer f.Close()

	line, err := json.Marshal(event)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to encode event")
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to append event")
	}
	return nil
}

// ListEvents reads the event log in append order
func (r *FileRepository) ListEvents(ctx context.Context) ([]*models.DeploymentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.eventsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.DeploymentEvent{}, nil
		}
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to read event log")
	}

	var out []*models.DeploymentEvent
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var event models.DeploymentEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
				"corrupt event log entry")
		}
		out = append(out, &event)
	}
	return out, nil
}

// SaveSnapshot persists a performance snapshot
func (r *FileRepository) SaveSnapshot(ctx context.Context, name string, snapshot *models.PerformanceSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.writeJSON(r.snapshotPath(name), snapshot)
}

// LoadSnapshot reads a persisted performance snapshot
func (r *FileRepository) LoadSnapshot(ctx context.Context, name string) (*models.PerformanceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.snapshotPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewStorageError("SNAPSHOT_NOT_FOUND", "no snapshot named "+name)
		}
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to read snapshot")
	}

	var snapshot models.PerformanceSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"corrupt snapshot file")
	}
	return &snapshot, nil
}

func (r *FileRepository) readVersion(version string) (*models.ModelVersion, error) {
	data, err := os.ReadFile(r.versionPath(version))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewVersionNotFoundError(version)
		}
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to read version file")
	}

	var record models.ModelVersion
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"corrupt version file")
	}
	return &record, nil
}

// writeJSON writes atomically via a temp file rename
func (r *FileRepository) writeJSON(path string, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to encode record")
	}

	tmp := fmt.Sprintf("%s.tmp", path)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to write record")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to finalize record")
	}
	return nil
}

func (r *FileRepository) versionsDir() string  { return filepath.Join(r.config.Directory, "versions") }
func (r *FileRepository) snapshotsDir() string { return filepath.Join(r.config.Directory, "snapshots") }
func (r *FileRepository) eventsPath() string   { return filepath.Join(r.config.Directory, "events.jsonl") }

func (r *FileRepository) versionPath(version string) string {
	return filepath.Join(r.versionsDir(), version+".json")
}

func (r *FileRepository) snapshotPath(name string) string {
	return filepath.Join(r.snapshotsDir(), strings.ReplaceAll(name, ":", "_")+".json")
}
