package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/pkg/errors"
	"github.com/modelreg/modelreg/pkg/interfaces"
	"github.com/modelreg/modelreg/pkg/models"
)

// Registry is the authoritative versioned store of model artifacts. It holds
// the invariant that at most one version has status "deployed" at any
// observable point; SwapDeployed is the only path that status can change
// through.
type Registry struct {
	logger   *logrus.Logger
	repo     interfaces.Repository
	mu       sync.RWMutex
	versions map[string]*models.ModelVersion
}

// NewRegistry creates a registry. repo may be nil for a purely in-memory
// registry; when set, every mutation is written through before it becomes
// visible.
func NewRegistry(repo interfaces.Repository, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}

	return &Registry{
		logger:   logger,
		repo:     repo,
		versions: make(map[string]*models.ModelVersion),
	}
}

// Load hydrates the in-memory state from the repository
func (r *Registry) Load(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}

	stored, err := r.repo.ListVersions(ctx)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError, "failed to load registry state")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range stored {
		r.versions[v.Version] = v.Clone()
	}

	r.logger.WithField("versions", len(stored)).Info("Registry state loaded")
	return nil
}

// Save registers a new model version. It is create-only: a collision on the
// version string fails with DUPLICATE_VERSION and leaves the registry
// untouched.
func (r *Registry) Save(ctx context.Context, version *models.ModelVersion) error {
	if version == nil || version.Version == "" {
		return errors.NewAppError(errors.ErrorTypeRegistry, "INVALID_VERSION", "version record requires a version string")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.versions[version.Version]; exists {
		return errors.NewDuplicateVersionError(version.Version)
	}

	record := version.Clone()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.Status == "" {
		record.Status = models.StatusAvailable
	}

	if r.repo != nil {
		if err := r.repo.SaveVersion(ctx, record); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError, "failed to persist model version")
		}
	}

	r.versions[record.Version] = record

	r.logger.WithFields(logrus.Fields{
		"version":   record.Version,
		"algorithm": record.Metadata.ModelInfo.Algorithm,
	}).Info("Registered model version")

	return nil
}

// Get returns a copy of one version record
func (r *Registry) Get(ctx context.Context, version string) (*models.ModelVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, exists := r.versions[version]
	if !exists {
		return nil, errors.NewVersionNotFoundError(version)
	}

	return v.Clone(), nil
}

// List returns copies of all version records ordered by creation time
func (r *Registry) List(ctx context.Context) ([]*models.ModelVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.ModelVersion, 0, len(r.versions))
	for _, v := range r.versions {
		out = append(out, v.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Version < out[j].Version
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

// CurrentDeployed returns a copy of the currently deployed version, or nil
// when nothing is deployed
func (r *Registry) CurrentDeployed(ctx context.Context) *models.ModelVersion {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.currentDeployedLocked()
}

func (r *Registry) currentDeployedLocked() *models.ModelVersion {
	for _, v := range r.versions {
		if v.Status == models.StatusDeployed {
			return v.Clone()
		}
	}
	return nil
}

// SwapDeployed atomically demotes the current deployed version (if any) to
// available and promotes newVersion to deployed, returning the demoted
// version for audit logging. expectedCurrent is the deployed version the
// caller observed ("" for none); a mismatch fails with
// CONCURRENT_MODIFICATION and changes nothing.
func (r *Registry) SwapDeployed(ctx context.Context, newVersion, expectedCurrent string) (*models.ModelVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, exists := r.versions[newVersion]
	if !exists {
		return nil, errors.NewVersionNotFoundError(newVersion)
	}
	if next.Status == models.StatusRetired {
		return nil, errors.NewAppError(errors.ErrorTypeDeployment, "VERSION_RETIRED",
			"a retired version cannot be deployed")
	}
	if next.Status == models.StatusDeployed {
		return nil, errors.NewAppError(errors.ErrorTypeDeployment, "ALREADY_DEPLOYED",
			"version is already the deployed one")
	}

	current := r.currentDeployedLocked()
	observed := ""
	if current != nil {
		observed = current.Version
	}
	if observed != expectedCurrent {
		return nil, errors.NewConcurrentModificationError(
			"expected deployed version '" + expectedCurrent + "', found '" + observed + "'")
	}

	if r.repo != nil {
		if current != nil {
			if err := r.repo.UpdateVersionStatus(ctx, current.Version, models.StatusAvailable); err != nil {
				return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError, "failed to persist demotion")
			}
		}
		if err := r.repo.UpdateVersionStatus(ctx, newVersion, models.StatusDeployed); err != nil {
			// Re-promote the demoted version so persisted and in-memory state agree.
			if current != nil {
				_ = r.repo.UpdateVersionStatus(ctx, current.Version, models.StatusDeployed)
			}
			return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError, "failed to persist promotion")
		}
	}

	if current != nil {
		r.versions[current.Version].Status = models.StatusAvailable
	}
	r.versions[newVersion].Status = models.StatusDeployed

	r.logger.WithFields(logrus.Fields{
		"version":  newVersion,
		"previous": observed,
	}).Info("Swapped deployed version")

	return current, nil
}

// Demote moves a deployed version back to available without promoting a
// replacement. Used to compensate a failed swap-and-log unit.
func (r *Registry) Demote(ctx context.Context, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, exists := r.versions[version]
	if !exists {
		return errors.NewVersionNotFoundError(version)
	}
	if v.Status != models.StatusDeployed {
		return nil
	}

	if r.repo != nil {
		if err := r.repo.UpdateVersionStatus(ctx, version, models.StatusAvailable); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError, "failed to persist demotion")
		}
	}

	v.Status = models.StatusAvailable
	return nil
}

// Retire marks a version retired. It refuses to retire the deployed version;
// demote it through SwapDeployed first.
func (r *Registry) Retire(ctx context.Context, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, exists := r.versions[version]
	if !exists {
		return errors.NewVersionNotFoundError(version)
	}
	if v.Status == models.StatusDeployed {
		return errors.NewModelInUseError(version, "version is currently deployed")
	}
	if v.Status == models.StatusRetired {
		return nil
	}

	if r.repo != nil {
		if err := r.repo.UpdateVersionStatus(ctx, version, models.StatusRetired); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError, "failed to persist retirement")
		}
	}

	v.Status = models.StatusRetired

	r.logger.WithField("version", version).Info("Retired model version")
	return nil
}

// Reinstate moves a retired version back to available. Used to compensate a
// failed retire-and-log unit.
func (r *Registry) Reinstate(ctx context.Context, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, exists := r.versions[version]
	if !exists {
		return errors.NewVersionNotFoundError(version)
	}
	if v.Status != models.StatusRetired {
		return nil
	}

	if r.repo != nil {
		if err := r.repo.UpdateVersionStatus(ctx, version, models.StatusAvailable); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError, "failed to persist reinstatement")
		}
	}

	v.Status = models.StatusAvailable
	return nil
}

// Discard removes a version record outright, from memory and from the
// repository. It exists to unwind a failed import unit; the deployed version
// is never discarded. Discarding an unknown version is a no-op.
func (r *Registry) Discard(ctx context.Context, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, exists := r.versions[version]
	if !exists {
		return nil
	}
	if v.Status == models.StatusDeployed {
		return errors.NewModelInUseError(version, "version is currently deployed")
	}

	if r.repo != nil {
		if err := r.repo.DeleteVersion(ctx, version); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError, "failed to remove persisted version")
		}
	}

	delete(r.versions, version)

	r.logger.WithField("version", version).Info("Discarded model version record")
	return nil
}

// StatusSnapshot returns the current status of every version, for the audit
// consistency check
func (r *Registry) StatusSnapshot(ctx context.Context) map[string]models.VersionStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]models.VersionStatus, len(r.versions))
	for name, v := range r.versions {
		out[name] = v.Status
	}
	return out
}
