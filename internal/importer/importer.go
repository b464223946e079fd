package importer

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/internal/performance"
	"github.com/modelreg/modelreg/internal/registry"
	"github.com/modelreg/modelreg/pkg/constants"
	"github.com/modelreg/modelreg/pkg/errors"
	"github.com/modelreg/modelreg/pkg/interfaces"
	"github.com/modelreg/modelreg/pkg/models"
)

// bundleNamePattern is the fixed naming convention for uploaded packages:
// model_<version>_deployment.<archive-ext>
var bundleNamePattern = regexp.MustCompile(`^model_(.+)_deployment\.(zip|tar\.gz|tgz)$`)

// requiredMembers are package members whose absence fails the import
var requiredMembers = []string{
	constants.MemberMetadata,
	constants.MemberManifest,
}

// optionalMembers are recorded as warnings when absent
var optionalMembers = []string{
	constants.MemberValidation,
	constants.MemberExample,
	constants.MemberRequires,
	constants.MemberReadme,
}

// ImporterConfig configures the package importer
type ImporterConfig struct {
	MaxBundleBytes int64 `json:"max_bundle_bytes"`
}

// Importer validates uploaded model bundles and registers them as available
// versions. Extraction, artifact storage and registration are atomic: a
// failure at any step leaves no partial artifacts behind.
type Importer struct {
	config    *ImporterConfig
	logger    *logrus.Logger
	registry  *registry.Registry
	audit     *registry.AuditLog
	artifacts interfaces.ArtifactStore
	extractor interfaces.PackageExtractor
	tracker   *performance.Tracker
}

// NewImporter creates a package importer. extractor may be nil to use the
// built-in zip/tar.gz extractor.
func NewImporter(config *ImporterConfig, reg *registry.Registry, audit *registry.AuditLog,
	artifacts interfaces.ArtifactStore, extractor interfaces.PackageExtractor,
	tracker *performance.Tracker, logger *logrus.Logger) *Importer {

	if config == nil {
		config = getDefaultImporterConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	if extractor == nil {
		extractor = NewArchiveExtractor()
	}

	return &Importer{
		config:    config,
		logger:    logger,
		registry:  reg,
		audit:     audit,
		artifacts: artifacts,
		extractor: extractor,
		tracker:   tracker,
	}
}

// ParseBundleName extracts the version from a bundle filename, enforcing the
// naming convention
func ParseBundleName(bundleName string) (string, error) {
	matches := bundleNamePattern.FindStringSubmatch(bundleName)
	if matches == nil {
		return "", errors.NewMalformedPackageError(
			"bundle name must match model_<version>_deployment.<ext>, got " + bundleName)
	}
	return matches[1], nil
}

// Import validates and registers an uploaded bundle
func (i *Importer) Import(ctx context.Context, bundleName string, bundleBytes []byte, actor string) (*models.PackageSummary, error) {
	version, err := ParseBundleName(bundleName)
	if err != nil {
		return nil, err
	}

	if i.config.MaxBundleBytes > 0 && int64(len(bundleBytes)) > i.config.MaxBundleBytes {
		return nil, errors.NewMalformedPackageError(
			fmt.Sprintf("bundle exceeds the %d byte limit", i.config.MaxBundleBytes))
	}

	if _, err := i.registry.Get(ctx, version); err == nil {
		return nil, errors.NewDuplicateVersionError(version)
	}

	pkg, err := i.extractor.Extract(ctx, bundleName, bundleBytes)
	if err != nil {
		return nil, err
	}

	summary, err := i.checkMembers(version, pkg)
	if err != nil {
		return nil, err
	}

	location, err := i.artifacts.Store(ctx, version, pkg.ArtifactName, bytes.NewReader(pkg.ArtifactBytes))
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError, "failed to store model artifact")
	}

	record := &models.ModelVersion{
		Version:         version,
		Status:          models.StatusAvailable,
		Metadata:        pkg.Metadata,
		PackageLocation: location,
	}

	if err := i.registry.Save(ctx, record); err != nil {
		// Registration failed after the artifact was written; remove it so no
		// orphan is left behind.
		if delErr := i.artifacts.Delete(ctx, location); delErr != nil {
			i.logger.WithError(delErr).WithField("location", location).
				Error("Failed to clean up artifact after registration failure")
		}
		return nil, err
	}

	if i.tracker != nil {
		i.tracker.RegisterVersion(version, pkg.Metadata.ModelInfo.DecisionThreshold)
	}

	if i.audit != nil {
		if err := i.audit.Append(ctx, &models.DeploymentEvent{
			Version: version,
			Action:  models.ActionImported,
			Actor:   actor,
		}); err != nil {
			// The imported event must land with the registration; unwind it so
			// log replay keeps matching live state.
			if discardErr := i.registry.Discard(ctx, version); discardErr != nil {
				i.logger.WithError(discardErr).WithField("version", version).
					Error("Failed to unwind registration after audit append failure")
			}
			if delErr := i.artifacts.Delete(ctx, location); delErr != nil {
				i.logger.WithError(delErr).WithField("location", location).
					Error("Failed to clean up artifact after audit append failure")
			}
			return nil, err
		}
	}

	i.logger.WithFields(logrus.Fields{
		"version":  version,
		"bundle":   bundleName,
		"location": location,
		"warnings": len(summary.Warnings),
	}).Info("Imported model package")

	return summary, nil
}

func (i *Importer) checkMembers(version string, pkg *interfaces.ExtractedPackage) (*models.PackageSummary, error) {
	summary := &models.PackageSummary{
		Version:              version,
		RequiredFilesPresent: []string{},
		OptionalFilesMissing: []string{},
		Warnings:             []string{},
	}

	present := make(map[string]bool, len(pkg.Members))
	for _, name := range pkg.Members {
		present[name] = true
	}

	var missing []string
	for _, name := range requiredMembers {
		if present[name] {
			summary.RequiredFilesPresent = append(summary.RequiredFilesPresent, name)
		} else {
			missing = append(missing, name)
		}
	}

	if pkg.ArtifactName == "" {
		missing = append(missing, "model artifact")
	} else {
		summary.RequiredFilesPresent = append(summary.RequiredFilesPresent, pkg.ArtifactName)
	}

	if len(missing) > 0 {
		return nil, errors.NewMalformedPackageError(
			fmt.Sprintf("package is missing required members: %v", missing))
	}

	for _, name := range optionalMembers {
		if !present[name] {
			summary.OptionalFilesMissing = append(summary.OptionalFilesMissing, name)
			summary.Warnings = append(summary.Warnings, "optional member missing: "+name)
		}
	}

	return summary, nil
}

func getDefaultImporterConfig() *ImporterConfig {
	return &ImporterConfig{
		MaxBundleBytes: 512 << 20,
	}
}
