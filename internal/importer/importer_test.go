package importer

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelreg/modelreg/internal/performance"
	"github.com/modelreg/modelreg/internal/registry"
	"github.com/modelreg/modelreg/internal/storage/implementations/file"
	"github.com/modelreg/modelreg/pkg/constants"
	"github.com/modelreg/modelreg/pkg/errors"
	"github.com/modelreg/modelreg/pkg/models"
)

const testMetadata = `{
	"model_info": {
		"name": "fraud-detector",
		"algorithm": "isolation_forest",
		"framework": "scikit-learn",
		"decision_threshold": 0.6
	},
	"training_info": {
		"n_samples": 100000,
		"n_features": 2,
		"feature_names": ["amount", "velocity"]
	},
	"evaluation_info": {
		"basic_metrics": {
			"accuracy": 0.95,
			"precision": 0.91,
			"recall": 0.88,
			"f1_score": 0.89,
			"roc_auc": 0.93
		}
	}
}`

const testManifest = `{"entry_point": "validate.py", "python_version": "3.11"}`

// buildZipBundle assembles an in-memory zip with the given members
func buildZipBundle(t *testing.T, members map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range members {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func buildTarGzBundle(t *testing.T, members map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, data := range members {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(data)),
		}))
		_, err := tw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func completeMembers() map[string][]byte {
	return map[string][]byte{
		constants.MemberMetadata:   []byte(testMetadata),
		constants.MemberManifest:   []byte(testManifest),
		"model.pkl":                []byte("serialized-model-bytes"),
		constants.MemberValidation: []byte("print('ok')"),
		constants.MemberExample:    []byte("print('example')"),
		constants.MemberRequires:   []byte("scikit-learn==1.4.0"),
		constants.MemberReadme:     []byte("# fraud detector"),
	}
}

func newTestImporter(t *testing.T) (*Importer, *registry.Registry, *registry.AuditLog) {
	t.Helper()

	logger := logrus.New()
	reg := registry.NewRegistry(nil, logger)
	audit := registry.NewAuditLog(nil, logger)
	tracker := performance.NewTracker(nil, nil, logger)

	artifacts, err := file.NewFileArtifactStore(t.TempDir(), logger)
	require.NoError(t, err)

	imp := NewImporter(nil, reg, audit, artifacts, nil, tracker, logger)
	return imp, reg, audit
}

func TestParseBundleName(t *testing.T) {
	version, err := ParseBundleName("model_v2.1.0_deployment.zip")
	require.NoError(t, err)
	assert.Equal(t, "v2.1.0", version)

	version, err = ParseBundleName("model_v1.0.0-rc1_deployment.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0-rc1", version)

	for _, bad := range []string{
		"model_v1.0.0.zip",
		"v1.0.0_deployment.zip",
		"model_v1.0.0_deployment.rar",
		"bundle.zip",
	} {
		_, err := ParseBundleName(bad)
		assert.Error(t, err, bad)
		assert.True(t, errors.IsCode(err, errors.CodeMalformedPackage), bad)
	}
}

func TestImportRoundTrip(t *testing.T) {
	imp, reg, audit := newTestImporter(t)
	ctx := context.Background()

	bundle := buildZipBundle(t, completeMembers())
	summary, err := imp.Import(ctx, "model_v2.1.0_deployment.zip", bundle, "tester")
	require.NoError(t, err)

	assert.Equal(t, "v2.1.0", summary.Version)
	assert.Empty(t, summary.Warnings)
	assert.Contains(t, summary.RequiredFilesPresent, constants.MemberMetadata)
	assert.Contains(t, summary.RequiredFilesPresent, "model.pkl")

	v, err := reg.Get(ctx, "v2.1.0")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, v.Status)
	assert.Equal(t, "isolation_forest", v.Metadata.ModelInfo.Algorithm)
	assert.Equal(t, 0.6, v.Metadata.ModelInfo.DecisionThreshold)
	assert.NotEmpty(t, v.PackageLocation)

	events := audit.List(ctx)
	require.Len(t, events, 1)
	assert.Equal(t, models.ActionImported, events[0].Action)
	assert.Equal(t, "tester", events[0].Actor)
}

func TestImportTarGzBundle(t *testing.T) {
	imp, reg, _ := newTestImporter(t)
	ctx := context.Background()

	bundle := buildTarGzBundle(t, completeMembers())
	_, err := imp.Import(ctx, "model_v1.0.0_deployment.tar.gz", bundle, "tester")
	require.NoError(t, err)

	_, err = reg.Get(ctx, "v1.0.0")
	require.NoError(t, err)
}

func TestImportDuplicateVersion(t *testing.T) {
	imp, _, _ := newTestImporter(t)
	ctx := context.Background()

	bundle := buildZipBundle(t, completeMembers())
	_, err := imp.Import(ctx, "model_v1.0.0_deployment.zip", bundle, "tester")
	require.NoError(t, err)

	_, err = imp.Import(ctx, "model_v1.0.0_deployment.zip", bundle, "tester")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDuplicateVersion))
}

func TestImportMissingRequiredMember(t *testing.T) {
	imp, reg, _ := newTestImporter(t)
	ctx := context.Background()

	members := completeMembers()
	delete(members, constants.MemberManifest)

	_, err := imp.Import(ctx, "model_v1.0.0_deployment.zip", buildZipBundle(t, members), "tester")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMalformedPackage))

	// A failed import must not register anything.
	_, err = reg.Get(ctx, "v1.0.0")
	assert.True(t, errors.IsCode(err, errors.CodeVersionNotFound))
}

func TestImportMissingArtifact(t *testing.T) {
	imp, _, _ := newTestImporter(t)

	members := completeMembers()
	delete(members, "model.pkl")

	_, err := imp.Import(context.Background(), "model_v1.0.0_deployment.zip", buildZipBundle(t, members), "tester")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMalformedPackage))
}

func TestImportMultipleArtifacts(t *testing.T) {
	imp, _, _ := newTestImporter(t)

	members := completeMembers()
	members["model2.onnx"] = []byte("another-model")

	_, err := imp.Import(context.Background(), "model_v1.0.0_deployment.zip", buildZipBundle(t, members), "tester")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMalformedPackage))
}

func TestImportOptionalMembersMissingWarns(t *testing.T) {
	imp, _, _ := newTestImporter(t)

	members := map[string][]byte{
		constants.MemberMetadata: []byte(testMetadata),
		constants.MemberManifest: []byte(testManifest),
		"model.pkl":              []byte("serialized-model-bytes"),
	}

	summary, err := imp.Import(context.Background(), "model_v1.0.0_deployment.zip", buildZipBundle(t, members), "tester")
	require.NoError(t, err)
	assert.Len(t, summary.OptionalFilesMissing, 4)
	assert.Len(t, summary.Warnings, 4)
}

func TestImportCorruptMetadata(t *testing.T) {
	imp, _, _ := newTestImporter(t)

	members := completeMembers()
	members[constants.MemberMetadata] = []byte("{not json")

	_, err := imp.Import(context.Background(), "model_v1.0.0_deployment.zip", buildZipBundle(t, members), "tester")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMalformedPackage))
}

func TestImportGarbageBundle(t *testing.T) {
	imp, _, _ := newTestImporter(t)

	_, err := imp.Import(context.Background(), "model_v1.0.0_deployment.zip", []byte("not an archive"), "tester")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMalformedPackage))
}

func TestImportBundleSizeLimit(t *testing.T) {
	logger := logrus.New()
	reg := registry.NewRegistry(nil, logger)
	artifacts, err := file.NewFileArtifactStore(t.TempDir(), logger)
	require.NoError(t, err)

	imp := NewImporter(&ImporterConfig{MaxBundleBytes: 16}, reg, nil, artifacts, nil, nil, logger)

	bundle := buildZipBundle(t, completeMembers())
	_, err = imp.Import(context.Background(), "model_v1.0.0_deployment.zip", bundle, "tester")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMalformedPackage))
}

// failingEventRepo refuses event appends so the import unwind path can be driven
type failingEventRepo struct{}

func (f *failingEventRepo) Connect(ctx context.Context) error { return nil }
func (f *failingEventRepo) Close() error                      { return nil }
func (f *failingEventRepo) Ping(ctx context.Context) error    { return nil }
func (f *failingEventRepo) SaveVersion(ctx context.Context, version *models.ModelVersion) error {
	return nil
}
func (f *failingEventRepo) UpdateVersionStatus(ctx context.Context, version string, status models.VersionStatus) error {
	return nil
}
func (f *failingEventRepo) LoadVersion(ctx context.Context, version string) (*models.ModelVersion, error) {
	return nil, errors.NewVersionNotFoundError(version)
}
func (f *failingEventRepo) DeleteVersion(ctx context.Context, version string) error { return nil }
func (f *failingEventRepo) ListVersions(ctx context.Context) ([]*models.ModelVersion, error) {
	return nil, nil
}
func (f *failingEventRepo) AppendEvent(ctx context.Context, event *models.DeploymentEvent) error {
	return errors.NewStorageError(errors.CodeStorageError, "event log unavailable")
}
func (f *failingEventRepo) ListEvents(ctx context.Context) ([]*models.DeploymentEvent, error) {
	return nil, nil
}
func (f *failingEventRepo) SaveSnapshot(ctx context.Context, name string, snapshot *models.PerformanceSnapshot) error {
	return nil
}
func (f *failingEventRepo) LoadSnapshot(ctx context.Context, name string) (*models.PerformanceSnapshot, error) {
	return nil, errors.NewStorageError("SNAPSHOT_NOT_FOUND", "no snapshot named "+name)
}

func TestImportUnwindsFailedAuditAppend(t *testing.T) {
	logger := logrus.New()
	reg := registry.NewRegistry(nil, logger)
	audit := registry.NewAuditLog(&failingEventRepo{}, logger)

	artifactDir := t.TempDir()
	artifacts, err := file.NewFileArtifactStore(artifactDir, logger)
	require.NoError(t, err)

	imp := NewImporter(nil, reg, audit, artifacts, nil, nil, logger)
	ctx := context.Background()

	_, err = imp.Import(ctx, "model_v1.0.0_deployment.zip", buildZipBundle(t, completeMembers()), "tester")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeStorageError))

	// The registration and the stored artifact are both unwound.
	_, err = reg.Get(ctx, "v1.0.0")
	assert.True(t, errors.IsCode(err, errors.CodeVersionNotFound))
	_, err = os.Stat(filepath.Join(artifactDir, "models", "v1.0.0", "model.pkl"))
	assert.True(t, os.IsNotExist(err))

	// The same bundle imports cleanly once the event log is back.
	imp = NewImporter(nil, reg, registry.NewAuditLog(nil, logger), artifacts, nil, nil, logger)
	_, err = imp.Import(ctx, "model_v1.0.0_deployment.zip", buildZipBundle(t, completeMembers()), "tester")
	require.NoError(t, err)
}

func TestExtractorDefaultsDecisionThreshold(t *testing.T) {
	extractor := NewArchiveExtractor()

	members := completeMembers()
	members[constants.MemberMetadata] = []byte(`{
		"model_info": {"name": "m", "algorithm": "a", "framework": "f"},
		"training_info": {"n_samples": 10, "feature_names": ["x"]},
		"evaluation_info": {"basic_metrics": {"f1_score": 0.8}}
	}`)

	pkg, err := extractor.Extract(context.Background(), "model_v1_deployment.zip", buildZipBundle(t, members))
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDecisionThreshold, pkg.Metadata.ModelInfo.DecisionThreshold)
	assert.Equal(t, 1, pkg.Metadata.TrainingInfo.NFeatures)
}
