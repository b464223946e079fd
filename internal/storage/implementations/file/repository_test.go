package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelreg/modelreg/pkg/errors"
	"github.com/modelreg/modelreg/pkg/models"
)

func newTestRepository(t *testing.T) *FileRepository {
	t.Helper()

	repo, err := NewFileRepository(&FileConfig{Directory: t.TempDir()}, logrus.New())
	require.NoError(t, err)
	require.NoError(t, repo.Connect(context.Background()))
	return repo
}

func storedVersion(version string, createdAt time.Time) *models.ModelVersion {
	return &models.ModelVersion{
		Version:   version,
		Status:    models.StatusAvailable,
		CreatedAt: createdAt,
		Metadata: models.ModelMetadata{
			ModelInfo: models.ModelInfo{
				Name:      "fraud-detector",
				Algorithm: "isolation_forest",
				Framework: "scikit-learn",
			},
		},
		PackageLocation: "/artifacts/" + version,
	}
}

func TestNewFileRepositoryRequiresDirectory(t *testing.T) {
	_, err := NewFileRepository(nil, logrus.New())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, "INVALID_CONFIG"))

	_, err = NewFileRepository(&FileConfig{}, logrus.New())
	require.Error(t, err)
}

func TestVersionRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	saved := storedVersion("v1.0.0", time.Now().UTC())
	require.NoError(t, repo.SaveVersion(ctx, saved))

	loaded, err := repo.LoadVersion(ctx, "v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, saved.Version, loaded.Version)
	assert.Equal(t, saved.Status, loaded.Status)
	assert.Equal(t, saved.PackageLocation, loaded.PackageLocation)
	assert.Equal(t, "isolation_forest", loaded.Metadata.ModelInfo.Algorithm)
}

func TestSaveVersionDuplicate(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveVersion(ctx, storedVersion("v1.0.0", time.Now().UTC())))

	err := repo.SaveVersion(ctx, storedVersion("v1.0.0", time.Now().UTC()))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDuplicateVersion))
}

func TestLoadVersionMissing(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.LoadVersion(context.Background(), "v9.9.9")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeVersionNotFound))
}

func TestUpdateVersionStatus(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveVersion(ctx, storedVersion("v1.0.0", time.Now().UTC())))
	require.NoError(t, repo.UpdateVersionStatus(ctx, "v1.0.0", models.StatusDeployed))

	loaded, err := repo.LoadVersion(ctx, "v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeployed, loaded.Status)

	err = repo.UpdateVersionStatus(ctx, "v9.9.9", models.StatusDeployed)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeVersionNotFound))
}

func TestDeleteVersion(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveVersion(ctx, storedVersion("v1.0.0", time.Now().UTC())))
	require.NoError(t, repo.DeleteVersion(ctx, "v1.0.0"))

	_, err := repo.LoadVersion(ctx, "v1.0.0")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeVersionNotFound))

	// Deleting an absent version is a no-op.
	require.NoError(t, repo.DeleteVersion(ctx, "v1.0.0"))

	// The version string is free for a fresh save afterwards.
	require.NoError(t, repo.SaveVersion(ctx, storedVersion("v1.0.0", time.Now().UTC())))
}

func TestListVersionsOrderedByCreation(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, repo.SaveVersion(ctx, storedVersion("v2.0.0", base.Add(time.Hour))))
	require.NoError(t, repo.SaveVersion(ctx, storedVersion("v1.0.0", base)))
	require.NoError(t, repo.SaveVersion(ctx, storedVersion("v3.0.0", base.Add(2*time.Hour))))

	list, err := repo.ListVersions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "v1.0.0", list[0].Version)
	assert.Equal(t, "v2.0.0", list[1].Version)
	assert.Equal(t, "v3.0.0", list[2].Version)
}

func TestListVersionsEmpty(t *testing.T) {
	repo := newTestRepository(t)

	list, err := repo.ListVersions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEventLogAppendOrder(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	events := []*models.DeploymentEvent{
		{ID: "1", Version: "v1.0.0", Action: models.ActionImported, Actor: "test"},
		{ID: "2", Version: "v1.0.0", Action: models.ActionDeployed, Actor: "test"},
		{ID: "3", Version: "v2.0.0", Action: models.ActionDeployed, PreviousVersion: "v1.0.0", Actor: "test"},
	}
	for _, event := range events {
		require.NoError(t, repo.AppendEvent(ctx, event))
	}

	loaded, err := repo.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, "1", loaded[0].ID)
	assert.Equal(t, models.ActionDeployed, loaded[1].Action)
	assert.Equal(t, "v1.0.0", loaded[2].PreviousVersion)
}

func TestListEventsEmpty(t *testing.T) {
	repo := newTestRepository(t)

	events, err := repo.ListEvents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestListEventsCorruptLine(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.AppendEvent(ctx, &models.DeploymentEvent{ID: "1", Version: "v1.0.0"}))
	require.NoError(t, os.WriteFile(repo.eventsPath(), []byte("{broken\n"), 0o644))

	_, err := repo.ListEvents(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeStorageError))
}

func TestSnapshotRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	snapshot := &models.PerformanceSnapshot{
		Version:         "v1.0.0",
		TotalInferences: 100,
		AnomalyCount:    7,
		SumInferenceMs:  1234.5,
		RecentScores:    []float64{0.1, 0.2, 0.3},
		LastUpdated:     time.Now().UTC(),
	}

	require.NoError(t, repo.SaveSnapshot(ctx, "baseline:v1.0.0", snapshot))

	loaded, err := repo.LoadSnapshot(ctx, "baseline:v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, snapshot.TotalInferences, loaded.TotalInferences)
	assert.Equal(t, snapshot.RecentScores, loaded.RecentScores)

	// Colons in snapshot names map to filesystem-safe filenames.
	_, err = os.Stat(filepath.Join(repo.snapshotsDir(), "baseline_v1.0.0.json"))
	require.NoError(t, err)
}

func TestLoadSnapshotMissing(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.LoadSnapshot(context.Background(), "baseline:v9.9.9")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, "SNAPSHOT_NOT_FOUND"))
}

func TestPing(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, repo.Ping(context.Background()))

	gone, err := NewFileRepository(&FileConfig{Directory: filepath.Join(t.TempDir(), "missing")}, logrus.New())
	require.NoError(t, err)
	require.Error(t, gone.Ping(context.Background()))
}
