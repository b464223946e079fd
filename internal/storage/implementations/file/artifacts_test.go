package file

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelreg/modelreg/pkg/errors"
)

func TestArtifactStoreRoundTrip(t *testing.T) {
	store, err := NewFileArtifactStore(t.TempDir(), logrus.New())
	require.NoError(t, err)
	ctx := context.Background()

	location, err := store.Store(ctx, "v1.0.0", "model.pkl", strings.NewReader("model-bytes"))
	require.NoError(t, err)
	assert.Contains(t, location, "v1.0.0")

	exists, err := store.Exists(ctx, location)
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := store.Retrieve(ctx, location)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "model-bytes", string(data))

	require.NoError(t, store.Delete(ctx, location))
	exists, err = store.Exists(ctx, location)
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting an absent artifact is a no-op.
	require.NoError(t, store.Delete(ctx, location))
}

func TestArtifactRetrieveMissing(t *testing.T) {
	store, err := NewFileArtifactStore(t.TempDir(), logrus.New())
	require.NoError(t, err)

	_, err = store.Retrieve(context.Background(), "/nowhere/model.pkl")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, "ARTIFACT_NOT_FOUND"))
}

func TestArtifactStoreRequiresDirectory(t *testing.T) {
	_, err := NewFileArtifactStore("", logrus.New())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, "INVALID_CONFIG"))
}
