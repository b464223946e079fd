package registry

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelreg/modelreg/pkg/models"
)

func appendEvent(t *testing.T, log *AuditLog, version string, action models.DeploymentAction, previous string) {
	t.Helper()
	require.NoError(t, log.Append(context.Background(), &models.DeploymentEvent{
		Version:         version,
		Action:          action,
		PreviousVersion: previous,
		Actor:           "test",
	}))
}

func TestAuditAppendAssignsIDAndTimestamp(t *testing.T) {
	log := NewAuditLog(nil, logrus.New())
	appendEvent(t, log, "v1.0.0", models.ActionImported, "")

	events := log.List(context.Background())
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestAuditListReturnsAppendOrder(t *testing.T) {
	log := NewAuditLog(nil, logrus.New())
	appendEvent(t, log, "v1.0.0", models.ActionImported, "")
	appendEvent(t, log, "v1.0.0", models.ActionDeployed, "")
	appendEvent(t, log, "v2.0.0", models.ActionImported, "")
	appendEvent(t, log, "v2.0.0", models.ActionDeployed, "v1.0.0")

	events := log.List(context.Background())
	require.Len(t, events, 4)
	assert.Equal(t, models.ActionImported, events[0].Action)
	assert.Equal(t, "v1.0.0", events[1].Version)
	assert.Equal(t, "v2.0.0", events[3].Version)
	assert.Equal(t, "v1.0.0", events[3].PreviousVersion)
}

func TestAuditPage(t *testing.T) {
	log := NewAuditLog(nil, logrus.New())
	for i := 0; i < 5; i++ {
		appendEvent(t, log, "v1.0.0", models.ActionImported, "")
	}

	page, total := log.Page(context.Background(), 1, 2)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 2)

	page, total = log.Page(context.Background(), 10, 2)
	assert.Equal(t, 5, total)
	assert.Empty(t, page)

	page, _ = log.Page(context.Background(), 3, 0)
	assert.Len(t, page, 2)
}

func TestAuditContains(t *testing.T) {
	log := NewAuditLog(nil, logrus.New())
	appendEvent(t, log, "v1.0.0", models.ActionImported, "")
	appendEvent(t, log, "v1.0.0", models.ActionDeployed, "")
	appendEvent(t, log, "v2.0.0", models.ActionDeployed, "v1.0.0")

	ctx := context.Background()
	assert.True(t, log.Contains(ctx, "v1.0.0"))
	assert.True(t, log.Contains(ctx, "v2.0.0"))

	// Imported-only versions are not rollback targets.
	appendEvent(t, log, "v3.0.0", models.ActionImported, "")
	assert.False(t, log.Contains(ctx, "v3.0.0"))
}

func TestReplayReconstructsStatuses(t *testing.T) {
	events := []*models.DeploymentEvent{
		{Version: "v1.0.0", Action: models.ActionImported},
		{Version: "v2.0.0", Action: models.ActionImported},
		{Version: "v1.0.0", Action: models.ActionDeployed},
		{Version: "v2.0.0", Action: models.ActionDeployed, PreviousVersion: "v1.0.0"},
		{Version: "v1.0.0", Action: models.ActionRolledBack, PreviousVersion: "v2.0.0"},
		{Version: "v2.0.0", Action: models.ActionRetired},
	}

	statuses := Replay(events)
	assert.Equal(t, models.StatusDeployed, statuses["v1.0.0"])
	assert.Equal(t, models.StatusRetired, statuses["v2.0.0"])
}

func TestCheckConsistency(t *testing.T) {
	events := []*models.DeploymentEvent{
		{Version: "v1.0.0", Action: models.ActionImported},
		{Version: "v1.0.0", Action: models.ActionDeployed},
	}

	live := map[string]models.VersionStatus{"v1.0.0": models.StatusDeployed}
	assert.Empty(t, CheckConsistency(live, events))

	live["v1.0.0"] = models.StatusAvailable
	mismatched := CheckConsistency(live, events)
	require.Len(t, mismatched, 1)
	assert.Equal(t, "v1.0.0", mismatched[0])
}
