package deployment

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelreg/modelreg/internal/agents"
	"github.com/modelreg/modelreg/internal/performance"
	"github.com/modelreg/modelreg/internal/registry"
	"github.com/modelreg/modelreg/internal/validation"
	"github.com/modelreg/modelreg/pkg/errors"
	"github.com/modelreg/modelreg/pkg/models"
)

type controllerFixture struct {
	controller *Controller
	reg        *registry.Registry
	audit      *registry.AuditLog
	tracker    *performance.Tracker
	binder     *agents.Binder
}

func newFixture(t *testing.T, policy Policy) *controllerFixture {
	t.Helper()

	logger := logrus.New()
	reg := registry.NewRegistry(nil, logger)
	audit := registry.NewAuditLog(nil, logger)
	tracker := performance.NewTracker(nil, nil, logger)
	engine := validation.NewEngine(nil, reg, nil, logger)
	binder := agents.NewBinder(logger)

	return &controllerFixture{
		controller: NewController(policy, reg, audit, engine, tracker, binder, nil, nil, logger),
		reg:        reg,
		audit:      audit,
		tracker:    tracker,
		binder:     binder,
	}
}

func saveVersion(t *testing.T, reg *registry.Registry, version string, metrics models.BasicMetrics) {
	t.Helper()
	require.NoError(t, reg.Save(context.Background(), &models.ModelVersion{
		Version: version,
		Status:  models.StatusAvailable,
		Metadata: models.ModelMetadata{
			ModelInfo: models.ModelInfo{
				Name:      "fraud-detector",
				Algorithm: "isolation_forest",
				Framework: "scikit-learn",
			},
			TrainingInfo: models.TrainingInfo{
				NSamples:     100000,
				NFeatures:    1,
				FeatureNames: []string{"amount"},
			},
			EvaluationInfo: models.EvaluationInfo{BasicMetrics: metrics},
		},
		PackageLocation: "/artifacts/" + version,
	}))
}

func strongMetrics() models.BasicMetrics {
	return models.BasicMetrics{
		Accuracy:  0.95,
		Precision: 0.91,
		Recall:    0.88,
		F1Score:   0.89,
		ROCAUC:    0.93,
	}
}

func weakMetrics() models.BasicMetrics {
	return models.BasicMetrics{
		Accuracy:  0.6,
		Precision: 0.55,
		Recall:    0.55,
		F1Score:   0.55,
		ROCAUC:    0.55,
	}
}

func TestDeployPromotesAndAudits(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	saveVersion(t, f.reg, "v1.0.0", strongMetrics())

	require.NoError(t, f.controller.Deploy(ctx, "v1.0.0", "ops"))

	v, err := f.reg.Get(ctx, "v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeployed, v.Status)

	events := f.audit.List(ctx)
	require.Len(t, events, 1)
	assert.Equal(t, models.ActionDeployed, events[0].Action)
	assert.Equal(t, "ops", events[0].Actor)
	assert.Empty(t, events[0].PreviousVersion)

	// Promotion captures the drift baseline.
	assert.NotNil(t, f.tracker.Baseline("v1.0.0"))
}

func TestDeployUnknownVersion(t *testing.T) {
	f := newFixture(t, DefaultPolicy())

	err := f.controller.Deploy(context.Background(), "v9.9.9", "ops")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeVersionNotFound))
}

func TestDeployRetiredVersion(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	saveVersion(t, f.reg, "v1.0.0", strongMetrics())
	require.NoError(t, f.reg.Retire(ctx, "v1.0.0"))

	err := f.controller.Deploy(ctx, "v1.0.0", "ops")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, "VERSION_RETIRED"))
}

func TestDeployAlreadyDeployedIsNoOp(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	saveVersion(t, f.reg, "v1.0.0", strongMetrics())

	require.NoError(t, f.controller.Deploy(ctx, "v1.0.0", "ops"))
	require.NoError(t, f.controller.Deploy(ctx, "v1.0.0", "ops"))

	// The idempotent repeat emits no second event.
	assert.Len(t, f.audit.List(ctx), 1)
}

func TestDeployBlocksInvalidModel(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	saveVersion(t, f.reg, "v1.0.0", weakMetrics())

	err := f.controller.Deploy(ctx, "v1.0.0", "ops")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidationRequired))

	v, _ := f.reg.Get(ctx, "v1.0.0")
	assert.Equal(t, models.StatusAvailable, v.Status)
	assert.Empty(t, f.audit.List(ctx))
}

func TestDeployWithoutValidationPolicy(t *testing.T) {
	f := newFixture(t, Policy{})
	ctx := context.Background()
	saveVersion(t, f.reg, "v1.0.0", weakMetrics())

	require.NoError(t, f.controller.Deploy(ctx, "v1.0.0", "ops"))
}

func TestDeployDemotesPrevious(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	saveVersion(t, f.reg, "v1.0.0", strongMetrics())
	saveVersion(t, f.reg, "v2.0.0", strongMetrics())

	require.NoError(t, f.controller.Deploy(ctx, "v1.0.0", "ops"))
	require.NoError(t, f.controller.Deploy(ctx, "v2.0.0", "ops"))

	v1, _ := f.reg.Get(ctx, "v1.0.0")
	v2, _ := f.reg.Get(ctx, "v2.0.0")
	assert.Equal(t, models.StatusAvailable, v1.Status)
	assert.Equal(t, models.StatusDeployed, v2.Status)

	events := f.audit.List(ctx)
	require.Len(t, events, 2)
	assert.Equal(t, "v1.0.0", events[1].PreviousVersion)
}

func TestRollbackRequiresDeploymentHistory(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	saveVersion(t, f.reg, "v1.0.0", strongMetrics())

	err := f.controller.Rollback(ctx, "v1.0.0", "ops")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeVersionNotFound))

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Details, "deployment history")
}

func TestRollbackRestoresPreviousVersion(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	saveVersion(t, f.reg, "v1.0.0", strongMetrics())
	saveVersion(t, f.reg, "v2.0.0", strongMetrics())

	require.NoError(t, f.controller.Deploy(ctx, "v1.0.0", "ops"))
	require.NoError(t, f.controller.Deploy(ctx, "v2.0.0", "ops"))
	require.NoError(t, f.controller.Rollback(ctx, "v1.0.0", "ops"))

	current := f.reg.CurrentDeployed(ctx)
	require.NotNil(t, current)
	assert.Equal(t, "v1.0.0", current.Version)

	events := f.audit.List(ctx)
	require.Len(t, events, 3)
	assert.Equal(t, models.ActionRolledBack, events[2].Action)
	assert.Equal(t, "v2.0.0", events[2].PreviousVersion)
}

func TestRollbackSkipsValidationByDefault(t *testing.T) {
	f := newFixture(t, Policy{})
	ctx := context.Background()
	saveVersion(t, f.reg, "v1.0.0", weakMetrics())
	saveVersion(t, f.reg, "v2.0.0", weakMetrics())

	require.NoError(t, f.controller.Deploy(ctx, "v1.0.0", "ops"))
	require.NoError(t, f.controller.Deploy(ctx, "v2.0.0", "ops"))

	// Default policy does not re-validate rollback targets.
	f.controller.policy = DefaultPolicy()
	require.NoError(t, f.controller.Rollback(ctx, "v1.0.0", "ops"))
}

func TestDeleteDeployedVersion(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	saveVersion(t, f.reg, "v1.0.0", strongMetrics())
	require.NoError(t, f.controller.Deploy(ctx, "v1.0.0", "ops"))

	err := f.controller.Delete(ctx, "v1.0.0", "ops")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeModelInUse))
}

func TestDeleteAgentReferencedVersion(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	saveVersion(t, f.reg, "v1.0.0", strongMetrics())

	f.binder.Bind("edge-agent-7", "/artifacts/v1.0.0")
	f.binder.Bind("edge-agent-2", "/artifacts/v1.0.0")

	err := f.controller.Delete(ctx, "v1.0.0", "ops")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeModelInUse))

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Details, "edge-agent-2, edge-agent-7")

	f.binder.Unbind("edge-agent-7", "/artifacts/v1.0.0")
	f.binder.Unbind("edge-agent-2", "/artifacts/v1.0.0")
	require.NoError(t, f.controller.Delete(ctx, "v1.0.0", "ops"))
}

func TestDeleteRetiresAndAudits(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	saveVersion(t, f.reg, "v1.0.0", strongMetrics())

	require.NoError(t, f.controller.Delete(ctx, "v1.0.0", "ops"))

	v, err := f.reg.Get(ctx, "v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRetired, v.Status)

	events := f.audit.List(ctx)
	require.Len(t, events, 1)
	assert.Equal(t, models.ActionRetired, events[0].Action)

	// Retiring again is idempotent and appends nothing.
	require.NoError(t, f.controller.Delete(ctx, "v1.0.0", "ops"))
	assert.Len(t, f.audit.List(ctx), 1)
}

// failingEventRepo refuses event appends so compensation paths can be driven
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

func newFailingAuditFixture(t *testing.T) *controllerFixture {
	t.Helper()

	logger := logrus.New()
	reg := registry.NewRegistry(nil, logger)
	audit := registry.NewAuditLog(&failingEventRepo{}, logger)
	tracker := performance.NewTracker(nil, nil, logger)
	engine := validation.NewEngine(nil, reg, nil, logger)

	return &controllerFixture{
		controller: NewController(Policy{}, reg, audit, engine, tracker, nil, nil, nil, logger),
		reg:        reg,
		audit:      audit,
		tracker:    tracker,
	}
}

func TestDeployCompensatesFailedAuditAppend(t *testing.T) {
	f := newFailingAuditFixture(t)
	ctx := context.Background()
	saveVersion(t, f.reg, "v1.0.0", strongMetrics())

	err := f.controller.Deploy(ctx, "v1.0.0", "ops")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeStorageError))

	// The failed swap-and-log unit leaves nothing deployed and no event.
	assert.Nil(t, f.reg.CurrentDeployed(ctx))
	v, getErr := f.reg.Get(ctx, "v1.0.0")
	require.NoError(t, getErr)
	assert.Equal(t, models.StatusAvailable, v.Status)
	assert.Empty(t, f.audit.List(ctx))
}

func TestDeleteCompensatesFailedAuditAppend(t *testing.T) {
	f := newFailingAuditFixture(t)
	ctx := context.Background()
	saveVersion(t, f.reg, "v1.0.0", strongMetrics())

	err := f.controller.Delete(ctx, "v1.0.0", "ops")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeStorageError))

	// The retirement is rolled back so log replay still matches live state.
	v, getErr := f.reg.Get(ctx, "v1.0.0")
	require.NoError(t, getErr)
	assert.Equal(t, models.StatusAvailable, v.Status)
	assert.Empty(t, f.audit.List(ctx))
}

func TestHistoryPaging(t *testing.T) {
	f := newFixture(t, Policy{})
	ctx := context.Background()

	for _, version := range []string{"v1.0.0", "v2.0.0", "v3.0.0"} {
		saveVersion(t, f.reg, version, strongMetrics())
		require.NoError(t, f.controller.Deploy(ctx, version, "ops"))
	}

	page, total := f.controller.History(ctx, 1, 2)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "v2.0.0", page[0].Version)
}

func TestVerifyAuditConsistency(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	saveVersion(t, f.reg, "v1.0.0", strongMetrics())
	saveVersion(t, f.reg, "v2.0.0", strongMetrics())

	require.NoError(t, f.controller.Deploy(ctx, "v1.0.0", "ops"))
	require.NoError(t, f.controller.Deploy(ctx, "v2.0.0", "ops"))
	require.NoError(t, f.controller.Rollback(ctx, "v1.0.0", "ops"))

	assert.Empty(t, f.controller.VerifyAuditConsistency(ctx))
}
