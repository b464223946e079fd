package deployment

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/internal/observability/metrics"
	"github.com/modelreg/modelreg/internal/performance"
	"github.com/modelreg/modelreg/internal/registry"
	"github.com/modelreg/modelreg/internal/validation"
	"github.com/modelreg/modelreg/pkg/errors"
	"github.com/modelreg/modelreg/pkg/interfaces"
	"github.com/modelreg/modelreg/pkg/models"
)

// Policy controls which lifecycle operations demand a passing validation
// result before they run
type Policy struct {
	RequireValidDeploy   bool `json:"require_valid_deploy"`
	RequireValidRollback bool `json:"require_valid_rollback"`
}

// Controller orchestrates deploy, rollback and retirement. All control-plane
// mutations are serialized behind one mutex; within it, the registry swap and
// the audit append happen as one unit, with the swap compensated if the
// append cannot be persisted.
type Controller struct {
	logger  *logrus.Logger
	policy  Policy
	reg     *registry.Registry
	audit   *registry.AuditLog
	engine  *validation.Engine
	tracker *performance.Tracker
	agents  interfaces.AgentBinder
	repo    interfaces.Repository
	metrics *metrics.PrometheusMetrics

	mu sync.Mutex
}

// DefaultPolicy requires fresh validation for deployments only; a rollback
// target was validated before it first deployed.
func DefaultPolicy() Policy {
	return Policy{
		RequireValidDeploy:   true,
		RequireValidRollback: false,
	}
}

// NewController creates a deployment controller. agents, repo and pm may be
// nil when the respective collaborator is not wired.
func NewController(policy Policy, reg *registry.Registry, audit *registry.AuditLog,
	engine *validation.Engine, tracker *performance.Tracker, agents interfaces.AgentBinder,
	repo interfaces.Repository, pm *metrics.PrometheusMetrics, logger *logrus.Logger) *Controller {

	if logger == nil {
		logger = logrus.New()
	}

	return &Controller{
		logger:  logger,
		policy:  policy,
		reg:     reg,
		audit:   audit,
		engine:  engine,
		tracker: tracker,
		agents:  agents,
		repo:    repo,
		metrics: pm,
	}
}

// Deploy promotes a version to deployed. Deploying the already-deployed
// version is an idempotent no-op that emits no event.
func (c *Controller) Deploy(ctx context.Context, version, actor string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, err := c.reg.Get(ctx, version)
	if err != nil {
		return err
	}
	if v.Status == models.StatusRetired {
		return errors.NewAppError(errors.ErrorTypeDeployment, "VERSION_RETIRED",
			"retired version "+version+" cannot be deployed")
	}
	if v.Status == models.StatusDeployed {
		c.logger.WithField("version", version).Info("Version already deployed, nothing to do")
		return nil
	}

	if c.policy.RequireValidDeploy {
		result, err := c.engine.Validate(ctx, version)
		if err != nil {
			return err
		}
		if !result.IsValid {
			return errors.NewValidationRequiredError(version)
		}
	}

	return c.promote(ctx, version, actor, models.ActionDeployed)
}

// Rollback re-deploys a previously deployed version. The target must appear
// in the audit log as a deployment target or demoted previous version.
func (c *Controller) Rollback(ctx context.Context, version, actor string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.audit.Contains(ctx, version) {
		return errors.NewVersionNotFoundError(version).
			WithDetails("version never appears in the deployment history")
	}

	v, err := c.reg.Get(ctx, version)
	if err != nil {
		return err
	}
	if v.Status == models.StatusRetired {
		return errors.NewAppError(errors.ErrorTypeDeployment, "VERSION_RETIRED",
			"retired version "+version+" cannot be rolled back to")
	}
	if v.Status == models.StatusDeployed {
		c.logger.WithField("version", version).Info("Version already deployed, nothing to do")
		return nil
	}

	if c.policy.RequireValidRollback {
		result, err := c.engine.Validate(ctx, version)
		if err != nil {
			return err
		}
		if !result.IsValid {
			return errors.NewValidationRequiredError(version)
		}
	}

	return c.promote(ctx, version, actor, models.ActionRolledBack)
}

// promote swaps the deployed version and appends the audit event as one unit.
// Caller holds c.mu.
func (c *Controller) promote(ctx context.Context, version, actor string, action models.DeploymentAction) error {
	expected := ""
	if current := c.reg.CurrentDeployed(ctx); current != nil {
		expected = current.Version
	}

	previous, err := c.reg.SwapDeployed(ctx, version, expected)
	if err != nil {
		return err
	}

	previousName := ""
	if previous != nil {
		previousName = previous.Version
	}

	if err := c.audit.Append(ctx, &models.DeploymentEvent{
		Version:         version,
		Action:          action,
		PreviousVersion: previousName,
		Actor:           actor,
	}); err != nil {
		// The audit append must land with the swap; undo the promotion so the
		// log and the live state stay consistent.
		var swapErr error
		if previousName != "" {
			_, swapErr = c.reg.SwapDeployed(ctx, previousName, version)
		} else {
			swapErr = c.reg.Demote(ctx, version)
		}
		if swapErr != nil {
			c.logger.WithError(swapErr).Error("Failed to compensate swap after audit append failure")
		}
		return err
	}

	baseline := c.tracker.CaptureBaseline(version)
	if c.repo != nil {
		if err := c.repo.SaveSnapshot(ctx, baselineKey(version), baseline); err != nil {
			c.logger.WithError(err).WithField("version", version).
				Warn("Failed to persist deployment baseline")
		}
	}

	c.metrics.ObserveDeploymentAction(string(action))

	c.logger.WithFields(logrus.Fields{
		"version":  version,
		"previous": previousName,
		"action":   action,
		"actor":    actor,
	}).Info("Deployment completed")

	return nil
}

// Delete retires a version. It fails with MODEL_IN_USE while the version is
// deployed or any agent still references its artifact. Artifact byte removal
// is left to the storage collaborator.
func (c *Controller) Delete(ctx context.Context, version, actor string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, err := c.reg.Get(ctx, version)
	if err != nil {
		return err
	}
	if v.Status == models.StatusDeployed {
		return errors.NewModelInUseError(version, "version is currently deployed")
	}
	if v.Status == models.StatusRetired {
		c.logger.WithField("version", version).Info("Version already retired, nothing to do")
		return nil
	}

	if c.agents != nil {
		agents, err := c.agents.FindAgentsReferencing(ctx, v.PackageLocation)
		if err != nil {
			return errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError,
				"agent binding lookup failed")
		}
		if len(agents) > 0 {
			return errors.NewModelInUseError(version,
				"referenced by agents: "+joinAgents(agents))
		}
	}

	if err := c.reg.Retire(ctx, version); err != nil {
		return err
	}

	if err := c.audit.Append(ctx, &models.DeploymentEvent{
		Version: version,
		Action:  models.ActionRetired,
		Actor:   actor,
	}); err != nil {
		// The retired event must land with the retirement; undo it so the log
		// and the live state stay consistent.
		if restoreErr := c.reg.Reinstate(ctx, version); restoreErr != nil {
			c.logger.WithError(restoreErr).Error("Failed to compensate retirement after audit append failure")
		}
		return err
	}

	c.metrics.ObserveDeploymentAction(string(models.ActionRetired))

	c.logger.WithFields(logrus.Fields{
		"version": version,
		"actor":   actor,
	}).Info("Retired model version")

	return nil
}

// History returns a page of the append-only audit log plus the total count
func (c *Controller) History(ctx context.Context, offset, limit int) ([]*models.DeploymentEvent, int) {
	return c.audit.Page(ctx, offset, limit)
}

// VerifyAuditConsistency replays the event log and reports versions whose
// live status disagrees with the reconstruction
func (c *Controller) VerifyAuditConsistency(ctx context.Context) []string {
	return registry.CheckConsistency(c.reg.StatusSnapshot(ctx), c.audit.List(ctx))
}

func baselineKey(version string) string {
	return "baseline:" + version
}

func joinAgents(agents []string) string {
	out := ""
	for i, a := range agents {
		if i > 0 {
			out += ", "
		}
		out += a
	}
	return out
}
