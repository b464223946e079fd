package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/pkg/errors"
	"github.com/modelreg/modelreg/pkg/interfaces"
	"github.com/modelreg/modelreg/pkg/models"
)

// AuditLog is the append-only deployment event log. Events are assigned an ID
// and timestamp on append and are never mutated or removed afterwards.
type AuditLog struct {
	logger *logrus.Logger
	repo   interfaces.Repository
	mu     sync.RWMutex
	events []*models.DeploymentEvent
}

// NewAuditLog creates an audit log. repo may be nil for in-memory operation.
func NewAuditLog(repo interfaces.Repository, logger *logrus.Logger) *AuditLog {
	if logger == nil {
		logger = logrus.New()
	}

	return &AuditLog{
		logger: logger,
		repo:   repo,
	}
}

// Load hydrates the event log from the repository
func (l *AuditLog) Load(ctx context.Context) error {
	if l.repo == nil {
		return nil
	}

	stored, err := l.repo.ListEvents(ctx)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError, "failed to load audit log")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events[:0], stored...)
	return nil
}

// Append records one deployment event, assigning its ID and timestamp
func (l *AuditLog) Append(ctx context.Context, event *models.DeploymentEvent) error {
	record := *event
	record.ID = uuid.NewString()
	record.Timestamp = time.Now().UTC()

	if l.repo != nil {
		if err := l.repo.AppendEvent(ctx, &record); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError, "failed to persist deployment event")
		}
	}

	l.mu.Lock()
	l.events = append(l.events, &record)
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"event_id": record.ID,
		"version":  record.Version,
		"action":   record.Action,
		"previous": record.PreviousVersion,
		"actor":    record.Actor,
	}).Info("Appended deployment event")

	return nil
}

// List returns a copy of the full event log in append order
func (l *AuditLog) List(ctx context.Context) []*models.DeploymentEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*models.DeploymentEvent, len(l.events))
	for i, e := range l.events {
		c := *e
		out[i] = &c
	}
	return out
}

// Page returns a slice of the event log for paginated reads. limit <= 0 means
// the rest of the log.
func (l *AuditLog) Page(ctx context.Context, offset, limit int) ([]*models.DeploymentEvent, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := len(l.events)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []*models.DeploymentEvent{}, total
	}

	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	out := make([]*models.DeploymentEvent, 0, end-offset)
	for _, e := range l.events[offset:end] {
		c := *e
		out = append(out, &c)
	}
	return out, total
}

// Contains reports whether version ever appears in the log as a deployment
// target or as a demoted previous version. Rollback eligibility is decided
// from this.
func (l *AuditLog) Contains(ctx context.Context, version string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range l.events {
		switch e.Action {
		case models.ActionDeployed, models.ActionRolledBack:
			if e.Version == version || e.PreviousVersion == version {
				return true
			}
		}
	}
	return false
}

// Replay reconstructs every version's status from the event log alone,
// starting each version at "available" on its imported event. Used as the
// consistency check against the registry's live state.
func Replay(events []*models.DeploymentEvent) map[string]models.VersionStatus {
	statuses := make(map[string]models.VersionStatus)

	for _, e := range events {
		switch e.Action {
		case models.ActionImported:
			statuses[e.Version] = models.StatusAvailable
		case models.ActionDeployed, models.ActionRolledBack:
			if e.PreviousVersion != "" {
				statuses[e.PreviousVersion] = models.StatusAvailable
			}
			statuses[e.Version] = models.StatusDeployed
		case models.ActionRetired:
			statuses[e.Version] = models.StatusRetired
		}
	}

	return statuses
}

// CheckConsistency replays the log and compares against live registry state,
// returning the set of versions whose status disagrees
func CheckConsistency(live map[string]models.VersionStatus, events []*models.DeploymentEvent) []string {
	replayed := Replay(events)

	var mismatched []string
	for version, status := range live {
		if replayed[version] != status {
			mismatched = append(mismatched, version)
		}
	}
	return mismatched
}
