package models

import (
	"time"
)

// DeploymentAction identifies the kind of lifecycle change an audit event records
type DeploymentAction string

const (
	ActionImported   DeploymentAction = "imported"
	ActionDeployed   DeploymentAction = "deployed"
	ActionRolledBack DeploymentAction = "rolled_back"
	ActionRetired    DeploymentAction = "retired"
)

// DeploymentEvent is one append-only audit record. Events are never mutated or
// deleted; replaying them from the empty state reconstructs every version's
// current status.
type DeploymentEvent struct {
	ID              string           `json:"id"`
	Version         string           `json:"version"`
	Action          DeploymentAction `json:"action"`
	PreviousVersion string           `json:"previous_version,omitempty"`
	Actor           string           `json:"actor"`
	Timestamp       time.Time        `json:"timestamp"`
}
