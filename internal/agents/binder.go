package agents

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Binder tracks which detection agents are bound to which model artifact.
// Agent configuration lives in its own subsystem; the registry only consults
// the binder before allowing a version to be retired, so bindings here are a
// one-way index from artifact location to agent IDs.
type Binder struct {
	mu       sync.RWMutex
	bindings map[string]map[string]struct{}
	logger   *logrus.Logger
}

// NewBinder creates an empty agent binder
func NewBinder(logger *logrus.Logger) *Binder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Binder{
		bindings: make(map[string]map[string]struct{}),
		logger:   logger,
	}
}

// Bind records that an agent uses the artifact at packageLocation
func (b *Binder) Bind(agentID, packageLocation string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.bindings[packageLocation]
	if !ok {
		set = make(map[string]struct{})
		b.bindings[packageLocation] = set
	}
	set[agentID] = struct{}{}

	b.logger.WithFields(logrus.Fields{
		"agent_id": agentID,
		"location": packageLocation,
	}).Debug("Bound agent to model artifact")
}

// Unbind removes an agent's binding to the artifact
func (b *Binder) Unbind(agentID, packageLocation string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if set, ok := b.bindings[packageLocation]; ok {
		delete(set, agentID)
		if len(set) == 0 {
			delete(b.bindings, packageLocation)
		}
	}
}

// FindAgentsReferencing returns the IDs of agents bound to the artifact,
// sorted for stable output
func (b *Binder) FindAgentsReferencing(ctx context.Context, packageLocation string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	set, ok := b.bindings[packageLocation]
	if !ok {
		return nil, nil
	}

	out := make([]string, 0, len(set))
	for agentID := range set {
		out = append(out, agentID)
	}
	sort.Strings(out)
	return out, nil
}
