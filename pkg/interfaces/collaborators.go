package interfaces

import (
	"context"

	"github.com/modelreg/modelreg/pkg/models"
)

// AgentBinder is the one-way lookup into the agent-configuration subsystem.
// The registry never stores back-pointers to agents; it only asks which agents
// currently reference an artifact before allowing deletion.
type AgentBinder interface {
	// FindAgentsReferencing returns the IDs of agents bound to the artifact
	FindAgentsReferencing(ctx context.Context, packageLocation string) ([]string, error)
}

// ExtractedPackage is the structured result of unpacking an uploaded bundle
type ExtractedPackage struct {
	Metadata      models.ModelMetadata
	ManifestJSON  []byte
	ArtifactName  string
	ArtifactBytes []byte
	Members       []string
}

// PackageExtractor unpacks an uploaded bundle into a structured metadata
// document plus opaque artifact bytes
type PackageExtractor interface {
	// Extract unpacks bundleBytes; the extension selects the archive codec
	Extract(ctx context.Context, bundleName string, bundleBytes []byte) (*ExtractedPackage, error)
}
