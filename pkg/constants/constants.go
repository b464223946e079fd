package constants

import "time"

// Application metadata
const (
	AppName    = "modelreg"
	AppVersion = "1.0.0"
)

// Package member names checked by the importer
const (
	MemberMetadata   = "metadata.json"
	MemberManifest   = "deployment_manifest.json"
	MemberValidation = "validate.py"
	MemberExample    = "example.py"
	MemberRequires   = "requirements.txt"
	MemberReadme     = "README.md"
)

// Model artifact extensions accepted inside a package
var ModelArtifactExtensions = []string{".pkl", ".joblib", ".onnx", ".bin"}

// Validation defaults
const (
	DefaultValidityThreshold = 0.7
	DefaultHardFloor         = 0.5
	DefaultSoftFloor         = 0.7
	DefaultValidationTimeout = 10 * time.Second
)

// Drift detection defaults
const (
	DefaultDriftThreshold    = 0.25
	DefaultTargetSampleSize  = 1000
	DefaultScoreReservoirLen = 256
)

// Storage backends
const (
	StorageBackendFile     = "file"
	StorageBackendPostgres = "postgres"
)

// Cache key prefixes
const (
	CacheKeyPrefixValidation = "modelreg:validation:"
)

// HTTP API
const (
	APIPrefix = "/api/v1"
)
