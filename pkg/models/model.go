package models

import (
	"time"
)

// VersionStatus defines the lifecycle status of a model version
type VersionStatus string

const (
	StatusAvailable VersionStatus = "available"
	StatusDeployed  VersionStatus = "deployed"
	StatusRetired   VersionStatus = "retired"
)

// ModelVersion represents one immutable, registered model artifact identified
// by its semantic version string. Status is the only mutable field and is
// changed exclusively through the registry's swap operation.
type ModelVersion struct {
	Version         string        `json:"version"`
	Status          VersionStatus `json:"status"`
	Metadata        ModelMetadata `json:"metadata"`
	PackageLocation string        `json:"package_location"`
	CreatedAt       time.Time     `json:"created_at"`
}

// ModelMetadata carries the structured metadata document extracted from a
// model package. The registry stores and returns it but interprets only the
// evaluation metrics and the decision threshold.
type ModelMetadata struct {
	ModelInfo      ModelInfo      `json:"model_info"`
	TrainingInfo   TrainingInfo   `json:"training_info"`
	EvaluationInfo EvaluationInfo `json:"evaluation_info"`
}

// ModelInfo describes the algorithm and framework of the trained model
type ModelInfo struct {
	Name              string  `json:"name"`
	Algorithm         string  `json:"algorithm"`
	Framework         string  `json:"framework"`
	FrameworkVersion  string  `json:"framework_version,omitempty"`
	DecisionThreshold float64 `json:"decision_threshold,omitempty"`
}

// TrainingInfo summarizes the dataset the model was trained on
type TrainingInfo struct {
	NSamples     int64     `json:"n_samples"`
	NFeatures    int       `json:"n_features"`
	FeatureNames []string  `json:"feature_names"`
	TrainedAt    time.Time `json:"trained_at,omitempty"`
}

// EvaluationInfo carries the offline evaluation results recorded at training time
type EvaluationInfo struct {
	BasicMetrics BasicMetrics `json:"basic_metrics"`
}

// BasicMetrics are the stored evaluation metrics the validation score is
// derived from
type BasicMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1_score"`
	ROCAUC    float64 `json:"roc_auc"`
}

// DefaultDecisionThreshold is applied when a package omits the model's
// anomaly decision threshold.
const DefaultDecisionThreshold = 0.5

// ApplyDefaults fills optional metadata fields with their documented defaults.
func (m *ModelMetadata) ApplyDefaults() {
	if m.ModelInfo.DecisionThreshold <= 0 {
		m.ModelInfo.DecisionThreshold = DefaultDecisionThreshold
	}
	if m.TrainingInfo.FeatureNames == nil {
		m.TrainingInfo.FeatureNames = []string{}
	}
	if m.TrainingInfo.NFeatures == 0 {
		m.TrainingInfo.NFeatures = len(m.TrainingInfo.FeatureNames)
	}
}

// Clone returns a deep copy of the version record so callers can hand out
// snapshots without exposing registry-internal state.
func (v *ModelVersion) Clone() *ModelVersion {
	if v == nil {
		return nil
	}
	c := *v
	if v.Metadata.TrainingInfo.FeatureNames != nil {
		c.Metadata.TrainingInfo.FeatureNames = append([]string(nil), v.Metadata.TrainingInfo.FeatureNames...)
	}
	return &c
}
