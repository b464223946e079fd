package models

import (
	"time"
)

// DriftIndicators are the normalized relative changes between the deployment
// baseline and the current performance snapshot.
type DriftIndicators struct {
	AnomalyRateChange       float64 `json:"anomaly_rate_change"`
	ScoreDistributionChange float64 `json:"score_distribution_change"`
	InferenceTimeChange     float64 `json:"inference_time_change"`
}

// DriftResult is the derived outcome of a drift check against the baseline
// snapshot captured when the version was deployed.
type DriftResult struct {
	Version        string          `json:"version"`
	DriftDetected  bool            `json:"drift_detected"`
	DriftScore     float64         `json:"drift_score"`
	Confidence     float64         `json:"confidence"`
	Indicators     DriftIndicators `json:"indicators"`
	Threshold      float64         `json:"threshold"`
	Recommendation string          `json:"recommendation"`
	ComputedAt     time.Time       `json:"computed_at"`
}
