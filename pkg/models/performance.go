package models

import (
	"time"
)

// PerformanceSnapshot is a consistent point-in-time copy of the running
// inference aggregates for one model version. It is continuously updated by
// the inference pipeline and is not part of the deployment invariant.
type PerformanceSnapshot struct {
	Version          string    `json:"version"`
	TotalInferences  int64     `json:"total_inferences"`
	AnomalyCount     int64     `json:"anomaly_count"`
	SumInferenceMs   float64   `json:"sum_inference_ms"`
	MinInferenceMs   float64   `json:"min_inference_ms"`
	MaxInferenceMs   float64   `json:"max_inference_ms"`
	SumAnomalyScore  float64   `json:"sum_anomaly_score"`
	RecentScores     []float64 `json:"recent_scores,omitempty"`
	LastUpdated      time.Time `json:"last_updated"`
}

// AnomalyRate returns the fraction of inferences flagged anomalous
func (s *PerformanceSnapshot) AnomalyRate() float64 {
	if s.TotalInferences == 0 {
		return 0
	}
	return float64(s.AnomalyCount) / float64(s.TotalInferences)
}

// MeanInferenceMs returns the mean inference latency in milliseconds
func (s *PerformanceSnapshot) MeanInferenceMs() float64 {
	if s.TotalInferences == 0 {
		return 0
	}
	return s.SumInferenceMs / float64(s.TotalInferences)
}

// MeanAnomalyScore returns the mean anomaly score observed so far
func (s *PerformanceSnapshot) MeanAnomalyScore() float64 {
	if s.TotalInferences == 0 {
		return 0
	}
	return s.SumAnomalyScore / float64(s.TotalInferences)
}
