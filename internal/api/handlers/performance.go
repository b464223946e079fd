package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/internal/drift"
	"github.com/modelreg/modelreg/internal/performance"
	"github.com/modelreg/modelreg/pkg/errors"
)

// PerformanceHandler serves inference recording, performance snapshots and
// drift checks
type PerformanceHandler struct {
	tracker  *performance.Tracker
	detector *drift.Detector
	logger   *logrus.Logger
}

// NewPerformanceHandler creates the performance handler
func NewPerformanceHandler(tracker *performance.Tracker, detector *drift.Detector,
	logger *logrus.Logger) *PerformanceHandler {

	if logger == nil {
		logger = logrus.New()
	}
	return &PerformanceHandler{
		tracker:  tracker,
		detector: detector,
		logger:   logger,
	}
}

type recordInferenceRequest struct {
	InferenceTimeMs float64 `json:"inference_time_ms"`
	AnomalyScore    float64 `json:"anomaly_score"`
}

// RecordInference records one inference observation for the version in the URL
func (h *PerformanceHandler) RecordInference(w http.ResponseWriter, r *http.Request) {
	version := mux.Vars(r)["version"]

	var req recordInferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.ErrorTypeValidation, "INVALID_REQUEST",
			"request body must be JSON with inference_time_ms and anomaly_score"))
		return
	}
	if req.InferenceTimeMs < 0 {
		writeError(w, errors.NewAppError(errors.ErrorTypeValidation, "INVALID_REQUEST",
			"inference_time_ms cannot be negative"))
		return
	}

	h.tracker.Record(version, req.InferenceTimeMs, req.AnomalyScore)
	w.WriteHeader(http.StatusAccepted)
}

// GetPerformance returns the live performance snapshot for a version
func (h *PerformanceHandler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	version := mux.Vars(r)["version"]

	snapshot, err := h.tracker.Snapshot(version)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// CheckDrift compares current performance against the deployment baseline
func (h *PerformanceHandler) CheckDrift(w http.ResponseWriter, r *http.Request) {
	version := mux.Vars(r)["version"]

	result, err := h.detector.Check(r.Context(), version)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
