package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/pkg/models"
)

// DriftMonitor periodically checks the deployed model version for drift
// through the registry API and logs escalating warnings
type DriftMonitor struct {
	serverURL string
	interval  time.Duration
	client    *http.Client
	logger    *logrus.Logger
}

// NewDriftMonitor creates a drift monitor
func NewDriftMonitor(serverURL string, interval time.Duration, logger *logrus.Logger) *DriftMonitor {
	if logger == nil {
		logger = logrus.New()
	}
	return &DriftMonitor{
		serverURL: serverURL,
		interval:  interval,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
	}
}

// Run polls until the context is cancelled
func (m *DriftMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *DriftMonitor) check(ctx context.Context) {
	current, err := m.currentDeployed(ctx)
	if err != nil {
		m.logger.WithError(err).Debug("No deployed version to monitor")
		return
	}

	result, err := m.checkDrift(ctx, current.Version)
	if err != nil {
		m.logger.WithError(err).WithField("version", current.Version).
			Warn("Drift check failed")
		return
	}

	fields := logrus.Fields{
		"version":     result.Version,
		"drift_score": result.DriftScore,
		"confidence":  result.Confidence,
		"threshold":   result.Threshold,
	}

	if result.DriftDetected {
		fields["recommendation"] = result.Recommendation
		m.logger.WithFields(fields).Warn("Deployed model is drifting")
	} else {
		m.logger.WithFields(fields).Debug("Deployed model is stable")
	}
}

func (m *DriftMonitor) currentDeployed(ctx context.Context) (*models.ModelVersion, error) {
	var current models.ModelVersion
	if err := m.get(ctx, "/api/v1/deployments/current", &current); err != nil {
		return nil, err
	}
	return &current, nil
}

func (m *DriftMonitor) checkDrift(ctx context.Context, version string) (*models.DriftResult, error) {
	var result models.DriftResult
	if err := m.get(ctx, "/api/v1/models/"+version+"/drift", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (m *DriftMonitor) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.serverURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Actor", "drift-monitor")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s for %s", resp.Status, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
