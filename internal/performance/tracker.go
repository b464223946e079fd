package performance

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/internal/observability/metrics"
	"github.com/modelreg/modelreg/pkg/constants"
	"github.com/modelreg/modelreg/pkg/errors"
	"github.com/modelreg/modelreg/pkg/models"
)

// TrackerConfig configures the performance tracker
type TrackerConfig struct {
	DefaultDecisionThreshold float64 `json:"default_decision_threshold"`
	ScoreReservoirLen        int     `json:"score_reservoir_len"`
}

// Tracker aggregates per-version inference statistics. Writes arrive at high
// rate from many concurrent inference calls; each version keeps its own small
// lock so recording never contends with the deployment control path or with
// other versions.
type Tracker struct {
	logger  *logrus.Logger
	config  *TrackerConfig
	metrics *metrics.PrometheusMetrics

	stats     sync.Map // version -> *versionStats
	baselines sync.Map // version -> *models.PerformanceSnapshot
}

type versionStats struct {
	mu          sync.Mutex
	threshold   float64
	total       int64
	anomalies   int64
	sumMs       float64
	minMs       float64
	maxMs       float64
	sumScore    float64
	recent      []float64
	next        int
	filled      bool
	lastUpdated time.Time
}

// NewTracker creates a performance tracker. pm may be nil when Prometheus
// metrics are not wired.
func NewTracker(config *TrackerConfig, pm *metrics.PrometheusMetrics, logger *logrus.Logger) *Tracker {
	config = config.withDefaults()
	if logger == nil {
		logger = logrus.New()
	}

	return &Tracker{
		logger:  logger,
		config:  config,
		metrics: pm,
	}
}

// RegisterVersion prepares tracking for a version with the model's decision
// threshold. Recording for an unregistered version falls back to the default
// threshold.
func (t *Tracker) RegisterVersion(version string, decisionThreshold float64) {
	if decisionThreshold <= 0 {
		decisionThreshold = t.config.DefaultDecisionThreshold
	}
	t.stats.LoadOrStore(version, t.newVersionStats(decisionThreshold))
}

func (t *Tracker) newVersionStats(threshold float64) *versionStats {
	return &versionStats{
		threshold: threshold,
		recent:    make([]float64, t.config.ScoreReservoirLen),
	}
}

// Record folds one inference result into the version's running aggregates
func (t *Tracker) Record(version string, inferenceTimeMs, anomalyScore float64) {
	v, ok := t.stats.Load(version)
	if !ok {
		v, _ = t.stats.LoadOrStore(version, t.newVersionStats(t.config.DefaultDecisionThreshold))
	}
	vs := v.(*versionStats)

	vs.mu.Lock()
	vs.total++
	vs.sumMs += inferenceTimeMs
	if vs.total == 1 || inferenceTimeMs < vs.minMs {
		vs.minMs = inferenceTimeMs
	}
	if inferenceTimeMs > vs.maxMs {
		vs.maxMs = inferenceTimeMs
	}
	vs.sumScore += anomalyScore
	anomaly := anomalyScore > vs.threshold
	if anomaly {
		vs.anomalies++
	}
	vs.recent[vs.next] = anomalyScore
	vs.next++
	if vs.next == len(vs.recent) {
		vs.next = 0
		vs.filled = true
	}
	vs.lastUpdated = time.Now().UTC()
	vs.mu.Unlock()

	t.metrics.ObserveInference(version, inferenceTimeMs, anomaly)
}

// Snapshot returns a consistent point-in-time copy of a version's aggregates
func (t *Tracker) Snapshot(version string) (*models.PerformanceSnapshot, error) {
	v, ok := t.stats.Load(version)
	if !ok {
		return nil, errors.NewVersionNotFoundError(version)
	}
	vs := v.(*versionStats)

	vs.mu.Lock()
	defer vs.mu.Unlock()

	return vs.snapshotLocked(version), nil
}

func (vs *versionStats) snapshotLocked(version string) *models.PerformanceSnapshot {
	snap := &models.PerformanceSnapshot{
		Version:         version,
		TotalInferences: vs.total,
		AnomalyCount:    vs.anomalies,
		SumInferenceMs:  vs.sumMs,
		MinInferenceMs:  vs.minMs,
		MaxInferenceMs:  vs.maxMs,
		SumAnomalyScore: vs.sumScore,
		LastUpdated:     vs.lastUpdated,
	}

	if vs.filled {
		snap.RecentScores = append([]float64(nil), vs.recent...)
	} else {
		snap.RecentScores = append([]float64(nil), vs.recent[:vs.next]...)
	}

	return snap
}

// CaptureBaseline copies the version's current aggregates as its drift
// baseline, replacing any earlier baseline. Called at the moment a version is
// promoted to deployed.
func (t *Tracker) CaptureBaseline(version string) *models.PerformanceSnapshot {
	var snap *models.PerformanceSnapshot

	if v, ok := t.stats.Load(version); ok {
		vs := v.(*versionStats)
		vs.mu.Lock()
		snap = vs.snapshotLocked(version)
		vs.mu.Unlock()
	} else {
		snap = &models.PerformanceSnapshot{Version: version, LastUpdated: time.Now().UTC()}
	}

	t.baselines.Store(version, snap)

	t.logger.WithFields(logrus.Fields{
		"version":    version,
		"inferences": snap.TotalInferences,
	}).Info("Captured performance baseline")

	return snap
}

// Baseline returns the stored drift baseline for a version, or nil when the
// version has never been deployed
func (t *Tracker) Baseline(version string) *models.PerformanceSnapshot {
	v, ok := t.baselines.Load(version)
	if !ok {
		return nil
	}
	return v.(*models.PerformanceSnapshot)
}

// RestoreBaseline installs a baseline loaded from durable storage
func (t *Tracker) RestoreBaseline(snapshot *models.PerformanceSnapshot) {
	if snapshot == nil || snapshot.Version == "" {
		return
	}
	t.baselines.Store(snapshot.Version, snapshot)
}

// Versions lists the versions with tracked aggregates
func (t *Tracker) Versions() []string {
	var out []string
	t.stats.Range(func(key, _ interface{}) bool {
		out = append(out, key.(string))
		return true
	})
	return out
}

// withDefaults fills zero-valued fields so a partially populated config
// section cannot produce a tracker with an empty score reservoir
func (c *TrackerConfig) withDefaults() *TrackerConfig {
	if c == nil {
		return getDefaultTrackerConfig()
	}

	out := *c
	if out.DefaultDecisionThreshold <= 0 {
		out.DefaultDecisionThreshold = models.DefaultDecisionThreshold
	}
	if out.ScoreReservoirLen <= 0 {
		out.ScoreReservoirLen = constants.DefaultScoreReservoirLen
	}
	return &out
}

func getDefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		DefaultDecisionThreshold: models.DefaultDecisionThreshold,
		ScoreReservoirLen:        constants.DefaultScoreReservoirLen,
	}
}
