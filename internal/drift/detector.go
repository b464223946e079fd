package drift

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/modelreg/modelreg/internal/observability/metrics"
	"github.com/modelreg/modelreg/internal/performance"
	"github.com/modelreg/modelreg/pkg/constants"
	"github.com/modelreg/modelreg/pkg/errors"
	"github.com/modelreg/modelreg/pkg/models"
)

// DetectorConfig configures drift detection
type DetectorConfig struct {
	Threshold         float64            `json:"threshold"`
	Weights           map[string]float64 `json:"weights"`
	TargetSampleSize  int                `json:"target_sample_size"`
	Epsilon           float64            `json:"epsilon"`
	HighConfidence    float64            `json:"high_confidence"`
}

// Indicator names used for weighting
const (
	IndicatorAnomalyRate       = "anomaly_rate"
	IndicatorScoreDistribution = "score_distribution"
	IndicatorInferenceTime     = "inference_time"
)

// Detector compares a version's current performance snapshot against the
// baseline captured when it was deployed and flags statistically meaningful
// degradation. Checks are pure reads over consistent snapshots.
type Detector struct {
	config  *DetectorConfig
	logger  *logrus.Logger
	tracker *performance.Tracker
	metrics *metrics.PrometheusMetrics
}

// NewDetector creates a drift detector. pm may be nil.
func NewDetector(config *DetectorConfig, tracker *performance.Tracker, pm *metrics.PrometheusMetrics, logger *logrus.Logger) *Detector {
	config = config.withDefaults()
	if logger == nil {
		logger = logrus.New()
	}

	return &Detector{
		config:  config,
		logger:  logger,
		tracker: tracker,
		metrics: pm,
	}
}

// Check computes the drift result for a version against its stored baseline
func (d *Detector) Check(ctx context.Context, version string) (*models.DriftResult, error) {
	baseline := d.tracker.Baseline(version)
	if baseline == nil {
		return nil, errors.NewAppError(errors.ErrorTypeValidation, "BASELINE_NOT_FOUND",
			"no baseline snapshot exists for version "+version+"; baselines are captured at deployment")
	}

	current, err := d.tracker.Snapshot(version)
	if err != nil {
		return nil, err
	}

	indicators := models.DriftIndicators{
		AnomalyRateChange:       d.relativeChange(current.AnomalyRate(), baseline.AnomalyRate()),
		ScoreDistributionChange: d.scoreDistributionChange(baseline, current),
		InferenceTimeChange:     d.relativeChange(current.MeanInferenceMs(), baseline.MeanInferenceMs()),
	}

	score := d.combine(indicators)
	newSamples := current.TotalInferences - baseline.TotalInferences
	confidence := math.Min(1, float64(newSamples)/float64(d.config.TargetSampleSize))
	if newSamples <= 0 {
		confidence = 0
	}

	result := &models.DriftResult{
		Version:       version,
		DriftScore:    score,
		DriftDetected: score > d.config.Threshold,
		Confidence:    confidence,
		Indicators:    indicators,
		Threshold:     d.config.Threshold,
		ComputedAt:    time.Now().UTC(),
	}
	result.Recommendation = d.recommend(result)

	d.metrics.SetDriftScore(version, score)

	d.logger.WithFields(logrus.Fields{
		"version":     version,
		"drift_score": score,
		"detected":    result.DriftDetected,
		"confidence":  confidence,
	}).Info("Drift check completed")

	return result, nil
}

// relativeChange returns |current-baseline| normalized by the baseline
// magnitude, clamped to [0,1]
func (d *Detector) relativeChange(current, baseline float64) float64 {
	denom := math.Max(math.Abs(baseline), d.config.Epsilon)
	return math.Min(1, math.Abs(current-baseline)/denom)
}

// scoreDistributionChange compares the mean and spread of the recent
// anomaly-score reservoirs of the two snapshots
func (d *Detector) scoreDistributionChange(baseline, current *models.PerformanceSnapshot) float64 {
	if len(baseline.RecentScores) < 2 || len(current.RecentScores) < 2 {
		// Not enough observations for a distribution comparison; fall back to
		// the running mean.
		return d.relativeChange(current.MeanAnomalyScore(), baseline.MeanAnomalyScore())
	}

	baseMean := stat.Mean(baseline.RecentScores, nil)
	curMean := stat.Mean(current.RecentScores, nil)
	baseStd := stat.StdDev(baseline.RecentScores, nil)
	curStd := stat.StdDev(current.RecentScores, nil)

	meanChange := d.relativeChange(curMean, baseMean)
	spreadChange := d.relativeChange(curStd, baseStd)

	return math.Min(1, 0.5*meanChange+0.5*spreadChange)
}

func (d *Detector) combine(ind models.DriftIndicators) float64 {
	values := map[string]float64{
		IndicatorAnomalyRate:       ind.AnomalyRateChange,
		IndicatorScoreDistribution: ind.ScoreDistributionChange,
		IndicatorInferenceTime:     ind.InferenceTimeChange,
	}

	var sum, totalWeight float64
	for name, weight := range d.config.Weights {
		if weight <= 0 {
			continue
		}
		sum += values[name] * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 0
	}
	return math.Min(1, sum/totalWeight)
}

func (d *Detector) recommend(r *models.DriftResult) string {
	switch {
	case r.DriftDetected && r.Confidence >= d.config.HighConfidence:
		return "drift confirmed: retrain the model on recent data"
	case r.DriftDetected:
		return "possible drift: keep monitoring until more samples accumulate"
	case r.Confidence < d.config.HighConfidence:
		return "no drift detected yet; sample size still below target"
	default:
		return "no action needed"
	}
}

// withDefaults fills zero-valued fields so a partially populated config
// section cannot divide by a zero epsilon or zero sample target
func (c *DetectorConfig) withDefaults() *DetectorConfig {
	if c == nil {
		return getDefaultDetectorConfig()
	}

	defaults := getDefaultDetectorConfig()
	out := *c
	if out.Threshold <= 0 {
		out.Threshold = defaults.Threshold
	}
	if out.Weights == nil {
		out.Weights = defaults.Weights
	}
	if out.TargetSampleSize <= 0 {
		out.TargetSampleSize = defaults.TargetSampleSize
	}
	if out.Epsilon <= 0 {
		out.Epsilon = defaults.Epsilon
	}
	if out.HighConfidence <= 0 {
		out.HighConfidence = defaults.HighConfidence
	}
	return &out
}

func getDefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		Threshold: constants.DefaultDriftThreshold,
		Weights: map[string]float64{
			IndicatorAnomalyRate:       0.4,
			IndicatorScoreDistribution: 0.4,
			IndicatorInferenceTime:     0.2,
		},
		TargetSampleSize: constants.DefaultTargetSampleSize,
		Epsilon:          1e-6,
		HighConfidence:   0.8,
	}
}
