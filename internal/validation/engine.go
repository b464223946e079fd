package validation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/internal/registry"
	"github.com/modelreg/modelreg/pkg/constants"
	"github.com/modelreg/modelreg/pkg/errors"
	"github.com/modelreg/modelreg/pkg/interfaces"
	"github.com/modelreg/modelreg/pkg/models"
)

// Metric names used for weights and floors
const (
	MetricAccuracy  = "accuracy"
	MetricPrecision = "precision"
	MetricRecall    = "recall"
	MetricF1        = "f1_score"
	MetricROCAUC    = "roc_auc"
)

// EngineConfig configures the validation engine. Timeout bounds one Validate
// call; the scoring pass itself is in-memory and effectively instant, so the
// bound matters for the cache round-trips and for callers arriving with an
// already-exhausted deadline.
type EngineConfig struct {
	Weights           map[string]float64 `json:"weights"`
	ValidityThreshold float64            `json:"validity_threshold"`
	HardFloors        map[string]float64 `json:"hard_floors"`
	SoftFloors        map[string]float64 `json:"soft_floors"`
	Timeout           time.Duration      `json:"timeout"`
	CacheTTL          time.Duration      `json:"cache_ttl"`
}

// Engine computes deterministic quality assessments from a model version's
// stored evaluation metrics. Scoring is a pure function of the metadata; the
// engine only adds registry lookup and optional result caching around it.
type Engine struct {
	config   *EngineConfig
	logger   *logrus.Logger
	registry *registry.Registry
	cache    interfaces.ResultCache
}

// NewEngine creates a validation engine. cache may be nil to disable caching.
func NewEngine(config *EngineConfig, reg *registry.Registry, cache interfaces.ResultCache, logger *logrus.Logger) *Engine {
	config = config.withDefaults()
	if logger == nil {
		logger = logrus.New()
	}

	return &Engine{
		config:   config,
		logger:   logger,
		registry: reg,
		cache:    cache,
	}
}

// Validate computes (or returns the cached) validation result for a version
func (e *Engine) Validate(ctx context.Context, version string) (*models.ValidationResult, error) {
	v, err := e.registry.Get(ctx, version)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if cached, err := e.cache.GetValidation(ctx, version); err != nil {
			e.logger.WithError(err).Warn("Validation cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	result, err := e.compute(ctx, v)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.PutValidation(ctx, result, e.config.CacheTTL); err != nil {
			e.logger.WithError(err).Warn("Validation cache write failed")
		}
	}

	e.logger.WithFields(logrus.Fields{
		"version":  version,
		"score":    result.Score,
		"is_valid": result.IsValid,
		"errors":   len(result.Errors),
		"warnings": len(result.Warnings),
	}).Info("Validated model version")

	return result, nil
}

// Invalidate drops any cached result for a version
func (e *Engine) Invalidate(ctx context.Context, version string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.InvalidateValidation(ctx, version); err != nil {
		e.logger.WithError(err).Warn("Validation cache invalidation failed")
	}
}

func (e *Engine) compute(ctx context.Context, v *models.ModelVersion) (*models.ValidationResult, error) {
	// Assess has no blocking points, so the deadline is checked once here.
	// The cache round-trips carry the same ctx and enforce it themselves.
	select {
	case <-ctx.Done():
		return nil, errors.NewValidationTimeoutError(v.Version)
	default:
	}

	return Assess(e.config, v), nil
}

// Assess is the deterministic scoring function: it derives the quality
// metrics, score, issue list and recommendations from stored metadata alone.
// Exported so tests and callers can recompute results without an engine.
func Assess(config *EngineConfig, v *models.ModelVersion) *models.ValidationResult {
	config = config.withDefaults()

	m := v.Metadata.EvaluationInfo.BasicMetrics
	result := &models.ValidationResult{
		Version:         v.Version,
		QualityMetrics:  m,
		Issues:          []models.ValidationIssue{},
		Errors:          []string{},
		Warnings:        []string{},
		Recommendations: []string{},
		ComputedAt:      time.Now().UTC(),
	}

	values := map[string]float64{
		MetricAccuracy:  m.Accuracy,
		MetricPrecision: m.Precision,
		MetricRecall:    m.Recall,
		MetricF1:        m.F1Score,
		MetricROCAUC:    m.ROCAUC,
	}

	// Deterministic issue ordering regardless of map iteration.
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := values[name]
		hard, hasHard := config.HardFloors[name]
		soft, hasSoft := config.SoftFloors[name]

		switch {
		case hasHard && value < hard:
			desc := fmt.Sprintf("%s %.3f is below the hard floor %.3f", name, value, hard)
			result.Issues = append(result.Issues, models.ValidationIssue{
				Severity:    models.SeverityError,
				Metric:      name,
				Description: desc,
			})
			result.Errors = append(result.Errors, desc)
			result.Recommendations = append(result.Recommendations, recommendationFor(name))
		case hasSoft && value < soft:
			desc := fmt.Sprintf("%s %.3f is below the soft floor %.3f", name, value, soft)
			result.Issues = append(result.Issues, models.ValidationIssue{
				Severity:    models.SeverityWarning,
				Metric:      name,
				Description: desc,
			})
			result.Warnings = append(result.Warnings, desc)
		}
	}

	// Structural omissions are informational only.
	if v.Metadata.TrainingInfo.NSamples == 0 {
		desc := "training sample count is missing from metadata"
		result.Issues = append(result.Issues, models.ValidationIssue{
			Severity:    models.SeverityInfo,
			Description: desc,
		})
	}
	if len(v.Metadata.TrainingInfo.FeatureNames) == 0 {
		desc := "feature names are missing from metadata"
		result.Issues = append(result.Issues, models.ValidationIssue{
			Severity:    models.SeverityInfo,
			Description: desc,
		})
	}

	result.Score = weightedScore(config.Weights, values)
	result.IsValid = result.Score >= config.ValidityThreshold && len(result.Errors) == 0

	return result
}

func weightedScore(weights map[string]float64, values map[string]float64) float64 {
	var sum, totalWeight float64
	for name, weight := range weights {
		if weight <= 0 {
			continue
		}
		sum += values[name] * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 0
	}
	return math.Max(0, math.Min(1, sum/totalWeight))
}

func recommendationFor(metric string) string {
	switch metric {
	case MetricF1, MetricRecall:
		return "retrain with more or better-labeled training data"
	case MetricPrecision:
		return "raise the decision threshold or retrain to reduce false positives"
	case MetricROCAUC:
		return "review feature engineering; the model barely separates classes"
	default:
		return "re-evaluate the model on a held-out dataset"
	}
}

// withDefaults fills zero-valued fields so a partially populated config
// section cannot zero out the timeout, the weights or the floors
func (c *EngineConfig) withDefaults() *EngineConfig {
	if c == nil {
		return getDefaultEngineConfig()
	}

	defaults := getDefaultEngineConfig()
	out := *c
	if out.Weights == nil {
		out.Weights = defaults.Weights
	}
	if out.ValidityThreshold <= 0 {
		out.ValidityThreshold = defaults.ValidityThreshold
	}
	if out.HardFloors == nil {
		out.HardFloors = defaults.HardFloors
	}
	if out.SoftFloors == nil {
		out.SoftFloors = defaults.SoftFloors
	}
	if out.Timeout <= 0 {
		out.Timeout = defaults.Timeout
	}
	if out.CacheTTL <= 0 {
		out.CacheTTL = defaults.CacheTTL
	}
	return &out
}

func getDefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Weights: map[string]float64{
			MetricF1:        1.0,
			MetricROCAUC:    1.0,
			MetricPrecision: 1.0,
			MetricRecall:    1.0,
		},
		ValidityThreshold: constants.DefaultValidityThreshold,
		HardFloors: map[string]float64{
			MetricF1:        constants.DefaultHardFloor,
			MetricROCAUC:    constants.DefaultHardFloor,
			MetricPrecision: constants.DefaultHardFloor,
			MetricRecall:    constants.DefaultHardFloor,
		},
		SoftFloors: map[string]float64{
			MetricF1:        constants.DefaultSoftFloor,
			MetricROCAUC:    constants.DefaultSoftFloor,
			MetricPrecision: constants.DefaultSoftFloor,
			MetricRecall:    constants.DefaultSoftFloor,
		},
		Timeout:  constants.DefaultValidationTimeout,
		CacheTTL: 15 * time.Minute,
	}
}
