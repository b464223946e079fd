package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// PrometheusMetrics provides Prometheus-based metrics collection for the
// registry. All methods are safe to call on a nil receiver so components can
// treat metrics as optional.
type PrometheusMetrics struct {
	logger   *logrus.Logger
	registry *prometheus.Registry

	inferencesTotal     *prometheus.CounterVec
	inferenceDuration   *prometheus.HistogramVec
	anomaliesTotal      *prometheus.CounterVec
	deploymentsTotal    *prometheus.CounterVec
	driftScore          *prometheus.GaugeVec
	validationScore     *prometheus.GaugeVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	versionsByStatus    *prometheus.GaugeVec
}

// PrometheusConfig configures Prometheus metrics
type PrometheusConfig struct {
	Namespace string `json:"namespace"`
	Subsystem string `json:"subsystem"`
}

// NewPrometheusMetrics creates a new Prometheus metrics instance
func NewPrometheusMetrics(config *PrometheusConfig, logger *logrus.Logger) *PrometheusMetrics {
	if config == nil {
		config = getDefaultPrometheusConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}

	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		logger:   logger,
		registry: registry,
		inferencesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "inferences_total",
			Help:      "Total inference results recorded per model version",
		}, []string{"version"}),
		inferenceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "inference_duration_ms",
			Help:      "Inference latency in milliseconds",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"version"}),
		anomaliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "anomalies_total",
			Help:      "Inference results that exceeded the decision threshold",
		}, []string{"version"}),
		deploymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "deployment_actions_total",
			Help:      "Deployment lifecycle actions by kind",
		}, []string{"action"}),
		driftScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "drift_score",
			Help:      "Latest drift score per model version",
		}, []string{"version"}),
		validationScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "validation_score",
			Help:      "Latest validation quality score per model version",
		}, []string{"version"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		versionsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "versions_by_status",
			Help:      "Registered model versions by lifecycle status",
		}, []string{"status"}),
	}

	registry.MustRegister(
		pm.inferencesTotal,
		pm.inferenceDuration,
		pm.anomaliesTotal,
		pm.deploymentsTotal,
		pm.driftScore,
		pm.validationScore,
		pm.httpRequestsTotal,
		pm.httpRequestDuration,
		pm.versionsByStatus,
	)

	return pm
}

// Handler returns the HTTP handler serving the metrics endpoint
func (pm *PrometheusMetrics) Handler() http.Handler {
	if pm == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// ObserveInference records one inference result
func (pm *PrometheusMetrics) ObserveInference(version string, durationMs float64, anomaly bool) {
	if pm == nil {
		return
	}
	pm.inferencesTotal.WithLabelValues(version).Inc()
	pm.inferenceDuration.WithLabelValues(version).Observe(durationMs)
	if anomaly {
		pm.anomaliesTotal.WithLabelValues(version).Inc()
	}
}

// ObserveDeploymentAction counts one lifecycle action
func (pm *PrometheusMetrics) ObserveDeploymentAction(action string) {
	if pm == nil {
		return
	}
	pm.deploymentsTotal.WithLabelValues(action).Inc()
}

// SetDriftScore publishes the latest drift score for a version
func (pm *PrometheusMetrics) SetDriftScore(version string, score float64) {
	if pm == nil {
		return
	}
	pm.driftScore.WithLabelValues(version).Set(score)
}

// SetValidationScore publishes the latest validation score for a version
func (pm *PrometheusMetrics) SetValidationScore(version string, score float64) {
	if pm == nil {
		return
	}
	pm.validationScore.WithLabelValues(version).Set(score)
}

// SetVersionCount publishes the number of versions in one status
func (pm *PrometheusMetrics) SetVersionCount(status string, count int) {
	if pm == nil {
		return
	}
	pm.versionsByStatus.WithLabelValues(status).Set(float64(count))
}

// ObserveHTTPRequest records one handled HTTP request
func (pm *PrometheusMetrics) ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	if pm == nil {
		return
	}
	pm.httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	pm.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func getDefaultPrometheusConfig() *PrometheusConfig {
	return &PrometheusConfig{
		Namespace: "modelreg",
		Subsystem: "registry",
	}
}
