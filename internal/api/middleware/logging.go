package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/internal/observability/metrics"
)

// LoggingConfig contains logging middleware configuration
type LoggingConfig struct {
	Enabled              bool          `json:"enabled"`
	ExcludePaths         []string      `json:"exclude_paths"`
	LogSlowRequests      bool          `json:"log_slow_requests"`
	SlowRequestThreshold time.Duration `json:"slow_request_threshold"`
}

// LoggingMiddleware logs every request with its outcome and feeds the HTTP
// request metrics
type LoggingMiddleware struct {
	config  *LoggingConfig
	logger  *logrus.Logger
	metrics *metrics.PrometheusMetrics
}

// responseWriter wraps http.ResponseWriter to capture the status and size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(data)
	rw.size += n
	return n, err
}

// NewLoggingMiddleware creates a logging middleware. pm may be nil when
// metrics are not wired.
func NewLoggingMiddleware(config *LoggingConfig, pm *metrics.PrometheusMetrics, logger *logrus.Logger) *LoggingMiddleware {
	if config == nil {
		config = getDefaultLoggingConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &LoggingMiddleware{
		config:  config,
		logger:  logger,
		metrics: pm,
	}
}

// Handler returns the middleware function
func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.config.Enabled || m.excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		started := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(started)

		m.metrics.ObserveHTTPRequest(r.Method, routeTemplate(r), strconv.Itoa(wrapped.statusCode), duration)

		fields := logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"size":        wrapped.size,
			"duration_ms": float64(duration.Microseconds()) / 1000.0,
			"remote_addr": r.RemoteAddr,
		}

		switch {
		case wrapped.statusCode >= 500:
			m.logger.WithFields(fields).Error("HTTP request failed")
		case wrapped.statusCode >= 400:
			m.logger.WithFields(fields).Warn("HTTP request rejected")
		case m.config.LogSlowRequests && duration > m.config.SlowRequestThreshold:
			m.logger.WithFields(fields).Warn("Slow HTTP request")
		default:
			m.logger.WithFields(fields).Info("HTTP request")
		}
	})
}

func (m *LoggingMiddleware) excluded(path string) bool {
	for _, p := range m.config.ExcludePaths {
		if p == path {
			return true
		}
	}
	return false
}

// routeTemplate returns the mux route pattern so metric labels stay bounded
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if template, err := route.GetPathTemplate(); err == nil {
			return template
		}
	}
	return r.URL.Path
}

func getDefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		Enabled:              true,
		ExcludePaths:         []string{"/metrics", "/api/v1/health"},
		LogSlowRequests:      true,
		SlowRequestThreshold: 2 * time.Second,
	}
}
