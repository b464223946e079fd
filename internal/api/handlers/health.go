package handlers

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/pkg/constants"
	"github.com/modelreg/modelreg/pkg/interfaces"
)

// HealthHandler serves liveness, readiness and build information
type HealthHandler struct {
	repo      interfaces.Repository
	startedAt time.Time
	logger    *logrus.Logger
}

// NewHealthHandler creates the health handler. repo may be nil for in-memory
// deployments.
func NewHealthHandler(repo interfaces.Repository, logger *logrus.Logger) *HealthHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &HealthHandler{
		repo:      repo,
		startedAt: time.Now().UTC(),
		logger:    logger,
	}
}

// GetHealth reports overall service health including the storage dependency
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	checks := map[string]string{}
	httpStatus := http.StatusOK

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
			checks["repository"] = err.Error()
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["repository"] = "ok"
		}
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":         status,
		"checks":         checks,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}

// GetVersion reports service build information
func (h *HealthHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    constants.AppName,
		"version": constants.AppVersion,
	})
}
