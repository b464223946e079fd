package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/internal/deployment"
	"github.com/modelreg/modelreg/internal/registry"
	"github.com/modelreg/modelreg/pkg/models"
)

// DeploymentsHandler serves the deployment lifecycle: deploy, rollback,
// current-deployment lookup and the transfer history
type DeploymentsHandler struct {
	controller *deployment.Controller
	registry   *registry.Registry
	logger     *logrus.Logger
}

// NewDeploymentsHandler creates the deployments handler
func NewDeploymentsHandler(controller *deployment.Controller, reg *registry.Registry,
	logger *logrus.Logger) *DeploymentsHandler {

	if logger == nil {
		logger = logrus.New()
	}
	return &DeploymentsHandler{
		controller: controller,
		registry:   reg,
		logger:     logger,
	}
}

// Deploy promotes the version in the URL to deployed
func (h *DeploymentsHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	version := mux.Vars(r)["version"]

	if err := h.controller.Deploy(r.Context(), version, actorFrom(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"version": version, "status": string(models.StatusDeployed)})
}

// Rollback re-deploys a previously deployed version
func (h *DeploymentsHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	version := mux.Vars(r)["version"]

	if err := h.controller.Rollback(r.Context(), version, actorFrom(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"version": version, "status": string(models.StatusDeployed)})
}

// GetCurrent returns the currently deployed version, or 404 when nothing is
// deployed
func (h *DeploymentsHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	current := h.registry.CurrentDeployed(r.Context())
	if current == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no version is deployed"})
		return
	}
	writeJSON(w, http.StatusOK, current)
}

type historyResponse struct {
	Events []*models.DeploymentEvent `json:"events"`
	Total  int                       `json:"total"`
	Offset int                       `json:"offset"`
	Limit  int                       `json:"limit"`
}

// GetHistory returns a page of the append-only deployment log
func (h *DeploymentsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 100)

	events, total := h.controller.History(r.Context(), offset, limit)
	writeJSON(w, http.StatusOK, historyResponse{
		Events: events,
		Total:  total,
		Offset: offset,
		Limit:  limit,
	})
}

type auditCheckResponse struct {
	Consistent bool     `json:"consistent"`
	Mismatched []string `json:"mismatched,omitempty"`
}

// CheckAudit replays the deployment log against live registry state
func (h *DeploymentsHandler) CheckAudit(w http.ResponseWriter, r *http.Request) {
	mismatched := h.controller.VerifyAuditConsistency(r.Context())
	writeJSON(w, http.StatusOK, auditCheckResponse{
		Consistent: len(mismatched) == 0,
		Mismatched: mismatched,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
