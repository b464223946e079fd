package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/internal/validation"
)

// ValidationHandler serves on-demand model validation
type ValidationHandler struct {
	engine *validation.Engine
	logger *logrus.Logger
}

// NewValidationHandler creates the validation handler
func NewValidationHandler(engine *validation.Engine, logger *logrus.Logger) *ValidationHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &ValidationHandler{
		engine: engine,
		logger: logger,
	}
}

// Validate runs (or returns the cached) validation for the version in the URL
func (h *ValidationHandler) Validate(w http.ResponseWriter, r *http.Request) {
	version := mux.Vars(r)["version"]

	result, err := h.engine.Validate(r.Context(), version)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
