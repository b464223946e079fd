package handlers

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/internal/deployment"
	"github.com/modelreg/modelreg/internal/importer"
	"github.com/modelreg/modelreg/internal/registry"
	"github.com/modelreg/modelreg/pkg/errors"
	"github.com/modelreg/modelreg/pkg/models"
)

// ModelsHandler serves model version CRUD: package import, listing, lookup and
// retirement
type ModelsHandler struct {
	importer   *importer.Importer
	registry   *registry.Registry
	controller *deployment.Controller
	logger     *logrus.Logger
}

// NewModelsHandler creates the models handler
func NewModelsHandler(imp *importer.Importer, reg *registry.Registry,
	controller *deployment.Controller, logger *logrus.Logger) *ModelsHandler {

	if logger == nil {
		logger = logrus.New()
	}
	return &ModelsHandler{
		importer:   imp,
		registry:   reg,
		controller: controller,
		logger:     logger,
	}
}

type importResponse struct {
	Summary *models.PackageSummary `json:"summary"`
}

// ImportPackage accepts an uploaded deployment bundle. The bundle filename
// comes either from a multipart form field named "bundle" or from the
// "filename" query parameter with raw bytes in the body.
func (h *ModelsHandler) ImportPackage(w http.ResponseWriter, r *http.Request) {
	bundleName, bundleBytes, err := h.readBundle(r)
	if err != nil {
		writeError(w, err)
		return
	}

	summary, err := h.importer.Import(r.Context(), bundleName, bundleBytes, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, importResponse{Summary: summary})
}

func (h *ModelsHandler) readBundle(r *http.Request) (string, []byte, error) {
	contentType := r.Header.Get("Content-Type")

	if len(contentType) >= 19 && contentType[:19] == "multipart/form-data" {
		file, header, err := r.FormFile("bundle")
		if err != nil {
			return "", nil, errors.NewMalformedPackageError("multipart form field 'bundle' is required")
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return "", nil, errors.NewMalformedPackageError("failed to read uploaded bundle")
		}
		return header.Filename, data, nil
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		return "", nil, errors.NewMalformedPackageError("filename query parameter is required")
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, errors.NewMalformedPackageError("failed to read request body")
	}
	return filename, data, nil
}

type listVersionsResponse struct {
	Versions []*models.ModelVersion `json:"versions"`
	Total    int                    `json:"total"`
}

// ListVersions returns every registered version ordered by creation time
func (h *ModelsHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.registry.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listVersionsResponse{Versions: versions, Total: len(versions)})
}

// GetVersion returns one version by its version string
func (h *ModelsHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	version := mux.Vars(r)["version"]

	v, err := h.registry.Get(r.Context(), version)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// DeleteVersion retires a version. Deployed or agent-referenced versions are
// refused with MODEL_IN_USE.
func (h *ModelsHandler) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	version := mux.Vars(r)["version"]

	if err := h.controller.Delete(r.Context(), version, actorFrom(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"version": version, "status": string(models.StatusRetired)})
}
