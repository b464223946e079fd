package api

import (
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/modelreg/modelreg/internal/api/handlers"
	"github.com/modelreg/modelreg/internal/api/middleware"
	"github.com/modelreg/modelreg/internal/deployment"
	"github.com/modelreg/modelreg/internal/drift"
	"github.com/modelreg/modelreg/internal/importer"
	"github.com/modelreg/modelreg/internal/observability/metrics"
	"github.com/modelreg/modelreg/internal/performance"
	"github.com/modelreg/modelreg/internal/registry"
	"github.com/modelreg/modelreg/internal/validation"
	"github.com/modelreg/modelreg/pkg/constants"
	"github.com/modelreg/modelreg/pkg/interfaces"
)

// Router wires the HTTP surface over the registry core. The core packages
// never see the transport; this layer only decodes, dispatches and maps
// errors.
type Router struct {
	modelsHandler      *handlers.ModelsHandler
	deploymentsHandler *handlers.DeploymentsHandler
	validationHandler  *handlers.ValidationHandler
	performanceHandler *handlers.PerformanceHandler
	healthHandler      *handlers.HealthHandler

	logging *middleware.LoggingMiddleware
	logger  *logrus.Logger
	pm      *metrics.PrometheusMetrics
}

// Dependencies carries the assembled core components the router exposes
type Dependencies struct {
	Importer   *importer.Importer
	Registry   *registry.Registry
	Controller *deployment.Controller
	Engine     *validation.Engine
	Tracker    *performance.Tracker
	Detector   *drift.Detector
	Repository interfaces.Repository
	Metrics    *metrics.PrometheusMetrics
}

// NewRouter creates the API router
func NewRouter(deps Dependencies, loggingConfig *middleware.LoggingConfig, logger *logrus.Logger) *Router {
	if logger == nil {
		logger = logrus.New()
	}

	return &Router{
		modelsHandler:      handlers.NewModelsHandler(deps.Importer, deps.Registry, deps.Controller, logger),
		deploymentsHandler: handlers.NewDeploymentsHandler(deps.Controller, deps.Registry, logger),
		validationHandler:  handlers.NewValidationHandler(deps.Engine, logger),
		performanceHandler: handlers.NewPerformanceHandler(deps.Tracker, deps.Detector, logger),
		healthHandler:      handlers.NewHealthHandler(deps.Repository, logger),
		logging:            middleware.NewLoggingMiddleware(loggingConfig, deps.Metrics, logger),
		logger:             logger,
		pm:                 deps.Metrics,
	}
}

// SetupRoutes builds the mux router with middleware applied
func (router *Router) SetupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Recovery(router.logger))
	r.Use(router.logging.Handler)

	if router.pm != nil {
		r.Handle("/metrics", router.pm.Handler()).Methods("GET")
	}

	api := r.PathPrefix(constants.APIPrefix).Subrouter()

	api.HandleFunc("/health", router.healthHandler.GetHealth).Methods("GET")
	api.HandleFunc("/version", router.healthHandler.GetVersion).Methods("GET")

	models := api.PathPrefix("/models").Subrouter()
	models.HandleFunc("", router.modelsHandler.ImportPackage).Methods("POST")
	models.HandleFunc("", router.modelsHandler.ListVersions).Methods("GET")
	models.HandleFunc("/{version}", router.modelsHandler.GetVersion).Methods("GET")
	models.HandleFunc("/{version}", router.modelsHandler.DeleteVersion).Methods("DELETE")
	models.HandleFunc("/{version}/validate", router.validationHandler.Validate).Methods("POST")
	models.HandleFunc("/{version}/deploy", router.deploymentsHandler.Deploy).Methods("POST")
	models.HandleFunc("/{version}/rollback", router.deploymentsHandler.Rollback).Methods("POST")
	models.HandleFunc("/{version}/inferences", router.performanceHandler.RecordInference).Methods("POST")
	models.HandleFunc("/{version}/performance", router.performanceHandler.GetPerformance).Methods("GET")
	models.HandleFunc("/{version}/drift", router.performanceHandler.CheckDrift).Methods("GET")

	deployments := api.PathPrefix("/deployments").Subrouter()
	deployments.HandleFunc("/current", router.deploymentsHandler.GetCurrent).Methods("GET")
	deployments.HandleFunc("/history", router.deploymentsHandler.GetHistory).Methods("GET")
	deployments.HandleFunc("/audit/check", router.deploymentsHandler.CheckAudit).Methods("GET")

	return r
}
