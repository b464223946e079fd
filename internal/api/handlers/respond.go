package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/modelreg/modelreg/pkg/errors"
)

// errorResponse is the JSON error envelope returned by every handler
type errorResponse struct {
	Error *errors.AppError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps an error to its HTTP status. Typed errors carry their own
// status; anything else is an internal error.
func writeError(w http.ResponseWriter, err error) {
	appErr, ok := err.(*errors.AppError)
	if !ok {
		appErr = errors.NewInternalError(err.Error())
	}
	writeJSON(w, appErr.HTTPStatus, errorResponse{Error: appErr})
}

// actorFrom reads the acting identity from the request, defaulting when the
// client does not identify itself
func actorFrom(r *http.Request) string {
	if actor := r.Header.Get("X-Actor"); actor != "" {
		return actor
	}
	return "api"
}
