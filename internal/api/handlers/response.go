package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/nikhilbhutani/docsearch/internal/apperr"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func validID(id string) bool {
	return idPattern.MatchString(id)
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError renders err as {success:false, error:{message, code, details}}.
// Causes are never exposed.
func writeError(w http.ResponseWriter, err error) {
	ae := apperr.From(err)
	writeJSON(w, ae.Status(), map[string]any{
		"success": false,
		"error": errorBody{
			Message: ae.Message,
			Code:    string(ae.Code),
			Details: ae.Details,
		},
	})
}
