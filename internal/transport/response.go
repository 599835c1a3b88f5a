package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, message string, details map[string]string) {
	WriteJSON(w, status, ErrorResponse{
		Error:   message,
		Details: details,
	})
}

// WriteValidationError reports struct validation failures as a 400 with a
// field -> failed rule map in the details.
func WriteValidationError(w http.ResponseWriter, errs validator.ValidationErrors) {
	var details map[string]string
	if len(errs) > 0 {
		details = make(map[string]string, len(errs))
		for _, e := range errs {
			details[e.Field()] = e.Tag()
		}
	}
	WriteError(w, http.StatusBadRequest, "validation error", details)
}

// WriteFieldError reports a single field failure checked outside the
// struct validator.
func WriteFieldError(w http.ResponseWriter, field, rule string) {
	WriteError(w, http.StatusBadRequest, "validation error", map[string]string{field: rule})
}
