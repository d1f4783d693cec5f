package httpext

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ErrorResponse is the JSON body for failures outside the session protocol
// (rate limiting, unsupported media types, health checks).
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// JsonError writes a JSON error response with the specified status code
func JsonError(w http.ResponseWriter, message string, code int) {
	JsonErrorWithDetails(w, code, ErrorResponse{Error: message})
}

// JsonErrorWithDetails writes an ErrorResponse with the specified status code
func JsonErrorWithDetails(w http.ResponseWriter, code int, body ErrorResponse) {
	WriteJSON(w, code, body)
}

// WriteJSON writes v as a JSON body with the specified status code
func WriteJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		// headers are already sent, so all that is left is to log
		log.Error().Err(err).Int("status", code).Msg("Failed to encode JSON response")
	}
}
