package server

import (
	"encoding/json"
	"net/http"

	"github.com/woozymasta/masterlist/internal/models"
)

// writeJSON writes v as a JSON body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the failed envelope {"success": false, "error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse(msg))
}

// writeSuccess writes the envelope {"success": true}.
func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, models.Response{Success: true})
}

// decodeJSON reads a size-limited JSON body into v. It writes a 400 response and
// returns false when the body is malformed.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if s.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}

	return true
}
