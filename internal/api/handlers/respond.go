package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nikhilbhutani/docchat/internal/document"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads the request body into dst, answering 400 or 413 itself
// when it fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// extractionStatus maps an extraction failure kind to an HTTP status.
func extractionStatus(err error) int {
	switch document.Kind(err) {
	case document.ErrMalformedInput:
		return http.StatusBadRequest
	case document.ErrDocumentParse:
		return http.StatusUnprocessableEntity
	case document.ErrExtractionTimeout:
		return http.StatusGatewayTimeout
	case document.ErrEngineUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeExtractionError(w http.ResponseWriter, err error) {
	writeJSON(w, extractionStatus(err), map[string]string{
		"error": err.Error(),
		"kind":  document.KindName(err),
	})
}
