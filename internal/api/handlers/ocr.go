package handlers

import (
	"net/http"
	"strings"

	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/pkg/datauri"
)

// OCRHandler runs the configured recognizer on a single image.
type OCRHandler struct {
	recognizer document.ImageRecognizer
}

func NewOCRHandler(rec document.ImageRecognizer) *OCRHandler {
	return &OCRHandler{recognizer: rec}
}

func (h *OCRHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	if h.recognizer == nil {
		writeError(w, http.StatusServiceUnavailable, "OCR not configured")
		return
	}

	var req extractRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	file, err := datauri.Decode(req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !strings.HasPrefix(file.MIMEType, "image/") {
		writeError(w, http.StatusBadRequest, "an image data URI is required")
		return
	}

	text, err := h.recognizer.Recognize(r.Context(), file.Data)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}
