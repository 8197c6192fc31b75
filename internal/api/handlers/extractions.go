package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nikhilbhutani/docchat/internal/models"
)

type ExtractionLister interface {
	ListExtractions(ctx context.Context, limit int) ([]models.Extraction, error)
}

type ExtractionsHandler struct {
	store ExtractionLister
}

func NewExtractionsHandler(store ExtractionLister) *ExtractionsHandler {
	return &ExtractionsHandler{store: store}
}

func (h *ExtractionsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "database not configured")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := h.store.ListExtractions(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []models.Extraction{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"extractions": recs, "count": len(recs)})
}
