package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/models"
	"github.com/nikhilbhutani/docchat/internal/summarize"
	"github.com/nikhilbhutani/docchat/pkg/datauri"
)

type Summarizer interface {
	Summarize(ctx context.Context, c *document.Content) (string, error)
	SummarizeFile(ctx context.Context, f datauri.File) (string, error)
}

type SummarizeHandler struct {
	docs       Extractor
	summarizer Summarizer
}

func NewSummarizeHandler(docs Extractor, s Summarizer) *SummarizeHandler {
	return &SummarizeHandler{docs: docs, summarizer: s}
}

type summarizeRequest struct {
	Data string `json:"data"`
	// Mode is "text" (extract then summarize, the default) or "raw" (send
	// the file to a model that reads it).
	Mode string `json:"mode,omitempty"`
}

type summarizeResponse struct {
	Summary  string             `json:"summary"`
	Metadata *document.Metadata `json:"metadata,omitempty"`
}

func (h *SummarizeHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	switch req.Mode {
	case "", "text":
		content, err := h.docs.Extract(r.Context(), req.Data, models.SourceAPI)
		if err != nil {
			writeExtractionError(w, err)
			return
		}
		summary, err := h.summarizer.Summarize(r.Context(), content)
		if err != nil {
			writeError(w, summarizeStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, summarizeResponse{Summary: summary, Metadata: &content.Metadata})

	case "raw":
		file, err := datauri.Decode(req.Data)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		summary, err := h.summarizer.SummarizeFile(r.Context(), file)
		if err != nil {
			writeError(w, summarizeStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, summarizeResponse{Summary: summary})

	default:
		writeError(w, http.StatusBadRequest, "mode must be text or raw")
	}
}

func summarizeStatus(err error) int {
	switch {
	case errors.Is(err, summarize.ErrNoText):
		return http.StatusUnprocessableEntity
	case errors.Is(err, summarize.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusBadGateway
	}
}
