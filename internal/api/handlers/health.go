package handlers

import (
	"context"
	"net/http"

	"github.com/nikhilbhutani/docchat/internal/document"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db      Pinger
	redis   Pinger
	engines *document.EngineRegistry
}

// NewHealthHandler takes optional dependencies; nil ones are left out of the
// readiness report.
func NewHealthHandler(db, rdb Pinger, engines *document.EngineRegistry) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, engines: engines}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz fails when a backing store is down or the PDF parser cannot be
// used. Missing renderer or OCR engines only degrade extraction and are
// reported without failing the check.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "ok"
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(r.Context()); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	engines := map[string]bool{}
	if h.engines != nil {
		engines = h.engines.Status()
		if !engines[document.EngineParser] {
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, map[string]any{"status": statusStr(status), "checks": checks, "engines": engines})
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}
