package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"stationlog/internal/contextutil"
	"stationlog/internal/pipeline"
	"stationlog/internal/visits"
)

// VisitsHandler serves the committed visit records.
type VisitsHandler struct {
	store *visits.Store
	pipe  *pipeline.Pipeline
}

// NewVisitsHandler creates a new VisitsHandler.
func NewVisitsHandler(store *visits.Store, pipe *pipeline.Pipeline) *VisitsHandler {
	return &VisitsHandler{store: store, pipe: pipe}
}

// List returns all committed visit records sorted by station code.
func (h *VisitsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(ctx, w, http.StatusOK, map[string]any{"visits": h.store.All()})
}

// Get returns the committed record for one station.
func (h *VisitsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	rec, ok := h.store.Get(code)
	if !ok {
		writeError(ctx, w, http.StatusNotFound, "no visit recorded for this station")
		return
	}
	writeJSON(ctx, w, http.StatusOK, rec)
}

// Delete removes the committed record for one station. Deleting goes
// through the pipeline so an editor open on that station is closed too.
func (h *VisitsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	code := chi.URLParam(r, "code")

	if err := h.pipe.Delete(ctx, code); err != nil {
		logger.ErrorContext(ctx, "failed to delete visit", "station", code, "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to delete visit")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
