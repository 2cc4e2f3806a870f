package handlers

import (
	"net/http"

	"stationlog/internal/catalog"
	"stationlog/internal/visits"
)

// StationsHandler serves the station catalog annotated with visit status.
type StationsHandler struct {
	cat   *catalog.Catalog
	store *visits.Store
}

// NewStationsHandler creates a new StationsHandler.
func NewStationsHandler(cat *catalog.Catalog, store *visits.Store) *StationsHandler {
	return &StationsHandler{cat: cat, store: store}
}

// stationView is one catalog station with its visit flag.
type stationView struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Visited bool   `json:"visited"`
}

// lineView is one catalog line with its stations.
type lineView struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Stations []stationView `json:"stations"`
}

// ServeHTTP lists all lines and stations in catalog order.
func (h *StationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	lines := make([]lineView, 0, len(h.cat.Lines()))
	for _, line := range h.cat.Lines() {
		lv := lineView{ID: line.ID, Name: line.Name, Stations: make([]stationView, 0, len(line.Stations))}
		for _, st := range line.Stations {
			_, visited := h.store.Get(st.Code)
			lv.Stations = append(lv.Stations, stationView{Code: st.Code, Name: st.Name, Visited: visited})
		}
		lines = append(lines, lv)
	}

	writeJSON(ctx, w, http.StatusOK, map[string]any{"lines": lines})
}

// ProgressHandler serves overall and per-line visit progress.
type ProgressHandler struct {
	cat   *catalog.Catalog
	store *visits.Store
}

// NewProgressHandler creates a new ProgressHandler.
func NewProgressHandler(cat *catalog.Catalog, store *visits.Store) *ProgressHandler {
	return &ProgressHandler{cat: cat, store: store}
}

// ProgressResponse represents the progress payload.
type ProgressResponse struct {
	Visited int                   `json:"visited"`
	Total   int                   `json:"total"`
	Lines   []visits.LineProgress `json:"lines"`
}

// ServeHTTP reports visited/total counts for the dashboard.
func (h *ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	visited, total := h.store.Progress(h.cat)
	writeJSON(ctx, w, http.StatusOK, ProgressResponse{
		Visited: visited,
		Total:   total,
		Lines:   h.store.ProgressByLine(h.cat),
	})
}
