package http

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stationlog/internal/catalog"
	"stationlog/internal/handlers"
	"stationlog/internal/pipeline"
	"stationlog/internal/visits"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Catalog        *catalog.Catalog
	Store          *visits.Store
	Pipeline       *pipeline.Pipeline
	DB             *sql.DB
	CaptionEnabled bool
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)
	r.Use(Metrics)

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.CaptionEnabled)
	stationsHandler := handlers.NewStationsHandler(deps.Catalog, deps.Store)
	progressHandler := handlers.NewProgressHandler(deps.Catalog, deps.Store)
	visitsHandler := handlers.NewVisitsHandler(deps.Store, deps.Pipeline)
	editorHandler := handlers.NewEditorHandler(deps.Pipeline)
	memoryHandler := handlers.NewMemoryHandler(deps.Catalog, deps.Store)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Method(http.MethodGet, "/stations", stationsHandler)
		r.Method(http.MethodGet, "/progress", progressHandler)

		r.Get("/visits", visitsHandler.List)
		r.Get("/visits/{code}", visitsHandler.Get)
		r.Delete("/visits/{code}", visitsHandler.Delete)

		r.Route("/editor", func(r chi.Router) {
			r.Get("/", editorHandler.State)
			r.Post("/open", editorHandler.Open)
			r.Patch("/", editorHandler.Update)
			r.Post("/image", editorHandler.AttachImage)
			r.Post("/save", editorHandler.Save)
			r.Post("/discard", editorHandler.Discard)
		})
	})

	r.Method(http.MethodGet, "/memories/{code}", memoryHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
