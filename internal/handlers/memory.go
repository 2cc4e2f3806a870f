package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"stationlog/internal/catalog"
	"stationlog/internal/contextutil"
	"stationlog/internal/visits"
)

// MemoryHandler serves a committed visit record as a rendered HTML memory
// page. The highlights and good-food notes are treated as Markdown.
type MemoryHandler struct {
	cat      *catalog.Catalog
	store    *visits.Store
	parser   goldmark.Markdown
	template *template.Template
}

// memoryPageData holds template data for rendered memory pages.
type memoryPageData struct {
	StationName string
	StationCode string
	VisitedDate string
	Caption     string
	ImageURL    string
	Highlights  template.HTML
	GoodFood    template.HTML
}

// NewMemoryHandler creates a new handler for serving memory pages.
func NewMemoryHandler(cat *catalog.Catalog, store *visits.Store) *MemoryHandler {
	tmpl := template.Must(template.New("memory").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.StationName}} ({{.StationCode}})</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
      margin: 0 auto;
      padding: 2rem;
      max-width: 720px;
      line-height: 1.7;
    }
    header {
      margin-bottom: 1.5rem;
      border-bottom: 1px solid #ddd;
      padding-bottom: 1rem;
    }
    h1 {
      margin: 0;
      font-size: 1.6rem;
    }
    .meta {
      color: #667;
      font-size: 0.95rem;
      margin-top: 0.25rem;
    }
    figure {
      margin: 0 0 1.5rem 0;
    }
    figure img {
      max-width: 100%;
      border-radius: 10px;
    }
    figcaption {
      color: #556;
      font-style: italic;
      margin-top: 0.5rem;
    }
    section h2 {
      font-size: 1.1rem;
      margin-bottom: 0.25rem;
    }
  </style>
</head>
<body>
  <header>
    <h1>{{.StationName}}</h1>
    <p class="meta">{{.StationCode}} &middot; visited {{.VisitedDate}}</p>
  </header>
  {{if .ImageURL}}<figure>
    <img src="{{.ImageURL}}" alt="Photo from {{.StationName}}">
    {{if .Caption}}<figcaption>{{.Caption}}</figcaption>{{end}}
  </figure>{{end}}
  {{if .Highlights}}<section><h2>Highlights</h2>{{.Highlights}}</section>{{end}}
  {{if .GoodFood}}<section><h2>Good food</h2>{{.GoodFood}}</section>{{end}}
</body>
</html>`))

	return &MemoryHandler{
		cat:   cat,
		store: store,
		parser: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Linkify,
				extension.Typographer,
			),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
		template: tmpl,
	}
}

// ServeHTTP renders the memory page for one station.
func (h *MemoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	code := chi.URLParam(r, "code")
	rec, ok := h.store.Get(code)
	if !ok {
		http.Error(w, "no memory for this station", http.StatusNotFound)
		return
	}

	station, ok := h.cat.StationByCode(code)
	if !ok {
		// Records never fabricate codes, but a stale snapshot may predate
		// a catalog change.
		station = catalog.Station{Code: code, Name: code}
	}

	highlights, err := h.renderMarkdown([]byte(rec.Highlights))
	if err != nil {
		logger.ErrorContext(ctx, "failed to render highlights", "station", code, "error", err)
		http.Error(w, "failed to render memory", http.StatusInternalServerError)
		return
	}
	goodFood, err := h.renderMarkdown([]byte(rec.GoodFood))
	if err != nil {
		logger.ErrorContext(ctx, "failed to render good food notes", "station", code, "error", err)
		http.Error(w, "failed to render memory", http.StatusInternalServerError)
		return
	}

	imageURL := ""
	if rec.Image != nil {
		imageURL = rec.Image.URL
	}

	pageData := memoryPageData{
		StationName: station.Name,
		StationCode: station.Code,
		VisitedDate: rec.VisitedDate,
		Caption:     rec.Caption,
		ImageURL:    imageURL,
		Highlights:  template.HTML(highlights),
		GoodFood:    template.HTML(goodFood),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.template.Execute(w, pageData); err != nil {
		logger.ErrorContext(ctx, "failed to execute memory template", "station", code, "error", err)
	}
}

func (h *MemoryHandler) renderMarkdown(content []byte) (string, error) {
	if len(content) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	if err := h.parser.Convert(content, &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}
