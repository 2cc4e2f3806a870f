package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"stationlog/internal/contextutil"
	"stationlog/internal/pipeline"
)

// maxImageBytes bounds the accepted image size (8 MiB).
const maxImageBytes = 8 << 20

// EditorHandler exposes the entry pipeline over HTTP: one draft at a time,
// opened, edited, saved or discarded.
type EditorHandler struct {
	pipe *pipeline.Pipeline
}

// NewEditorHandler creates a new EditorHandler.
func NewEditorHandler(pipe *pipeline.Pipeline) *EditorHandler {
	return &EditorHandler{pipe: pipe}
}

// OpenRequest represents the HTTP request payload for opening a draft.
type OpenRequest struct {
	StationCode string `json:"stationCode"`
}

// UpdateRequest represents the HTTP request payload for draft field edits.
// Absent fields are left unchanged.
type UpdateRequest struct {
	VisitedDate *string `json:"visitedDate"`
	Caption     *string `json:"caption"`
	Highlights  *string `json:"highlights"`
	GoodFood    *string `json:"goodFood"`
}

// Open starts editing a station.
func (h *EditorHandler) Open(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	state, err := h.pipe.Open(req.StationCode)
	if err != nil {
		h.handlePipelineError(w, r, err, "Failed to open draft")
		return
	}

	writeJSON(ctx, w, http.StatusOK, state)
}

// State returns the current editor state.
func (h *EditorHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, h.pipe.State())
}

// Update applies field edits to the open draft.
func (h *EditorHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	state, err := h.pipe.Update(pipeline.FieldEdits{
		VisitedDate: req.VisitedDate,
		Caption:     req.Caption,
		Highlights:  req.Highlights,
		GoodFood:    req.GoodFood,
	})
	if err != nil {
		h.handlePipelineError(w, r, err, "Failed to update draft")
		return
	}

	writeJSON(ctx, w, http.StatusOK, state)
}

// AttachImage accepts a multipart image upload for the open draft. The
// response carries the local preview reference; upload and captioning
// continue in the background.
func (h *EditorHandler) AttachImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		logger.WarnContext(ctx, "invalid multipart body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, "Missing file part")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		logger.ErrorContext(ctx, "failed to read image", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "Failed to read image")
		return
	}
	if len(data) > maxImageBytes {
		writeError(ctx, w, http.StatusRequestEntityTooLarge, "Image too large")
		return
	}

	mime := header.Header.Get("Content-Type")
	if mime == "" {
		mime = "application/octet-stream"
	}

	state, err := h.pipe.AttachImage(ctx, data, mime)
	if err != nil {
		h.handlePipelineError(w, r, err, "Failed to attach image")
		return
	}

	writeJSON(ctx, w, http.StatusAccepted, state)
}

// Save commits the open draft.
func (h *EditorHandler) Save(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rec, err := h.pipe.Save(ctx)
	if err != nil {
		h.handlePipelineError(w, r, err, "Failed to save visit")
		return
	}

	writeJSON(ctx, w, http.StatusOK, rec)
}

// Discard drops the open draft without saving.
func (h *EditorHandler) Discard(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, h.pipe.Discard())
}

// handlePipelineError maps pipeline errors to HTTP status codes.
func (h *EditorHandler) handlePipelineError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var validationErr *pipeline.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(ctx, w, http.StatusBadRequest, "Validation error: "+validationErr.Error())
	case errors.Is(err, pipeline.ErrUnknownStation):
		writeError(ctx, w, http.StatusNotFound, "Unknown station")
	case errors.Is(err, pipeline.ErrNoDraft):
		writeError(ctx, w, http.StatusConflict, "No draft open")
	default:
		logger.ErrorContext(ctx, "pipeline error", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, defaultMsg)
	}
}
