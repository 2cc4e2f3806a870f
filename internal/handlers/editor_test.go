package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"stationlog/internal/catalog"
	"stationlog/internal/handlers"
	"stationlog/internal/pipeline"
	"stationlog/internal/pipeline/mocks"
	"stationlog/internal/storage"
	"stationlog/internal/visits"
)

func init() {
	// Suppress logs for cleaner test output
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type editorRig struct {
	router   chi.Router
	pipeline *pipeline.Pipeline
	store    *visits.Store
	uploader *mocks.MockUploader
}

func newEditorRig(t *testing.T, ctrl *gomock.Controller) *editorRig {
	t.Helper()

	db, err := storage.New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("storage.Migrate() error = %v", err)
	}

	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog.Load() error = %v", err)
	}

	store := visits.Load(context.Background(), storage.NewSnapshotRepo(db))
	up := mocks.NewMockUploader(ctrl)
	pipe := pipeline.New(store, cat, up, nil)

	h := handlers.NewEditorHandler(pipe)
	r := chi.NewRouter()
	r.Route("/api/editor", func(r chi.Router) {
		r.Get("/", h.State)
		r.Post("/open", h.Open)
		r.Patch("/", h.Update)
		r.Post("/image", h.AttachImage)
		r.Post("/save", h.Save)
		r.Post("/discard", h.Discard)
	})

	return &editorRig{router: r, pipeline: pipe, store: store, uploader: up}
}

func (rig *editorRig) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	rig.router.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) pipeline.State {
	t.Helper()
	var state pipeline.State
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("failed to decode state: %v", err)
	}
	return state
}

func TestEditorHandler_OpenUnknownStation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	rig := newEditorRig(t, ctrl)

	rec := rig.do(t, http.MethodPost, "/api/editor/open", `{"stationCode":"XX99"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("open unknown station status = %d, want 404", rec.Code)
	}
}

func TestEditorHandler_OpenInvalidBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	rig := newEditorRig(t, ctrl)

	rec := rig.do(t, http.MethodPost, "/api/editor/open", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("open with invalid body status = %d, want 400", rec.Code)
	}
}

func TestEditorHandler_OpenAndUpdate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	rig := newEditorRig(t, ctrl)

	rec := rig.do(t, http.MethodPost, "/api/editor/open", `{"stationCode":"EW18"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("open status = %d, want 200", rec.Code)
	}
	state := decodeState(t, rec)
	if !state.Open || state.StationName != "Redhill" {
		t.Errorf("open state = %+v", state)
	}

	rec = rig.do(t, http.MethodPatch, "/api/editor/", `{"caption":"hello","goodFood":"laksa"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200", rec.Code)
	}
	state = decodeState(t, rec)
	if state.Draft.Caption != "hello" || state.Draft.GoodFood != "laksa" {
		t.Errorf("update state draft = %+v", state.Draft)
	}
}

func TestEditorHandler_UpdateBadDate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	rig := newEditorRig(t, ctrl)

	rig.do(t, http.MethodPost, "/api/editor/open", `{"stationCode":"EW18"}`)
	rec := rig.do(t, http.MethodPatch, "/api/editor/", `{"visitedDate":"18 Aug"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("update with bad date status = %d, want 400", rec.Code)
	}
}

func TestEditorHandler_UpdateWithoutDraft(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	rig := newEditorRig(t, ctrl)

	rec := rig.do(t, http.MethodPatch, "/api/editor/", `{"caption":"x"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("update without draft status = %d, want 409", rec.Code)
	}
}

func TestEditorHandler_AttachImageAndSave(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	rig := newEditorRig(t, ctrl)

	rig.uploader.EXPECT().
		Upload(gomock.Any(), []byte("jpeg bytes"), "image/jpeg").
		Return("https://img.example.com/ew18.jpg", nil)

	rig.do(t, http.MethodPost, "/api/editor/open", `{"stationCode":"EW18"}`)

	// Build a multipart body with an explicit image content type.
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="photo.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart() error = %v", err)
	}
	if _, err := part.Write([]byte("jpeg bytes")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/editor/image", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	rig.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("attach image status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	state := decodeState(t, rec)
	if state.Draft.Image == nil || state.Draft.Image.Kind != visits.ImageKindLocal {
		t.Fatalf("attach response image = %+v, want immediate local reference", state.Draft.Image)
	}

	// Saving is allowed regardless of upload progress.
	rec2 := rig.do(t, http.MethodPost, "/api/editor/save", "")
	if rec2.Code != http.StatusOK {
		t.Fatalf("save status = %d, want 200", rec2.Code)
	}
	rig.pipeline.Wait()

	if _, ok := rig.store.Get("EW18"); !ok {
		t.Error("saved record missing from store")
	}
}

func TestEditorHandler_AttachImageMissingFile(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	rig := newEditorRig(t, ctrl)

	rig.do(t, http.MethodPost, "/api/editor/open", `{"stationCode":"EW18"}`)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("note", "no file here")
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/editor/image", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	rig.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("attach without file part status = %d, want 400", rec.Code)
	}
}

func TestEditorHandler_SaveWithoutDraft(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	rig := newEditorRig(t, ctrl)

	rec := rig.do(t, http.MethodPost, "/api/editor/save", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("save without draft status = %d, want 409", rec.Code)
	}
}

func TestEditorHandler_Discard(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	rig := newEditorRig(t, ctrl)

	rig.do(t, http.MethodPost, "/api/editor/open", `{"stationCode":"EW18"}`)
	rec := rig.do(t, http.MethodPost, "/api/editor/discard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("discard status = %d, want 200", rec.Code)
	}
	state := decodeState(t, rec)
	if state.Open {
		t.Error("discard left the editor open")
	}
	if _, ok := rig.store.Get("EW18"); ok {
		t.Error("discarded draft leaked into the store")
	}
}

func TestEditorHandler_StateWhenIdle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	rig := newEditorRig(t, ctrl)

	rec := rig.do(t, http.MethodGet, "/api/editor/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("state status = %d, want 200", rec.Code)
	}
	state := decodeState(t, rec)
	if state.Open {
		t.Error("idle editor reported an open draft")
	}
}
