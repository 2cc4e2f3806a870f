package pipeline

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_collaborators.go -package=mocks stationlog/internal/pipeline Uploader,Generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"stationlog/internal/catalog"
	"stationlog/internal/contextutil"
	"stationlog/internal/visits"
)

var (
	// ErrNoDraft is returned when an editor operation is invoked with no
	// draft open.
	ErrNoDraft = errors.New("no draft open")
	// ErrUnknownStation is returned when opening a draft for a code the
	// catalog does not know.
	ErrUnknownStation = errors.New("unknown station")
)

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

var (
	uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stationlog_uploads_total",
		Help: "Image upload attempts by outcome",
	}, []string{"outcome"})
	captionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stationlog_captions_total",
		Help: "Caption generation attempts by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(uploadsTotal, captionsTotal)
}

// PromptForStation returns the fixed caption prompt parameterized by the
// station's display name.
func PromptForStation(stationName string) string {
	return fmt.Sprintf(
		"Write one short, warm caption (under 20 words) for a photo taken on a visit to %s station. Reply with the caption only.",
		stationName,
	)
}

// Uploader is the remote image uploader contract consumed by the pipeline.
type Uploader interface {
	// Upload stores raw image bytes remotely and returns a durable URL.
	Upload(ctx context.Context, data []byte, mime string) (string, error)
}

// Generator is the caption generator contract consumed by the pipeline.
type Generator interface {
	// Generate produces caption text for the given image and prompt.
	Generate(ctx context.Context, data []byte, mime, prompt string) (string, error)
}

// FieldEdits carries user edits to draft fields; nil means "not edited".
type FieldEdits struct {
	VisitedDate *string
	Caption     *string
	Highlights  *string
	GoodFood    *string
}

// State is a snapshot of the editor for presentation.
type State struct {
	Open         bool          `json:"open"`
	StationName  string        `json:"stationName,omitempty"`
	Draft        visits.Record `json:"draft,omitzero"`
	Uploading    bool          `json:"uploading"`
	UploadFailed bool          `json:"uploadFailed"`
	Captioning   bool          `json:"captioning"`
}

// session is the transient state of one edit. A new session (or a new image
// attachment within a session) invalidates results from earlier async
// requests: each request carries the session id and the attachment
// generation it was issued for, and a result is applied only if both still
// match when it arrives.
type session struct {
	id            uuid.UUID
	station       catalog.Station
	draft         visits.Record
	attachGen     int
	captionEdited bool // user typed a caption since the current attachment
	uploading     bool
	uploadFailed  bool
	captioning    bool
}

// Pipeline drives one station draft from "opened for edit" to "committed".
// It owns at most one session at a time; all mutations happen under one
// lock, and the async upload/caption goroutines re-enter under that lock to
// apply their results.
type Pipeline struct {
	store     *visits.Store
	cat       *catalog.Catalog
	uploader  Uploader
	generator Generator // nil when the caption capability is not configured
	logger    *slog.Logger

	mu   sync.Mutex
	wg   sync.WaitGroup
	sess *session

	now func() time.Time
}

// New creates a new entry pipeline. generator may be nil, which disables
// caption generation silently.
func New(store *visits.Store, cat *catalog.Catalog, up Uploader, gen Generator) *Pipeline {
	return &Pipeline{
		store:     store,
		cat:       cat,
		uploader:  up,
		generator: gen,
		logger:    slog.Default(),
		now:       time.Now,
	}
}

// Open starts editing the given station. The draft is a copy of the stored
// record if one exists, otherwise a fresh record dated today. Any previous
// draft is discarded without confirmation; its in-flight results become
// stale and will be dropped on arrival.
func (p *Pipeline) Open(stationCode string) (State, error) {
	station, ok := p.cat.StationByCode(stationCode)
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrUnknownStation, stationCode)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	draft, ok := p.store.Get(stationCode)
	if !ok {
		draft = visits.NewRecord(stationCode, p.now())
	}

	p.sess = &session{
		id:      uuid.New(),
		station: station,
		draft:   draft,
	}
	return p.stateLocked(), nil
}

// Update applies user edits to the open draft. A caption edit marks the
// field user-owned, so a slower generation result will not overwrite it.
func (p *Pipeline) Update(edits FieldEdits) (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sess == nil {
		return State{}, ErrNoDraft
	}

	if edits.VisitedDate != nil {
		if _, err := time.Parse("2006-01-02", *edits.VisitedDate); err != nil {
			return State{}, &ValidationError{Field: "visitedDate", Message: "must be YYYY-MM-DD"}
		}
		p.sess.draft.VisitedDate = *edits.VisitedDate
	}
	if edits.Caption != nil {
		p.sess.draft.Caption = *edits.Caption
		p.sess.captionEdited = true
	}
	if edits.Highlights != nil {
		p.sess.draft.Highlights = *edits.Highlights
	}
	if edits.GoodFood != nil {
		p.sess.draft.GoodFood = *edits.GoodFood
	}
	return p.stateLocked(), nil
}

// AttachImage records the selected image on the draft and starts the upload
// and caption steps. The draft's image reference is set to a local,
// directly-displayable representation before this method returns; the
// upload and captioning run concurrently and independently afterwards. A
// new selection supersedes any still-in-flight work for the previous one.
func (p *Pipeline) AttachImage(ctx context.Context, data []byte, mime string) (State, error) {
	logger := contextutil.LoggerFromContext(ctx)

	p.mu.Lock()
	if p.sess == nil {
		p.mu.Unlock()
		return State{}, ErrNoDraft
	}
	if len(data) == 0 {
		p.mu.Unlock()
		return State{}, &ValidationError{Field: "file", Message: "image is empty"}
	}

	p.sess.draft.Image = visits.NewLocalImage(data, mime)
	p.sess.attachGen++
	p.sess.captionEdited = false
	p.sess.uploading = true
	p.sess.uploadFailed = false
	p.sess.captioning = p.generator != nil

	sid := p.sess.id
	gen := p.sess.attachGen
	stationName := p.sess.station.Name
	state := p.stateLocked()
	p.mu.Unlock()

	// The async steps outlive the HTTP request that attached the image.
	bg := context.WithoutCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		url, err := p.uploader.Upload(bg, data, mime)
		p.applyUpload(bg, sid, gen, url, err)
	}()

	if p.generator != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			// Captioning consumes the originally selected file, not the
			// uploaded copy, so it never waits on the upload.
			text, err := p.generator.Generate(bg, data, mime, PromptForStation(stationName))
			p.applyCaption(bg, sid, gen, text, err)
		}()
	}

	logger.InfoContext(ctx, "image attached", "station", state.Draft.StationCode, "bytes", len(data), "captioning", p.generator != nil)
	return state, nil
}

// applyUpload delivers an upload result to the draft it was issued for.
// Results for a discarded or superseded draft are dropped; that is expected
// behavior, not a fault.
func (p *Pipeline) applyUpload(ctx context.Context, sid uuid.UUID, gen int, url string, err error) {
	logger := contextutil.LoggerFromContext(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sess == nil || p.sess.id != sid || p.sess.attachGen != gen {
		uploadsTotal.WithLabelValues("stale").Inc()
		logger.DebugContext(ctx, "stale upload result dropped")
		return
	}

	p.sess.uploading = false
	if err != nil {
		// Keep the local representation so the user does not lose the
		// visual attachment; the draft stays saveable regardless.
		p.sess.uploadFailed = true
		uploadsTotal.WithLabelValues("failed").Inc()
		logger.WarnContext(ctx, "image upload failed", "station", p.sess.draft.StationCode, "error", err)
		return
	}

	p.sess.draft.Image = visits.NewRemoteImage(url)
	uploadsTotal.WithLabelValues("ok").Inc()
	logger.InfoContext(ctx, "image uploaded", "station", p.sess.draft.StationCode, "url", url)
}

// applyCaption delivers a generation result to the draft it was issued for.
// The user's own caption always wins over a slower background result.
func (p *Pipeline) applyCaption(ctx context.Context, sid uuid.UUID, gen int, text string, err error) {
	logger := contextutil.LoggerFromContext(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sess == nil || p.sess.id != sid || p.sess.attachGen != gen {
		captionsTotal.WithLabelValues("stale").Inc()
		logger.DebugContext(ctx, "stale caption result dropped")
		return
	}

	p.sess.captioning = false
	if err != nil {
		// Best-effort enhancement: leave the caption exactly as it was.
		captionsTotal.WithLabelValues("failed").Inc()
		logger.InfoContext(ctx, "caption generation failed", "station", p.sess.draft.StationCode, "error", err)
		return
	}
	if p.sess.captionEdited {
		captionsTotal.WithLabelValues("stale").Inc()
		logger.DebugContext(ctx, "generated caption dropped, user already typed one")
		return
	}

	p.sess.draft.Caption = text
	captionsTotal.WithLabelValues("ok").Inc()
	logger.InfoContext(ctx, "caption generated", "station", p.sess.draft.StationCode)
}

// Save commits the current draft into the store and closes the editor.
// Saving is permitted while an upload is still in flight; the record is
// committed with whatever image reference the draft currently holds, and a
// later upload result for the closed session is dropped rather than patched
// into the committed record.
func (p *Pipeline) Save(ctx context.Context) (visits.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sess == nil {
		return visits.Record{}, ErrNoDraft
	}

	rec := p.sess.draft.Clone()
	if err := p.store.Commit(ctx, rec); err != nil {
		return visits.Record{}, err
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "visit saved", "station", rec.StationCode)
	p.sess = nil
	return rec, nil
}

// Discard drops the current draft, if any. In-flight results for it are
// ignored when they arrive.
func (p *Pipeline) Discard() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sess = nil
	return p.stateLocked()
}

// Delete removes a committed record, independent of draft edits, and closes
// the editor if it was open on that station.
func (p *Pipeline) Delete(ctx context.Context, stationCode string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.Remove(ctx, stationCode); err != nil {
		return err
	}
	if p.sess != nil && p.sess.draft.StationCode == stationCode {
		p.sess = nil
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "visit deleted", "station", stationCode)
	return nil
}

// State returns a snapshot of the editor.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

// Wait blocks until all in-flight upload and caption work has finished.
// Used at shutdown so background goroutines drain before the process exits.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// stateLocked builds a State snapshot. Callers hold p.mu.
func (p *Pipeline) stateLocked() State {
	if p.sess == nil {
		return State{}
	}
	return State{
		Open:         true,
		StationName:  p.sess.station.Name,
		Draft:        p.sess.draft.Clone(),
		Uploading:    p.sess.uploading,
		UploadFailed: p.sess.uploadFailed,
		Captioning:   p.sess.captioning,
	}
}
