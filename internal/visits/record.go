package visits

import (
	"encoding/base64"
	"fmt"
	"time"
)

// Image reference kinds. A local reference holds the selected file inline as
// a data URL so the client can display it before any upload completes; a
// remote reference holds the durable URL returned by the upload service.
const (
	ImageKindLocal  = "local"
	ImageKindRemote = "remote"
)

// ImageRef points at the photo attached to a visit record.
type ImageRef struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

// NewLocalImage builds a local, directly-displayable image reference for the
// given file bytes.
func NewLocalImage(data []byte, mime string) *ImageRef {
	return &ImageRef{
		Kind: ImageKindLocal,
		URL:  fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)),
	}
}

// NewRemoteImage builds a remote image reference from a durable URL.
func NewRemoteImage(url string) *ImageRef {
	return &ImageRef{Kind: ImageKindRemote, URL: url}
}

// Record is one user memory attached to exactly one station.
// StationCode identifies the record; the remaining fields are user content.
type Record struct {
	StationCode string    `json:"stationCode"`
	VisitedDate string    `json:"visitedDate"` // YYYY-MM-DD
	Image       *ImageRef `json:"image,omitempty"`
	Caption     string    `json:"caption,omitempty"`
	Highlights  string    `json:"highlights,omitempty"`
	GoodFood    string    `json:"goodFood,omitempty"`
}

// NewRecord creates a fresh record for a station with the visited date
// defaulted to today and all optional fields absent.
func NewRecord(stationCode string, now time.Time) Record {
	return Record{
		StationCode: stationCode,
		VisitedDate: now.Format("2006-01-02"),
	}
}

// Clone returns a deep copy of the record. Drafts are always clones of
// stored records so that editing never mutates the store's copy in place.
func (r Record) Clone() Record {
	out := r
	if r.Image != nil {
		img := *r.Image
		out.Image = &img
	}
	return out
}
