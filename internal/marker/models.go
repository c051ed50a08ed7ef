package marker

import (
	"io"
	"time"
)

// Marker is a public point of interest. PhotoURLs and Reviews are never
// nil once a marker leaves this package.
type Marker struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	PhotoURLs   []string  `json:"photo_urls"`
	Reviews     []Review  `json:"reviews"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Review is append-only and owned by exactly one marker.
type Review struct {
	Text      string    `json:"text" bson:"text"`
	Name      string    `json:"name" bson:"name"`
	CreatedAt time.Time `json:"created_at" bson:"createdAt"`
}

// NewMarker is the creation form.
type NewMarker struct {
	Title       string  `json:"title" form:"title"`
	Description string  `json:"description" form:"description"`
	Lat         float64 `json:"lat" form:"lat"`
	Lng         float64 `json:"lng" form:"lng"`
	Reviewer    string  `json:"reviewer" form:"reviewer"`
	ReviewText  string  `json:"review" form:"review"`
	CreatedBy   string  `json:"-" form:"-"`
}

// PhotoUpload is one selected file. Open is called once, during upload.
type PhotoUpload struct {
	Filename    string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// Event is published on the markers stream after every mutation.
type Event struct {
	Type   string `json:"type"`
	Marker Marker `json:"marker"`
}

const (
	EventCreated     = "marker.created"
	EventReviewAdded = "review.added"
	EventPhotosAdded = "photos.added"

	AnonymousName = "Anonymous"
	StreamTopic   = "markers"
)

func normalize(m Marker) Marker {
	if m.PhotoURLs == nil {
		m.PhotoURLs = []string{}
	}
	if m.Reviews == nil {
		m.Reviews = []Review{}
	}
	return m
}
