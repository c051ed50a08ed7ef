package marker

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("marker not found")

// Store is the document persistence contract: create, field-level
// append, single fetch and full-collection fetch.
type Store interface {
	Create(ctx context.Context, m Marker) (Marker, error)
	Get(ctx context.Context, id string) (Marker, error)
	List(ctx context.Context) ([]Marker, error)
	AppendReview(ctx context.Context, id string, r Review) error
	AppendPhotoURLs(ctx context.Context, id string, urls []string) error
}
