package marker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"backend-nlmap/internal/logging"
	"backend-nlmap/internal/shared/geo"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrTitleRequired      = errors.New("title required")
	ErrReviewTextRequired = errors.New("review text required")
	ErrPhotosRequired     = errors.New("at least one photo required")
	ErrOutOfBounds        = errors.New("location is outside Newfoundland and Labrador")
)

// Uploader stores a blob at a path and returns a retrievable URL.
type Uploader interface {
	Put(ctx context.Context, path string, r io.Reader, contentType string) (string, error)
}

// Publisher fans marker events out to connected map clients.
type Publisher interface {
	Broadcast(topic string, payload []byte)
}

type Service struct {
	store     Store
	blobs     Uploader
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(store Store, blobs Uploader, publisher Publisher, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		blobs:     blobs,
		publisher: publisher,
		logger:    logging.OrNop(logger),
		now:       time.Now,
	}
}

func (s *Service) List(ctx context.Context) ([]Marker, error) {
	return s.store.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (Marker, error) {
	return s.store.Get(ctx, id)
}

// CreateMarker persists the marker document, then uploads photos under the
// new document's id, then appends their URLs. A failed upload leaves the
// document in place without photos.
func (s *Service) CreateMarker(ctx context.Context, in NewMarker, photos []PhotoUpload) (Marker, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Marker{}, ErrTitleRequired
	}
	if !geo.NLBounds.Contains(geo.LatLng{Lat: in.Lat, Lng: in.Lng}) {
		return Marker{}, ErrOutOfBounds
	}

	m := Marker{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Lat:         in.Lat,
		Lng:         in.Lng,
		CreatedBy:   in.CreatedBy,
		PhotoURLs:   []string{},
		Reviews:     []Review{},
	}
	if text := strings.TrimSpace(in.ReviewText); text != "" {
		m.Reviews = append(m.Reviews, Review{
			Text:      text,
			Name:      reviewerName(in.Reviewer),
			CreatedAt: s.now().UTC(),
		})
	}

	created, err := s.store.Create(ctx, m)
	if err != nil {
		return Marker{}, err
	}

	if len(photos) > 0 {
		urls, err := s.uploadPhotos(ctx, created.ID, photos)
		if err != nil {
			s.logger.Warn("marker saved without photos", zap.String("marker_id", created.ID), zap.Error(err))
			return Marker{}, fmt.Errorf("upload photos: %w", err)
		}
		if err := s.store.AppendPhotoURLs(ctx, created.ID, urls); err != nil {
			return Marker{}, err
		}
	}

	return s.refetchAndPublish(ctx, created.ID, EventCreated)
}

// AddReview appends a review. Blank text is rejected before any write.
func (s *Service) AddReview(ctx context.Context, id, name, text string) (Marker, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Marker{}, ErrReviewTextRequired
	}
	review := Review{Text: text, Name: reviewerName(name), CreatedAt: s.now().UTC()}
	if err := s.store.AppendReview(ctx, id, review); err != nil {
		return Marker{}, err
	}
	return s.refetchAndPublish(ctx, id, EventReviewAdded)
}

// AddPhotos uploads more photos to an existing marker.
func (s *Service) AddPhotos(ctx context.Context, id string, photos []PhotoUpload) (Marker, error) {
	if len(photos) == 0 {
		return Marker{}, ErrPhotosRequired
	}
	if _, err := s.store.Get(ctx, id); err != nil {
		return Marker{}, err
	}
	urls, err := s.uploadPhotos(ctx, id, photos)
	if err != nil {
		return Marker{}, fmt.Errorf("upload photos: %w", err)
	}
	if err := s.store.AppendPhotoURLs(ctx, id, urls); err != nil {
		return Marker{}, err
	}
	return s.refetchAndPublish(ctx, id, EventPhotosAdded)
}

// uploadPhotos runs all uploads concurrently and returns URLs in input order.
func (s *Service) uploadPhotos(ctx context.Context, markerID string, photos []PhotoUpload) ([]string, error) {
	stamp := s.now().UnixMilli()
	urls := make([]string, len(photos))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range photos {
		i, p := i, p
		g.Go(func() error {
			rc, err := p.Open()
			if err != nil {
				return err
			}
			defer rc.Close()

			objectPath := fmt.Sprintf("%s/%s/%d-%d-%s", CollectionName, markerID, stamp, i, safeFilename(p.Filename))
			url, err := s.blobs.Put(gctx, objectPath, rc, p.ContentType)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

// refetchAndPublish returns the stored document rather than a local copy so
// callers see server-assigned timestamps.
func (s *Service) refetchAndPublish(ctx context.Context, id, eventType string) (Marker, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return Marker{}, err
	}
	if s.publisher != nil {
		payload, err := json.Marshal(Event{Type: eventType, Marker: m})
		if err == nil {
			s.publisher.Broadcast(StreamTopic, payload)
		}
	}
	return m, nil
}

func reviewerName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return AnonymousName
	}
	return name
}

func safeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, " ", "_")
	if name == "." || name == "/" || name == "" {
		return "photo"
	}
	return name
}
