package mapview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend-nlmap/internal/geocode"
	"backend-nlmap/internal/logging"
	"backend-nlmap/internal/marker"
	"backend-nlmap/internal/shared/geo"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrGeocoder = errors.New("geocoder unavailable")

type Geocoder interface {
	Lookup(ctx context.Context, query string) (geocode.Place, error)
}

type MarkerLister interface {
	List(ctx context.Context) ([]marker.Marker, error)
}

type Service struct {
	store    SessionStore
	geocoder Geocoder
	markers  MarkerLister
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(store SessionStore, geocoder Geocoder, markers MarkerLister, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		geocoder: geocoder,
		markers:  markers,
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
}

func (s *Service) CreateSession(ctx context.Context) (Session, error) {
	sess := NewSession(uuid.NewString())
	sess.UpdatedAt = s.now()
	if err := s.store.Save(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *Service) Session(ctx context.Context, id string) (Session, error) {
	return s.store.Load(ctx, id)
}

func (s *Service) TogglePlacing(ctx context.Context, id string) (Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		sess.TogglePlacing()
		return nil
	})
}

func (s *Service) Click(ctx context.Context, id string, p geo.LatLng) (Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		_, err := sess.Click(p)
		return err
	})
}

func (s *Service) SelectPlace(ctx context.Context, id string, place geocode.Place) (Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		return sess.SelectPlace(place)
	})
}

// Search resolves query to its single best match and selects it. When
// nothing matches the session is left as it was.
func (s *Service) Search(ctx context.Context, id, query string) (Session, error) {
	if _, err := s.store.Load(ctx, id); err != nil {
		return Session{}, err
	}
	place, err := s.geocoder.Lookup(ctx, query)
	if errors.Is(err, geocode.ErrNoMatch) {
		return Session{}, err
	}
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrGeocoder, err)
	}
	s.logger.Debug("search selected place", zap.String("session_id", id), zap.String("label", place.Label))
	return s.SelectPlace(ctx, id, place)
}

func (s *Service) Move(ctx context.Context, id string, center geo.LatLng, zoom int) (Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		sess.Move(center, zoom)
		return nil
	})
}

func (s *Service) Reset(ctx context.Context, id string) (Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		sess.Reset()
		return nil
	})
}

func (s *Service) CancelDraft(ctx context.Context, id string) (Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		sess.CancelDraft()
		return nil
	})
}

func (s *Service) Clusters(ctx context.Context, zoom int, within *geo.Bounds) ([]Cluster, error) {
	markers, err := s.markers.List(ctx)
	if err != nil {
		return nil, err
	}
	return ClusterMarkers(markers, zoom, within), nil
}

func (s *Service) update(ctx context.Context, id string, apply func(*Session) error) (Session, error) {
	sess, err := s.store.Load(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if err := apply(&sess); err != nil {
		return Session{}, err
	}
	sess.UpdatedAt = s.now()
	if err := s.store.Save(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}
