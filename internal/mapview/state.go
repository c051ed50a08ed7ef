package mapview

import (
	"errors"

	"backend-nlmap/internal/geocode"
	"backend-nlmap/internal/shared/geo"
)

const (
	SearchResultLabel = "Search result"
	MinZoom           = 5
	MaxZoom           = 19
)

var ErrOutOfBounds = errors.New("location is outside Newfoundland and Labrador")

func NewSession(id string) Session {
	s := Session{ID: id}
	s.Reset()
	return s
}

func (s *Session) TogglePlacing() {
	s.Placing = !s.Placing
}

// Click drops an unlabelled draft when placing. Outside placing mode a
// click only pans, so the session is left untouched and false is returned.
func (s *Session) Click(p geo.LatLng) (bool, error) {
	if !s.Placing {
		return false, nil
	}
	if !geo.NLBounds.Contains(p) {
		return false, ErrOutOfBounds
	}
	s.Draft = &Draft{Lat: p.Lat, Lng: p.Lng}
	s.Placing = false
	return true, nil
}

// SelectPlace recentres on place. Places outside the region are rejected
// rather than clamped so a missing coordinate never seeds a draft.
func (s *Session) SelectPlace(place geocode.Place) error {
	center := geo.LatLng{Lat: place.Lat, Lng: place.Lng}
	if !geo.NLBounds.Contains(center) {
		return ErrOutOfBounds
	}
	s.View = View{Center: center, Zoom: geo.SearchResultZoom}
	if s.Placing {
		s.Draft = &Draft{Lat: center.Lat, Lng: center.Lng, Label: SearchResultLabel}
		s.Placing = false
	}
	return nil
}

func (s *Session) Move(center geo.LatLng, zoom int) {
	s.View = View{Center: geo.NLBounds.Clamp(center), Zoom: ClampZoom(zoom)}
}

func ClampZoom(zoom int) int {
	if zoom < MinZoom {
		return MinZoom
	}
	if zoom > MaxZoom {
		return MaxZoom
	}
	return zoom
}

func (s *Session) Reset() {
	s.View = View{Center: geo.StJohns, Zoom: geo.DefaultZoom}
}

func (s *Session) CancelDraft() {
	s.Draft = nil
}
