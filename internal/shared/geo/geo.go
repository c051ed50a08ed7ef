package geo

import (
	"fmt"
	"math"
)

const earthRadiusKm = 6371.0

// LatLng is a WGS84 coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds is an axis-aligned lat/lng box. It does not cross the antimeridian.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Newfoundland and Labrador.
var (
	NLBounds = Bounds{South: 46.5, West: -59.5, North: 51.2, East: -52.2}

	// StJohns is the default map centre.
	StJohns = LatLng{Lat: 47.5615, Lng: -52.7126}
)

const (
	DefaultZoom      = 11
	SearchResultZoom = 16
)

func (b Bounds) Contains(p LatLng) bool {
	return p.Lat >= b.South && p.Lat <= b.North && p.Lng >= b.West && p.Lng <= b.East
}

// Clamp pulls p onto the nearest point inside b.
func (b Bounds) Clamp(p LatLng) LatLng {
	return LatLng{
		Lat: math.Min(math.Max(p.Lat, b.South), b.North),
		Lng: math.Min(math.Max(p.Lng, b.West), b.East),
	}
}

// Valid reports whether b is a non-empty box with in-range coordinates.
func (b Bounds) Valid() bool {
	return b.South < b.North && b.West < b.East &&
		b.South >= -90 && b.North <= 90 && b.West >= -180 && b.East <= 180
}

// Viewbox renders b in the "west,north,east,south" order used by Nominatim.
func (b Bounds) Viewbox() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.West, b.North, b.East, b.South)
}

func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
