package mapview

import (
	"math"

	"backend-nlmap/internal/marker"
	"backend-nlmap/internal/shared/geo"
)

const (
	ClusterRadiusPx = 80.0
	tileSize        = 256.0
)

// DisableClusteringZoom is the zoom from which every marker stands alone.
const DisableClusteringZoom = 18

// ClusterMarkers groups markers that fall within ClusterRadiusPx of a
// cluster's first member in Web Mercator pixel space at zoom. Markers are
// visited in the order given. When within is non-nil, markers outside it
// are skipped. zoom is clamped to [MinZoom, MaxZoom].
func ClusterMarkers(markers []marker.Marker, zoom int, within *geo.Bounds) []Cluster {
	zoom = ClampZoom(zoom)

	type acc struct {
		x, y      float64
		sumLat    float64
		sumLng    float64
		markerIDs []string
	}

	var groups []*acc
	for _, m := range markers {
		p := geo.LatLng{Lat: m.Lat, Lng: m.Lng}
		if within != nil && !within.Contains(p) {
			continue
		}
		x, y := project(p, zoom)

		var hit *acc
		if zoom < DisableClusteringZoom {
			for _, g := range groups {
				if math.Hypot(g.x-x, g.y-y) <= ClusterRadiusPx {
					hit = g
					break
				}
			}
		}
		if hit == nil {
			hit = &acc{x: x, y: y}
			groups = append(groups, hit)
		}
		hit.sumLat += m.Lat
		hit.sumLng += m.Lng
		hit.markerIDs = append(hit.markerIDs, m.ID)
	}

	clusters := make([]Cluster, 0, len(groups))
	for _, g := range groups {
		n := float64(len(g.markerIDs))
		clusters = append(clusters, Cluster{
			Lat:       g.sumLat / n,
			Lng:       g.sumLng / n,
			Count:     len(g.markerIDs),
			MarkerIDs: g.markerIDs,
		})
	}
	return clusters
}

// project maps p to Web Mercator pixel coordinates at zoom.
func project(p geo.LatLng, zoom int) (float64, float64) {
	scale := tileSize * math.Exp2(float64(zoom))
	lat := math.Max(math.Min(p.Lat, 85.05112878), -85.05112878) * math.Pi / 180
	x := (p.Lng + 180) / 360 * scale
	y := (1 - math.Log(math.Tan(lat)+1/math.Cos(lat))/math.Pi) / 2 * scale
	return x, y
}
