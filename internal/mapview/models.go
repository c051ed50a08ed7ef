package mapview

import (
	"time"

	"backend-nlmap/internal/shared/geo"
)

type View struct {
	Center geo.LatLng `json:"center"`
	Zoom   int        `json:"zoom"`
}

// Draft is a pending marker location awaiting the creation form.
type Draft struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label,omitempty"`
}

type Session struct {
	ID        string    `json:"id"`
	Placing   bool      `json:"placing"`
	View      View      `json:"view"`
	Draft     *Draft    `json:"draft"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Cluster struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Count     int      `json:"count"`
	MarkerIDs []string `json:"marker_ids"`
}

type ClickRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type SearchRequest struct {
	Query string `json:"query"`
}

type MoveRequest struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Zoom int     `json:"zoom"`
}
