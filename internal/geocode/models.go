package geocode

// Place is a geocoder candidate.
type Place struct {
	ID    int64   `json:"id"`
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

// nominatimPlace mirrors the subset of the Nominatim JSON record we read.
// Coordinates arrive as strings.
type nominatimPlace struct {
	PlaceID     int64  `json:"place_id"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}
