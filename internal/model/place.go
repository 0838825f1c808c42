// Package model holds the records that flow through a partner search run.
package model

// PlaceRecord is one business as returned by the places provider. It is
// read-only once received.
type PlaceRecord struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name"`
	Address                string   `json:"address"`
	Phone                  string   `json:"phone,omitempty"`
	Website                string   `json:"website,omitempty"`
	MapsURL                string   `json:"maps_url,omitempty"`
	Types                  []string `json:"types,omitempty"`
	PrimaryType            string   `json:"primary_type,omitempty"`
	PrimaryTypeDisplayName string   `json:"primary_type_display_name,omitempty"`
	Location               Location `json:"location"`
	Rating                 *float64 `json:"rating,omitempty"`
	RatingCount            *int     `json:"rating_count,omitempty"`
}

// Location is a WGS84 coordinate.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ResolvedLocation is the starting point of a run.
type ResolvedLocation struct {
	Location
	FormattedAddress string `json:"formatted_address"`
}

// LocationRef identifies the starting point of a search, either by provider
// place identifier or by free-text address. PlaceID wins when both are set.
type LocationRef struct {
	PlaceID string `json:"place_id,omitempty"`
	Address string `json:"address,omitempty"`
}

// IsZero reports whether neither field is set.
func (r LocationRef) IsZero() bool {
	return r.PlaceID == "" && r.Address == ""
}

func (r LocationRef) String() string {
	if r.PlaceID != "" {
		return "place:" + r.PlaceID
	}
	return r.Address
}
