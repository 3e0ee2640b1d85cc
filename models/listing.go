package models

import (
	"time"
)

// RawRecord is a listing document as returned by the remote store.
// Field names and value types are not guaranteed.
type RawRecord map[string]any

// Coordinate is a WGS84 point
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether c is within the WGS84 range.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// MapBounds is a viewport or user-drawn rectangle.
// NorthEast must not be south or west of SouthWest.
type MapBounds struct {
	NorthEast Coordinate `json:"northEast"`
	SouthWest Coordinate `json:"southWest"`
}

// Region is what the map host animates to
type Region struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	LatitudeDelta  float64 `json:"latitudeDelta"`
	LongitudeDelta float64 `json:"longitudeDelta"`
}

// Listing is a normalized rental listing. It is not modified after
// normalization; query-scoped fields such as Distance live on copies.
type Listing struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Address     string    `json:"address" db:"address"`
	City        string    `json:"city" db:"city"`
	Price       float64   `json:"price" db:"price"`
	Latitude    *float64  `json:"latitude" db:"latitude"`
	Longitude   *float64  `json:"longitude" db:"longitude"`
	Images      []string  `json:"images" db:"images"`
	Type        string    `json:"type" db:"type"`
	Size        *float64  `json:"size,omitempty" db:"size"`
	Rooms       *int      `json:"rooms,omitempty" db:"rooms"`
	Bathrooms   *int      `json:"bathrooms,omitempty" db:"bathrooms"`
	Months      *int      `json:"months,omitempty" db:"months"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
	Available   bool      `json:"available" db:"available"`

	// Distance in km from the reference coordinate of the current query.
	Distance *float64 `json:"distance,omitempty" db:"-"`
}

// Coordinate returns the listing position and whether it is usable for
// geo filtering and marker rendering.
func (l *Listing) Coordinate() (Coordinate, bool) {
	if l.Latitude == nil || l.Longitude == nil {
		return Coordinate{}, false
	}
	c := Coordinate{Lat: *l.Latitude, Lng: *l.Longitude}
	if !c.Valid() {
		return Coordinate{}, false
	}
	return c, true
}

// Listing types seen in the collection. The set is open-ended.
const (
	ListingTypeApartment = "apartment"
	ListingTypeRoom      = "room"
	ListingTypeStudio    = "studio"
	ListingTypeHouse     = "house"
	ListingTypeLoft      = "loft"
)
