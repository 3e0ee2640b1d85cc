package models

// SortKey selects the ordering of a result set
type SortKey string

const (
	SortPriceAsc  SortKey = "price_asc"
	SortPriceDesc SortKey = "price_desc"
	SortDateDesc  SortKey = "date_desc"
	SortDistance  SortKey = "distance"
)

// Valid reports whether k is a known key. The empty key is valid and
// means the default ordering.
func (k SortKey) Valid() bool {
	switch k {
	case "", SortPriceAsc, SortPriceDesc, SortDateDesc, SortDistance:
		return true
	}
	return false
}

// FilterCriteria is one query against the base listing set. Zero values
// and nil pointers mean "no constraint".
type FilterCriteria struct {
	Query          string     `json:"query,omitempty"`
	Types          []string   `json:"types,omitempty"`
	PriceMin       *float64   `json:"priceMin,omitempty"`
	PriceMax       *float64   `json:"priceMax,omitempty"`
	MinMonths      *int       `json:"minMonths,omitempty"`
	MinSize        *float64   `json:"minSize,omitempty"`
	RecentOnly     bool       `json:"recentOnly,omitempty"`
	Bounds         *MapBounds `json:"bounds,omitempty"`
	SortBy         SortKey    `json:"sortBy,omitempty"`
	SortByDistance bool       `json:"sortByDistance,omitempty"`
	NearbyRadiusKm *float64   `json:"nearbyRadiusKm,omitempty"`
}

// WithBounds returns a copy of c with the bounding box replaced.
func (c FilterCriteria) WithBounds(b *MapBounds) FilterCriteria {
	c.Bounds = b
	return c
}
