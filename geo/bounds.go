package geo

import (
	"math"

	"rentscout/models"
)

// Padding applied by FitRegion on each axis
const FitPadding = 1.1

// MinRegionDelta keeps a fitted or zoomed region from collapsing to a point.
const MinRegionDelta = 0.002

// WithinBounds reports whether p lies inside b, edges included.
// An inverted box is not corrected and contains nothing.
func WithinBounds(p models.Coordinate, b models.MapBounds) bool {
	return b.SouthWest.Lat <= p.Lat && p.Lat <= b.NorthEast.Lat &&
		b.SouthWest.Lng <= p.Lng && p.Lng <= b.NorthEast.Lng
}

// ValidBounds reports whether b is a non-inverted box with valid corners.
func ValidBounds(b models.MapBounds) bool {
	return b.NorthEast.Valid() && b.SouthWest.Valid() &&
		b.NorthEast.Lat >= b.SouthWest.Lat && b.NorthEast.Lng >= b.SouthWest.Lng
}

// Coordinates returns the usable positions of listings, skipping the rest.
func Coordinates(listings []models.Listing) []models.Coordinate {
	pts := make([]models.Coordinate, 0, len(listings))
	for i := range listings {
		if c, ok := listings[i].Coordinate(); ok {
			pts = append(pts, c)
		}
	}
	return pts
}

// BoundsOf returns the smallest box covering pts.
func BoundsOf(pts []models.Coordinate) (models.MapBounds, bool) {
	if len(pts) == 0 {
		return models.MapBounds{}, false
	}

	b := models.MapBounds{NorthEast: pts[0], SouthWest: pts[0]}
	for _, p := range pts[1:] {
		b.NorthEast.Lat = math.Max(b.NorthEast.Lat, p.Lat)
		b.NorthEast.Lng = math.Max(b.NorthEast.Lng, p.Lng)
		b.SouthWest.Lat = math.Min(b.SouthWest.Lat, p.Lat)
		b.SouthWest.Lng = math.Min(b.SouthWest.Lng, p.Lng)
	}
	return b, true
}

// FitRegion returns a region centered on pts whose deltas are the span of
// pts scaled by FitPadding. Nil when pts is empty.
func FitRegion(pts []models.Coordinate) *models.Region {
	b, ok := BoundsOf(pts)
	if !ok {
		return nil
	}

	r := BoundsRegion(b)
	r.LatitudeDelta = math.Max(r.LatitudeDelta*FitPadding, MinRegionDelta)
	r.LongitudeDelta = math.Max(r.LongitudeDelta*FitPadding, MinRegionDelta)
	return &r
}

// BoundsRegion converts a box to the center/delta form.
func BoundsRegion(b models.MapBounds) models.Region {
	return models.Region{
		Latitude:       (b.NorthEast.Lat + b.SouthWest.Lat) / 2,
		Longitude:      (b.NorthEast.Lng + b.SouthWest.Lng) / 2,
		LatitudeDelta:  b.NorthEast.Lat - b.SouthWest.Lat,
		LongitudeDelta: b.NorthEast.Lng - b.SouthWest.Lng,
	}
}

// RegionBounds converts a center/delta region to a box.
func RegionBounds(r models.Region) models.MapBounds {
	halfLat, halfLng := r.LatitudeDelta/2, r.LongitudeDelta/2
	return models.MapBounds{
		NorthEast: models.Coordinate{Lat: r.Latitude + halfLat, Lng: r.Longitude + halfLng},
		SouthWest: models.Coordinate{Lat: r.Latitude - halfLat, Lng: r.Longitude - halfLng},
	}
}
