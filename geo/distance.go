// Package geo holds the coordinate math used by filtering and the map:
// great-circle distance, box containment, fitting and clustering.
package geo

import (
	"math"

	golanggeo "github.com/kellydunn/golang-geo"

	"rentscout/models"
)

// MissingDistance is reported when either side of a distance query has no
// usable coordinate. It sorts after every real distance and fails every
// radius check.
const MissingDistance = 1e9

// DistanceKm returns the haversine distance between a and b in kilometers,
// rounded to one decimal.
func DistanceKm(a, b *models.Coordinate) float64 {
	if a == nil || b == nil || !a.Valid() || !b.Valid() {
		return MissingDistance
	}

	// Always evaluate with the same operand order so that
	// DistanceKm(a, b) and DistanceKm(b, a) are bit-identical.
	p, q := *a, *b
	if q.Lat < p.Lat || (q.Lat == p.Lat && q.Lng < p.Lng) {
		p, q = q, p
	}

	km := golanggeo.NewPoint(p.Lat, p.Lng).GreatCircleDistance(golanggeo.NewPoint(q.Lat, q.Lng))
	return math.Round(km*10) / 10
}

// ListingDistance is DistanceKm from ref to the listing position.
func ListingDistance(ref *models.Coordinate, l *models.Listing) float64 {
	c, ok := l.Coordinate()
	if !ok {
		return MissingDistance
	}
	return DistanceKm(ref, &c)
}

// ValidCoordinate reports whether c is present and within WGS84 range.
func ValidCoordinate(c *models.Coordinate) bool {
	return c != nil && c.Valid()
}
