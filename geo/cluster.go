package geo

import (
	"math"
	"sort"

	"github.com/mmcloughlin/geohash"

	"rentscout/models"
)

const (
	// MaxZoomDivisor caps how far a single cluster press zooms in.
	MaxZoomDivisor = 8.0

	minClusterPrecision = 1
	maxClusterPrecision = 9

	// cells across the visible longitude span
	cellsPerViewport = 8
)

// Cluster is a group of listings sharing a geohash cell
type Cluster struct {
	Geohash    string            `json:"geohash"`
	Center     models.Coordinate `json:"center"`
	Bounds     models.MapBounds  `json:"bounds"`
	Count      int               `json:"count"`
	MinPrice   float64           `json:"minPrice"`
	MaxPrice   float64           `json:"maxPrice"`
	ListingIDs []string          `json:"listingIds"`
}

// ClusterListings groups listings with usable coordinates by geohash prefix
// of the given precision. Center is the mean position of the members.
// Clusters are ordered by size, largest first, then by geohash.
func ClusterListings(listings []models.Listing, precision uint) []Cluster {
	if precision < minClusterPrecision {
		precision = minClusterPrecision
	}
	if precision > maxClusterPrecision {
		precision = maxClusterPrecision
	}

	type acc struct {
		cluster *Cluster
		sumLat  float64
		sumLng  float64
	}
	cells := make(map[string]*acc)

	for i := range listings {
		l := &listings[i]
		c, ok := l.Coordinate()
		if !ok {
			continue
		}

		hash := geohash.EncodeWithPrecision(c.Lat, c.Lng, precision)
		a, ok := cells[hash]
		if !ok {
			box := geohash.BoundingBox(hash)
			a = &acc{cluster: &Cluster{
				Geohash: hash,
				Bounds: models.MapBounds{
					NorthEast: models.Coordinate{Lat: box.MaxLat, Lng: box.MaxLng},
					SouthWest: models.Coordinate{Lat: box.MinLat, Lng: box.MinLng},
				},
				MinPrice: l.Price,
				MaxPrice: l.Price,
			}}
			cells[hash] = a
		}

		a.sumLat += c.Lat
		a.sumLng += c.Lng
		a.cluster.Count++
		a.cluster.MinPrice = math.Min(a.cluster.MinPrice, l.Price)
		a.cluster.MaxPrice = math.Max(a.cluster.MaxPrice, l.Price)
		a.cluster.ListingIDs = append(a.cluster.ListingIDs, l.ID)
	}

	clusters := make([]Cluster, 0, len(cells))
	for _, a := range cells {
		n := float64(a.cluster.Count)
		a.cluster.Center = models.Coordinate{Lat: a.sumLat / n, Lng: a.sumLng / n}
		clusters = append(clusters, *a.cluster)
	}

	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Count != clusters[j].Count {
			return clusters[i].Count > clusters[j].Count
		}
		return clusters[i].Geohash < clusters[j].Geohash
	})
	return clusters
}

// PrecisionForDelta picks the geohash precision whose cells are at most
// 1/8 of the visible longitude span.
func PrecisionForDelta(lngDelta float64) uint {
	if lngDelta <= 0 || math.IsNaN(lngDelta) {
		return maxClusterPrecision
	}

	target := lngDelta / cellsPerViewport
	for p := uint(minClusterPrecision); p <= maxClusterPrecision; p++ {
		if cellWidth(p) <= target {
			return p
		}
	}
	return maxClusterPrecision
}

// cellWidth is the longitude width in degrees of a geohash cell.
// Longitude takes the extra bit when the bit count is odd.
func cellWidth(precision uint) float64 {
	bits := 5 * precision
	lngBits := (bits + 1) / 2
	return 360 / math.Pow(2, float64(lngBits))
}

// ClusterZoomDivisor grows with the number of points in a cluster so denser
// clusters zoom in further when pressed. Capped at MaxZoomDivisor.
func ClusterZoomDivisor(pointCount int) float64 {
	if pointCount < 1 {
		pointCount = 1
	}
	return math.Min(MaxZoomDivisor, 2+math.Log2(float64(pointCount)))
}

// ZoomRegion centers on center and shrinks current's deltas by the
// divisor for pointCount, never below MinRegionDelta.
func ZoomRegion(center models.Coordinate, current models.Region, pointCount int) models.Region {
	d := ClusterZoomDivisor(pointCount)
	return models.Region{
		Latitude:       center.Lat,
		Longitude:      center.Lng,
		LatitudeDelta:  math.Max(current.LatitudeDelta/d, MinRegionDelta),
		LongitudeDelta: math.Max(current.LongitudeDelta/d, MinRegionDelta),
	}
}
